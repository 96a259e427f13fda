package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/monobank-sync/statement-sync/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

type MockKafkaClient struct {
	shouldError bool
	mutex       sync.Mutex
	produced    []*kgo.Record
}

func (mkc *MockKafkaClient) Produce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {

	if mkc.shouldError {
		go promise(nil, errors.New("dummy error"))
		return
	}

	mkc.mutex.Lock()
	mkc.produced = append(mkc.produced, r)
	mkc.mutex.Unlock()
	go promise(r, nil)
}

func testRecords() []entities.StatementRecord {
	comment := "for coffee"
	return []entities.StatementRecord{
		{
			ID:              "ZuHWzqkKGVo=",
			AccountID:       "kKGVoZuHWzqVoZuH",
			Time:            time.Unix(1554466347, 0).UTC(),
			Description:     "Coffee shop",
			MCC:             5814,
			OriginalMCC:     5814,
			Amount:          -9500,
			OperationAmount: -9500,
			CurrencyCode:    980,
			Balance:         10050000,
			Comment:         &comment,
		},
		{
			ID:              "qkKGVoZuHWz=",
			AccountID:       "kKGVoZuHWzqVoZuH",
			Time:            time.Unix(1554466400, 0).UTC(),
			Description:     "Groceries",
			MCC:             5411,
			OriginalMCC:     5411,
			Hold:            true,
			Amount:          -35000,
			OperationAmount: -35000,
			CurrencyCode:    980,
			Balance:         10015000,
		},
	}
}

func TestClient_PublishStatementItems(t *testing.T) {

	testData := []struct {
		name        string
		records     []entities.StatementRecord
		shouldError bool
	}{
		{
			name:    "TestPublishStatementItems_1",
			records: testRecords(),
		},
		{
			name:    "TestPublishStatementItems_Empty",
			records: nil,
		},
		{
			name:        "TestPublishStatementItems_Error",
			records:     testRecords(),
			shouldError: true,
		},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {

			mock := MockKafkaClient{shouldError: testRun.shouldError}
			kc := NewClient(&mock, zap.NewNop().Sugar())

			err := kc.PublishStatementItems(context.Background(), testRun.records)

			if testRun.shouldError {
				assert.Error(t, err)
				t.Logf("Err: %v", err)
				return
			}
			require.NoError(t, err)
			require.Len(t, mock.produced, len(testRun.records))

		})
	}
}

func TestClient_CreateStatementRecord(t *testing.T) {
	record := testRecords()[0]

	got, err := createStatementRecord(record)
	require.NoError(t, err)
	assert.Equal(t, []byte(record.ID), got.Key)

	var decoded entities.StatementRecord
	require.NoError(t, json.Unmarshal(got.Value, &decoded))
	assert.Equal(t, record.ID, decoded.ID)
	assert.Equal(t, record.AccountID, decoded.AccountID)
	assert.True(t, record.Time.Equal(decoded.Time))
	assert.Equal(t, *record.Comment, *decoded.Comment)
}
