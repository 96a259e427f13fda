package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/monobank-sync/statement-sync/entities"
	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

type KafkaClient interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// Client publishes statement records keyed by item id, so all versions of an item share a partition.
type Client struct {
	kcl    KafkaClient
	logger *zap.SugaredLogger
}

func NewClient(kafkaClient KafkaClient, logger *zap.SugaredLogger) *Client {
	return &Client{
		kcl:    kafkaClient,
		logger: logger,
	}
}

func (kc *Client) PublishStatementItems(ctx context.Context, records []entities.StatementRecord) error {

	var wg sync.WaitGroup
	errorChannel := make(chan error, len(records))

	for _, record := range records {

		kafkaRecord, err := createStatementRecord(record)
		if err != nil {
			errorChannel <- err
			break
		}

		wg.Add(1)
		kc.kcl.Produce(ctx, kafkaRecord, func(_ *kgo.Record, err error) {
			defer wg.Done()
			if err != nil {
				kc.logger.Errorw("error producing statement record", "item", record.ID, "error", err)
				errorChannel <- err
			}
		})
	}

	wg.Wait()
	close(errorChannel)

	var failed int
	var firstErr error
	for err := range errorChannel {
		if firstErr == nil {
			firstErr = err
		}
		failed++
	}
	if firstErr != nil {
		return errors.Wrapf(firstErr, "producing statement records, [%d] of [%d] failed", failed, len(records))
	}

	return nil
}

func createStatementRecord(record entities.StatementRecord) (*kgo.Record, error) {

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshalling statement item [%s] to json: %w", record.ID, err)
	}

	return &kgo.Record{
		Key:   []byte(record.ID),
		Value: payload,
	}, nil
}
