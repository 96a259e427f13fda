package elastic

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/monobank-sync/statement-sync/entities"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, responseBody string, requests *[]string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/_bulk", r.URL.Path)

		scanner := bufio.NewScanner(r.Body)
		for scanner.Scan() {
			*requests = append(*requests, scanner.Text())
		}

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(responseBody))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_PublishStatementItems(t *testing.T) {
	records := []entities.StatementRecord{
		{ID: "item-1", AccountID: "account-1", Time: time.Unix(1727740800, 0).UTC(), Amount: -100, CurrencyCode: 980},
		{ID: "item-2", AccountID: "account-1", Time: time.Unix(1727740900, 0).UTC(), Amount: -200, CurrencyCode: 980},
	}

	var lines []string
	server := newTestServer(t, `{"errors":false,"items":[{"index":{"_id":"item-1","status":201}},{"index":{"_id":"item-2","status":200}}]}`, &lines)

	client, err := NewClient([]string{server.URL}, "", "", "statements", time.Second)
	require.NoError(t, err)

	err = client.PublishStatementItems(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, lines, 4)
	require.JSONEq(t, `{ "index": { "_index": "statements", "_id": "item-1" } }`, lines[0])
	require.JSONEq(t, `{ "index": { "_index": "statements", "_id": "item-2" } }`, lines[2])

	var doc entities.StatementRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	require.Equal(t, "item-1", doc.ID)
	require.Equal(t, "account-1", doc.AccountID)
}

func TestClient_PublishStatementItemsItemError(t *testing.T) {
	var lines []string
	server := newTestServer(t, `{"errors":true,"items":[{"index":{"_id":"item-1","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse"}}}]}`, &lines)

	client, err := NewClient([]string{server.URL}, "", "", "statements", time.Second)
	require.NoError(t, err)

	err = client.PublishStatementItems(context.Background(), []entities.StatementRecord{{ID: "item-1"}})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "mapper_parsing_exception"))
}

func TestClient_PublishNoItems(t *testing.T) {
	client, err := NewClient([]string{"http://127.0.0.1:1"}, "", "", "statements", time.Second)
	require.NoError(t, err)

	require.NoError(t, client.PublishStatementItems(context.Background(), nil))
}

func TestClient_PublishStatementItems_givenSpecialCharactersInID_thenValidBulkBody(t *testing.T) {
	var lines []string
	server := newTestServer(t, `{"errors":false,"items":[{"index":{"_id":"a\"b\\c","status":201}}]}`, &lines)

	client, err := NewClient([]string{server.URL}, "", "", "statements", time.Second)
	require.NoError(t, err)

	id := `a"b\c`
	err = client.PublishStatementItems(context.Background(), []entities.StatementRecord{{ID: id}})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	var action bulkAction
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &action))
	require.Equal(t, "statements", action.Index.Index)
	require.Equal(t, id, action.Index.ID)

	var doc entities.StatementRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	require.Equal(t, id, doc.ID)
}
