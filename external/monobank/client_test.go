package monobank

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/monobank-sync/statement-sync/entities"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL+"/", time.Second)
	require.NoError(t, err)
	return client
}

func TestClient_GetStatements(t *testing.T) {
	var gotPath, gotToken string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-Token")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a","time":1001,"amount":-100},{"id":"b","time":"1002","amount":200}]`))
	})

	items, err := client.GetStatements(context.Background(), "secret", "acc-1", 1000, 2000)
	require.NoError(t, err)
	assert.Equal(t, "/statement/acc-1/1000/2000", gotPath)
	assert.Equal(t, "secret", gotToken)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, entities.UnixTime(1001), items[0].Time)
	assert.Equal(t, entities.UnixTime(1002), items[1].Time)
	assert.Equal(t, int64(200), items[1].Amount)
}

func TestClient_GetStatements_emptyList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	items, err := client.GetStatements(context.Background(), "secret", "acc-1", 1000, 2000)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestClient_GetStatements_providerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errorDescription":"Too many requests"}`))
	})

	_, err := client.GetStatements(context.Background(), "secret", "acc-1", 1000, 2000)
	require.Error(t, err)

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, http.StatusTooManyRequests, providerErr.StatusCode)
	assert.Equal(t, "Too many requests", providerErr.Description)
}

func TestClient_GetStatements_providerErrorWithoutJsonBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway\n"))
	})

	_, err := client.GetStatements(context.Background(), "secret", "acc-1", 1000, 2000)

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, "bad gateway", providerErr.Description)
}

func TestClient_GetStatements_decodingError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	})

	_, err := client.GetStatements(context.Background(), "secret", "acc-1", 1000, 2000)
	require.Error(t, err)

	var providerErr *ProviderError
	assert.False(t, errors.As(err, &providerErr))
}

func TestClient_GetStatements_transportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client, err := NewClient(server.URL, time.Second)
	require.NoError(t, err)
	server.Close()

	_, err = client.GetStatements(context.Background(), "secret", "acc-1", 1000, 2000)
	assert.Error(t, err)
}

func TestClient_GetClientInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/client-info", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		_, _ = w.Write([]byte(`{"clientId":"c1","name":"Test","accounts":[{"id":"acc-1","sendId":"s","type":"black","currencyCode":980}]}`))
	})

	info, err := client.GetClientInfo(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, "c1", info.ClientID)
	assert.Equal(t, "Test", info.Name)
	require.Len(t, info.Accounts, 1)
	assert.Equal(t, "black", info.Accounts[0].Type)
}

func TestNewClient_defaults(t *testing.T) {
	client, err := NewClient("  ", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}
