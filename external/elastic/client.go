package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/monobank-sync/statement-sync/entities"
	"github.com/pkg/errors"
)

type Client struct {
	index    string
	esClient *elasticsearch.Client
}

func NewClient(addresses []string, username, password, index string, timeout time.Duration) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: addresses,
		Username:  username,
		Password:  password,
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: timeout,
		},
	}

	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %v", err)
	}

	return &Client{
		index:    index,
		esClient: esClient,
	}, nil
}

type bulkIndex struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type bulkAction struct {
	Index bulkIndex `json:"index"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// PublishStatementItems indexes the records with the item id as document id. Re-indexing an item
// replaces the document.
func (es *Client) PublishStatementItems(ctx context.Context, records []entities.StatementRecord) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, record := range records {
		meta, err := json.Marshal(bulkAction{Index: bulkIndex{Index: es.index, ID: record.ID}})
		if err != nil {
			return errors.Wrapf(err, "serializing bulk action of statement item [%s]", record.ID)
		}
		buf.Write(meta)
		buf.Write([]byte("\n"))

		data, err := json.Marshal(record)
		if err != nil {
			return errors.Wrapf(err, "serializing statement item [%s]", record.ID)
		}
		buf.Write(data)
		buf.Write([]byte("\n"))
	}

	res, err := es.esClient.Bulk(bytes.NewReader(buf.Bytes()), es.esClient.Bulk.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "bulk request failed")
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk request error: %s", res.String())
	}

	var response bulkResponse
	err = json.NewDecoder(res.Body).Decode(&response)
	if err != nil {
		return errors.Wrap(err, "decoding bulk response")
	}
	if !response.Errors {
		return nil
	}
	for _, item := range response.Items {
		for _, result := range item {
			if result.Status >= 300 {
				return fmt.Errorf("indexing statement item [%s] failed with status [%d]: %s: %s",
					result.ID, result.Status, result.Error.Type, result.Error.Reason)
			}
		}
	}
	return nil
}
