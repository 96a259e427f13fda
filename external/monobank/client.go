package monobank

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/monobank-sync/statement-sync/entities"
	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://api.monobank.ua/personal"

const tokenHeader = "X-Token"

// ProviderError is returned when the api answers with a non 2xx status.
type ProviderError struct {
	StatusCode  int
	Description string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider responded with status [%d]: %s", e.StatusCode, e.Description)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) GetClientInfo(ctx context.Context, token string) (*entities.ClientInfo, error) {
	var info entities.ClientInfo
	err := c.get(ctx, token, c.baseURL+"/client-info", &info)
	if err != nil {
		return nil, errors.Wrap(err, "calling client-info api")
	}
	return &info, nil
}

// GetStatements returns the statement items of the account between from and to (unix seconds). The
// provider silently truncates the result at its page size.
func (c *Client) GetStatements(ctx context.Context, token, accountID string, from, to int64) ([]entities.StatementItem, error) {
	url := fmt.Sprintf("%s/statement/%s/%d/%d", c.baseURL, accountID, from, to)
	var items []entities.StatementItem
	err := c.get(ctx, token, url, &items)
	if err != nil {
		return nil, errors.Wrapf(err, "calling statement api for account [%s] from [%d] to [%d]", accountID, from, to)
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, token, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.Header.Set(tokenHeader, token)
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, "reading response body")
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &ProviderError{
			StatusCode:  res.StatusCode,
			Description: errorDescription(body),
		}
	}

	err = json.Unmarshal(body, target)
	if err != nil {
		return errors.Wrap(err, "decoding response body")
	}
	return nil
}

func errorDescription(body []byte) string {
	var payload struct {
		ErrorDescription string `json:"errorDescription"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.ErrorDescription != "" {
		return payload.ErrorDescription
	}
	return strings.TrimSpace(string(body))
}
