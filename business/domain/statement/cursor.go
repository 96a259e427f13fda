package statement

import (
	"context"
	"time"

	"github.com/monobank-sync/statement-sync/entities"
)

// DefaultMaxSpan is the longest range the statement endpoint accepts in one call.
const DefaultMaxSpan = 31 * 24 * time.Hour

type windowFetcher interface {
	Fetch(ctx context.Context, token, accountID string, window Window) ([]entities.StatementItem, int64, error)
}

// Outcome is the result of one cursor step. Watermark is the timestamp up to which the account is known
// to be complete after this step. On error it is the watermark from before the step.
type Outcome struct {
	Window    Window
	Items     []entities.StatementItem
	Watermark int64
	Err       error
}

// Cursor walks an account's statement history from its watermark up to a fixed end time, one bounded
// window per Next call. Its whole state is the watermark, so a cursor created from a persisted
// watermark continues where the previous one stopped.
type Cursor struct {
	fetcher         windowFetcher
	token           string
	accountID       string
	lastSuccessTime int64
	endTime         int64
	maxSpan         int64
	failed          bool
}

func NewCursor(fetcher windowFetcher, token, accountID string, lastSuccessTime, endTime int64, maxSpan time.Duration) *Cursor {
	if maxSpan <= 0 {
		maxSpan = DefaultMaxSpan
	}
	return &Cursor{
		fetcher:         fetcher,
		token:           token,
		accountID:       accountID,
		lastSuccessTime: lastSuccessTime,
		endTime:         endTime,
		maxSpan:         int64(maxSpan / time.Second),
	}
}

// Next resolves the next window. The second return value is false when the sequence has ended, either
// because the end time was reached or because the previous step failed.
func (c *Cursor) Next(ctx context.Context) (Outcome, bool) {
	if c.Done() {
		return Outcome{}, false
	}

	window := c.nextWindow()
	items, coveredThrough, err := c.fetcher.Fetch(ctx, c.token, c.accountID, window)
	if err != nil {
		c.failed = true
		return Outcome{Window: window, Watermark: c.lastSuccessTime, Err: err}, true
	}

	c.lastSuccessTime = max(c.lastSuccessTime, min(coveredThrough, c.endTime))
	window.End = min(window.End, coveredThrough)
	return Outcome{Window: window, Items: items, Watermark: c.lastSuccessTime}, true
}

func (c *Cursor) Done() bool {
	return c.failed || c.lastSuccessTime >= c.endTime
}

func (c *Cursor) Watermark() int64 {
	return c.lastSuccessTime
}

func (c *Cursor) nextWindow() Window {
	start := c.lastSuccessTime + 1
	return Window{
		Start: start,
		End:   min(start+c.maxSpan, c.endTime),
	}
}
