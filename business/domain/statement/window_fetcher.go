package statement

import (
	"context"

	"github.com/monobank-sync/statement-sync/entities"
	"github.com/monobank-sync/statement-sync/metrics"
	"go.uber.org/zap"
)

// DefaultPageSize is the number of items after which the provider truncates a statement response.
const DefaultPageSize = 500

type StatementClient interface {
	GetStatements(ctx context.Context, token, accountID string, from, to int64) ([]entities.StatementItem, error)
}

type Waiter interface {
	Wait(ctx context.Context) error
}

// Window is a closed range of unix seconds.
type Window struct {
	Start int64
	End   int64
}

// WindowFetcher resolves a window into a complete result. The statement endpoint has no pagination, so
// a truncated response is recovered by narrowing the window towards its start. The part of the window
// that was cut off is left to the caller.
type WindowFetcher struct {
	client   StatementClient
	pacer    Waiter
	pageSize int
	metrics  *metrics.SyncMetrics
	logger   *zap.SugaredLogger
}

func NewWindowFetcher(client StatementClient, pacer Waiter, pageSize int, m *metrics.SyncMetrics, logger *zap.SugaredLogger) *WindowFetcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &WindowFetcher{
		client:   client,
		pacer:    pacer,
		pageSize: pageSize,
		metrics:  m,
		logger:   logger,
	}
}

// Fetch returns the items of the largest prefix [window.Start, coveredThrough] of the window that could be
// fetched without truncation. Errors from the pacer or the client are returned unchanged.
func (f *WindowFetcher) Fetch(ctx context.Context, token, accountID string, window Window) ([]entities.StatementItem, int64, error) {
	start, end := window.Start, window.End
	if start > end {
		return nil, end, nil
	}

	for {
		err := f.pacer.Wait(ctx)
		if err != nil {
			return nil, start - 1, err
		}

		f.logger.Infow("Fetching statements", "account", accountID, "token", maskToken(token), "from", start, "to", end)
		f.metrics.IncProviderRequests()
		items, err := f.client.GetStatements(ctx, token, accountID, start, end)
		if err != nil {
			return nil, start - 1, err
		}

		if len(items) < f.pageSize {
			return items, end, nil
		}

		delta := end - start
		if delta < 2 {
			// cannot split any further, items with the same timestamp beyond the page size are lost
			f.logger.Warnw("Statement window truncated and cannot be narrowed", "account", accountID,
				"from", start, "to", end, "items", len(items))
			f.metrics.IncTruncatedWindows()
			return items, end, nil
		}

		f.metrics.IncNarrowedWindows()
		end = start + delta/2
	}
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}
