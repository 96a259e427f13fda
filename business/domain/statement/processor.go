package statement

import (
	"context"
	"slices"
	"time"

	"github.com/monobank-sync/statement-sync/entities"
	"github.com/monobank-sync/statement-sync/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Provider interface {
	StatementClient
	GetClientInfo(ctx context.Context, token string) (*entities.ClientInfo, error)
}

// Store persists the synchronization state. All upserts ignore records whose key is already stored, as
// the same window can be delivered again after a resumed run.
type Store interface {
	GetLastSyncWatermark(ctx context.Context, accountID string) (int64, error)
	SetLastSyncWatermark(ctx context.Context, accountID string, watermark int64) error
	UpsertStatementItems(ctx context.Context, records []entities.StatementRecord) error
	UpsertAccount(ctx context.Context, account entities.Account) error
	UpsertClient(ctx context.Context, client entities.Client) error
}

// Publisher is an additional sink for persisted statement items.
type Publisher interface {
	PublishStatementItems(ctx context.Context, records []entities.StatementRecord) error
}

type SyncConfig struct {
	Tokens              []string
	AllowedAccountTypes []string
	SyncStartTimestamp  int64 // used for accounts without a stored watermark
	Location            *time.Location
	PageSize            int
	MaxSpan             time.Duration
	WaitTime            time.Duration
	WaitJitter          time.Duration
	TokenWorkers        int
}

type Processor struct {
	provider   Provider
	store      Store
	publishers []Publisher
	config     SyncConfig
	metrics    *metrics.SyncMetrics
	logger     *zap.SugaredLogger
	now        func() time.Time
	newPacer   func() Waiter
}

func NewProcessor(provider Provider, store Store, publishers []Publisher, config SyncConfig,
	m *metrics.SyncMetrics, logger *zap.SugaredLogger) *Processor {

	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Processor{
		provider:   provider,
		store:      store,
		publishers: publishers,
		config:     config,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		newPacer: func() Waiter {
			return NewPacer(config.WaitTime, config.WaitJitter)
		},
	}
}

// Start runs a synchronization and, if interval is positive, repeats it every interval until the
// context is done.
func (p *Processor) Start(ctx context.Context, interval time.Duration) error {
	for {
		err := p.Sync(ctx)
		if err != nil {
			return errors.Wrap(err, "running sync")
		}
		if interval <= 0 {
			return nil
		}
		p.logger.Infow("Waiting for next sync run", "interval", interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Sync synchronizes all accounts of all tokens up to now. Failures are scoped to the affected token or
// account and only logged. The returned error is the context error if the run was cancelled.
func (p *Processor) Sync(ctx context.Context) error {
	started := p.now()
	endTime := started.Unix()

	var group errgroup.Group
	group.SetLimit(max(p.config.TokenWorkers, 1))
	for _, token := range p.config.Tokens {
		group.Go(func() error {
			return p.syncToken(ctx, token, endTime)
		})
	}
	err := group.Wait()
	p.metrics.ObserveRunDuration(p.now().Sub(started).Seconds())
	if err != nil {
		return err
	}

	p.logger.Infow("Finished sync run", "tokens", len(p.config.Tokens), "endTime", endTime)
	return nil
}

func (p *Processor) syncToken(ctx context.Context, token string, endTime int64) error {
	p.logger.Infow("Getting client info", "token", maskToken(token))
	info, err := p.provider.GetClientInfo(ctx, token)
	if err != nil {
		p.metrics.IncFailedClients()
		p.logger.Errorw("error getting client info, skipping token", "token", maskToken(token), "error", err)
		return ctx.Err()
	}
	p.logger.Infow("Got client info", "client", info.ClientID, "accounts", len(info.Accounts), "jars", len(info.Jars))

	err = p.store.UpsertClient(ctx, entities.Client{
		ClientID: info.ClientID,
		Name:     info.Name,
		Token:    token,
	})
	if err != nil {
		p.logger.Warnw("error storing client", "client", info.ClientID, "error", err)
	}

	// accounts of one token share the pacer, the rate limit is per token
	fetcher := NewWindowFetcher(p.provider, p.newPacer(), p.config.PageSize, p.metrics, p.logger)
	for _, account := range info.Accounts {
		if !slices.Contains(p.config.AllowedAccountTypes, account.Type) {
			p.logger.Debugw("Skipping account", "account", account.ID, "type", account.Type)
			continue
		}
		account.ClientID = info.ClientID
		err = p.syncAccount(ctx, fetcher, token, account, endTime)
		if err != nil {
			p.logger.Errorw("error syncing account", "account", account.ID, "error", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

func (p *Processor) syncAccount(ctx context.Context, fetcher windowFetcher, token string, account entities.Account, endTime int64) error {
	lastSuccessTime, err := p.startingWatermark(ctx, account.ID)
	if err != nil {
		return errors.Wrap(err, "getting starting watermark")
	}

	lastSyncAt := time.Unix(lastSuccessTime, 0).In(p.config.Location)
	account.LastSyncAt = &lastSyncAt
	err = p.store.UpsertAccount(ctx, account)
	if err != nil {
		return errors.Wrap(err, "storing account")
	}

	p.logger.Infow("Starting account sync", "account", account.ID, "type", account.Type,
		"token", maskToken(token), "lastSuccessTime", lastSuccessTime, "endTime", endTime)

	cursor := NewCursor(fetcher, token, account.ID, lastSuccessTime, endTime, p.config.MaxSpan)
	for {
		outcome, ok := cursor.Next(ctx)
		if !ok {
			break
		}

		if outcome.Err != nil {
			p.metrics.IncFailedWindows(account.ID)
			p.logger.Errorw("error fetching statement window", "account", account.ID,
				"from", outcome.Window.Start, "to", outcome.Window.End, "error", outcome.Err)
			err = p.storeWatermark(ctx, account.ID, outcome.Watermark)
			if err != nil {
				return errors.Wrap(err, "storing watermark after failed window")
			}
			return nil
		}

		err = p.persistItems(ctx, account.ID, outcome.Items)
		if err != nil {
			// the watermark must not pass items that are not stored
			return errors.Wrapf(err, "persisting items of window [%d] to [%d]", outcome.Window.Start, outcome.Window.End)
		}
		err = p.storeWatermark(ctx, account.ID, outcome.Watermark)
		if err != nil {
			return errors.Wrap(err, "storing watermark")
		}
		p.logger.Infow("Synced statement window", "account", account.ID, "from", outcome.Window.Start,
			"to", outcome.Window.End, "items", len(outcome.Items))
	}

	p.logger.Infow("Finished account sync", "account", account.ID, "watermark", cursor.Watermark())
	return nil
}

// startingWatermark returns the last fully stored second of the account. Accounts without a stored
// watermark start at the configured floor, inclusive.
func (p *Processor) startingWatermark(ctx context.Context, accountID string) (int64, error) {
	watermark, err := p.store.GetLastSyncWatermark(ctx, accountID)
	if errors.Is(err, entities.ErrStoreEntityNotFound) {
		return p.config.SyncStartTimestamp - 1, nil
	}
	if err != nil {
		return 0, err
	}
	return watermark, nil
}

func (p *Processor) persistItems(ctx context.Context, accountID string, items []entities.StatementItem) error {
	if len(items) == 0 {
		return nil
	}

	records := make([]entities.StatementRecord, 0, len(items))
	for _, item := range items {
		records = append(records, entities.NewStatementRecord(accountID, item, p.config.Location))
	}

	err := p.store.UpsertStatementItems(ctx, records)
	if err != nil {
		return errors.Wrap(err, "storing statement items")
	}
	for _, publisher := range p.publishers {
		err = publisher.PublishStatementItems(ctx, records)
		if err != nil {
			return errors.Wrap(err, "publishing statement items")
		}
	}
	p.metrics.AddPersistedItems(accountID, len(records))
	return nil
}

func (p *Processor) storeWatermark(ctx context.Context, accountID string, watermark int64) error {
	// a cancelled run still records its progress
	err := p.store.SetLastSyncWatermark(context.WithoutCancel(ctx), accountID, watermark)
	if err != nil {
		return err
	}
	p.metrics.SetWatermark(accountID, watermark)
	return nil
}
