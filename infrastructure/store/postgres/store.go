package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/monobank-sync/statement-sync/entities"
	"github.com/pkg/errors"
)

const defaultBatchSize = 200

var schema = []string{
	`CREATE TABLE IF NOT EXISTS client_info (
		client_id TEXT PRIMARY KEY,
		name      TEXT NOT NULL,
		token     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id            TEXT PRIMARY KEY,
		client_id     TEXT NOT NULL,
		send_id       TEXT NOT NULL,
		balance       BIGINT NOT NULL,
		credit_limit  BIGINT NOT NULL,
		type          TEXT NOT NULL,
		currency_code INTEGER NOT NULL,
		cashback_type TEXT,
		iban          TEXT,
		last_sync_at  TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS statement_items (
		id               TEXT PRIMARY KEY,
		account_id       TEXT NOT NULL,
		time             TIMESTAMPTZ NOT NULL,
		description      TEXT NOT NULL,
		mcc              INTEGER NOT NULL,
		original_mcc     INTEGER NOT NULL,
		hold             BOOLEAN NOT NULL,
		amount           BIGINT NOT NULL,
		operation_amount BIGINT NOT NULL,
		currency_code    INTEGER NOT NULL,
		commission_rate  BIGINT NOT NULL,
		cashback_amount  BIGINT NOT NULL,
		balance          BIGINT NOT NULL,
		comment          TEXT,
		receipt_id       TEXT,
		invoice_id       TEXT,
		counter_edrpou   TEXT,
		counter_iban     TEXT,
		counter_name     TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS statement_items_account_time_idx ON statement_items (account_id, time)`,
}

type Store struct {
	pool      *pgxpool.Pool
	batchSize int
}

func NewStore(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %v", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %v", err)
	}

	return &Store{pool: pool, batchSize: defaultBatchSize}, nil
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, statement := range schema {
		_, err := s.pool.Exec(ctx, statement)
		if err != nil {
			return errors.Wrap(err, "creating schema")
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) GetLastSyncWatermark(ctx context.Context, accountID string) (int64, error) {
	var lastSyncAt *time.Time
	err := s.pool.QueryRow(ctx, `SELECT last_sync_at FROM accounts WHERE id = $1`, accountID).Scan(&lastSyncAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return 0, errors.Wrapf(err, "getting last sync watermark of account [%s]", accountID)
	}
	if lastSyncAt == nil {
		return 0, entities.ErrStoreEntityNotFound
	}
	return lastSyncAt.Unix(), nil
}

// SetLastSyncWatermark updates the watermark of an already stored account.
func (s *Store) SetLastSyncWatermark(ctx context.Context, accountID string, watermark int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET last_sync_at = $1 WHERE id = $2`,
		time.Unix(watermark, 0).UTC(), accountID)
	if err != nil {
		return errors.Wrapf(err, "setting last sync watermark of account [%s]", accountID)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(entities.ErrStoreEntityNotFound, "account [%s]", accountID)
	}
	return nil
}

func (s *Store) GetLastSyncWatermarks(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, last_sync_at FROM accounts WHERE last_sync_at IS NOT NULL`)
	if err != nil {
		return nil, errors.Wrap(err, "querying last sync watermarks")
	}
	defer rows.Close()

	watermarks := make(map[string]int64)
	for rows.Next() {
		var accountID string
		var lastSyncAt time.Time
		err = rows.Scan(&accountID, &lastSyncAt)
		if err != nil {
			return nil, errors.Wrap(err, "scanning last sync watermark")
		}
		watermarks[accountID] = lastSyncAt.Unix()
	}
	return watermarks, rows.Err()
}

func (s *Store) UpsertStatementItems(ctx context.Context, records []entities.StatementRecord) error {
	for i := 0; i < len(records); i += s.batchSize {
		j := min(i+s.batchSize, len(records))

		b := &pgx.Batch{}
		for _, r := range records[i:j] {
			b.Queue(
				`INSERT INTO statement_items
				(id, account_id, time, description, mcc, original_mcc, hold, amount, operation_amount,
				 currency_code, commission_rate, cashback_amount, balance, comment, receipt_id, invoice_id,
				 counter_edrpou, counter_iban, counter_name)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
				ON CONFLICT (id) DO NOTHING`,
				r.ID, r.AccountID, r.Time, r.Description, r.MCC, r.OriginalMCC, r.Hold, r.Amount, r.OperationAmount,
				r.CurrencyCode, r.CommissionRate, r.CashbackAmount, r.Balance, r.Comment, r.ReceiptID, r.InvoiceID,
				r.CounterEdrpou, r.CounterIban, r.CounterName,
			)
		}

		err := s.pool.SendBatch(ctx, b).Close()
		if err != nil {
			return errors.Wrapf(err, "inserting statement items batch [%d:%d]", i, j)
		}
	}
	return nil
}

func (s *Store) UpsertAccount(ctx context.Context, a entities.Account) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts
		(id, client_id, send_id, balance, credit_limit, type, currency_code, cashback_type, iban, last_sync_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO NOTHING`,
		a.ID, a.ClientID, a.SendID, a.Balance, a.CreditLimit, a.Type, a.CurrencyCode, a.CashbackType, a.IBAN, a.LastSyncAt,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting account [%s]", a.ID)
	}
	return nil
}

func (s *Store) UpsertClient(ctx context.Context, c entities.Client) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO client_info (client_id, name, token) VALUES ($1,$2,$3) ON CONFLICT (client_id) DO NOTHING`,
		c.ClientID, c.Name, c.Token,
	)
	if err != nil {
		return errors.Wrapf(err, "inserting client [%s]", c.ClientID)
	}
	return nil
}

func (s *Store) CountStatementItems(ctx context.Context, accountID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM statement_items WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, errors.Wrapf(err, "counting statement items of account [%s]", accountID)
	}
	return count, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
