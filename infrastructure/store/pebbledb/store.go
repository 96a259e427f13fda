package pebbledb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/monobank-sync/statement-sync/entities"
	"github.com/pkg/errors"
)

const (
	lastSyncWatermarkKey = 0x00
	statementItemKey     = 0x01
	accountKey           = 0x02
	clientKey            = 0x03
)

type Store struct {
	db *pebble.DB
	// serializes the existence check and the write of insert-or-ignore operations
	mutex sync.Mutex
}

func NewStore(storeDir string) (*Store, error) {
	db, err := pebble.Open(filepath.Join(storeDir, "statement-sync-store"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %v", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) SetLastSyncWatermark(_ context.Context, accountID string, watermark int64) error {
	key := prefixedKey(lastSyncWatermarkKey, accountID)

	var value []byte
	value = binary.BigEndian.AppendUint64(value, uint64(watermark))

	err := s.db.Set(key, value, pebble.Sync)
	if err != nil {
		return errors.Wrapf(err, "setting last sync watermark of account [%s]", accountID)
	}

	return nil
}

func (s *Store) GetLastSyncWatermark(_ context.Context, accountID string) (int64, error) {
	key := prefixedKey(lastSyncWatermarkKey, accountID)

	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return 0, errors.Wrapf(err, "getting last sync watermark of account [%s]", accountID)
	}
	defer closer.Close()

	return int64(binary.BigEndian.Uint64(value)), nil
}

func (s *Store) GetLastSyncWatermarks(_ context.Context) (map[string]int64, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{lastSyncWatermarkKey},
		UpperBound: []byte{lastSyncWatermarkKey + 1},
	})
	if err != nil {
		return nil, fmt.Errorf("creating iterator: %v", err)
	}
	defer iter.Close()

	watermarks := make(map[string]int64)
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()

		value, err := iter.ValueAndErr()
		if err != nil {
			return nil, fmt.Errorf("getting value from iter: %v", err)
		}

		watermarks[string(key[1:])] = int64(binary.BigEndian.Uint64(value))
	}

	return watermarks, nil
}

// UpsertStatementItems stores the records that are not stored yet. Existing records are left untouched.
func (s *Store) UpsertStatementItems(_ context.Context, records []entities.StatementRecord) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	batch := s.db.NewBatch()
	defer batch.Close()

	for _, record := range records {
		key := statementItemRecordKey(record.AccountID, record.ID)
		exists, err := s.exists(key)
		if err != nil {
			return errors.Wrapf(err, "checking statement item [%s]", record.ID)
		}
		if exists {
			continue
		}

		value, err := json.Marshal(record)
		if err != nil {
			return errors.Wrapf(err, "marshalling statement item [%s]", record.ID)
		}
		err = batch.Set(key, value, nil)
		if err != nil {
			return errors.Wrapf(err, "adding statement item [%s] to batch", record.ID)
		}
	}

	err := batch.Commit(pebble.Sync)
	if err != nil {
		return errors.Wrap(err, "committing statement items batch")
	}
	return nil
}

func (s *Store) GetStatementItems(_ context.Context, accountID string) ([]entities.StatementRecord, error) {
	lowerBound := statementItemRecordKey(accountID, "")
	upperBound := append(prefixedKey(statementItemKey, accountID), 0x01)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lowerBound,
		UpperBound: upperBound,
	})
	if err != nil {
		return nil, fmt.Errorf("creating iterator: %v", err)
	}
	defer iter.Close()

	var records []entities.StatementRecord
	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return nil, fmt.Errorf("getting value from iter: %v", err)
		}

		var record entities.StatementRecord
		err = json.Unmarshal(value, &record)
		if err != nil {
			return nil, errors.Wrapf(err, "unmarshalling statement item [%s]", iter.Key())
		}
		records = append(records, record)
	}

	return records, nil
}

func (s *Store) UpsertAccount(_ context.Context, account entities.Account) error {
	return s.insertIfAbsent(prefixedKey(accountKey, account.ID), account)
}

func (s *Store) GetAccount(_ context.Context, accountID string) (*entities.Account, error) {
	var account entities.Account
	err := s.get(prefixedKey(accountKey, accountID), &account)
	if err != nil {
		return nil, errors.Wrapf(err, "getting account [%s]", accountID)
	}
	return &account, nil
}

func (s *Store) UpsertClient(_ context.Context, client entities.Client) error {
	return s.insertIfAbsent(prefixedKey(clientKey, client.ClientID), client)
}

func (s *Store) GetClient(_ context.Context, clientID string) (*entities.Client, error) {
	var client entities.Client
	err := s.get(prefixedKey(clientKey, clientID), &client)
	if err != nil {
		return nil, errors.Wrapf(err, "getting client [%s]", clientID)
	}
	return &client, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) insertIfAbsent(key []byte, entity any) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	exists, err := s.exists(key)
	if err != nil {
		return errors.Wrapf(err, "checking key [%s]", key)
	}
	if exists {
		return nil
	}

	value, err := json.Marshal(entity)
	if err != nil {
		return errors.Wrapf(err, "marshalling value of key [%s]", key)
	}

	err = s.db.Set(key, value, pebble.Sync)
	if err != nil {
		return errors.Wrapf(err, "setting key [%s]", key)
	}
	return nil
}

func (s *Store) get(key []byte, target any) error {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return entities.ErrStoreEntityNotFound
	}
	if err != nil {
		return err
	}
	defer closer.Close()

	return json.Unmarshal(value, target)
}

func (s *Store) exists(key []byte) (bool, error) {
	_, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

func prefixedKey(prefix byte, id string) []byte {
	key := []byte{prefix}
	return append(key, id...)
}

// statementItemRecordKey scopes item ids by account, the separator keeps account ids prefix free
func statementItemRecordKey(accountID, itemID string) []byte {
	key := prefixedKey(statementItemKey, accountID)
	key = append(key, 0x00)
	return append(key, itemID...)
}
