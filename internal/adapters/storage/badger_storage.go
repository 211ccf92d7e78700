package storage

import (
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

const versionPrefix = "v:"

// BadgerStorage implements ports.StoragePort on a BadgerDB instance. Every
// write goes through a transaction that checks the stored version against the
// caller's expectation, giving the compare-and-swap semantics the rest of the
// engine relies on for multi-daemon safety.
type BadgerStorage struct {
	db     *badger.DB
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewBadgerStorage(db *badger.DB, logger *slog.Logger) *BadgerStorage {
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerStorage{
		db:     db,
		logger: logger.With("component", "storage"),
	}
}

// Open opens a Badger database at dir. An empty dir opens an in-memory
// instance, used by tests.
func Open(dir string, logger *slog.Logger) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return NewBadgerStorage(db, logger), nil
}

func (s *BadgerStorage) Get(key string) (value []byte, version int64, exists bool, err error) {
	if err := s.checkOpen(); err != nil {
		return nil, 0, false, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		exists = true
		value, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		version = readVersion(txn, key)
		return nil
	})
	return value, version, exists, err
}

func (s *BadgerStorage) Put(key string, value []byte, version int64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		current := readVersion(txn, key)
		if current != version {
			return domain.NewVersionMismatchError(key, version, current)
		}
		if err := txn.Set([]byte(key), value); err != nil {
			return err
		}
		return writeVersion(txn, key, version+1)
	})
	if errors.Is(err, badger.ErrConflict) {
		// A concurrent writer won the race; surface it the same way a
		// stale version does so the caller re-reads.
		return domain.NewVersionMismatchError(key, version, version+1)
	}
	return err
}

func (s *BadgerStorage) Delete(key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}
		return txn.Delete([]byte(versionPrefix + key))
	})
}

func (s *BadgerStorage) ListByPrefix(prefix string) ([]ports.KeyValueVersion, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var results []ports.KeyValueVersion
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			results = append(results, ports.KeyValueVersion{
				Key:     key,
				Value:   value,
				Version: readVersion(txn, key),
			})
		}
		return nil
	})
	return results, err
}

func (s *BadgerStorage) CountPrefix(prefix string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (s *BadgerStorage) AtomicIncrement(key string) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var next int64
	for {
		err := s.db.Update(func(txn *badger.Txn) error {
			current := int64(0)
			item, err := txn.Get([]byte(key))
			if err == nil {
				raw, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				current, _ = strconv.ParseInt(string(raw), 10, 64)
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			next = current + 1
			return txn.Set([]byte(key), []byte(strconv.FormatInt(next, 10)))
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return next, err
	}
}

func (s *BadgerStorage) BatchWrite(ops []ports.WriteOp) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			switch op.Type {
			case ports.OpPut:
				current := readVersion(txn, op.Key)
				if current != op.Version {
					return domain.NewVersionMismatchError(op.Key, op.Version, current)
				}
				if err := txn.Set([]byte(op.Key), op.Value); err != nil {
					return err
				}
				if err := writeVersion(txn, op.Key, op.Version+1); err != nil {
					return err
				}
			case ports.OpDelete:
				if err := txn.Delete([]byte(op.Key)); err != nil {
					return err
				}
				if err := txn.Delete([]byte(versionPrefix + op.Key)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		return domain.NewVersionMismatchError("batch", 0, 0)
	}
	return err
}

func (s *BadgerStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *BadgerStorage) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &domain.StorageError{Type: domain.ErrClosed, Message: "storage is closed"}
	}
	return nil
}

func readVersion(txn *badger.Txn, key string) int64 {
	item, err := txn.Get([]byte(versionPrefix + key))
	if err != nil {
		return 0
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return 0
	}
	version, _ := strconv.ParseInt(string(raw), 10, 64)
	return version
}

func writeVersion(txn *badger.Txn, key string, version int64) error {
	return txn.Set([]byte(versionPrefix+key), []byte(strconv.FormatInt(version, 10)))
}
