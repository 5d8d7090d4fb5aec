package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Tx is one unit of work. Reads see a consistent snapshot plus the
// transaction's own pending writes; writes become visible atomically on commit.
type Tx struct {
	ctx      context.Context
	txn      *badger.Txn
	writable bool
}

// Context returns the context the unit of work was opened with.
func (tx *Tx) Context() context.Context { return tx.ctx }

func (tx *Tx) check() error {
	return tx.ctx.Err()
}

func (tx *Tx) get(key []byte) (*badger.Item, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	item, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return item, nil
}

func (tx *Tx) exists(key []byte) (bool, error) {
	_, err := tx.get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (tx *Tx) set(key, value []byte) error {
	if !tx.writable {
		return fmt.Errorf("set %q: %w", key, badger.ErrReadOnlyTxn)
	}
	if err := tx.check(); err != nil {
		return err
	}
	if err := tx.txn.Set(key, value); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (tx *Tx) delete(key []byte) error {
	if !tx.writable {
		return fmt.Errorf("delete %q: %w", key, badger.ErrReadOnlyTxn)
	}
	if err := tx.check(); err != nil {
		return err
	}
	if err := tx.txn.Delete(key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// keysWithPrefix collects every key under prefix. The iterator is closed
// before returning so callers can write in the same transaction.
func (tx *Tx) keysWithPrefix(prefix []byte) ([]string, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := tx.txn.NewIterator(opts)
	defer it.Close()

	var keys []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, string(it.Item().KeyCopy(nil)))
	}
	return keys, nil
}

// Update runs fn in a read-write unit of work. If fn returns an error nothing
// is written and that error is returned unchanged. A commit that loses a race
// with a concurrent writer returns ErrConflict; any other commit failure
// returns ErrUnavailable.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return ErrUnavailable.WithCause(badger.ErrDBClosed)
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(&Tx{ctx: ctx, txn: txn, writable: true}); err != nil {
		return mapTxnError(err)
	}

	if err := txn.Commit(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return ErrConflict.WithCause(err)
		}
		return ErrUnavailable.WithCause(err)
	}
	return nil
}

// View runs fn in a read-only unit of work.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return ErrUnavailable.WithCause(badger.ErrDBClosed)
	}

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	return mapTxnError(fn(&Tx{ctx: ctx, txn: txn}))
}

// mapTxnError turns database-level failures raised inside fn into store
// errors and leaves everything else alone.
func mapTxnError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrDBClosed), errors.Is(err, badger.ErrBlockedWrites):
		return ErrUnavailable.WithCause(err)
	default:
		return err
	}
}
