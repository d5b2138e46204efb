// Package store defines the contract every storage engine behind a kvdb
// handle implements.
package store

import (
	"context"
	"errors"
)

var (
	// ErrTxDone is returned by operations on a committed or rolled back Tx.
	ErrTxDone = errors.New("transaction has already been committed or rolled back")

	// ErrNotExist is returned by Open functions asked to attach to a store
	// that has not been created.
	ErrNotExist = errors.New("store does not exist")
)

type Store interface {
	// Begin starts a transaction. Read-only transactions must not be
	// written to. The context is bound to the transaction for its lifetime.
	Begin(ctx context.Context, update bool) (Tx, error)
	Close() error

	// Drop closes the store and removes all of its persistent state.
	Drop() error
}

type Tx interface {
	// Get returns nil, nil when key is absent and a non-nil slice otherwise,
	// even for empty values.
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Cursor() (Cursor, error)
	Commit() error
	Rollback() error
}

// Counter is implemented by transactions that can count their keys without
// a full scan.
type Counter interface {
	Count() (int64, error)
}

// RangeReader is implemented by transactions that can read a byte range of
// a value without loading all of it.
type RangeReader interface {
	// GetRange returns up to length bytes starting at offset together with
	// the full size of the value. The boolean is false when key is absent.
	GetRange(key []byte, offset, length int64) ([]byte, int64, bool, error)
}

// Cursor walks keys in ascending byte order.
type Cursor interface {
	// Seek positions the cursor at the first key >= key.
	Seek(key []byte) error
	Next()
	Valid() bool
	Item() (Item, error)
	Close() error
}

type Item struct {
	Key, Value []byte
}

// Count counts the keys visible in tx, scanning with a cursor when tx does
// not implement Counter.
func Count(tx Tx) (int64, error) {
	if c, ok := tx.(Counter); ok {
		return c.Count()
	}

	cursor, err := tx.Cursor()
	if err != nil {
		return 0, err
	}
	defer cursor.Close()

	if err := cursor.Seek(nil); err != nil {
		return 0, err
	}

	var n int64
	for ; cursor.Valid(); cursor.Next() {
		n++
	}
	return n, nil
}
