package kvdb

import (
	"errors"

	"github.com/ostafen/kvdb/except"
)

// Error ids carried by the errors returned from a Database.
const (
	IDInvalidConf       = "kvdb.config"
	IDKeyNotFound       = "kvdb.not_found"
	IDKeyExists         = "kvdb.key_exists"
	IDTransactionActive = "kvdb.transaction_active"
	IDNoTransaction     = "kvdb.no_transaction"
	IDDeleted           = "kvdb.deleted"
	IDClosed            = "kvdb.closed"
	IDInvalidRange      = "kvdb.invalid_range"
	IDBackend           = "kvdb.backend"
)

// Sentinels to compare against with errors.Is. Matching is by id, so a
// returned error carrying a more specific message still matches.
var (
	ErrInvalidConf       = except.New(IDInvalidConf, "invalid configuration")
	ErrKeyNotFound       = except.New(IDKeyNotFound, "no such key")
	ErrKeyExists         = except.New(IDKeyExists, "key already exists")
	ErrTransactionActive = except.New(IDTransactionActive, "a transaction is already active")
	ErrNoTransaction     = except.New(IDNoTransaction, "no active transaction")
	ErrDeleted           = except.New(IDDeleted, "database has been deleted")
	ErrClosed            = except.New(IDClosed, "database is closed")
	ErrInvalidRange      = except.New(IDInvalidRange, "invalid range")
)

// IsNotFound reports whether err signals a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsConflict reports whether err signals an operation that clashes with
// the state of the record or of the handle.
func IsConflict(err error) bool {
	switch {
	case errors.Is(err, ErrKeyExists),
		errors.Is(err, ErrTransactionActive),
		errors.Is(err, ErrNoTransaction),
		errors.Is(err, ErrDeleted),
		errors.Is(err, ErrClosed):
		return true
	}
	return false
}

func confError(format string, args ...interface{}) *except.Error {
	return except.New(IDInvalidConf, format, args...)
}

// backendError wraps an engine failure, keeping it reachable as the cause.
func backendError(err error, op string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*except.Error); ok {
		return e
	}
	return except.NewCause(err, IDBackend, "%s failed", op)
}
