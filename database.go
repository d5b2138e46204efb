package kvdb

import (
	"context"
	"log/slog"

	"github.com/gofrs/uuid/v5"
	"github.com/ostafen/kvdb/except"
	"github.com/ostafen/kvdb/internal"
	"github.com/ostafen/kvdb/store"
)

// Database is a handle on a record store. Records are byte strings
// addressed by int64 keys.
//
// A Database is meant to be used by one goroutine at a time. Errors are
// *except.Error chains; when ctx carries an except.Context with an active
// Try, they are thrown to it instead of being returned.
type Database struct {
	id     uuid.UUID
	conf   Conf
	cfg    *config
	store  store.Store
	cache  *recordCache
	logger *slog.Logger

	tx store.Tx

	closed  bool
	deleted bool
}

// Open opens the store described by conf. With create set a missing store
// is created, otherwise Open fails with a configuration error.
func Open(ctx context.Context, conf *Conf, create bool, opts ...Option) (*Database, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	cfg, err := defaultConfig().applyOptions(opts)
	if err != nil {
		return nil, err
	}

	cache, err := newRecordCache(cfg.CacheSize)
	if err != nil {
		return nil, confError("cache: %s", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, except.NewCause(err, IDBackend, "generate handle id")
	}

	s, err := openStore(ctx, conf, create, cfg)
	if err != nil {
		countError(conf.Kind, "open")
		return nil, err
	}
	countOp(conf.Kind, "open")

	db := &Database{
		id:     id,
		conf:   *conf,
		cfg:    cfg,
		store:  s,
		cache:  cache,
		logger: cfg.Logger.With(slog.String("handle", id.String()), slog.String("backend", conf.Kind.String())),
	}
	db.logger.Debug("database opened", slog.String("conf", conf.String()), slog.Bool("create", create))
	return db, nil
}

func (db *Database) ID() uuid.UUID {
	return db.id
}

func (db *Database) Kind() Kind {
	return db.conf.Kind
}

// Conf returns a copy of the configuration the handle was opened with.
func (db *Database) Conf() Conf {
	return db.conf
}

func (db *Database) InTransaction() bool {
	return db.tx != nil
}

func (db *Database) usable() error {
	if db.deleted {
		return except.New(IDDeleted, "database %s has been deleted", db.id)
	}
	if db.closed {
		return except.New(IDClosed, "database %s is closed", db.id)
	}
	return nil
}

// finish records the outcome of op and delivers err to the except.Context
// carried by ctx, if any.
func (db *Database) finish(ctx context.Context, op string, err error) error {
	countOp(db.conf.Kind, op)
	if err == nil {
		return nil
	}
	countError(db.conf.Kind, op)

	if c, ok := except.FromContext(ctx); ok && c.Depth() > 0 {
		c.Throw(except.From(err))
	}
	return err
}

// view runs fn with the active transaction, or with a read-only one that
// is discarded afterwards.
func (db *Database) view(ctx context.Context, op string, fn func(tx store.Tx) error) error {
	if err := db.usable(); err != nil {
		return err
	}
	if db.tx != nil {
		return backendError(fn(db.tx), op)
	}

	tx, err := db.store.Begin(ctx, false)
	if err != nil {
		return backendError(err, op)
	}
	defer tx.Rollback()

	return backendError(fn(tx), op)
}

// update runs fn with the active transaction. Outside a transaction fn
// gets a transaction of its own that is committed when fn succeeds,
// unless the handle is strict.
func (db *Database) update(ctx context.Context, op string, fn func(tx store.Tx) error) error {
	if err := db.usable(); err != nil {
		return err
	}
	if db.tx != nil {
		return backendError(fn(db.tx), op)
	}
	if db.cfg.StrictTransactions {
		return except.New(IDNoTransaction, "%s requires an active transaction", op)
	}

	tx, err := db.store.Begin(ctx, true)
	if err != nil {
		return backendError(err, op)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return backendError(err, op)
	}
	return backendError(tx.Commit(), op)
}

func get(tx store.Tx, key int64) ([]byte, error) {
	return tx.Get(internal.EncodeKey(key))
}

func (db *Database) cached(key int64) ([]byte, bool) {
	if db.tx != nil {
		return nil, false
	}
	return db.cache.get(key)
}

func (db *Database) remember(key int64, value []byte) {
	if db.tx == nil && value != nil {
		db.cache.add(key, append([]byte{}, value...))
	}
}

func (db *Database) ContainsRecord(ctx context.Context, key int64) (bool, error) {
	if err := db.usable(); err == nil {
		if _, ok := db.cached(key); ok {
			return true, db.finish(ctx, "contains", nil)
		}
	}

	var found bool
	err := db.view(ctx, "contains", func(tx store.Tx) error {
		value, err := get(tx, key)
		if err != nil {
			return err
		}
		found = value != nil
		db.remember(key, value)
		return nil
	})
	return found, db.finish(ctx, "contains", err)
}

// InsertRecord adds a record. It fails with ErrKeyExists when key is
// already present.
func (db *Database) InsertRecord(ctx context.Context, key int64, data []byte) error {
	err := db.update(ctx, "insert", func(tx store.Tx) error {
		value, err := get(tx, key)
		if err != nil {
			return err
		}
		if value != nil {
			return except.New(IDKeyExists, "record %d already exists", key)
		}
		return tx.Set(internal.EncodeKey(key), normalize(data))
	})
	db.cache.evict(key)
	return db.finish(ctx, "insert", err)
}

// UpdateRecord replaces the data of a record. It fails with
// ErrKeyNotFound when key is not present.
func (db *Database) UpdateRecord(ctx context.Context, key int64, data []byte) error {
	err := db.update(ctx, "update", func(tx store.Tx) error {
		value, err := get(tx, key)
		if err != nil {
			return err
		}
		if value == nil {
			return except.New(IDKeyNotFound, "record %d not found", key)
		}
		return tx.Set(internal.EncodeKey(key), normalize(data))
	})
	db.cache.evict(key)
	return db.finish(ctx, "update", err)
}

// SetRecord inserts the record or replaces its data.
func (db *Database) SetRecord(ctx context.Context, key int64, data []byte) error {
	err := db.update(ctx, "set", func(tx store.Tx) error {
		return tx.Set(internal.EncodeKey(key), normalize(data))
	})
	db.cache.evict(key)
	return db.finish(ctx, "set", err)
}

func normalize(data []byte) []byte {
	if data == nil {
		return []byte{}
	}
	return data
}

func (db *Database) NumberOfRecords(ctx context.Context) (int64, error) {
	var n int64
	err := db.view(ctx, "count", func(tx store.Tx) error {
		var err error
		n, err = store.Count(tx)
		return err
	})
	return n, db.finish(ctx, "count", err)
}

// GetRecord returns the data of a record, or nil when key is not present.
// A present record with no data yields an empty, non-nil slice.
func (db *Database) GetRecord(ctx context.Context, key int64) ([]byte, error) {
	if err := db.usable(); err == nil {
		if value, ok := db.cached(key); ok {
			return append([]byte{}, value...), db.finish(ctx, "get", nil)
		}
	}

	var data []byte
	err := db.view(ctx, "get", func(tx store.Tx) error {
		var err error
		data, err = get(tx, key)
		if err == nil {
			db.remember(key, data)
		}
		return err
	})
	return data, db.finish(ctx, "get", err)
}

// GetRecord2 is GetRecord that also returns the record size, 0 when the
// record is not present.
func (db *Database) GetRecord2(ctx context.Context, key int64) ([]byte, int64, error) {
	data, err := db.GetRecord(ctx, key)
	return data, int64(len(data)), err
}

// GetPartialRecord reads length bytes at offset from a record whose size
// the caller gives as recordSize. The range must lie within recordSize and
// within the stored record.
func (db *Database) GetPartialRecord(ctx context.Context, key, offset, length, recordSize int64) ([]byte, error) {
	if offset < 0 || length < 0 || recordSize < 0 || offset > recordSize-length {
		err := except.New(IDInvalidRange, "range [%d, %d+%d) outside record size %d", offset, offset, length, recordSize)
		return nil, db.finish(ctx, "get_partial", err)
	}

	if err := db.usable(); err == nil {
		if value, ok := db.cached(key); ok {
			part, err := slice(key, value, offset, length)
			return part, db.finish(ctx, "get_partial", err)
		}
	}

	var part []byte
	err := db.view(ctx, "get_partial", func(tx store.Tx) error {
		k := internal.EncodeKey(key)

		if r, ok := tx.(store.RangeReader); ok {
			value, size, found, err := r.GetRange(k, offset, length)
			if err != nil {
				return err
			}
			if !found {
				return except.New(IDKeyNotFound, "record %d not found", key)
			}
			if size < offset+length {
				return shortRecord(key, offset, length)
			}
			part = value
			return nil
		}

		value, err := tx.Get(k)
		if err != nil {
			return err
		}
		db.remember(key, value)
		part, err = slice(key, value, offset, length)
		return err
	})
	return part, db.finish(ctx, "get_partial", err)
}

func slice(key int64, value []byte, offset, length int64) ([]byte, error) {
	if value == nil {
		return nil, except.New(IDKeyNotFound, "record %d not found", key)
	}
	if int64(len(value)) < offset+length {
		return nil, shortRecord(key, offset, length)
	}
	return append([]byte{}, value[offset:offset+length]...), nil
}

func shortRecord(key, offset, length int64) error {
	return except.New(IDInvalidRange, "record %d is shorter than %d bytes", key, offset+length)
}

// RemoveRecord deletes a record. It fails with ErrKeyNotFound when key is
// not present.
func (db *Database) RemoveRecord(ctx context.Context, key int64) error {
	err := db.update(ctx, "remove", func(tx store.Tx) error {
		value, err := get(tx, key)
		if err != nil {
			return err
		}
		if value == nil {
			return except.New(IDKeyNotFound, "record %d not found", key)
		}
		return tx.Delete(internal.EncodeKey(key))
	})
	db.cache.evict(key)
	return db.finish(ctx, "remove", err)
}

// ForEachRecord calls fn for every record with a key not less than from,
// in ascending key order, until fn returns false.
func (db *Database) ForEachRecord(ctx context.Context, from int64, fn func(key int64, data []byte) bool) error {
	err := db.view(ctx, "scan", func(tx store.Tx) error {
		cursor, err := tx.Cursor()
		if err != nil {
			return err
		}

		if err := cursor.Seek(internal.EncodeKey(from)); err != nil {
			cursor.Close()
			return err
		}

		for ; cursor.Valid(); cursor.Next() {
			item, err := cursor.Item()
			if err != nil {
				cursor.Close()
				return err
			}

			key, err := internal.DecodeKey(item.Key)
			if err != nil {
				cursor.Close()
				return except.NewCause(err, IDBackend, "malformed key %x", item.Key)
			}
			if !fn(key, item.Value) {
				break
			}
		}
		return cursor.Close()
	})
	return db.finish(ctx, "scan", err)
}

// StartTransaction begins a transaction. Until it is committed or
// aborted every operation on the handle runs inside it.
func (db *Database) StartTransaction(ctx context.Context) error {
	err := db.usable()
	if err == nil && db.tx != nil {
		err = except.New(IDTransactionActive, "a transaction is already active on %s", db.id)
	}
	if err == nil {
		var tx store.Tx
		tx, err = db.store.Begin(ctx, true)
		if err == nil {
			db.tx = tx
		}
		err = backendError(err, "start transaction")
	}
	return db.finish(ctx, "start_transaction", err)
}

// CommitTransaction commits the active transaction. The handle leaves
// the transaction even when the commit fails.
func (db *Database) CommitTransaction(ctx context.Context) error {
	err := db.usable()
	if err == nil && db.tx == nil {
		err = except.New(IDNoTransaction, "no transaction to commit")
	}
	if err == nil {
		tx := db.tx
		db.tx = nil
		err = backendError(tx.Commit(), "commit")
	}
	return db.finish(ctx, "commit", err)
}

// AbortTransaction discards every mutation made since StartTransaction.
func (db *Database) AbortTransaction(ctx context.Context) error {
	err := db.usable()
	if err == nil && db.tx == nil {
		err = except.New(IDNoTransaction, "no transaction to abort")
	}
	if err == nil {
		tx := db.tx
		db.tx = nil
		err = backendError(tx.Rollback(), "abort")
	}
	return db.finish(ctx, "abort", err)
}

// ClearCache drops every cached record. Call it when another handle may
// have changed the store.
func (db *Database) ClearCache() {
	db.cache.purge()
}

// abandon rolls back a transaction left open by the caller.
func (db *Database) abandon() {
	if db.tx == nil {
		return
	}
	if err := db.tx.Rollback(); err != nil {
		db.logger.Warn("rollback of open transaction failed", slog.Any("err", err))
	} else {
		db.logger.Warn("open transaction aborted")
	}
	db.tx = nil
}

// Destruct releases the engine and the cache. An open transaction is
// aborted. The handle cannot be used afterwards.
func (db *Database) Destruct() error {
	if err := db.usable(); err != nil {
		return err
	}

	db.abandon()
	db.cache.purge()
	db.closed = true

	err := backendError(db.store.Close(), "close")
	countOp(db.conf.Kind, "close")
	db.logger.Debug("database closed")
	return err
}

// Delete is Destruct that also drops the underlying store and every
// record in it.
func (db *Database) Delete() error {
	if err := db.usable(); err != nil {
		return err
	}

	db.abandon()
	db.cache.purge()
	db.closed = true
	db.deleted = true

	err := backendError(db.store.Drop(), "drop")
	countOp(db.conf.Kind, "drop")
	db.logger.Info("database deleted", slog.String("conf", db.conf.String()))
	return err
}
