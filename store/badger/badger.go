package badger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ostafen/kvdb/store"
)

const (
	GCReclaimIntervalDefault = time.Minute * 5
	GCDiscardRatioDefault    = 0.5
)

// Options configures a badger backed store.
type Options struct {
	InMemory bool

	// Create makes Open initialise a new database when dir holds none.
	Create bool

	GCReclaimInterval time.Duration
	GCDiscardRatio    float64

	Logger *slog.Logger
}

type badgerStore struct {
	db     *badger.DB
	dir    string
	logger *slog.Logger

	chWg   sync.WaitGroup
	chQuit chan struct{}
	gcOn   bool

	gcInterval     time.Duration
	gcDiscardRatio float64
}

func (store *badgerStore) Begin(_ context.Context, update bool) (store.Tx, error) {
	tx := store.db.NewTransaction(update)
	return &badgerTx{Txn: tx}, nil
}

func (store *badgerStore) Close() error {
	store.stopGC()
	return store.db.Close()
}

func (store *badgerStore) Drop() error {
	store.stopGC()
	if err := store.db.DropAll(); err != nil {
		store.db.Close()
		return err
	}
	if err := store.db.Close(); err != nil {
		return err
	}
	if store.dir == "" {
		return nil
	}
	return os.RemoveAll(store.dir)
}

type badgerTx struct {
	*badger.Txn
}

func (tx *badgerTx) Set(key, value []byte) error {
	return translate(tx.Txn.Set(key, value))
}

func (tx *badgerTx) Delete(key []byte) error {
	return translate(tx.Txn.Delete(key))
}

func getItemValue(item *badger.Item) ([]byte, error) {
	value, err := item.ValueCopy(nil)
	if value == nil && err == nil {
		value = []byte{}
	}
	return value, err
}

func (tx *badgerTx) Get(key []byte) ([]byte, error) {
	item, err := tx.Txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, translate(err)
	}
	return getItemValue(item)
}

func (tx *badgerTx) Count() (int64, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false

	it := tx.NewIterator(opts)
	defer it.Close()

	var n int64
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n, nil
}

func (tx *badgerTx) Commit() error {
	return translate(tx.Txn.Commit())
}

func (tx *badgerTx) Rollback() error {
	tx.Txn.Discard()
	return nil
}

func (tx *badgerTx) Cursor() (store.Cursor, error) {
	return &badgerCursor{it: tx.NewIterator(badger.DefaultIteratorOptions)}, nil
}

func translate(err error) error {
	if errors.Is(err, badger.ErrDiscardedTxn) {
		return store.ErrTxDone
	}
	return err
}

type badgerCursor struct {
	it *badger.Iterator
}

func (cursor *badgerCursor) Seek(key []byte) error {
	if len(key) == 0 {
		cursor.it.Rewind()
		return nil
	}
	cursor.it.Seek(key)
	return nil
}

func (cursor *badgerCursor) Next() {
	cursor.it.Next()
}

func (cursor *badgerCursor) Valid() bool {
	return cursor.it.Valid()
}

func (cursor *badgerCursor) Item() (store.Item, error) {
	item := cursor.it.Item()

	value, err := getItemValue(item)
	return store.Item{Key: item.KeyCopy(nil), Value: value}, err
}

func (cursor *badgerCursor) Close() error {
	cursor.it.Close()
	return nil
}

func exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "MANIFEST"))
	return err == nil
}

func Open(dir string, opts Options) (store.Store, error) {
	if opts.InMemory {
		dir = ""
	} else if !opts.Create && !exists(dir) {
		return nil, store.ErrNotExist
	}

	badgerOpts := badger.DefaultOptions(dir).
		WithLoggingLevel(badger.ERROR).
		WithInMemory(opts.InMemory)

	return OpenWithOptions(badgerOpts, opts)
}

func OpenWithOptions(badgerOpts badger.Options, opts Options) (store.Store, error) {
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}

	dataStore := &badgerStore{
		db:             db,
		dir:            badgerOpts.Dir,
		logger:         opts.Logger,
		chQuit:         make(chan struct{}, 1),
		gcInterval:     opts.GCReclaimInterval,
		gcDiscardRatio: opts.GCDiscardRatio,
	}
	if badgerOpts.InMemory {
		dataStore.dir = ""
	}
	if dataStore.logger == nil {
		dataStore.logger = slog.Default()
	}
	if dataStore.gcInterval <= 0 {
		dataStore.gcInterval = GCReclaimIntervalDefault
	}
	if dataStore.gcDiscardRatio <= 0 || dataStore.gcDiscardRatio >= 1 {
		dataStore.gcDiscardRatio = GCDiscardRatioDefault
	}

	// value log GC is not available for in-memory databases
	if !badgerOpts.InMemory {
		dataStore.startGC()
	}
	return dataStore, nil
}

func (store *badgerStore) startGC() {
	store.gcOn = true
	store.chWg.Add(1)

	go func() {
		defer store.chWg.Done()

		ticker := time.NewTicker(store.gcInterval)
		defer ticker.Stop()

		for {
			select {
			case <-store.chQuit:
				return

			case <-ticker.C:
				err := store.db.RunValueLogGC(store.gcDiscardRatio)
				if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
					store.logger.Warn("RunValueLogGC()", slog.String("dir", store.dir), slog.Any("err", err))
				}
			}
		}
	}()
}

func (store *badgerStore) stopGC() {
	if !store.gcOn {
		return
	}
	store.gcOn = false
	store.chQuit <- struct{}{}
	store.chWg.Wait()
	close(store.chQuit)
}
