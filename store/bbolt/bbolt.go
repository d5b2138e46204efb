package bbolt

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/ostafen/kvdb/store"
	"go.etcd.io/bbolt"
)

type boltStore struct {
	db     *bbolt.DB
	bucket []byte
}

const (
	dbFileName  = "data.db"
	rootBucket  = "root"
	openTimeout = time.Second
)

var errNoBucket = store.ErrNotExist

// Open opens the database file inside dir. Records are kept in bucket, or
// in a default bucket when bucket is empty.
func Open(dir, bucket string, create bool) (store.Store, error) {
	path := filepath.Join(dir, dbFileName)
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, store.ErrNotExist
		}
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0666, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, err
	}

	if bucket == "" {
		bucket = rootBucket
	}
	store := &boltStore{db: db, bucket: []byte(bucket)}
	if err := store.createRootBucketIfNotExists(create); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (store *boltStore) createRootBucketIfNotExists(create bool) error {
	tx, err := store.db.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if !create {
		if tx.Bucket(store.bucket) == nil {
			return errNoBucket
		}
		return nil
	}

	_, err = tx.CreateBucketIfNotExists(store.bucket)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (store *boltStore) Begin(_ context.Context, update bool) (store.Tx, error) {
	tx, err := store.db.Begin(update)
	if err != nil {
		return nil, err
	}
	return &boltTx{Tx: tx, bucketName: store.bucket}, nil
}

func (store *boltStore) Close() error {
	return store.db.Close()
}

// Drop deletes the bucket. The database file is removed once it holds no
// other bucket.
func (store *boltStore) Drop() error {
	path := store.db.Path()

	empty := false
	err := store.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(store.bucket); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		empty = tx.ForEach(func([]byte, *bbolt.Bucket) error {
			return errBucketsLeft
		}) == nil
		return nil
	})
	if err != nil {
		store.db.Close()
		return err
	}

	if err := store.db.Close(); err != nil {
		return err
	}
	if !empty {
		return nil
	}
	return os.Remove(path)
}

var errBucketsLeft = errors.New("buckets left")

type boltTx struct {
	*bbolt.Tx
	bucketName []byte
}

func (tx *boltTx) bucket() *bbolt.Bucket {
	return tx.Bucket(tx.bucketName)
}

func (tx *boltTx) Set(key, value []byte) error {
	if tx.DB() == nil {
		return store.ErrTxDone
	}
	bucket := tx.bucket()
	return translate(bucket.Put(key, value))
}

func (tx *boltTx) Get(key []byte) ([]byte, error) {
	if tx.DB() == nil {
		return nil, store.ErrTxDone
	}
	bucket := tx.bucket()

	// values are only valid for the life of the transaction
	value := bucket.Get(key)
	if value == nil {
		// bolt may return nil for empty values
		if k, _ := bucket.Cursor().Seek(key); !bytes.Equal(k, key) {
			return nil, nil
		}
	}
	return append([]byte{}, value...), nil
}

func (tx *boltTx) Delete(key []byte) error {
	if tx.DB() == nil {
		return store.ErrTxDone
	}
	bucket := tx.bucket()
	return translate(bucket.Delete(key))
}

func (tx *boltTx) Count() (int64, error) {
	if tx.DB() == nil {
		return 0, store.ErrTxDone
	}
	bucket := tx.bucket()
	if !tx.Writable() {
		return int64(bucket.Stats().KeyN), nil
	}

	// page stats miss the nodes a write transaction has not spilled yet
	var n int64
	c := bucket.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n, nil
}

func (tx *boltTx) Cursor() (store.Cursor, error) {
	if tx.DB() == nil {
		return nil, store.ErrTxDone
	}
	return &boltCursor{Cursor: tx.bucket().Cursor()}, nil
}

func (tx *boltTx) Commit() error {
	return translate(tx.Tx.Commit())
}

func (tx *boltTx) Rollback() error {
	return translate(tx.Tx.Rollback())
}

func translate(err error) error {
	if errors.Is(err, bbolt.ErrTxClosed) {
		return store.ErrTxDone
	}
	return err
}

type boltCursor struct {
	*bbolt.Cursor
	currItem *store.Item
}

func (c *boltCursor) setItem(key, value []byte) {
	if key == nil {
		c.currItem = nil
		return
	}
	c.currItem = &store.Item{
		Key:   append([]byte{}, key...),
		Value: append([]byte{}, value...),
	}
}

func (c *boltCursor) Seek(seek []byte) error {
	if len(seek) == 0 {
		c.setItem(c.Cursor.First())
		return nil
	}
	c.setItem(c.Cursor.Seek(seek))
	return nil
}

func (c *boltCursor) Next() {
	c.setItem(c.Cursor.Next())
}

func (c *boltCursor) Valid() bool {
	return c.currItem != nil
}

func (c *boltCursor) Item() (store.Item, error) {
	return *c.currItem, nil
}

func (c *boltCursor) Close() error {
	return nil
}
