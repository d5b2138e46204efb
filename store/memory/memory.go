// Package memory implements an in-process store kept in an ordered map.
//
// A store opened with a path is loaded from a snapshot file at open and
// written back to it on Close; without a path it lives only as long as the
// process.
package memory

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/ostafen/kvdb/internal"
	"github.com/ostafen/kvdb/orderedmap"
	"github.com/ostafen/kvdb/store"
)

type memStore struct {
	mu     sync.RWMutex
	writer sync.Mutex

	data   *orderedmap.Map[[]byte]
	path   string
	closed bool
}

// Open returns a store backed by the snapshot file at path. An empty path
// gives a volatile store. When create is false the snapshot must exist.
func Open(path string, create bool) (store.Store, error) {
	s := &memStore{data: orderedmap.New[[]byte](), path: path}
	if path == "" {
		return s, nil
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		if !create {
			return nil, store.ErrNotExist
		}
		return s, s.flush()
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := internal.DecodeSnapshot(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		s.data.Insert(string(e.Key), e.Value)
	}
	return s, nil
}

// snapshot takes the write lock: cloning updates the copy-on-write state
// of the source tree.
func (s *memStore) snapshot() *orderedmap.Map[[]byte] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// Begin starts a transaction over a private copy of the data. Update
// transactions are serialised: a second one blocks until the first ends.
func (s *memStore) Begin(ctx context.Context, update bool) (store.Tx, error) {
	if update {
		s.writer.Lock()
	}

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		if update {
			s.writer.Unlock()
		}
		return nil, errClosed
	}

	return &memTx{s: s, data: s.snapshot(), update: update}, nil
}

var errClosed = errors.New("memory store is closed")

func (s *memStore) Close() error {
	s.writer.Lock()
	defer s.writer.Unlock()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	return s.flush()
}

func (s *memStore) Drop() error {
	s.writer.Lock()
	defer s.writer.Unlock()

	s.mu.Lock()
	s.closed = true
	s.data.Destruct()
	s.mu.Unlock()

	if s.path == "" {
		return nil
	}
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// flush writes the snapshot to a temporary file and renames it over path.
func (s *memStore) flush() error {
	data := s.snapshot()

	entries := make([]internal.Entry, 0, data.Len())
	data.Ascend("", func(key string, value []byte) bool {
		entries = append(entries, internal.Entry{Key: []byte(key), Value: value})
		return true
	})

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := internal.EncodeSnapshot(w, entries); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

type memTx struct {
	s      *memStore
	data   *orderedmap.Map[[]byte]
	update bool
	done   bool
}

var errReadOnly = errors.New("transaction is read-only")

func (tx *memTx) writable() error {
	if tx.done {
		return store.ErrTxDone
	}
	if !tx.update {
		return errReadOnly
	}
	return nil
}

func (tx *memTx) Get(key []byte) ([]byte, error) {
	if tx.done {
		return nil, store.ErrTxDone
	}
	value, ok := tx.data.Search(string(key))
	if !ok {
		return nil, nil
	}
	return append([]byte{}, value...), nil
}

func (tx *memTx) GetRange(key []byte, offset, length int64) ([]byte, int64, bool, error) {
	if tx.done {
		return nil, 0, false, store.ErrTxDone
	}
	value, ok := tx.data.Search(string(key))
	if !ok {
		return nil, 0, false, nil
	}
	size := int64(len(value))
	if offset >= size {
		return []byte{}, size, true, nil
	}
	end := offset + length
	if end > size {
		end = size
	}
	return append([]byte{}, value[offset:end]...), size, true, nil
}

func (tx *memTx) Set(key, value []byte) error {
	if err := tx.writable(); err != nil {
		return err
	}
	tx.data.Insert(string(key), append([]byte{}, value...))
	return nil
}

func (tx *memTx) Delete(key []byte) error {
	if err := tx.writable(); err != nil {
		return err
	}
	tx.data.Remove(string(key))
	return nil
}

func (tx *memTx) Count() (int64, error) {
	if tx.done {
		return 0, store.ErrTxDone
	}
	return int64(tx.data.Len()), nil
}

func (tx *memTx) Cursor() (store.Cursor, error) {
	if tx.done {
		return nil, store.ErrTxDone
	}
	return &memCursor{data: tx.data}, nil
}

func (tx *memTx) finish() {
	tx.done = true
	if tx.update {
		tx.s.writer.Unlock()
	}
}

func (tx *memTx) Commit() error {
	if tx.done {
		return store.ErrTxDone
	}
	if tx.update {
		tx.s.mu.Lock()
		tx.s.data = tx.data
		tx.s.mu.Unlock()
	}
	tx.finish()
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return store.ErrTxDone
	}
	tx.finish()
	return nil
}

// memCursor walks the map with successor queries, so every step moves
// strictly forward.
type memCursor struct {
	data  *orderedmap.Map[[]byte]
	key   string
	valid bool
}

func (c *memCursor) Seek(key []byte) error {
	k := string(key)
	if _, ok := c.data.Search(k); ok {
		c.key, c.valid = k, true
		return nil
	}
	c.key, c.valid = c.data.NextKey(k)
	return nil
}

func (c *memCursor) Next() {
	if !c.valid {
		return
	}
	c.key, c.valid = c.data.NextKey(c.key)
}

func (c *memCursor) Valid() bool {
	return c.valid
}

func (c *memCursor) Item() (store.Item, error) {
	value, _ := c.data.Search(c.key)
	return store.Item{Key: []byte(c.key), Value: append([]byte{}, value...)}, nil
}

func (c *memCursor) Close() error {
	return nil
}
