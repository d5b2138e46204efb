package store

import (
	"bytes"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

type sliceTx struct {
	Tx
	items []Item
	calls int
	fail  bool
}

func (tx *sliceTx) fetch(from []byte, inclusive bool, limit int) ([]Item, error) {
	tx.calls++
	if tx.fail && tx.calls > 1 {
		return nil, errors.New("connection reset")
	}

	i := sort.Search(len(tx.items), func(i int) bool {
		c := bytes.Compare(tx.items[i].Key, from)
		return c > 0 || (inclusive && c == 0)
	})
	end := i + limit
	if end > len(tx.items) {
		end = len(tx.items)
	}
	return tx.items[i:end], nil
}

func (tx *sliceTx) Cursor() (Cursor, error) {
	return NewPagedCursor(tx.fetch, 3), nil
}

func newSliceTx(n int) *sliceTx {
	tx := &sliceTx{}
	for i := 0; i < n; i++ {
		tx.items = append(tx.items, Item{Key: []byte{byte(2 * i)}, Value: []byte{byte(i)}})
	}
	return tx
}

func TestPagedCursorWalksAllPages(t *testing.T) {
	for _, n := range []int{0, 1, 3, 7, 9} {
		tx := newSliceTx(n)
		cursor, err := tx.Cursor()
		require.NoError(t, err)
		require.NoError(t, cursor.Seek(nil))

		var keys []byte
		for ; cursor.Valid(); cursor.Next() {
			item, err := cursor.Item()
			require.NoError(t, err)
			keys = append(keys, item.Key[0])
		}
		require.NoError(t, cursor.Close())
		require.Len(t, keys, n)
		for i, k := range keys {
			require.Equal(t, byte(2*i), k)
		}
	}
}

func TestPagedCursorSeek(t *testing.T) {
	tx := newSliceTx(10)
	cursor, _ := tx.Cursor()

	require.NoError(t, cursor.Seek([]byte{4}))
	item, err := cursor.Item()
	require.NoError(t, err)
	require.Equal(t, []byte{4}, item.Key)

	require.NoError(t, cursor.Seek([]byte{5}))
	item, _ = cursor.Item()
	require.Equal(t, []byte{6}, item.Key)

	require.NoError(t, cursor.Seek([]byte{100}))
	require.False(t, cursor.Valid())
}

func TestPagedCursorReportsErrors(t *testing.T) {
	tx := newSliceTx(10)
	tx.fail = true
	cursor, _ := tx.Cursor()
	require.NoError(t, cursor.Seek(nil))

	n := 0
	for ; cursor.Valid(); cursor.Next() {
		n++
	}
	require.Equal(t, 3, n)
	require.Error(t, cursor.Close())
}

func TestCountFallsBackToCursor(t *testing.T) {
	n, err := Count(newSliceTx(8))
	require.NoError(t, err)
	require.Equal(t, int64(8), n)
}
