// Package dbtest holds the behaviour every storage engine must show
// through a kvdb.Database. Engine tests call Run with a Backend.
package dbtest

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/ostafen/kvdb"
	"github.com/ostafen/kvdb/except"
	"github.com/stretchr/testify/require"
)

// Backend describes the engine under test.
type Backend struct {
	// NewConf returns a configuration naming a store that does not exist
	// yet.
	NewConf func(t *testing.T) *kvdb.Conf

	// Persistent is set when a store outlives the handle that created it.
	Persistent bool

	// Options are passed to every Open.
	Options []kvdb.Option
}

var tests = []struct {
	name       string
	persistent bool
	run        func(t *testing.T, b Backend)
}{
	{"InsertUpdateGet", false, testInsertUpdateGet},
	{"InsertExisting", false, testInsertExisting},
	{"UpdateMissing", false, testUpdateMissing},
	{"Remove", false, testRemove},
	{"SetRecord", false, testSetRecord},
	{"EmptyRecord", false, testEmptyRecord},
	{"NumberOfRecords", false, testNumberOfRecords},
	{"GetRecord2", false, testGetRecord2},
	{"PartialRecord", false, testPartialRecord},
	{"PartialRecordInvalidRange", false, testPartialRecordInvalidRange},
	{"ForEachRecord", false, testForEachRecord},
	{"ForEachRecordStops", false, testForEachRecordStops},
	{"DoubleStartTransaction", false, testDoubleStartTransaction},
	{"AbortRollsBackInserts", false, testAbortRollsBackInserts},
	{"CommitTransaction", false, testCommitTransaction},
	{"NoActiveTransaction", false, testNoActiveTransaction},
	{"StrictTransactions", false, testStrictTransactions},
	{"CacheIgnoresTransactionReads", false, testCacheIgnoresTransactionReads},
	{"CacheEvictedOnMutation", false, testCacheEvictedOnMutation},
	{"ClearCache", false, testClearCache},
	{"CacheDisabled", false, testCacheDisabled},
	{"Deleted", false, testDeleted},
	{"Destructed", false, testDestructed},
	{"ThrowToContext", false, testThrowToContext},
	{"Reopen", true, testReopen},
	{"DestructAbortsTransaction", true, testDestructAbortsTransaction},
	{"OpenMissing", true, testOpenMissing},
}

// Run runs every test that applies to b.
func Run(t *testing.T, b Backend) {
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			if test.persistent && !b.Persistent {
				t.Skip("store does not outlive its handle")
			}
			test.run(t, b)
		})
	}
}

func open(t *testing.T, conf *kvdb.Conf, create bool, opts ...kvdb.Option) *kvdb.Database {
	db, err := kvdb.Open(context.Background(), conf, create, opts...)
	require.NoError(t, err)
	return db
}

// newDB opens a fresh store that is dropped when the test ends.
func newDB(t *testing.T, b Backend, opts ...kvdb.Option) (*kvdb.Database, *kvdb.Conf) {
	conf := b.NewConf(t)
	db := open(t, conf, true, append(b.Options, opts...)...)

	t.Cleanup(func() {
		err := db.Delete()
		if errors.Is(err, kvdb.ErrClosed) && b.Persistent {
			if db, err := kvdb.Open(context.Background(), conf, true); err == nil {
				db.Delete()
			}
		}
	})
	return db, conf
}

func requireRecord(t *testing.T, db *kvdb.Database, key int64, want string) {
	t.Helper()
	data, err := db.GetRecord(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, data)
	require.Equal(t, want, string(data))
}

func requireAbsent(t *testing.T, db *kvdb.Database, key int64) {
	t.Helper()
	ctx := context.Background()

	data, err := db.GetRecord(ctx, key)
	require.NoError(t, err)
	require.Nil(t, data)

	found, err := db.ContainsRecord(ctx, key)
	require.NoError(t, err)
	require.False(t, found)
}

func requireCount(t *testing.T, db *kvdb.Database, want int64) {
	t.Helper()
	n, err := db.NumberOfRecords(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, n)
}

func testInsertUpdateGet(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	require.NoError(t, db.InsertRecord(ctx, 7, []byte("x")))

	err := db.InsertRecord(ctx, 7, []byte("y"))
	require.Error(t, err)
	require.True(t, kvdb.IsConflict(err))

	require.NoError(t, db.UpdateRecord(ctx, 7, []byte("y")))
	requireRecord(t, db, 7, "y")
}

func testInsertExisting(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	require.NoError(t, db.InsertRecord(ctx, -3, []byte("first")))
	err := db.InsertRecord(ctx, -3, []byte("second"))
	require.ErrorIs(t, err, kvdb.ErrKeyExists)

	requireRecord(t, db, -3, "first")
	requireCount(t, db, 1)
}

func testUpdateMissing(t *testing.T, b Backend) {
	db, _ := newDB(t, b)

	err := db.UpdateRecord(context.Background(), 1, []byte("x"))
	require.ErrorIs(t, err, kvdb.ErrKeyNotFound)
	require.True(t, kvdb.IsNotFound(err))
	requireAbsent(t, db, 1)
}

func testRemove(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	require.NoError(t, db.InsertRecord(ctx, 1, []byte("a")))
	require.NoError(t, db.InsertRecord(ctx, 2, []byte("b")))

	require.NoError(t, db.RemoveRecord(ctx, 1))
	requireAbsent(t, db, 1)
	requireRecord(t, db, 2, "b")
	requireCount(t, db, 1)

	err := db.RemoveRecord(ctx, 1)
	require.ErrorIs(t, err, kvdb.ErrKeyNotFound)
}

func testSetRecord(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	require.NoError(t, db.SetRecord(ctx, 5, []byte("a")))
	requireRecord(t, db, 5, "a")
	require.NoError(t, db.SetRecord(ctx, 5, []byte("b")))
	requireRecord(t, db, 5, "b")
	requireCount(t, db, 1)
}

func testEmptyRecord(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	require.NoError(t, db.InsertRecord(ctx, 9, nil))

	found, err := db.ContainsRecord(ctx, 9)
	require.NoError(t, err)
	require.True(t, found)

	data, size, err := db.GetRecord2(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, data)
	require.Empty(t, data)
	require.Zero(t, size)

	require.ErrorIs(t, db.InsertRecord(ctx, 9, []byte("x")), kvdb.ErrKeyExists)
}

func testNumberOfRecords(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	requireCount(t, db, 0)

	keys := make(map[int64]bool)
	n := gofakeit.Number(10, 300)
	for len(keys) < n {
		keys[gofakeit.Int64()] = true
	}
	for key := range keys {
		require.NoError(t, db.InsertRecord(ctx, key, []byte(gofakeit.Word())))
	}
	requireCount(t, db, int64(n))
}

func testGetRecord2(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	value := gofakeit.Sentence(20)
	require.NoError(t, db.InsertRecord(ctx, 100, []byte(value)))

	data, size, err := db.GetRecord2(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, value, string(data))
	require.Equal(t, int64(len(value)), size)

	data, size, err = db.GetRecord2(ctx, 101)
	require.NoError(t, err)
	require.Nil(t, data)
	require.Zero(t, size)
}

func testPartialRecord(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	value := []byte("0123456789")
	require.NoError(t, db.InsertRecord(ctx, 1, value))

	for _, r := range []struct{ offset, length int64 }{
		{0, 10}, {0, 1}, {3, 4}, {9, 1}, {5, 0}, {10, 0},
	} {
		part, err := db.GetPartialRecord(ctx, 1, r.offset, r.length, int64(len(value)))
		require.NoError(t, err)
		require.Equal(t, string(value[r.offset:r.offset+r.length]), string(part))
	}

	// inside a transaction the read goes through the engine
	require.NoError(t, db.StartTransaction(ctx))
	part, err := db.GetPartialRecord(ctx, 1, 2, 3, 10)
	require.NoError(t, err)
	require.Equal(t, "234", string(part))
	require.NoError(t, db.AbortTransaction(ctx))

	_, err = db.GetPartialRecord(ctx, 2, 0, 1, 1)
	require.ErrorIs(t, err, kvdb.ErrKeyNotFound)
}

func testPartialRecordInvalidRange(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	require.NoError(t, db.InsertRecord(ctx, 1, []byte("abcd")))

	for _, r := range []struct{ offset, length, size int64 }{
		{0, 5, 4}, {3, 2, 4}, {-1, 1, 4}, {0, -1, 4}, {0, 1, -1},
	} {
		_, err := db.GetPartialRecord(ctx, 1, r.offset, r.length, r.size)
		require.ErrorIs(t, err, kvdb.ErrInvalidRange, "offset=%d length=%d size=%d", r.offset, r.length, r.size)
	}

	// the caller claims a larger record than the one stored
	_, err := db.GetPartialRecord(ctx, 1, 2, 6, 8)
	require.ErrorIs(t, err, kvdb.ErrInvalidRange)

	// an empty range past the end of the record, read from the engine and
	// from the cache
	uncached, _ := newDB(t, b, kvdb.CacheSize(0))
	require.NoError(t, uncached.InsertRecord(ctx, 1, []byte("abc")))
	_, err = uncached.GetPartialRecord(ctx, 1, 5, 0, 10)
	require.ErrorIs(t, err, kvdb.ErrInvalidRange)

	requireRecord(t, db, 1, "abcd")
	_, err = db.GetPartialRecord(ctx, 1, 5, 0, 10)
	require.ErrorIs(t, err, kvdb.ErrInvalidRange)

	part, err := db.GetPartialRecord(ctx, 1, 4, 0, 10)
	require.NoError(t, err)
	require.Empty(t, part)
}

func testForEachRecord(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	keys := make(map[int64]bool)
	for len(keys) < 50 {
		keys[int64(gofakeit.Number(-1000, 1000))] = true
	}

	sorted := make([]int64, 0, len(keys))
	for key := range keys {
		sorted = append(sorted, key)
		require.NoError(t, db.InsertRecord(ctx, key, []byte{byte(key)}))
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var seen []int64
	err := db.ForEachRecord(ctx, -1001, func(key int64, data []byte) bool {
		require.Equal(t, []byte{byte(key)}, data)
		seen = append(seen, key)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, sorted, seen)

	from := sorted[len(sorted)/2]
	seen = seen[:0]
	err = db.ForEachRecord(ctx, from, func(key int64, _ []byte) bool {
		seen = append(seen, key)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, sorted[len(sorted)/2:], seen)
}

func testForEachRecordStops(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	for i := int64(0); i < 600; i++ {
		require.NoError(t, db.InsertRecord(ctx, i, nil))
	}

	n := 0
	err := db.ForEachRecord(ctx, 0, func(key int64, _ []byte) bool {
		require.Equal(t, int64(n), key)
		n++
		return n < 300
	})
	require.NoError(t, err)
	require.Equal(t, 300, n)
}

func testDoubleStartTransaction(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	require.NoError(t, db.StartTransaction(ctx))
	require.True(t, db.InTransaction())

	err := db.StartTransaction(ctx)
	require.ErrorIs(t, err, kvdb.ErrTransactionActive)
	require.True(t, kvdb.IsConflict(err))
	require.True(t, db.InTransaction())

	require.NoError(t, db.InsertRecord(ctx, 1, []byte("a")))
	require.NoError(t, db.CommitTransaction(ctx))
	require.False(t, db.InTransaction())
	requireRecord(t, db, 1, "a")
}

func testAbortRollsBackInserts(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	require.NoError(t, db.InsertRecord(ctx, 0, []byte("kept")))

	require.NoError(t, db.StartTransaction(ctx))
	for i := int64(1); i <= 20; i++ {
		require.NoError(t, db.InsertRecord(ctx, i, []byte(gofakeit.Word())))
	}
	requireCount(t, db, 21)
	require.NoError(t, db.AbortTransaction(ctx))
	require.False(t, db.InTransaction())

	requireCount(t, db, 1)
	for i := int64(1); i <= 20; i++ {
		requireAbsent(t, db, i)
	}
	requireRecord(t, db, 0, "kept")
}

func testCommitTransaction(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	require.NoError(t, db.InsertRecord(ctx, 1, []byte("a")))
	require.NoError(t, db.InsertRecord(ctx, 2, []byte("b")))

	require.NoError(t, db.StartTransaction(ctx))
	require.NoError(t, db.UpdateRecord(ctx, 1, []byte("A")))
	require.NoError(t, db.RemoveRecord(ctx, 2))
	require.NoError(t, db.InsertRecord(ctx, 3, []byte("c")))

	requireRecord(t, db, 1, "A")
	requireAbsent(t, db, 2)
	require.NoError(t, db.CommitTransaction(ctx))

	requireRecord(t, db, 1, "A")
	requireAbsent(t, db, 2)
	requireRecord(t, db, 3, "c")
	requireCount(t, db, 2)
}

func testNoActiveTransaction(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	require.ErrorIs(t, db.CommitTransaction(ctx), kvdb.ErrNoTransaction)
	require.ErrorIs(t, db.AbortTransaction(ctx), kvdb.ErrNoTransaction)

	require.NoError(t, db.StartTransaction(ctx))
	require.NoError(t, db.AbortTransaction(ctx))
	require.ErrorIs(t, db.AbortTransaction(ctx), kvdb.ErrNoTransaction)
}

func testStrictTransactions(t *testing.T, b Backend) {
	db, _ := newDB(t, b, kvdb.StrictTransactions(true))
	ctx := context.Background()

	require.ErrorIs(t, db.InsertRecord(ctx, 1, []byte("a")), kvdb.ErrNoTransaction)
	require.ErrorIs(t, db.SetRecord(ctx, 1, []byte("a")), kvdb.ErrNoTransaction)
	require.ErrorIs(t, db.UpdateRecord(ctx, 1, []byte("a")), kvdb.ErrNoTransaction)
	require.ErrorIs(t, db.RemoveRecord(ctx, 1), kvdb.ErrNoTransaction)

	requireAbsent(t, db, 1)

	require.NoError(t, db.StartTransaction(ctx))
	require.NoError(t, db.InsertRecord(ctx, 1, []byte("a")))
	require.NoError(t, db.CommitTransaction(ctx))
	requireRecord(t, db, 1, "a")
}

func testCacheIgnoresTransactionReads(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	require.NoError(t, db.InsertRecord(ctx, 1, []byte("a")))
	requireRecord(t, db, 1, "a")

	require.NoError(t, db.StartTransaction(ctx))
	require.NoError(t, db.UpdateRecord(ctx, 1, []byte("b")))
	require.NoError(t, db.InsertRecord(ctx, 2, []byte("x")))
	requireRecord(t, db, 1, "b")
	requireRecord(t, db, 2, "x")
	require.NoError(t, db.AbortTransaction(ctx))

	requireRecord(t, db, 1, "a")
	requireAbsent(t, db, 2)
}

func testCacheEvictedOnMutation(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	require.NoError(t, db.InsertRecord(ctx, 1, []byte("a")))
	requireRecord(t, db, 1, "a")

	require.NoError(t, db.UpdateRecord(ctx, 1, []byte("b")))
	requireRecord(t, db, 1, "b")

	require.NoError(t, db.SetRecord(ctx, 1, []byte("c")))
	requireRecord(t, db, 1, "c")

	part, err := db.GetPartialRecord(ctx, 1, 0, 1, 1)
	require.NoError(t, err)
	require.Equal(t, "c", string(part))

	require.NoError(t, db.RemoveRecord(ctx, 1))
	requireAbsent(t, db, 1)
}

func testClearCache(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	require.NoError(t, db.InsertRecord(ctx, 1, []byte("a")))
	requireRecord(t, db, 1, "a")

	// a cached record handed out must not be changed by the caller's writes
	data, err := db.GetRecord(ctx, 1)
	require.NoError(t, err)
	data[0] = 'z'
	requireRecord(t, db, 1, "a")

	db.ClearCache()
	requireRecord(t, db, 1, "a")
}

func testCacheDisabled(t *testing.T, b Backend) {
	db, _ := newDB(t, b, kvdb.CacheSize(0))
	ctx := context.Background()

	require.NoError(t, db.InsertRecord(ctx, 1, []byte("a")))
	requireRecord(t, db, 1, "a")
	require.NoError(t, db.UpdateRecord(ctx, 1, []byte("b")))
	requireRecord(t, db, 1, "b")
}

func testDeleted(t *testing.T, b Backend) {
	conf := b.NewConf(t)
	db := open(t, conf, true, b.Options...)
	ctx := context.Background()

	require.NoError(t, db.InsertRecord(ctx, 1, []byte("a")))
	require.NoError(t, db.Delete())

	_, err := db.GetRecord(ctx, 1)
	require.ErrorIs(t, err, kvdb.ErrDeleted)
	require.ErrorIs(t, db.InsertRecord(ctx, 2, nil), kvdb.ErrDeleted)
	require.ErrorIs(t, db.StartTransaction(ctx), kvdb.ErrDeleted)
	_, err = db.NumberOfRecords(ctx)
	require.ErrorIs(t, err, kvdb.ErrDeleted)
	require.True(t, kvdb.IsConflict(err))
	require.ErrorIs(t, db.Destruct(), kvdb.ErrDeleted)
	require.ErrorIs(t, db.Delete(), kvdb.ErrDeleted)

	if b.Persistent {
		_, err := kvdb.Open(ctx, conf, false)
		require.ErrorIs(t, err, kvdb.ErrInvalidConf)
	}
}

func testDestructed(t *testing.T, b Backend) {
	db, _ := newDB(t, b)
	ctx := context.Background()

	require.NoError(t, db.Destruct())

	_, err := db.ContainsRecord(ctx, 1)
	require.ErrorIs(t, err, kvdb.ErrClosed)
	require.ErrorIs(t, db.SetRecord(ctx, 1, nil), kvdb.ErrClosed)
	require.ErrorIs(t, db.CommitTransaction(ctx), kvdb.ErrClosed)
	require.ErrorIs(t, db.Destruct(), kvdb.ErrClosed)
}

func testThrowToContext(t *testing.T, b Backend) {
	db, _ := newDB(t, b)

	ec := except.NewContext()
	ctx := except.WithContext(context.Background(), ec)

	caught := ec.Try(func() {
		ec.Check(db.InsertRecord(ctx, 1, []byte("a")))
		db.InsertRecord(ctx, 1, []byte("b"))
		t.Fatal("insert of an existing key returned")
	})
	require.NotNil(t, caught)
	require.Equal(t, kvdb.IDKeyExists, caught.ID())
	require.Equal(t, 0, ec.Depth())

	// outside Try errors are returned as usual
	err := db.InsertRecord(ctx, 1, []byte("b"))
	require.ErrorIs(t, err, kvdb.ErrKeyExists)
}

func testReopen(t *testing.T, b Backend) {
	db, conf := newDB(t, b)
	ctx := context.Background()

	values := make(map[int64]string)
	for i := 0; i < 100; i++ {
		values[gofakeit.Int64()] = gofakeit.Sentence(4)
	}
	for key, value := range values {
		require.NoError(t, db.SetRecord(ctx, key, []byte(value)))
	}
	require.NoError(t, db.Destruct())

	db = open(t, conf, false, b.Options...)
	defer db.Destruct()

	requireCount(t, db, int64(len(values)))
	for key, value := range values {
		requireRecord(t, db, key, value)
	}
}

func testDestructAbortsTransaction(t *testing.T, b Backend) {
	db, conf := newDB(t, b)
	ctx := context.Background()

	require.NoError(t, db.InsertRecord(ctx, 1, []byte("a")))
	require.NoError(t, db.StartTransaction(ctx))
	require.NoError(t, db.InsertRecord(ctx, 2, []byte("b")))
	require.NoError(t, db.UpdateRecord(ctx, 1, []byte("c")))
	require.NoError(t, db.Destruct())
	require.False(t, db.InTransaction())

	db = open(t, conf, false, b.Options...)
	defer db.Destruct()

	requireRecord(t, db, 1, "a")
	requireAbsent(t, db, 2)
}

func testOpenMissing(t *testing.T, b Backend) {
	_, err := kvdb.Open(context.Background(), b.NewConf(t), false)
	require.ErrorIs(t, err, kvdb.ErrInvalidConf)
}
