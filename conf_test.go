package kvdb

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/ostafen/kvdb/except"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindMemory, KindBadger, KindBolt, KindPostgres, KindMySQL} {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	}

	k, err := ParseKind(" PostgreS ")
	require.NoError(t, err)
	require.Equal(t, KindPostgres, k)

	_, err = ParseKind("sqlite")
	require.ErrorIs(t, err, ErrInvalidConf)
	require.Equal(t, "Kind(42)", Kind(42).String())
}

func TestValidate(t *testing.T) {
	valid := []*Conf{
		NewMemoryConf(""),
		NewMemoryConf("/tmp/x.snap"),
		NewBadgerConf(""),
		NewBadgerConf("/tmp/badger"),
		NewBoltConf("/tmp/bolt"),
		NewPostgresConf("localhost", 0, "kv", "secret", "kv", ""),
		NewMySQLConf("localhost", 0, "kv", "", "kv", "records"),
	}
	for _, conf := range valid {
		require.NoError(t, conf.Validate(), conf.String())
	}

	invalid := []*Conf{
		nil,
		{},
		{Kind: KindBadger},
		NewBoltConf(""),
		NewPostgresConf("", 0, "kv", "", "kv", ""),
		NewMySQLConf("localhost", 70000, "kv", "", "kv", ""),
		NewPostgresConf("localhost", 0, "kv", "", "", ""),
		{Kind: KindMySQL, Host: "h", Port: 1, Database: "d", MaxConns: -1},
	}
	for _, conf := range invalid {
		require.ErrorIs(t, conf.Validate(), ErrInvalidConf)
	}
}

func TestDefaultPorts(t *testing.T) {
	require.Equal(t, DefaultPostgresPort, NewPostgresConf("h", 0, "", "", "d", "").Port)
	require.Equal(t, DefaultMySQLPort, NewMySQLConf("h", 0, "", "", "d", "").Port)
	require.Equal(t, uint64(DefaultConnectRetries), NewMySQLConf("h", 0, "", "", "d", "").ConnectRetries)
}

func TestConfString(t *testing.T) {
	require.Equal(t, "postgres://kv@db:5432/records", NewPostgresConf("db", 0, "kv", "secret", "records", "").String())
	require.Equal(t, "badger://:memory:", NewBadgerConf("").String())
	require.Equal(t, "bolt:///var/lib/kv", NewBoltConf("/var/lib/kv").String())
}

func TestPostgresURL(t *testing.T) {
	conf := NewPostgresConf("db", 5433, "kv", "p@ss", "records", "")
	require.Equal(t, "postgres://kv:p%40ss@db:5433/records", postgresURL(conf))
}

func TestInvalidOptions(t *testing.T) {
	for _, opt := range []Option{CacheSize(-1), GCReclaimInterval(0), GCDiscardRatio(1), GCDiscardRatio(0)} {
		_, err := Open(context.Background(), NewMemoryConf(""), true, opt)
		require.ErrorIs(t, err, ErrInvalidConf)
	}
}

func TestErrorClasses(t *testing.T) {
	require.True(t, IsNotFound(except.New(IDKeyNotFound, "record %d not found", 1)))
	require.False(t, IsNotFound(ErrKeyExists))

	for _, err := range []error{ErrKeyExists, ErrTransactionActive, ErrNoTransaction, ErrDeleted, ErrClosed} {
		require.True(t, IsConflict(err), err.Error())
	}
	require.False(t, IsConflict(ErrInvalidRange))
	require.False(t, IsConflict(nil))
}

func TestBackendErrorKeepsCause(t *testing.T) {
	require.NoError(t, backendError(nil, "get"))

	err := backendError(fs.ErrPermission, "get")
	require.True(t, except.HasID(err, IDBackend))
	require.True(t, errors.Is(err, fs.ErrPermission))
	require.Equal(t, "kvdb.backend: get failed: permission denied", err.Error())

	own := except.New(IDKeyExists, "record 1 already exists")
	require.Same(t, own, backendError(own, "insert"))
}

func TestCachePopulatedOutsideTransactions(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, NewMemoryConf(""), true, CacheSize(2))
	require.NoError(t, err)
	defer db.Destruct()

	require.NoError(t, db.InsertRecord(ctx, 1, []byte("a")))
	require.Equal(t, 0, db.cache.len())

	_, err = db.GetRecord(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, db.cache.len())

	// missing records are not cached
	_, err = db.GetRecord(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1, db.cache.len())

	require.NoError(t, db.StartTransaction(ctx))
	require.NoError(t, db.InsertRecord(ctx, 3, []byte("c")))
	_, err = db.GetRecord(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 1, db.cache.len())
	require.NoError(t, db.CommitTransaction(ctx))

	_, err = db.GetRecord(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 2, db.cache.len())

	require.NoError(t, db.RemoveRecord(ctx, 1))
	require.Equal(t, 1, db.cache.len())

	db.ClearCache()
	require.Equal(t, 0, db.cache.len())
}

func TestHandleIdentity(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, NewMemoryConf(""), true)
	require.NoError(t, err)
	defer a.Destruct()
	b, err := Open(ctx, NewMemoryConf(""), true)
	require.NoError(t, err)
	defer b.Destruct()

	require.NotEqual(t, a.ID(), b.ID())
	require.Equal(t, KindMemory, a.Kind())
	require.Equal(t, KindMemory, a.Conf().Kind)
}

func TestWriteMetrics(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, NewMemoryConf(""), true)
	require.NoError(t, err)
	defer db.Destruct()

	require.NoError(t, db.InsertRecord(ctx, 1, nil))
	require.Error(t, db.InsertRecord(ctx, 1, nil))

	var buf bytes.Buffer
	WriteMetrics(&buf)
	require.Contains(t, buf.String(), `kvdb_operations_total{backend="memory",op="insert"}`)
	require.Contains(t, buf.String(), `kvdb_errors_total{backend="memory",op="insert"}`)
	require.Contains(t, buf.String(), "kvdb_cache_hits_total")
}
