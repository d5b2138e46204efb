// Package postgres stores records in a PostgreSQL table through pgx.
//
// Each store owns one table with a BYTEA primary key holding the encoded
// record key and a BYTEA value column. Transactions map one to one onto
// PostgreSQL transactions.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ostafen/kvdb/store"
	"github.com/sethvargo/go-retry"
)

const defaultTable = "kv_records"

// Options configures a PostgreSQL backed store.
type Options struct {
	// ConnString is a postgres:// URL or a keyword/value connection string.
	ConnString string

	// Schema defaults to "public", Table to "kv_records".
	Schema string
	Table  string

	// Create makes Open create the table when it does not exist.
	Create bool

	MaxConns       int32
	ConnectRetries uint64

	Logger *slog.Logger
}

type pgStore struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

func Open(ctx context.Context, opts Options) (store.Store, error) {
	cfg, err := pgxpool.ParseConfig(opts.ConnString)
	if err != nil {
		return nil, err
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	if opts.Table == "" {
		opts.Table = defaultTable
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &pgStore{
		pool:   pool,
		table:  pgx.Identifier{opts.Schema, opts.Table}.Sanitize(),
		logger: opts.Logger,
	}

	if err := s.ping(ctx, opts.ConnectRetries); err != nil {
		pool.Close()
		return nil, err
	}

	if opts.Create {
		err = s.createTable(ctx)
	} else {
		err = s.checkTable(ctx)
	}
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// ping waits for the server with a Fibonacci backoff.
func (s *pgStore) ping(ctx context.Context, retries uint64) error {
	b := retry.WithMaxRetries(retries, retry.NewFibonacci(100*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := s.pool.Ping(ctx); err != nil {
			s.logger.Warn("postgres ping failed", slog.String("table", s.table), slog.Any("err", err))
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (s *pgStore) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key BYTEA PRIMARY KEY,
			value BYTEA NOT NULL
		)
	`, s.table)

	_, err := s.pool.Exec(ctx, query)
	return err
}

func (s *pgStore) checkTable(ctx context.Context) error {
	var name *string
	if err := s.pool.QueryRow(ctx, `SELECT to_regclass($1)::text`, s.table).Scan(&name); err != nil {
		return err
	}
	if name == nil {
		return store.ErrNotExist
	}
	return nil
}

func (s *pgStore) Begin(ctx context.Context, update bool) (store.Tx, error) {
	mode := pgx.ReadOnly
	if update {
		mode = pgx.ReadWrite
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: mode})
	if err != nil {
		return nil, err
	}
	return &pgTx{ctx: ctx, tx: tx, table: s.table}, nil
}

func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *pgStore) Drop() error {
	defer s.pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table))
	return err
}

type pgTx struct {
	ctx   context.Context
	tx    pgx.Tx
	table string
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrTxClosed) {
		return store.ErrTxDone
	}
	return err
}

func (tx *pgTx) Get(key []byte) ([]byte, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, tx.table)

	var value []byte
	err := tx.tx.QueryRow(tx.ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// GetRange reads the range with substring, so only the requested bytes
// leave the server.
func (tx *pgTx) GetRange(key []byte, offset, length int64) ([]byte, int64, bool, error) {
	query := fmt.Sprintf(`SELECT substring(value FROM $2 FOR $3), octet_length(value) FROM %s WHERE key = $1`, tx.table)

	var (
		value []byte
		size  int64
	)
	err := tx.tx.QueryRow(tx.ctx, query, key, offset+1, length).Scan(&value, &size)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, translate(err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, size, true, nil
}

func (tx *pgTx) Set(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value
	`, tx.table)

	_, err := tx.tx.Exec(tx.ctx, query, key, value)
	return translate(err)
}

func (tx *pgTx) Delete(key []byte) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, tx.table)

	_, err := tx.tx.Exec(tx.ctx, query, key)
	return translate(err)
}

func (tx *pgTx) Count() (int64, error) {
	var n int64
	err := tx.tx.QueryRow(tx.ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, tx.table)).Scan(&n)
	return n, translate(err)
}

func (tx *pgTx) Cursor() (store.Cursor, error) {
	return store.NewPagedCursor(tx.page, store.DefaultPageSize), nil
}

func (tx *pgTx) page(from []byte, inclusive bool, limit int) ([]store.Item, error) {
	op := ">"
	if inclusive {
		op = ">="
	}
	query := fmt.Sprintf(`SELECT key, value FROM %s WHERE key %s $1 ORDER BY key LIMIT $2`, tx.table, op)

	rows, err := tx.tx.Query(tx.ctx, query, from, limit)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	items := make([]store.Item, 0, limit)
	for rows.Next() {
		var item store.Item
		if err := rows.Scan(&item.Key, &item.Value); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (tx *pgTx) Commit() error {
	return translate(tx.tx.Commit(tx.ctx))
}

func (tx *pgTx) Rollback() error {
	return translate(tx.tx.Rollback(tx.ctx))
}
