// Package mysql stores records in a MySQL (InnoDB) table through
// database/sql and the go-sql-driver/mysql driver.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/ostafen/kvdb/store"
	"github.com/sethvargo/go-retry"
)

const defaultTable = "kv_records"

// Options configures a MySQL backed store.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// Table defaults to "kv_records".
	Table string

	// Create makes Open create the table when it does not exist.
	Create bool

	MaxConns       int
	ConnectRetries uint64

	Logger *slog.Logger
}

// DSN returns the driver data source name for o.
func (o Options) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
	cfg.DBName = o.Database
	return cfg.FormatDSN()
}

type mysqlStore struct {
	db        *sql.DB
	table     string
	tableName string
	logger    *slog.Logger
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func Open(ctx context.Context, opts Options) (store.Store, error) {
	if opts.Table == "" {
		opts.Table = defaultTable
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	db, err := sql.Open("mysql", opts.DSN())
	if err != nil {
		return nil, err
	}
	if opts.MaxConns > 0 {
		db.SetMaxOpenConns(opts.MaxConns)
	}

	s := &mysqlStore{
		db:        db,
		table:     quoteIdentifier(opts.Table),
		tableName: opts.Table,
		logger:    opts.Logger,
	}

	if err := s.ping(ctx, opts.ConnectRetries); err != nil {
		db.Close()
		return nil, err
	}

	if opts.Create {
		err = s.createTable(ctx)
	} else {
		err = s.checkTable(ctx)
	}
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *mysqlStore) ping(ctx context.Context, retries uint64) error {
	b := retry.WithMaxRetries(retries, retry.NewFibonacci(100*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("mysql ping failed", slog.String("table", s.tableName), slog.Any("err", err))
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (s *mysqlStore) createTable(ctx context.Context) error {
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ("+
		"`key` VARBINARY(64) NOT NULL PRIMARY KEY, "+
		"`value` LONGBLOB NOT NULL"+
		") ENGINE=InnoDB", s.table)

	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *mysqlStore) checkTable(ctx context.Context) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
		s.tableName).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotExist
	}
	return nil
}

func (s *mysqlStore) Begin(ctx context.Context, update bool) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: !update})
	if err != nil {
		return nil, err
	}
	return &mysqlTx{ctx: ctx, tx: tx, table: s.table}, nil
}

func (s *mysqlStore) Close() error {
	return s.db.Close()
}

func (s *mysqlStore) Drop() error {
	defer s.db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table))
	return err
}

type mysqlTx struct {
	ctx   context.Context
	tx    *sql.Tx
	table string
}

func translate(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return store.ErrTxDone
	}
	return err
}

func (tx *mysqlTx) Get(key []byte) ([]byte, error) {
	query := fmt.Sprintf("SELECT `value` FROM %s WHERE `key` = ?", tx.table)

	var value []byte
	err := tx.tx.QueryRowContext(tx.ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
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

func (tx *mysqlTx) GetRange(key []byte, offset, length int64) ([]byte, int64, bool, error) {
	query := fmt.Sprintf("SELECT SUBSTRING(`value`, ?, ?), LENGTH(`value`) FROM %s WHERE `key` = ?", tx.table)

	var (
		value []byte
		size  int64
	)
	err := tx.tx.QueryRowContext(tx.ctx, query, offset+1, length, key).Scan(&value, &size)
	if errors.Is(err, sql.ErrNoRows) {
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

func (tx *mysqlTx) Set(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	query := fmt.Sprintf("INSERT INTO %s (`key`, `value`) VALUES (?, ?) "+
		"ON DUPLICATE KEY UPDATE `value` = VALUES(`value`)", tx.table)

	_, err := tx.tx.ExecContext(tx.ctx, query, key, value)
	return translate(err)
}

func (tx *mysqlTx) Delete(key []byte) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE `key` = ?", tx.table)

	_, err := tx.tx.ExecContext(tx.ctx, query, key)
	return translate(err)
}

func (tx *mysqlTx) Count() (int64, error) {
	var n int64
	err := tx.tx.QueryRowContext(tx.ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", tx.table)).Scan(&n)
	return n, translate(err)
}

func (tx *mysqlTx) Cursor() (store.Cursor, error) {
	return store.NewPagedCursor(tx.page, store.DefaultPageSize), nil
}

func (tx *mysqlTx) page(from []byte, inclusive bool, limit int) ([]store.Item, error) {
	op := ">"
	if inclusive {
		op = ">="
	}
	query := fmt.Sprintf("SELECT `key`, `value` FROM %s WHERE `key` %s ? ORDER BY `key` LIMIT ?", tx.table, op)

	rows, err := tx.tx.QueryContext(tx.ctx, query, from, limit)
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

func (tx *mysqlTx) Commit() error {
	return translate(tx.tx.Commit())
}

func (tx *mysqlTx) Rollback() error {
	return translate(tx.tx.Rollback())
}
