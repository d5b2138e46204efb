package kvdb

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"

	"github.com/ostafen/kvdb/store"
	"github.com/ostafen/kvdb/store/badger"
	"github.com/ostafen/kvdb/store/bbolt"
	"github.com/ostafen/kvdb/store/memory"
	"github.com/ostafen/kvdb/store/mysql"
	"github.com/ostafen/kvdb/store/postgres"
)

func openStore(ctx context.Context, conf *Conf, create bool, c *config) (store.Store, error) {
	var (
		s   store.Store
		err error
	)

	switch conf.Kind {
	case KindMemory:
		s, err = memory.Open(conf.Dir, create)
	case KindBadger:
		s, err = badger.Open(conf.Dir, badger.Options{
			InMemory:          conf.InMemory,
			Create:            create,
			GCReclaimInterval: c.GCReclaimInterval,
			GCDiscardRatio:    c.GCDiscardRatio,
			Logger:            c.Logger,
		})
	case KindBolt:
		s, err = bbolt.Open(conf.Dir, conf.Table, create)
	case KindPostgres:
		s, err = postgres.Open(ctx, postgres.Options{
			ConnString:     postgresURL(conf),
			Table:          conf.Table,
			Create:         create,
			MaxConns:       int32(conf.MaxConns),
			ConnectRetries: conf.ConnectRetries,
			Logger:         c.Logger,
		})
	case KindMySQL:
		s, err = mysql.Open(ctx, mysql.Options{
			Host:           conf.Host,
			Port:           conf.Port,
			User:           conf.User,
			Password:       conf.Password,
			Database:       conf.Database,
			Table:          conf.Table,
			Create:         create,
			MaxConns:       conf.MaxConns,
			ConnectRetries: conf.ConnectRetries,
			Logger:         c.Logger,
		})
	default:
		return nil, confError("unknown backend %s", conf.Kind)
	}

	if errors.Is(err, store.ErrNotExist) {
		return nil, confError("%s does not exist", conf)
	}
	if err != nil {
		return nil, backendError(err, "open "+conf.String())
	}
	return s, nil
}

func postgresURL(conf *Conf) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port)),
		Path:   "/" + conf.Database,
	}
	if conf.Password != "" {
		u.User = url.UserPassword(conf.User, conf.Password)
	} else if conf.User != "" {
		u.User = url.User(conf.User)
	}
	return u.String()
}
