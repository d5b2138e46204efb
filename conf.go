package kvdb

import (
	"fmt"
	"strings"
)

// Kind selects the storage engine behind a Database.
type Kind int

const (
	KindMemory Kind = iota + 1
	KindBadger
	KindBolt
	KindPostgres
	KindMySQL
)

var kindNames = map[Kind]string{
	KindMemory:   "memory",
	KindBadger:   "badger",
	KindBolt:     "bolt",
	KindPostgres: "postgres",
	KindMySQL:    "mysql",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind returns the Kind named by s, ignoring case.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, confError("unknown backend %q", s)
}

const (
	DefaultPostgresPort   = 5432
	DefaultMySQLPort      = 3306
	DefaultConnectRetries = 3
)

// Conf describes where a Database keeps its records. Which fields matter
// depends on Kind:
//
//	memory    Dir is the snapshot file, empty for a volatile store
//	badger    Dir is the database directory unless InMemory is set
//	bolt      Dir is the directory holding the database file, Table the bucket
//	postgres  Host, Port, User, Password, Database, Table
//	mysql     Host, Port, User, Password, Database, Table
type Conf struct {
	Kind Kind

	Dir      string
	InMemory bool

	Host     string
	Port     int
	User     string
	Password string
	Database string
	Table    string

	ConnectRetries uint64
	MaxConns       int
}

func NewMemoryConf(path string) *Conf {
	return &Conf{Kind: KindMemory, Dir: path}
}

func NewBadgerConf(dir string) *Conf {
	return &Conf{Kind: KindBadger, Dir: dir, InMemory: dir == ""}
}

func NewBoltConf(dir string) *Conf {
	return &Conf{Kind: KindBolt, Dir: dir}
}

func NewPostgresConf(host string, port int, user, password, database, table string) *Conf {
	if port == 0 {
		port = DefaultPostgresPort
	}
	return &Conf{
		Kind:           KindPostgres,
		Host:           host,
		Port:           port,
		User:           user,
		Password:       password,
		Database:       database,
		Table:          table,
		ConnectRetries: DefaultConnectRetries,
	}
}

func NewMySQLConf(host string, port int, user, password, database, table string) *Conf {
	if port == 0 {
		port = DefaultMySQLPort
	}
	return &Conf{
		Kind:           KindMySQL,
		Host:           host,
		Port:           port,
		User:           user,
		Password:       password,
		Database:       database,
		Table:          table,
		ConnectRetries: DefaultConnectRetries,
	}
}

// Validate checks that the fields required by Kind are set.
func (c *Conf) Validate() error {
	if c == nil {
		return confError("missing configuration")
	}

	switch c.Kind {
	case KindMemory:
		return nil
	case KindBadger:
		if c.Dir == "" && !c.InMemory {
			return confError("badger requires a directory or in-memory mode")
		}
	case KindBolt:
		if c.Dir == "" {
			return confError("bolt requires a directory")
		}
	case KindPostgres, KindMySQL:
		if c.Host == "" {
			return confError("%s requires a host", c.Kind)
		}
		if c.Port <= 0 || c.Port > 65535 {
			return confError("%s port %d out of range", c.Kind, c.Port)
		}
		if c.Database == "" {
			return confError("%s requires a database name", c.Kind)
		}
		if c.MaxConns < 0 {
			return confError("negative connection limit %d", c.MaxConns)
		}
	default:
		return confError("unknown backend %s", c.Kind)
	}
	return nil
}

func (c Conf) String() string {
	switch c.Kind {
	case KindPostgres, KindMySQL:
		return fmt.Sprintf("%s://%s@%s:%d/%s", c.Kind, c.User, c.Host, c.Port, c.Database)
	case KindBadger:
		if c.InMemory {
			return "badger://:memory:"
		}
	}
	return fmt.Sprintf("%s://%s", c.Kind, c.Dir)
}
