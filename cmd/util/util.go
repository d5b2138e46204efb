package util

import (
	"context"
	"strings"

	"github.com/joho/godotenv"
	"github.com/ostafen/kvdb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		if lineWidth > 0 && lineWidth+1+len(word) > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}
		currentLine.WriteString(word)
		lineWidth += len(word)
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}
	return strings.Join(wrappedLines, "\n")
}

// SetupBackendFlags adds the flags selecting and locating the backend
func SetupBackendFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.String("backend", "badger", WrapString("Storage backend (memory, badger, bolt, postgres, mysql)"))
	flags.String("dir", "kvdb-data", WrapString("Directory of a badger or bolt store, snapshot file of a memory store (empty for a volatile one)"))
	flags.Bool("in-memory", false, WrapString("Keep a badger store in memory only"))
	flags.String("host", "localhost", WrapString("Host of the relational database"))
	flags.Int("port", 0, WrapString("Port of the relational database (0 for the engine default)"))
	flags.String("user", "", WrapString("User of the relational database"))
	flags.String("password", "", WrapString("Password of the relational database"))
	flags.String("database", "kvdb", WrapString("Name of the relational database"))
	flags.String("table", "", WrapString("Table holding the records, bucket for bolt"))
	flags.Int("connect-retries", kvdb.DefaultConnectRetries, WrapString("How many times to retry connecting to a relational database"))
	flags.Bool("create", true, WrapString("Create the store when it does not exist"))
	flags.Int("cache-size", kvdb.CacheSizeDefault, WrapString("Number of records in the read cache (0 disables it)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("kvdb")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetConf builds the database configuration from viper
func GetConf() (*kvdb.Conf, error) {
	kind, err := kvdb.ParseKind(viper.GetString("backend"))
	if err != nil {
		return nil, err
	}

	dir := viper.GetString("dir")
	host := viper.GetString("host")
	port := viper.GetInt("port")
	user := viper.GetString("user")
	password := viper.GetString("password")
	database := viper.GetString("database")
	table := viper.GetString("table")

	var conf *kvdb.Conf
	switch kind {
	case kvdb.KindMemory:
		conf = kvdb.NewMemoryConf(dir)
	case kvdb.KindBadger:
		conf = kvdb.NewBadgerConf(dir)
		conf.InMemory = viper.GetBool("in-memory")
	case kvdb.KindBolt:
		conf = kvdb.NewBoltConf(dir)
		conf.Table = table
	case kvdb.KindPostgres:
		conf = kvdb.NewPostgresConf(host, port, user, password, database, table)
	case kvdb.KindMySQL:
		conf = kvdb.NewMySQLConf(host, port, user, password, database, table)
	}
	conf.ConnectRetries = uint64(viper.GetInt("connect-retries"))

	return conf, conf.Validate()
}

// OpenDatabase opens the configured database
func OpenDatabase(ctx context.Context) (*kvdb.Database, error) {
	conf, err := GetConf()
	if err != nil {
		return nil, err
	}
	return kvdb.Open(ctx, conf, viper.GetBool("create"), kvdb.CacheSize(viper.GetInt("cache-size")))
}
