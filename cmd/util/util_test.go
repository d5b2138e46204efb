package util

import (
	"strings"
	"testing"

	"github.com/ostafen/kvdb"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(WrapString(text), "\n") {
		require.LessOrEqual(t, len(line), Wrap)
	}
	require.Equal(t, "short text", WrapString("  short   text "))
}

func TestGetConf(t *testing.T) {
	defer viper.Reset()

	viper.Set("backend", "postgres")
	viper.Set("host", "db.internal")
	viper.Set("database", "records")
	viper.Set("connect-retries", 5)

	conf, err := GetConf()
	require.NoError(t, err)
	require.Equal(t, kvdb.KindPostgres, conf.Kind)
	require.Equal(t, kvdb.DefaultPostgresPort, conf.Port)
	require.Equal(t, uint64(5), conf.ConnectRetries)

	viper.Set("backend", "bolt")
	viper.Set("dir", "")
	_, err = GetConf()
	require.ErrorIs(t, err, kvdb.ErrInvalidConf)

	viper.Set("backend", "cassandra")
	_, err = GetConf()
	require.ErrorIs(t, err, kvdb.ErrInvalidConf)
}
