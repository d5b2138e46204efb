package record

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/ostafen/kvdb"
	"github.com/ostafen/kvdb/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// the commands are package values, so they share one parent
var testRoot = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kvdb",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	util.SetupBackendFlags(root)
	for _, c := range Commands {
		root.AddCommand(c)
	}
	return root
}

func TestRecordCommands(t *testing.T) {
	defer viper.Reset()
	util.InitConfig()

	root := testRoot
	snap := filepath.Join(t.TempDir(), "records.snap")
	run := func(args ...string) error {
		root.SetArgs(append([]string{"--backend", "memory", "--dir", snap}, args...))
		return root.Execute()
	}

	value := gofakeit.Word()

	require.NoError(t, run("insert", "7", "x"))

	err := run("insert", "7", "x")
	require.Error(t, err)
	require.True(t, kvdb.IsConflict(err))

	require.NoError(t, run("update", "7", value))
	require.NoError(t, run("get", "7"))
	require.NoError(t, run("has", "7"))
	require.NoError(t, run("count"))
	require.NoError(t, run("scan", "--limit", "1"))

	_, err = parseKey("seven")
	require.Error(t, err)
	require.Error(t, run("get", "seven"))

	ctx := context.Background()
	db, err := kvdb.Open(ctx, kvdb.NewMemoryConf(snap), false)
	require.NoError(t, err)
	data, err := db.GetRecord(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, value, string(data))
	require.NoError(t, db.Destruct())

	require.NoError(t, run("drop"))
	_, err = kvdb.Open(ctx, kvdb.NewMemoryConf(snap), false)
	require.ErrorIs(t, err, kvdb.ErrInvalidConf)
}

func TestPerfCommand(t *testing.T) {
	defer viper.Reset()
	util.InitConfig()

	root := testRoot
	root.SetArgs([]string{
		"--backend", "memory", "--dir", "",
		"perf", "--records", "20", "--value-size", "8", "--metrics=false",
	})
	require.NoError(t, root.Execute())
}
