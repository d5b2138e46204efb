package record

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ostafen/kvdb"
	"github.com/ostafen/kvdb/cmd/util"
	"github.com/spf13/cobra"
)

// Commands holds the record commands added to the root command
var Commands = []*cobra.Command{
	insertCmd,
	updateCmd,
	setCmd,
	getCmd,
	rmCmd,
	hasCmd,
	countCmd,
	scanCmd,
	dropCmd,
	perfCmd,
}

type dbRunFunc func(ctx context.Context, db *kvdb.Database, args []string) error

// withDatabase opens the configured database around fn
func withDatabase(fn dbRunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := util.BindCommandFlags(cmd); err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		db, err := util.OpenDatabase(ctx)
		if err != nil {
			return err
		}

		if err := fn(ctx, db, args); err != nil {
			db.Destruct()
			return err
		}

		// drop already released the handle
		if err := db.Destruct(); !errors.Is(err, kvdb.ErrDeleted) {
			return err
		}
		return nil
	}
}

func parseKey(s string) (int64, error) {
	key, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("key must be an integer: %w", err)
	}
	return key, nil
}
