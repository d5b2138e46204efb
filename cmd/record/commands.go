package record

import (
	"context"
	"fmt"
	"math"

	"github.com/ostafen/kvdb"
	"github.com/spf13/cobra"
)

var (
	insertCmd = &cobra.Command{
		Use:   "insert [key] [value]",
		Short: "Inserts a record, failing if the key exists",
		Args:  cobra.ExactArgs(2),
		RunE: withDatabase(func(ctx context.Context, db *kvdb.Database, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			if err := db.InsertRecord(ctx, key, []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("insert successfully")
			return nil
		}),
	}
	updateCmd = &cobra.Command{
		Use:   "update [key] [value]",
		Short: "Replaces the value of an existing record",
		Args:  cobra.ExactArgs(2),
		RunE: withDatabase(func(ctx context.Context, db *kvdb.Database, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			if err := db.UpdateRecord(ctx, key, []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("update successfully")
			return nil
		}),
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Inserts or replaces a record",
		Args:  cobra.ExactArgs(2),
		RunE: withDatabase(func(ctx context.Context, db *kvdb.Database, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			if err := db.SetRecord(ctx, key, []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		}),
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value of a record",
		Args:  cobra.ExactArgs(1),
		RunE: withDatabase(func(ctx context.Context, db *kvdb.Database, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			data, size, err := db.GetRecord2(ctx, key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%d, found=%v, size=%d, value=%s\n", key, data != nil, size, data)
			return nil
		}),
	}
	rmCmd = &cobra.Command{
		Use:   "rm [key]",
		Short: "Removes a record",
		Args:  cobra.ExactArgs(1),
		RunE: withDatabase(func(ctx context.Context, db *kvdb.Database, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			if err := db.RemoveRecord(ctx, key); err != nil {
				return err
			}
			fmt.Println("remove successfully")
			return nil
		}),
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks whether a record exists",
		Args:  cobra.ExactArgs(1),
		RunE: withDatabase(func(ctx context.Context, db *kvdb.Database, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			found, err := db.ContainsRecord(ctx, key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%d, found=%v\n", key, found)
			return nil
		}),
	}
	countCmd = &cobra.Command{
		Use:   "count",
		Short: "Prints the number of records",
		Args:  cobra.NoArgs,
		RunE: withDatabase(func(ctx context.Context, db *kvdb.Database, _ []string) error {
			n, err := db.NumberOfRecords(ctx)
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		}),
	}
	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Lists records in ascending key order",
		Args:  cobra.NoArgs,
		RunE: withDatabase(func(ctx context.Context, db *kvdb.Database, _ []string) error {
			n := 0
			return db.ForEachRecord(ctx, scanFrom, func(key int64, data []byte) bool {
				fmt.Printf("%d\t%s\n", key, data)
				n++
				return scanLimit <= 0 || n < scanLimit
			})
		}),
	}
	dropCmd = &cobra.Command{
		Use:   "drop",
		Short: "Deletes the store and every record in it",
		Args:  cobra.NoArgs,
		RunE: withDatabase(func(ctx context.Context, db *kvdb.Database, _ []string) error {
			if err := db.Delete(); err != nil {
				return err
			}
			fmt.Println("drop successfully")
			return nil
		}),
	}
)

var (
	scanFrom  int64
	scanLimit int
)

func init() {
	scanCmd.Flags().Int64Var(&scanFrom, "from", math.MinInt64, "Smallest key to list")
	scanCmd.Flags().IntVar(&scanLimit, "limit", 0, "Stop after this many records (0 for all)")
}
