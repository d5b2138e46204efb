package record

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/ostafen/kvdb"
	"github.com/spf13/cobra"
)

var (
	perfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for kvdb backends",
		Long: `Inserts records inside one transaction, reads them back at random,
removes them again and prints the collected metrics.`,
		Args: cobra.NoArgs,
		RunE: withDatabase(runPerf),
	}
	perfRecords   = 10000
	perfValueSize = 128
	perfKeyBase   int64 = 1 << 40
	perfMetrics   = true
)

func init() {
	perfCmd.Flags().IntVar(&perfRecords, "records", perfRecords, "Number of records to insert")
	perfCmd.Flags().IntVar(&perfValueSize, "value-size", perfValueSize, "Size of each record in bytes")
	perfCmd.Flags().Int64Var(&perfKeyBase, "key-base", perfKeyBase, "First key used by the benchmark")
	perfCmd.Flags().BoolVar(&perfMetrics, "metrics", perfMetrics, "Print metrics when done")
}

func runPerf(ctx context.Context, db *kvdb.Database, _ []string) error {
	if perfRecords <= 0 {
		return fmt.Errorf("records must be positive, got %d", perfRecords)
	}
	fmt.Printf("Performance testing tool for kvdb (%s)\n\n", db.Conf().String())

	value := make([]byte, perfValueSize)
	rand.Read(value)

	start := time.Now()
	if err := db.StartTransaction(ctx); err != nil {
		return err
	}
	for i := 0; i < perfRecords; i++ {
		if err := db.InsertRecord(ctx, perfKeyBase+int64(i), value); err != nil {
			db.AbortTransaction(ctx)
			return err
		}
	}
	if err := db.CommitTransaction(ctx); err != nil {
		return err
	}
	printDuration("insert", perfRecords, time.Since(start))

	var getErr error
	result := testing.Benchmark(func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			key := perfKeyBase + rand.Int63n(int64(perfRecords))
			if _, err := db.GetRecord(ctx, key); err != nil {
				getErr = err
				return
			}
		}
	})
	if getErr != nil {
		return getErr
	}
	fmt.Printf("%-8s %10d ops %12d ns/op\n", "get", result.N, result.NsPerOp())

	start = time.Now()
	if err := db.StartTransaction(ctx); err != nil {
		return err
	}
	for i := 0; i < perfRecords; i++ {
		if err := db.RemoveRecord(ctx, perfKeyBase+int64(i)); err != nil {
			db.AbortTransaction(ctx)
			return err
		}
	}
	if err := db.CommitTransaction(ctx); err != nil {
		return err
	}
	printDuration("remove", perfRecords, time.Since(start))

	if perfMetrics {
		fmt.Println()
		kvdb.WriteMetrics(os.Stdout)
	}
	return nil
}

func printDuration(name string, n int, d time.Duration) {
	perOp := int64(0)
	if n > 0 {
		perOp = d.Nanoseconds() / int64(n)
	}
	fmt.Printf("%-8s %10d ops %12d ns/op\n", name, n, perOp)
}
