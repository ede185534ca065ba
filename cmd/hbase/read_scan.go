package main

import (
	"fmt"

	"github.com/streamingfast/hbase"
	"github.com/streamingfast/hbase/cmd/hbase/decoder"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
	"go.uber.org/zap"
)

var ReadScanCmd = Command(readScanRunE,
	"scan <table>",
	"Scans a table by key range or prefix",
	ExactArgs(1),
	Flags(func(flags *pflag.FlagSet) {
		flags.String("start", "", "Inclusive start key, empty means the beginning of the table")
		flags.String("stop", "", "Exclusive stop key, empty means the end of the table")
		flags.String("prefix", "", "Restrict the scan to keys with this prefix, mutually exclusive with start/stop")
		flags.StringSlice("columns", nil, "Columns to return, families or fully qualified, all when empty")
		flags.Uint64("limit", 100, "Number of rows to return, 0 is unbounded")
		flags.Bool("reverse", false, "Walk the table in descending key order")
	}),
)

func readScanRunE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conn, err := getConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	outputDecoder, err := decoder.NewDecoder(viper.GetString("read-global-decoder"))
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}

	keyDecoder, err := decoder.NewDecoder(viper.GetString("read-global-key-decoder"))
	if err != nil {
		return fmt.Errorf("key decoder: %w", err)
	}

	table := args[0]
	opts := hbase.ScanOptions{
		Columns: viper.GetStringSlice("read-scan-columns"),
		Limit:   int(viper.GetUint64("read-scan-limit")),
		Reverse: viper.GetBool("read-scan-reverse"),
	}
	if start := viper.GetString("read-scan-start"); start != "" {
		opts.StartRow = []byte(start)
	}
	if stop := viper.GetString("read-scan-stop"); stop != "" {
		opts.StopRow = []byte(stop)
	}
	if prefix := viper.GetString("read-scan-prefix"); prefix != "" {
		opts.Prefix = []byte(prefix)
	}

	zlog.Info("table scan",
		zap.String("table", table),
		zap.Int("limit", opts.Limit),
		zap.Bool("reverse", opts.Reverse),
	)

	scanner, err := conn.Table(table).Scan(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to open scan: %w", err)
	}
	defer scanner.Close()

	rowCount := 0
	for scanner.Next() {
		rowCount++
		row := scanner.Row()
		fmt.Printf("%s\n", keyDecoder.Decode(row.Key))
		for column, cell := range row.Cells {
			fmt.Printf("\t%s\t->\t%s\n", column, outputDecoder.Decode(cell.Value))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	fmt.Println("")
	fmt.Printf("Found %d rows\n", rowCount)

	return nil
}
