package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
	"go.uber.org/zap"
)

var WriteIncrCmd = Command(writeIncrRunE,
	"incr <table> <row> <column> [amount]",
	"Atomically increment a counter column, by 1 when no amount is given",
	RangeArgs(3, 4),
)

func writeIncrRunE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conn, err := getConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	table := args[0]
	row := args[1]
	column := args[2]

	amount := int64(1)
	if len(args) == 4 {
		amount, err = strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[3], err)
		}
	}

	zlog.Info("table counter increment",
		zap.String("table", table),
		zap.String("row", row),
		zap.String("column", column),
		zap.Int64("amount", amount),
	)

	value, err := conn.Table(table).CounterInc(ctx, []byte(row), column, amount)
	if err != nil {
		return fmt.Errorf("failed to increment counter: %w", err)
	}

	fmt.Printf("%s:%s\t->\t%d\n", row, column, value)
	return nil
}
