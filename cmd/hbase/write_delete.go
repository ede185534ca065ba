package main

import (
	"fmt"

	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
	"go.uber.org/zap"
)

var WriteDeleteCmd = Command(writeDeleteRunE,
	"delete <table> <row> [column]...",
	"Delete columns of a row, or the whole row when no column is given",
	MinimumNArgs(2),
)

func writeDeleteRunE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conn, err := getConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	table := args[0]
	row := args[1]
	columns := args[2:]

	zlog.Info("table delete",
		zap.String("table", table),
		zap.String("row", row),
		zap.Strings("columns", columns),
	)

	if len(columns) == 0 {
		columns = nil
	}
	if err := conn.Table(table).Delete(ctx, []byte(row), columns); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}

	if columns == nil {
		fmt.Printf("Deleted row %s\n", row)
	} else {
		fmt.Printf("Deleted %d columns of row %s\n", len(columns), row)
	}
	return nil
}
