package main

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/streamingfast/hbase"
	"github.com/streamingfast/hbase/cmd/hbase/decoder"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
	"go.uber.org/zap"
)

var ReadCellsCmd = Command(readCellsRunE,
	"cells <table> <row> <column>",
	"Retrieve versions of a single cell, newest first",
	ExactArgs(3),
	Flags(func(flags *pflag.FlagSet) {
		flags.Int32("versions", 10, "Number of cell versions to return")
	}),
)

func readCellsRunE(cmd *cobra.Command, args []string) error {
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

	table := args[0]
	row := args[1]
	column := args[2]
	versions := viper.GetInt32("read-cells-versions")
	zlog.Info("table get cell versions",
		zap.String("table", table),
		zap.String("row", row),
		zap.String("column", column),
		zap.Int32("versions", versions),
	)

	cells, err := conn.Table(table).Cells(ctx, []byte(row), column, hbase.Versions(versions))
	if err != nil {
		return fmt.Errorf("failed to get cell versions: %w", err)
	}

	fmt.Println("")
	for _, cell := range cells {
		fmt.Printf("ts %d\t->\t%s\n", cell.Timestamp, outputDecoder.Decode(cell.Value))
	}
	fmt.Println("")
	fmt.Printf("Found %d versions\n", len(cells))
	return nil
}
