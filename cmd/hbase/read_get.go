package main

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
	"github.com/streamingfast/hbase/cmd/hbase/decoder"

	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
	"go.uber.org/zap"
)

var ReadGetCmd = Command(readGetRunE,
	"get <table> <row>",
	"Retrieve a single row",
	ExactArgs(2),
)

func readGetRunE(cmd *cobra.Command, args []string) error {
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
	zlog.Info("table get row",
		zap.String("table", table),
		zap.String("row", row),
	)

	cells, err := conn.Table(table).Row(ctx, []byte(row))
	if err != nil {
		return fmt.Errorf("failed to get row: %w", err)
	}

	if len(cells) == 0 {
		fmt.Println("")
		fmt.Printf("Row ->\t%s\tNOT FOUND\n", row)
		return nil
	}

	columns := make([]string, 0, len(cells))
	for column := range cells {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	fmt.Println("")
	fmt.Printf("Row\t->\t%s\n", row)
	for _, column := range columns {
		cell := cells[column]
		fmt.Printf("%s\t->\t%s (ts %d)\n", column, outputDecoder.Decode(cell.Value), cell.Timestamp)
	}
	return nil
}
