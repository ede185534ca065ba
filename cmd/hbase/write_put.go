package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
	"go.uber.org/zap"
)

var WritePutCmd = Command(writePutRunE,
	"put <table> <row> <column=value>...",
	"Store columns in a single row",
	MinimumNArgs(3),
)

func writePutRunE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conn, err := getConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	table := args[0]
	row := args[1]

	data := make(map[string][]byte, len(args)-2)
	for _, pair := range args[2:] {
		chunks := strings.SplitN(pair, "=", 2)
		if len(chunks) != 2 || !strings.Contains(chunks[0], ":") {
			return fmt.Errorf("invalid column assignment %q, expected 'family:qualifier=value'", pair)
		}
		data[chunks[0]] = []byte(chunks[1])
	}

	zlog.Info("table put row",
		zap.String("table", table),
		zap.String("row", row),
		zap.Int("columns", len(data)),
	)

	if err := conn.Table(table).Put(ctx, []byte(row), data); err != nil {
		return fmt.Errorf("failed to put row: %w", err)
	}

	fmt.Printf("Stored %d columns in row %s\n", len(data), row)
	return nil
}
