package main

import (
	"fmt"

	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
)

var ReadTablesCmd = Command(readTablesRunE,
	"tables",
	"List the tables of the store",
	ExactArgs(0),
)

func readTablesRunE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	conn, err := getConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	names, err := conn.TableNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	for _, name := range names {
		fmt.Println(name)
	}
	fmt.Println("")
	fmt.Printf("Found %d tables\n", len(names))
	return nil
}
