package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/streamingfast/logging"

	. "github.com/streamingfast/cli"
	_ "github.com/streamingfast/hbase/hrpc/memrpc"
)

// Commit sha1 value, injected via go build `ldflags` at build time
var commit = ""

// Version value, injected via go build `ldflags` at build time
var version = "dev"

// Date value, injected via go build `ldflags` at build time
var date = ""

var zlog, tracer = logging.RootLogger("hbase", "github.com/streamingfast/hbase/cmd/hbase")

func init() {
	logging.InstantiateLoggers()
}

func main() {
	Run("hbase", "HBase Client",
		ConfigureViper("HBASE"),
		ConfigureVersion(),

		Group("read", "Read commands",
			ReadTablesCmd,
			ReadGetCmd,
			ReadCellsCmd,
			ReadScanCmd,

			PersistentFlags(
				func(flags *pflag.FlagSet) {
					flags.String("decoder", "ascii", "value output decoding. Supported schemes: 'hex', 'ascii', 'base58'")
					flags.String("key-decoder", "ascii", "row key output decoding. Supported schemes: 'hex', 'ascii', 'base58'")
				},
			),
		),

		Group("write", "Write commands",
			WritePutCmd,
			WriteDeleteCmd,
			WriteIncrCmd,
		),

		PersistentFlags(
			func(flags *pflag.FlagSet) {
				flags.String("dsn", "", "URL to connect to the store, scheme selects the driver (ex: 'mem://local/sandbox')")
				flags.String("table-prefix", "", "namespace prefix prepended to every table name")
				flags.String("compression", "none", "transparent value compression, 'zstd' or 'none'")
			},
		),
		AfterAllHook(func(cmd *cobra.Command) {
			cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
				return nil
			}
		}),
	)
}

func ConfigureVersion() CommandOption {
	return CommandOptionFunc(func(cmd *cobra.Command) {
		cmd.Version = versionString(version)
	})
}

func versionString(version string) string {
	var labels []string
	if len(commit) >= 7 {
		labels = append(labels, fmt.Sprintf("Commit %s", commit[0:7]))
	}

	if date != "" {
		labels = append(labels, fmt.Sprintf("Built %s", date))
	}

	if len(labels) == 0 {
		return version
	}

	return fmt.Sprintf("%s (%s)", version, strings.Join(labels, ", "))
}
