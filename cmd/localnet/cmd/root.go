package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/onflow/localnet/config"
	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/utils/logging"
)

// annotationConfigKey marks a flag overriding a configuration key.
const annotationConfigKey = "localnet/config-key"

var (
	flagConfig string

	v   *viper.Viper
	cfg config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "localnet",
	Short: "Run a local Ethereum test network of execution, consensus and builder relay nodes",
	Long: `localnet generates a genesis, plans a network of execution, consensus and (in blinded mode) builder
relay nodes, launches them in dependency order and waits until every node reports healthy.

A run lives in the data directory. start returns once the run is up; later invocations of stop, dump-logs
and clean operate on the recorded run. up runs in the foreground and stops the run on interrupt.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the command line. Any error exits with status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	v = config.NewViper()

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&flagConfig, "config", "c", "", "path to a YAML configuration file")
	flags.StringP("datadir", "d", config.DefaultDataDir, "directory holding every artifact of the run")
	flags.String("host", config.DefaultHost, "address every node listens on")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", logging.FormatConsole, "log format (console, json)")
	bindFlag(flags, "datadir", "datadir")
	bindFlag(flags, "host", "host")
	bindFlag(flags, "log-level", "log.level")
	bindFlag(flags, "log-format", "log.format")
}

// bindFlag marks the flag as overriding the configuration key. Flags are bound to viper only for the
// command being executed, so commands can share flag names.
func bindFlag(flags *pflag.FlagSet, name string, key string) {
	_ = flags.SetAnnotation(name, annotationConfigKey, []string{key})
}

// loadConfig binds the flags of the executed command and loads the configuration.
func loadConfig(cmd *cobra.Command, _ []string) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[annotationConfigKey]
		if !ok || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(keys[0], f)
	})
	if bindErr != nil {
		return bindErr
	}

	var err error
	cfg, err = config.Load(v, flagConfig)
	if err != nil {
		return err
	}
	log, err = logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return err
}

// printError prints err, naming the failed node, its health outcome and the tail of its log.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)

	var nodeErr *localnet.NodeError
	if errors.As(err, &nodeErr) {
		fmt.Fprintf(w, "  node:    %s\n  role:    %s\n", nodeErr.Node, nodeErr.Role)
		if nodeErr.Outcome != "" {
			fmt.Fprintf(w, "  outcome: %s\n", nodeErr.Outcome)
		}
	}
	if startErr, ok := localnet.IsStartError(err); ok && len(startErr.LogTail) > 0 {
		fmt.Fprintf(w, "  last %d log lines of %s:\n    %s\n", len(startErr.LogTail), startErr.Node,
			strings.Join(startErr.LogTail, "\n    "))
	}
}
