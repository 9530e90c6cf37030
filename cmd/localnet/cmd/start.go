package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/onflow/localnet/module/lifecycle"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Generate a genesis and start every node of a new run",
	Long: `Generates the genesis, plans the topology and launches the nodes layer by layer. The command returns once
every node is healthy and leaves the nodes running. If any node fails to become healthy every node started
so far is stopped and the failed node's log tail is printed.`,
	RunE: start,
}

func init() {
	rootCmd.AddCommand(startCmd)
	addRunFlags(startCmd)
}

func start(cmd *cobra.Command, _ []string) error {
	params, err := runParams(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	controller := lifecycle.NewController(log, cfg)
	err = controller.Start(ctx, params)
	if closeErr := controller.Close(); closeErr != nil {
		err = multierror.Append(err, closeErr).ErrorOrNil()
	}
	if err != nil {
		return err
	}
	return printYAML(cmd.OutOrStdout(), controller.Status())
}
