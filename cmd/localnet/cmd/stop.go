package cmd

import (
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/onflow/localnet/module/lifecycle"
	"github.com/onflow/localnet/storage"
	"github.com/onflow/localnet/storage/runstate"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop every node of the run in the data directory",
	Long: `Stops the nodes in reverse dependency order. Nodes not exiting within the grace period are killed.
Stopping a run that is already stopped, or a data directory without a run, is not an error.`,
	RunE: stop,
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

func stop(cmd *cobra.Command, _ []string) error {
	// checked before Open, which would create the data directory to lock it
	if !runstate.NewStore(cfg.DataDir).Exists() {
		log.Info().Str("datadir", cfg.DataDir).Msg("no run to stop")
		return nil
	}

	controller := lifecycle.NewController(log, cfg)
	err := controller.Open()
	if storage.IsNotFound(err) {
		log.Info().Str("datadir", cfg.DataDir).Msg("no run to stop")
		return nil
	}
	if err != nil {
		return err
	}

	var result *multierror.Error
	if err := controller.Stop(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := controller.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	log.Info().Str("run_id", controller.RunID()).Str("state", string(controller.State())).Msg("run stopped")
	return nil
}
