package cmd

import (
	"github.com/spf13/cobra"

	"github.com/onflow/localnet/module/lifecycle"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove every artifact of a stopped run",
	Long:  `Removes the data directory of a stopped or failed run, including its genesis, node data and logs.`,
	RunE:  clean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func clean(_ *cobra.Command, _ []string) error {
	controller := lifecycle.NewController(log, cfg)
	if err := controller.Clean(); err != nil {
		return err
	}
	log.Info().Str("datadir", cfg.DataDir).Msg("run artifacts removed")
	return nil
}
