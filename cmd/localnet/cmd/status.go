package cmd

import (
	"github.com/spf13/cobra"

	"github.com/onflow/localnet/module/lifecycle"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the state of the run and of each of its nodes",
	RunE:  status,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func status(cmd *cobra.Command, _ []string) error {
	controller := lifecycle.NewController(log, cfg)
	if err := controller.OpenReadOnly(); err != nil {
		return err
	}
	return printYAML(cmd.OutOrStdout(), controller.Status())
}
