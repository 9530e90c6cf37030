package cmd

import (
	"github.com/spf13/cobra"

	"github.com/onflow/localnet/config"
	"github.com/onflow/localnet/module/genesis"
)

var (
	flagGenesisTemplate string
	flagGenesisOut      string
)

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Generate the genesis artifacts of a run without starting any node",
	Long: `Generates the execution genesis, the consensus configuration, the validator keys and the engine API
secret below --out (the data directory by default) and prints the resulting genesis description.`,
	RunE: generateGenesis,
}

func init() {
	rootCmd.AddCommand(genesisCmd)

	genesisCmd.Flags().StringVar(&flagGenesisTemplate, "genesis", "", "execution genesis document to start from")
	genesisCmd.Flags().StringVarP(&flagGenesisOut, "out", "o", "", "directory the genesis directory is created in")
	genesisCmd.Flags().Int("validators", config.DefaultValidators, "number of genesis validators")
	genesisCmd.Flags().Duration("genesis-delay", config.DefaultGenesisDelay, "time between generation and the genesis of the chain")
	bindFlag(genesisCmd.Flags(), "validators", "genesis.validators")
	bindFlag(genesisCmd.Flags(), "genesis-delay", "genesis.delay")
}

func generateGenesis(cmd *cobra.Command, _ []string) error {
	out := flagGenesisOut
	if out == "" {
		out = cfg.DataDir
	}
	params, err := cfg.GenesisParams(flagGenesisTemplate, out)
	if err != nil {
		return err
	}
	spec, err := genesis.NewBuilder(log).Build(params)
	if err != nil {
		return err
	}
	return printYAML(cmd.OutOrStdout(), spec)
}
