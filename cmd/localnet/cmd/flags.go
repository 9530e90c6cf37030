package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/onflow/localnet/config"
	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/module/lifecycle"
)

// addRunFlags registers the flags shared by the commands planning a run.
func addRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Bool("blinded", false, "run builder relays and have consensus nodes propose blinded blocks")
	flags.String("genesis", "", "execution genesis document the run's genesis is derived from")
	flags.Int("execution-nodes", config.DefaultExecutionCount, "number of execution nodes")
	flags.Int("consensus-nodes", config.DefaultConsensusCount, "number of consensus nodes")
	flags.Int("relays", config.DefaultRelayCount, "number of builder relays in blinded mode")
	flags.Int("validators", config.DefaultValidators, "number of genesis validators")
	flags.Duration("genesis-delay", config.DefaultGenesisDelay, "time between planning and the genesis of the chain")
	bindFlag(flags, "execution-nodes", "topology.execution-nodes")
	bindFlag(flags, "consensus-nodes", "topology.consensus-nodes")
	bindFlag(flags, "relays", "topology.relays")
	bindFlag(flags, "validators", "genesis.validators")
	bindFlag(flags, "genesis-delay", "genesis.delay")
}

// runParams reads the start parameters from the flags registered by addRunFlags.
func runParams(cmd *cobra.Command) (lifecycle.Params, error) {
	blinded, err := cmd.Flags().GetBool("blinded")
	if err != nil {
		return lifecycle.Params{}, err
	}
	template, err := cmd.Flags().GetString("genesis")
	if err != nil {
		return lifecycle.Params{}, err
	}
	return lifecycle.Params{
		Mode:            localnet.ModeFromFlag(blinded),
		GenesisTemplate: template,
	}, nil
}

func printYAML(w io.Writer, value interface{}) error {
	out, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not encode output: %w", err)
	}
	_, err = w.Write(out)
	return err
}
