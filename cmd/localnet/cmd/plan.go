package cmd

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/onflow/localnet/module/genesis"
	"github.com/onflow/localnet/module/topology"
)

var flagCheckPorts bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the topology a start would launch, without starting anything",
	Long: `Plans the topology of a run from the configuration and prints it as YAML: every node with its ports,
data directory and dependencies. No genesis is generated and no process is started.`,
	RunE: plan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	addRunFlags(planCmd)

	planCmd.Flags().BoolVar(&flagCheckPorts, "check-ports", false, "fail if a planned port is already in use")
}

func plan(cmd *cobra.Command, _ []string) error {
	params, err := runParams(cmd)
	if err != nil {
		return err
	}
	genesisParams, err := cfg.GenesisParams(params.GenesisTemplate, cfg.DataDir)
	if err != nil {
		return err
	}
	gen, err := genesis.NewBuilder(log).Spec(genesisParams)
	if err != nil {
		return err
	}

	counts := topology.Counts{
		Execution: cfg.Topology.ExecutionNodes,
		Consensus: cfg.Topology.ConsensusNodes,
		Relays:    cfg.Topology.Relays,
	}
	layout := topology.PortLayout{
		Base:       cfg.Topology.BasePort,
		RoleStride: cfg.Topology.RoleStride,
		NodeStride: cfg.Topology.NodeStride,
	}
	topo, err := topology.NewPlanner(cfg.Host, layout).Plan(uuid.New().String(), params.Mode, counts, *gen, cfg.DataDir)
	if err != nil {
		return err
	}
	if flagCheckPorts {
		if err := topology.CheckPorts(topo); err != nil {
			return err
		}
	}
	return printYAML(cmd.OutOrStdout(), topo)
}
