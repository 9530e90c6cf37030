package localnet

import "path/filepath"

// Canonical filenames/paths inside a run directory.
var (
	FilenameRunRecord  = "run.yml"
	FilenamePromTarget = "targets.nodes.json"

	// genesis information
	DirnameGenesis          = "genesis"
	PathExecutionGenesis    = filepath.Join(DirnameGenesis, "genesis.json")
	PathJWTSecret           = filepath.Join(DirnameGenesis, "jwt.hex")
	PathGenesisSpec         = filepath.Join(DirnameGenesis, "genesis-spec.yml")
	DirnameConsensusGenesis = filepath.Join(DirnameGenesis, "consensus")
	PathConsensusConfig     = filepath.Join(DirnameConsensusGenesis, "config.yaml")
	PathDeployBlock         = filepath.Join(DirnameConsensusGenesis, "deploy_block.txt")
	PathValidatorKeys       = filepath.Join(DirnameGenesis, "validators", "keys.yml")

	// per node state
	DirnameNodes = "nodes"
	DirnameLogs  = "logs"
	PathNodeLog  = filepath.Join(DirnameLogs, "%v.log") // %v will be replaced by NodeID
)
