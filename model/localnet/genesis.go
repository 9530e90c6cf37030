package localnet

import (
	"math/big"
	"time"
)

// GenesisParams are the inputs of genesis generation.
type GenesisParams struct {
	NetworkID      uint64
	ValidatorCount int
	// Delay is added to the wall-clock anchor to obtain the genesis time. It gives every node time
	// to load the genesis before the chain starts.
	Delay time.Duration
	// MinDelay is the smallest delay considered safe for genesis propagation.
	MinDelay          time.Duration
	DepositAmountGwei uint64
	PrefundedAccounts int
	InitialBalance    *big.Int
	// Seed is the master seed all key material is derived from.
	Seed []byte
	// TemplatePath optionally points to an execution genesis document used as the starting point.
	TemplatePath string
	// OutputDir is the run-scoped directory the genesis artifacts are written to.
	OutputDir string
}

// GenesisSpec describes a generated genesis. It is immutable once produced and consumed by every node
// at startup.
type GenesisSpec struct {
	NetworkID         uint64        `yaml:"network_id" json:"network_id"`
	Time              time.Time     `yaml:"time" json:"time"`
	AnchoredAt        time.Time     `yaml:"anchored_at" json:"anchored_at"`
	Delay             time.Duration `yaml:"delay" json:"delay"`
	ValidatorCount    int           `yaml:"validator_count" json:"validator_count"`
	DepositAmountGwei uint64        `yaml:"deposit_amount_gwei" json:"deposit_amount_gwei"`
	InitialBalance    string        `yaml:"initial_balance" json:"initial_balance"`
	Accounts          []string      `yaml:"accounts" json:"accounts"`
	// ForkVersion is the consensus genesis fork version, 0x-prefixed hex.
	ForkVersion string `yaml:"fork_version" json:"fork_version"`

	Dir                  string `yaml:"dir" json:"dir"`
	ExecutionGenesisPath string `yaml:"execution_genesis" json:"execution_genesis"`
	ConsensusDir         string `yaml:"consensus_dir" json:"consensus_dir"`
	ConsensusConfigPath  string `yaml:"consensus_config" json:"consensus_config"`
	ValidatorKeysPath    string `yaml:"validator_keys" json:"validator_keys"`
	JWTSecretPath        string `yaml:"jwt_secret" json:"jwt_secret"`
}

// Timestamp returns the genesis time in unix seconds.
func (g GenesisSpec) Timestamp() uint64 {
	return uint64(g.Time.Unix())
}

// Path is the execution genesis artifact, the file most node binaries are pointed at.
func (g GenesisSpec) Path() string {
	return g.ExecutionGenesisPath
}
