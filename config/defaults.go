package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultDataDir        = "./localnet-data"
	DefaultHost           = "127.0.0.1"
	DefaultNetworkID      = 1337
	DefaultValidators     = 4
	DefaultGenesisDelay   = 20 * time.Second
	DefaultMinDelay       = 5 * time.Second
	DefaultDepositGwei    = 32_000_000_000
	DefaultPrefunded      = 2
	DefaultInitialBalance = "1000000000000000000000000"
	DefaultExecutionCount = 1
	DefaultConsensusCount = 1
	DefaultRelayCount     = 1
	DefaultBasePort       = 30000
	DefaultRoleStride     = 1000
	DefaultNodeStride     = 10
	DefaultProbeInterval  = time.Second
	DefaultHealthTimeout  = 60 * time.Second
	DefaultMaxRetries     = 120
	DefaultRequestTimeout = 2 * time.Second
	DefaultStopGrace      = 10 * time.Second
)

// default launch templates, see RoleConfig
var (
	defaultExecutionInit = []string{
		"init",
		"--datadir", "{{.Node.DataDir}}",
		"{{.Genesis.ExecutionGenesisPath}}",
	}
	defaultExecutionArgs = []string{
		"--datadir", "{{.Node.DataDir}}",
		"--networkid", "{{.Genesis.NetworkID}}",
		"--port", "{{.Node.Ports.P2P}}",
		"--http",
		"--http.addr", "{{.Host}}",
		"--http.port", "{{.Node.Ports.RPC}}",
		"--http.api", "eth,net,web3,admin",
		"--authrpc.addr", "{{.Host}}",
		"--authrpc.port", "{{.Node.Ports.Engine}}",
		"--authrpc.jwtsecret", "{{.Genesis.JWTSecretPath}}",
		"--metrics",
		"--metrics.addr", "{{.Host}}",
		"--metrics.port", "{{.Node.Ports.Metrics}}",
		"--syncmode", "full",
		"--nat", "none",
		`{{if .Bootnodes}}--bootnodes={{join .Bootnodes ","}}{{end}}`,
	}
	defaultConsensusArgs = []string{
		"beacon_node",
		"--datadir", "{{.Node.DataDir}}",
		"--testnet-dir", "{{.Genesis.ConsensusDir}}",
		"--enable-private-discovery",
		"--disable-peer-scoring",
		"--enr-address", "{{.Host}}",
		"--enr-udp-port", "{{.Node.Ports.P2P}}",
		"--enr-tcp-port", "{{.Node.Ports.P2P}}",
		"--port", "{{.Node.Ports.P2P}}",
		"--http",
		"--http-address", "{{.Host}}",
		"--http-port", "{{.Node.Ports.RPC}}",
		"--metrics",
		"--metrics-port", "{{.Node.Ports.Metrics}}",
		"--execution-endpoint", "{{.Execution.EngineURL}}",
		"--execution-jwt", "{{.Genesis.JWTSecretPath}}",
		"{{if .Relay}}--builder={{.Relay.URL}}{{end}}",
		`{{if .Bootnodes}}--boot-nodes={{join .Bootnodes ","}}{{end}}`,
	}
	defaultRelayArgs = []string{
		"-addr", "{{.Host}}:{{.Node.Ports.RPC}}",
		"-genesis-fork-version", "{{.Genesis.ForkVersion}}",
		"-relay-check",
	}
)

// SetDefaults registers every configuration key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("datadir", DefaultDataDir)
	v.SetDefault("host", DefaultHost)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("genesis.network-id", DefaultNetworkID)
	v.SetDefault("genesis.validators", DefaultValidators)
	v.SetDefault("genesis.delay", DefaultGenesisDelay)
	v.SetDefault("genesis.min-delay", DefaultMinDelay)
	v.SetDefault("genesis.deposit-gwei", DefaultDepositGwei)
	v.SetDefault("genesis.prefunded-accounts", DefaultPrefunded)
	v.SetDefault("genesis.initial-balance", DefaultInitialBalance)
	v.SetDefault("genesis.seed", "")
	v.SetDefault("genesis.template", "")

	v.SetDefault("topology.execution-nodes", DefaultExecutionCount)
	v.SetDefault("topology.consensus-nodes", DefaultConsensusCount)
	v.SetDefault("topology.relays", DefaultRelayCount)
	v.SetDefault("topology.base-port", DefaultBasePort)
	v.SetDefault("topology.role-stride", DefaultRoleStride)
	v.SetDefault("topology.node-stride", DefaultNodeStride)

	v.SetDefault("health.interval", DefaultProbeInterval)
	v.SetDefault("health.timeout", DefaultHealthTimeout)
	v.SetDefault("health.max-retries", DefaultMaxRetries)
	v.SetDefault("health.request-timeout", DefaultRequestTimeout)

	v.SetDefault("stop.grace", DefaultStopGrace)

	v.SetDefault("roles.execution.binary", "geth")
	v.SetDefault("roles.execution.args", defaultExecutionArgs)
	v.SetDefault("roles.execution.init", defaultExecutionInit)
	v.SetDefault("roles.execution.env", []string{})
	v.SetDefault("roles.execution.probe.kind", "jsonrpc")
	v.SetDefault("roles.execution.probe.path", "")
	v.SetDefault("roles.execution.probe.expect-status", []int{})
	v.SetDefault("roles.execution.discovery", "enode")
	v.SetDefault("roles.execution.timeout", time.Duration(0))

	v.SetDefault("roles.consensus.binary", "lighthouse")
	v.SetDefault("roles.consensus.args", defaultConsensusArgs)
	v.SetDefault("roles.consensus.init", []string{})
	v.SetDefault("roles.consensus.env", []string{})
	v.SetDefault("roles.consensus.probe.kind", "http")
	v.SetDefault("roles.consensus.probe.path", "/eth/v1/node/health")
	v.SetDefault("roles.consensus.probe.expect-status", []int{200, 206})
	v.SetDefault("roles.consensus.discovery", "enr")
	v.SetDefault("roles.consensus.timeout", time.Duration(0))

	v.SetDefault("roles.relay.binary", "mev-boost")
	v.SetDefault("roles.relay.args", defaultRelayArgs)
	v.SetDefault("roles.relay.init", []string{})
	v.SetDefault("roles.relay.env", []string{})
	v.SetDefault("roles.relay.probe.kind", "http")
	v.SetDefault("roles.relay.probe.path", "/eth/v1/builder/status")
	v.SetDefault("roles.relay.probe.expect-status", []int{200})
	v.SetDefault("roles.relay.discovery", "none")
	v.SetDefault("roles.relay.timeout", time.Duration(0))

	v.SetDefault("admin.addr", "")
}
