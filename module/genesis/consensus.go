package genesis

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"gopkg.in/yaml.v2"

	ioutils "github.com/onflow/localnet/utils/io"
)

const (
	// DepositContractAddress is the predeployed deposit contract of local networks.
	DepositContractAddress = "0x4242424242424242424242424242424242424242"
	SecondsPerSlot         = 3
	// farFutureEpoch disables a fork.
	farFutureEpoch = uint64(math.MaxUint64)
)

// fork version prefixes, the lower three bytes carry the network id
const (
	forkGenesis   byte = 0x10
	forkAltair    byte = 0x20
	forkBellatrix byte = 0x30
	forkCapella   byte = 0x40
	forkDeneb     byte = 0x50
)

// ForkVersion returns the 0x-prefixed fork version of the given fork prefix on the given network.
func ForkVersion(prefix byte, networkID uint64) string {
	version := make([]byte, 4)
	binary.BigEndian.PutUint32(version, uint32(networkID&0xffffff))
	version[0] = prefix
	return encodeHex(version)
}

// consensusConfig is the chain config read by consensus nodes from their testnet directory. A MapSlice
// keeps the keys in the order consensus clients document them.
func consensusConfig(networkID uint64, genesisTime time.Time, validators int, depositGwei uint64) yaml.MapSlice {
	return yaml.MapSlice{
		{Key: "CONFIG_NAME", Value: "localnet"},
		{Key: "PRESET_BASE", Value: "mainnet"},
		{Key: "TERMINAL_TOTAL_DIFFICULTY", Value: "0"},
		{Key: "TERMINAL_BLOCK_HASH", Value: "0x0000000000000000000000000000000000000000000000000000000000000000"},
		{Key: "TERMINAL_BLOCK_HASH_ACTIVATION_EPOCH", Value: farFutureEpoch},
		{Key: "MIN_GENESIS_ACTIVE_VALIDATOR_COUNT", Value: validators},
		{Key: "MIN_GENESIS_TIME", Value: genesisTime.Unix()},
		{Key: "GENESIS_FORK_VERSION", Value: ForkVersion(forkGenesis, networkID)},
		// the genesis time is final, consensus nodes must not add a delay of their own
		{Key: "GENESIS_DELAY", Value: 0},
		{Key: "ALTAIR_FORK_VERSION", Value: ForkVersion(forkAltair, networkID)},
		{Key: "ALTAIR_FORK_EPOCH", Value: 0},
		{Key: "BELLATRIX_FORK_VERSION", Value: ForkVersion(forkBellatrix, networkID)},
		{Key: "BELLATRIX_FORK_EPOCH", Value: 0},
		{Key: "CAPELLA_FORK_VERSION", Value: ForkVersion(forkCapella, networkID)},
		{Key: "CAPELLA_FORK_EPOCH", Value: 0},
		{Key: "DENEB_FORK_VERSION", Value: ForkVersion(forkDeneb, networkID)},
		{Key: "DENEB_FORK_EPOCH", Value: farFutureEpoch},
		{Key: "SECONDS_PER_SLOT", Value: SecondsPerSlot},
		{Key: "SECONDS_PER_ETH1_BLOCK", Value: SecondsPerSlot},
		{Key: "MIN_VALIDATOR_WITHDRAWABILITY_DELAY", Value: 256},
		{Key: "SHARD_COMMITTEE_PERIOD", Value: 256},
		{Key: "ETH1_FOLLOW_DISTANCE", Value: 12},
		{Key: "INACTIVITY_SCORE_BIAS", Value: 4},
		{Key: "INACTIVITY_SCORE_RECOVERY_RATE", Value: 16},
		{Key: "EJECTION_BALANCE", Value: depositGwei / 2},
		{Key: "MAX_EFFECTIVE_BALANCE", Value: depositGwei},
		{Key: "MIN_PER_EPOCH_CHURN_LIMIT", Value: 4},
		{Key: "CHURN_LIMIT_QUOTIENT", Value: 65536},
		{Key: "PROPOSER_SCORE_BOOST", Value: 40},
		{Key: "DEPOSIT_CHAIN_ID", Value: networkID},
		{Key: "DEPOSIT_NETWORK_ID", Value: networkID},
		{Key: "DEPOSIT_CONTRACT_ADDRESS", Value: DepositContractAddress},
	}
}

func writeConsensusConfig(configPath, deployBlockPath string, config yaml.MapSlice) error {
	if err := ioutils.WriteYAML(configPath, config); err != nil {
		return fmt.Errorf("could not write consensus config: %w", err)
	}
	// the deposit contract is part of the genesis state
	if err := ioutils.WriteFile(deployBlockPath, []byte("0\n"), 0644); err != nil {
		return fmt.Errorf("could not write deploy block: %w", err)
	}
	return nil
}
