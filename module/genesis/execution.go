package genesis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/params"

	"github.com/onflow/localnet/model/localnet"
	ioutils "github.com/onflow/localnet/utils/io"
)

// DefaultGasLimit is the block gas limit of the built-in genesis.
const DefaultGasLimit = 30_000_000

// DefaultChainConfig returns a chain config with every fork active at genesis and the merge completed,
// so the execution nodes are driven by the consensus nodes from the first block.
func DefaultChainConfig(networkID uint64) *params.ChainConfig {
	zero := uint64(0)
	return &params.ChainConfig{
		ChainID:                       new(big.Int).SetUint64(networkID),
		HomesteadBlock:                big.NewInt(0),
		EIP150Block:                   big.NewInt(0),
		EIP155Block:                   big.NewInt(0),
		EIP158Block:                   big.NewInt(0),
		ByzantiumBlock:                big.NewInt(0),
		ConstantinopleBlock:           big.NewInt(0),
		PetersburgBlock:               big.NewInt(0),
		IstanbulBlock:                 big.NewInt(0),
		MuirGlacierBlock:              big.NewInt(0),
		BerlinBlock:                   big.NewInt(0),
		LondonBlock:                   big.NewInt(0),
		ArrowGlacierBlock:             big.NewInt(0),
		GrayGlacierBlock:              big.NewInt(0),
		MergeNetsplitBlock:            big.NewInt(0),
		ShanghaiTime:                  &zero,
		TerminalTotalDifficulty:       big.NewInt(0),
		TerminalTotalDifficultyPassed: true,
	}
}

// DefaultGenesis returns the built-in execution genesis used when no template is given.
func DefaultGenesis(networkID uint64) *core.Genesis {
	return &core.Genesis{
		Config:     DefaultChainConfig(networkID),
		GasLimit:   DefaultGasLimit,
		Difficulty: big.NewInt(0),
		BaseFee:    big.NewInt(params.InitialBaseFee),
		Alloc:      core.GenesisAlloc{},
	}
}

// LoadTemplate reads a go-ethereum genesis document. Any failure is a bad input.
func LoadTemplate(path string) (*core.Genesis, error) {
	data, err := ioutils.ReadFile(path)
	if err != nil {
		return nil, localnet.NewInvalidParamsErrorf("genesis template: %v", err)
	}

	var gen core.Genesis
	if err := json.Unmarshal(data, &gen); err != nil {
		return nil, localnet.NewInvalidParamsErrorf("genesis template %s is not a valid genesis: %v", path, err)
	}
	return &gen, nil
}

// executionGenesis finalises a template for this run: chain id is the network id, the timestamp is the
// genesis time and every prefunded account holds the initial balance. Existing allocations are kept.
func executionGenesis(gen *core.Genesis, networkID uint64, genesisTime time.Time, accounts []common.Address, balance *big.Int) *core.Genesis {
	if gen.Config == nil {
		gen.Config = DefaultChainConfig(networkID)
	}
	gen.Config.ChainID = new(big.Int).SetUint64(networkID)
	gen.Timestamp = uint64(genesisTime.Unix())
	if gen.Difficulty == nil {
		gen.Difficulty = big.NewInt(0)
	}
	if gen.GasLimit == 0 {
		gen.GasLimit = DefaultGasLimit
	}
	if gen.Alloc == nil {
		gen.Alloc = core.GenesisAlloc{}
	}

	for _, addr := range accounts {
		account := gen.Alloc[addr]
		account.Balance = new(big.Int).Set(balance)
		gen.Alloc[addr] = account
	}
	return gen
}

func writeExecutionGenesis(path string, gen *core.Genesis) error {
	if err := ioutils.WriteJSON(path, gen); err != nil {
		return fmt.Errorf("could not write execution genesis: %w", err)
	}
	return nil
}
