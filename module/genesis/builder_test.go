package genesis

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/utils/unittest"
)

func testParams(dir string) localnet.GenesisParams {
	return localnet.GenesisParams{
		NetworkID:         1337,
		ValidatorCount:    4,
		Delay:             10 * time.Second,
		MinDelay:          5 * time.Second,
		DepositAmountGwei: 32_000_000_000,
		PrefundedAccounts: 2,
		InitialBalance:    big.NewInt(1_000_000),
		OutputDir:         dir,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestBuild(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		anchor := time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC)
		spec, err := NewBuilder(zerolog.Nop()).WithClock(fixedClock(anchor)).Build(testParams(dir))
		require.NoError(t, err)

		assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 16, 0, time.UTC), spec.Time)
		assert.Equal(t, anchor, spec.AnchoredAt)
		assert.Len(t, spec.Accounts, 2)
		assert.Equal(t, "0x10000539", spec.ForkVersion)

		for _, path := range []string{
			spec.ExecutionGenesisPath,
			spec.ConsensusConfigPath,
			spec.ValidatorKeysPath,
			spec.JWTSecretPath,
			filepath.Join(dir, localnet.PathDeployBlock),
			filepath.Join(dir, localnet.PathGenesisSpec),
		} {
			assert.FileExists(t, path)
		}

		data, err := os.ReadFile(spec.ExecutionGenesisPath)
		require.NoError(t, err)
		var gen core.Genesis
		require.NoError(t, json.Unmarshal(data, &gen))
		assert.Equal(t, uint64(1337), gen.Config.ChainID.Uint64())
		assert.Equal(t, spec.Timestamp(), gen.Timestamp)
		for _, account := range spec.Accounts {
			alloc, ok := gen.Alloc[common.HexToAddress(account)]
			require.True(t, ok, "account %s not funded", account)
			assert.Equal(t, int64(1_000_000), alloc.Balance.Int64())
		}

		jwt, err := os.ReadFile(spec.JWTSecretPath)
		require.NoError(t, err)
		assert.Len(t, jwt, 64)

		var config map[string]interface{}
		data, err = os.ReadFile(spec.ConsensusConfigPath)
		require.NoError(t, err)
		require.NoError(t, yaml.Unmarshal(data, &config))
		assert.EqualValues(t, spec.Timestamp(), config["MIN_GENESIS_TIME"])
		assert.EqualValues(t, 4, config["MIN_GENESIS_ACTIVE_VALIDATOR_COUNT"])
		assert.EqualValues(t, 1337, config["DEPOSIT_CHAIN_ID"])
	})
}

func TestSpec(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		anchor := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		spec, err := NewBuilder(zerolog.Nop()).WithClock(fixedClock(anchor)).Spec(testParams(dir))
		require.NoError(t, err)

		assert.Equal(t, anchor.Add(10*time.Second), spec.Time)
		assert.Equal(t, filepath.Join(dir, localnet.PathExecutionGenesis), spec.ExecutionGenesisPath)
		assert.Equal(t, "1000000", spec.InitialBalance)
		assert.Empty(t, spec.Accounts)
		assert.NoDirExists(t, spec.Dir)

		invalid := testParams(dir)
		invalid.Delay = time.Second
		_, err = NewBuilder(zerolog.Nop()).Spec(invalid)
		require.ErrorIs(t, err, localnet.ErrInvalidParams)
	})
}

func TestBuild_Deterministic(t *testing.T) {
	anchor := time.Now()
	read := func(dir string) keyFile {
		spec, err := NewBuilder(zerolog.Nop()).WithClock(fixedClock(anchor)).Build(testParams(dir))
		require.NoError(t, err)

		var keys keyFile
		data, err := os.ReadFile(spec.ValidatorKeysPath)
		require.NoError(t, err)
		require.NoError(t, yaml.Unmarshal(data, &keys))
		return keys
	}

	first := read(unittest.TempDir(t))
	second := read(unittest.TempDir(t))
	assert.Equal(t, first, second)
	require.Len(t, first.Validators, 4)

	pubkeys := make(map[string]struct{})
	for i, v := range first.Validators {
		assert.Equal(t, i, v.Index)
		assert.Len(t, v.Pubkey, 2+2*48)
		assert.Equal(t, "0x01", v.WithdrawalCredentials[:4])
		pubkeys[v.Pubkey] = struct{}{}
	}
	assert.Len(t, pubkeys, 4, "validator keys must be distinct")

	other := testParams(unittest.TempDir(t))
	other.Seed = []byte("another master seed")
	spec, err := NewBuilder(zerolog.Nop()).Build(other)
	require.NoError(t, err)
	var keys keyFile
	require.NoError(t, yaml.Unmarshal(mustRead(t, spec.ValidatorKeysPath), &keys))
	assert.NotEqual(t, first.Validators[0].Pubkey, keys.Validators[0].Pubkey)
}

func TestBuild_InvalidParams(t *testing.T) {
	cases := map[string]func(*localnet.GenesisParams){
		"no validators":        func(p *localnet.GenesisParams) { p.ValidatorCount = 0 },
		"zero network id":      func(p *localnet.GenesisParams) { p.NetworkID = 0 },
		"zero delay":           func(p *localnet.GenesisParams) { p.Delay = 0 },
		"delay below minimum":  func(p *localnet.GenesisParams) { p.Delay = time.Second },
		"no deposit":           func(p *localnet.GenesisParams) { p.DepositAmountGwei = 0 },
		"unfunded accounts":    func(p *localnet.GenesisParams) { p.InitialBalance = nil },
		"no output dir":        func(p *localnet.GenesisParams) { p.OutputDir = "" },
		"missing template":     func(p *localnet.GenesisParams) { p.TemplatePath = "/does/not/exist.json" },
		"negative prefunded":   func(p *localnet.GenesisParams) { p.PrefundedAccounts = -1 },
		"zero initial balance": func(p *localnet.GenesisParams) { p.InitialBalance = big.NewInt(0) },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			dir := unittest.TempDir(t)
			p := testParams(dir)
			mutate(&p)

			_, err := NewBuilder(zerolog.Nop()).Build(p)
			require.ErrorIs(t, err, localnet.ErrInvalidParams)

			// nothing is written for bad input
			_, statErr := os.Stat(filepath.Join(dir, localnet.DirnameGenesis))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestBuild_Template(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		kept := common.HexToAddress("0x00000000000000000000000000000000000000aa")
		template := DefaultGenesis(1)
		template.GasLimit = 12_345_678
		template.Alloc[kept] = core.GenesisAccount{Balance: big.NewInt(7), Code: []byte{0x60, 0x00}}

		path := filepath.Join(dir, "template.json")
		data, err := json.Marshal(template)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0644))

		p := testParams(filepath.Join(dir, "run"))
		p.TemplatePath = path
		spec, err := NewBuilder(zerolog.Nop()).Build(p)
		require.NoError(t, err)

		var gen core.Genesis
		require.NoError(t, json.Unmarshal(mustRead(t, spec.Path()), &gen))
		assert.Equal(t, uint64(12_345_678), gen.GasLimit)
		assert.Equal(t, uint64(1337), gen.Config.ChainID.Uint64())
		assert.Equal(t, int64(7), gen.Alloc[kept].Balance.Int64())
		assert.Equal(t, []byte{0x60, 0x00}, gen.Alloc[kept].Code)
		assert.Len(t, gen.Alloc, 3)
	})

	t.Run("not a genesis", func(t *testing.T) {
		dir := unittest.TempDir(t)
		path := filepath.Join(dir, "template.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		p := testParams(dir)
		p.TemplatePath = path
		_, err := NewBuilder(zerolog.Nop()).Build(p)
		require.ErrorIs(t, err, localnet.ErrInvalidParams)
	})
}

func TestBuild_GenerationFailed(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		// a file where the genesis directory should be
		require.NoError(t, os.WriteFile(filepath.Join(dir, localnet.DirnameGenesis), nil, 0644))

		_, err := NewBuilder(zerolog.Nop()).Build(testParams(dir))
		require.ErrorIs(t, err, localnet.ErrGenerationFailed)
	})
}

// The genesis time is never earlier than anchor plus delay and always a whole second.
func TestTime(t *testing.T) {
	base := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	for _, offset := range []time.Duration{0, 1, 999 * time.Millisecond, time.Second, 1500 * time.Millisecond} {
		for _, delay := range []time.Duration{time.Second, 5 * time.Second, 5*time.Second + 1} {
			anchor := base.Add(offset)
			genesis := Time(anchor, delay)
			assert.False(t, genesis.Before(anchor.Add(delay)), "anchor %s delay %s", anchor, delay)
			assert.Zero(t, genesis.Nanosecond())
			assert.Less(t, genesis.Sub(anchor.Add(delay)), time.Second)
		}
	}
}

func TestGenerateValidatorKeys_SeedMismatch(t *testing.T) {
	seeds, err := DeriveSeeds(DefaultSeed(1), labelValidator, 2)
	require.NoError(t, err)

	_, err = GenerateValidatorKeys(3, seeds, make([]common.Address, 3))
	require.Error(t, err)
	_, err = GenerateValidatorKeys(2, seeds, make([]common.Address, 1))
	require.Error(t, err)
}

func TestWithdrawalCredentials(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	creds := WithdrawalCredentials(addr)
	require.Len(t, creds, 32)
	assert.Equal(t, byte(0x01), creds[0])
	assert.Equal(t, make([]byte, 11), creds[1:12])
	assert.Equal(t, addr.Bytes(), creds[12:])
}

func mustRead(t *testing.T, path string) []byte {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
