// Package genesis derives the genesis of a local network and the key material of its validators.
package genesis

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/module/util"
	ioutils "github.com/onflow/localnet/utils/io"
)

// keyFile is the content of the validator key file.
type keyFile struct {
	NetworkID  uint64         `yaml:"network_id"`
	Validators []ValidatorKey `yaml:"validators"`
	Accounts   []AccountKey   `yaml:"accounts"`
}

// Builder is the GenesisBuilder. Output is deterministic for equal params, except for the wall-clock
// anchor the genesis time is computed from.
type Builder struct {
	log zerolog.Logger
	now func() time.Time
}

func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{
		log: log.With().Str("component", "genesis").Logger(),
		now: time.Now,
	}
}

// WithClock replaces the wall clock the genesis time is anchored to.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build generates the genesis and writes every artifact below params.OutputDir. Expected errors:
//   - localnet.ErrInvalidParams if the params or the genesis template are unusable
//   - localnet.ErrGenerationFailed if key material or an artifact could not be produced
//
// Failed generation is not retried.
func (b *Builder) Build(params localnet.GenesisParams) (*localnet.GenesisSpec, error) {
	spec, err := b.Spec(params)
	if err != nil {
		return nil, err
	}

	gen := DefaultGenesis(params.NetworkID)
	if params.TemplatePath != "" {
		gen, err = LoadTemplate(params.TemplatePath)
		if err != nil {
			return nil, err
		}
	}

	seed := params.Seed
	if len(seed) == 0 {
		seed = DefaultSeed(params.NetworkID)
	}

	log := b.log.With().
		Uint64("network_id", params.NetworkID).
		Int("validators", params.ValidatorCount).
		Time("genesis_time", spec.Time).
		Logger()
	log.Info().Msg("generating genesis")

	keys, err := b.generateKeys(log, seed, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", localnet.ErrGenerationFailed, err)
	}
	for _, account := range keys.Accounts {
		spec.Accounts = append(spec.Accounts, account.Address)
	}

	balance := params.InitialBalance
	if balance == nil {
		balance = new(big.Int)
	}
	gen = executionGenesis(gen, params.NetworkID, spec.Time, accountAddresses(keys.Accounts), balance)

	err = writeArtifacts(spec, gen, keys, seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", localnet.ErrGenerationFailed, err)
	}

	log.Info().Str("dir", spec.Dir).Msg("genesis generated")
	return spec, nil
}

// Spec validates params and returns the genesis they describe, anchored at the current time, without
// generating key material or writing artifacts. Accounts is left empty.
func (b *Builder) Spec(params localnet.GenesisParams) (*localnet.GenesisSpec, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	anchor := b.now()
	spec := &localnet.GenesisSpec{
		NetworkID:            params.NetworkID,
		Time:                 Time(anchor, params.Delay),
		AnchoredAt:           anchor.Round(0),
		Delay:                params.Delay,
		ValidatorCount:       params.ValidatorCount,
		DepositAmountGwei:    params.DepositAmountGwei,
		ForkVersion:          ForkVersion(forkGenesis, params.NetworkID),
		Dir:                  filepath.Join(params.OutputDir, localnet.DirnameGenesis),
		ExecutionGenesisPath: filepath.Join(params.OutputDir, localnet.PathExecutionGenesis),
		ConsensusDir:         filepath.Join(params.OutputDir, localnet.DirnameConsensusGenesis),
		ConsensusConfigPath:  filepath.Join(params.OutputDir, localnet.PathConsensusConfig),
		ValidatorKeysPath:    filepath.Join(params.OutputDir, localnet.PathValidatorKeys),
		JWTSecretPath:        filepath.Join(params.OutputDir, localnet.PathJWTSecret),
	}
	if params.InitialBalance != nil {
		spec.InitialBalance = params.InitialBalance.String()
	}
	return spec, nil
}

func (b *Builder) generateKeys(log zerolog.Logger, seed []byte, params localnet.GenesisParams) (*keyFile, error) {
	accountSeeds, err := DeriveSeeds(seed, labelAccount, params.PrefundedAccounts)
	if err != nil {
		return nil, err
	}
	accounts, err := GenerateAccounts(accountSeeds)
	if err != nil {
		return nil, err
	}

	withdrawalSeeds, err := DeriveSeeds(seed, labelWithdrawal, params.ValidatorCount)
	if err != nil {
		return nil, err
	}
	withdrawalKeys, err := GenerateAccounts(withdrawalSeeds)
	if err != nil {
		return nil, err
	}

	validatorSeeds, err := DeriveSeeds(seed, labelValidator, params.ValidatorCount)
	if err != nil {
		return nil, err
	}
	withdrawal := Addresses(withdrawalKeys)

	progress := util.LogProgress(log, "validator keys", params.ValidatorCount)
	validators := make([]ValidatorKey, 0, params.ValidatorCount)
	for i := range validatorSeeds {
		key, err := GenerateValidatorKeys(1, validatorSeeds[i:i+1], withdrawal[i:i+1])
		if err != nil {
			return nil, err
		}
		key[0].Index = i
		validators = append(validators, key[0])
		progress(1)
	}

	file := &keyFile{
		NetworkID:  params.NetworkID,
		Validators: validators,
	}
	for i, addr := range Addresses(accounts) {
		file.Accounts = append(file.Accounts, AccountKey{
			Address:    addr.Hex(),
			PrivateKey: encodeHex(accountSeeds[i]),
		})
	}
	return file, nil
}

func writeArtifacts(spec *localnet.GenesisSpec, gen *core.Genesis, keys *keyFile, seed []byte) error {
	if err := writeExecutionGenesis(spec.ExecutionGenesisPath, gen); err != nil {
		return err
	}

	runDir := filepath.Dir(spec.Dir)
	config := consensusConfig(spec.NetworkID, spec.Time, spec.ValidatorCount, spec.DepositAmountGwei)
	if err := writeConsensusConfig(spec.ConsensusConfigPath, filepath.Join(runDir, localnet.PathDeployBlock), config); err != nil {
		return err
	}

	bz, err := yaml.Marshal(keys)
	if err != nil {
		return fmt.Errorf("could not marshal validator keys: %w", err)
	}
	if err := ioutils.WriteFile(spec.ValidatorKeysPath, bz, 0600); err != nil {
		return fmt.Errorf("could not write validator keys: %w", err)
	}

	jwt, err := DeriveSeeds(seed, labelJWT, 1)
	if err != nil {
		return err
	}
	if err := ioutils.WriteFile(spec.JWTSecretPath, []byte(hex.EncodeToString(jwt[0])), 0600); err != nil {
		return fmt.Errorf("could not write jwt secret: %w", err)
	}

	if err := ioutils.WriteYAML(filepath.Join(runDir, localnet.PathGenesisSpec), spec); err != nil {
		return fmt.Errorf("could not write genesis spec: %w", err)
	}
	return nil
}

// Time returns the genesis time for the given anchor: anchor plus delay, rounded up to the next whole
// second so it is never earlier than anchor plus delay.
func Time(anchor time.Time, delay time.Duration) time.Time {
	t := anchor.Round(0).Add(delay)
	truncated := t.Truncate(time.Second)
	if truncated.Before(t) {
		truncated = truncated.Add(time.Second)
	}
	return truncated.UTC()
}

func validateParams(params localnet.GenesisParams) error {
	if params.ValidatorCount <= 0 {
		return localnet.NewInvalidParamsErrorf("validator count must be positive, got %d", params.ValidatorCount)
	}
	if params.NetworkID == 0 {
		return localnet.NewInvalidParamsErrorf("network id must be non-zero")
	}
	if params.Delay <= 0 {
		return localnet.NewInvalidParamsErrorf("genesis delay must be positive, got %s", params.Delay)
	}
	if params.Delay < params.MinDelay {
		return localnet.NewInvalidParamsErrorf("genesis delay %s is below the minimum safe propagation time %s", params.Delay, params.MinDelay)
	}
	if params.DepositAmountGwei == 0 {
		return localnet.NewInvalidParamsErrorf("deposit amount must be positive")
	}
	if params.PrefundedAccounts < 0 {
		return localnet.NewInvalidParamsErrorf("prefunded account count must not be negative, got %d", params.PrefundedAccounts)
	}
	if params.PrefundedAccounts > 0 && (params.InitialBalance == nil || params.InitialBalance.Sign() <= 0) {
		return localnet.NewInvalidParamsErrorf("prefunded accounts need a positive initial balance")
	}
	if params.OutputDir == "" {
		return localnet.NewInvalidParamsErrorf("output dir is required")
	}
	return nil
}

func accountAddresses(accounts []AccountKey) []common.Address {
	addrs := make([]common.Address, len(accounts))
	for i, account := range accounts {
		addrs[i] = common.HexToAddress(account.Address)
	}
	return addrs
}
