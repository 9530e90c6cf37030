package config

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/onflow/localnet/model/localnet"
)

// GenesisParams converts the genesis configuration into builder inputs. templatePath overrides
// genesis.template when non-empty; artifacts are written below outputDir.
func (c Config) GenesisParams(templatePath string, outputDir string) (localnet.GenesisParams, error) {
	balance, ok := math.ParseBig256(c.Genesis.InitialBalance)
	if !ok || balance.Sign() < 0 {
		return localnet.GenesisParams{}, localnet.NewInvalidParamsErrorf("invalid initial balance %q", c.Genesis.InitialBalance)
	}
	if templatePath == "" {
		templatePath = c.Genesis.Template
	}

	return localnet.GenesisParams{
		NetworkID:         c.Genesis.NetworkID,
		ValidatorCount:    c.Genesis.Validators,
		Delay:             c.Genesis.Delay,
		MinDelay:          c.Genesis.MinDelay,
		DepositAmountGwei: c.Genesis.DepositGwei,
		PrefundedAccounts: c.Genesis.PrefundedAccounts,
		InitialBalance:    balance,
		Seed:              common.FromHex(c.Genesis.Seed),
		TemplatePath:      templatePath,
		OutputDir:         outputDir,
	}, nil
}
