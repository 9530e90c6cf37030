package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/onflow/localnet/model/localnet"
)

// EnvPrefix is the prefix of environment variables overriding configuration keys, e.g.
// LOCALNET_GENESIS_VALIDATORS overrides genesis.validators.
const EnvPrefix = "LOCALNET"

// Config is the complete orchestrator configuration.
type Config struct {
	DataDir  string         `mapstructure:"datadir" validate:"required"`
	Host     string         `mapstructure:"host" validate:"required,ip"`
	Log      LogConfig      `mapstructure:"log"`
	Genesis  GenesisConfig  `mapstructure:"genesis"`
	Topology TopologyConfig `mapstructure:"topology"`
	Health   HealthConfig   `mapstructure:"health"`
	Stop     StopConfig     `mapstructure:"stop"`
	Roles    RolesConfig    `mapstructure:"roles"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

type GenesisConfig struct {
	NetworkID         uint64        `mapstructure:"network-id" validate:"gt=0"`
	Validators        int           `mapstructure:"validators" validate:"gt=0"`
	Delay             time.Duration `mapstructure:"delay"`
	MinDelay          time.Duration `mapstructure:"min-delay" validate:"gte=0"`
	DepositGwei       uint64        `mapstructure:"deposit-gwei" validate:"gt=0"`
	PrefundedAccounts int           `mapstructure:"prefunded-accounts" validate:"gte=0"`
	InitialBalance    string        `mapstructure:"initial-balance" validate:"numeric"`
	// Seed is a hex master seed. Empty derives the seed from the network id.
	Seed string `mapstructure:"seed" validate:"omitempty,hexadecimal"`
	// Template is an execution genesis document to start from. Empty uses the built-in dev genesis.
	Template string `mapstructure:"template"`
}

type TopologyConfig struct {
	ExecutionNodes int `mapstructure:"execution-nodes" validate:"gte=1"`
	ConsensusNodes int `mapstructure:"consensus-nodes" validate:"gte=1"`
	// Relays is the number of builder relays in blinded mode. Ignored in standard mode.
	Relays     int `mapstructure:"relays" validate:"gte=1"`
	BasePort   int `mapstructure:"base-port" validate:"gte=1024,lte=65535"`
	RoleStride int `mapstructure:"role-stride" validate:"gt=0"`
	NodeStride int `mapstructure:"node-stride" validate:"gte=4"`
}

type HealthConfig struct {
	Interval       time.Duration `mapstructure:"interval" validate:"gt=0"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries     uint64        `mapstructure:"max-retries" validate:"gt=0"`
	RequestTimeout time.Duration `mapstructure:"request-timeout" validate:"gt=0"`
}

type StopConfig struct {
	Grace time.Duration `mapstructure:"grace" validate:"gte=0"`
}

type AdminConfig struct {
	// Addr is the listen address of the status server in foreground mode. Empty disables it.
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

type RolesConfig struct {
	Execution RoleConfig `mapstructure:"execution"`
	Consensus RoleConfig `mapstructure:"consensus"`
	Relay     RoleConfig `mapstructure:"relay"`
}

// RoleConfig describes how nodes of one role are launched and probed. Args, Init and Env entries are
// text/template strings rendered per node; entries rendering to an empty string are dropped.
type RoleConfig struct {
	Binary string   `mapstructure:"binary" validate:"required"`
	Args   []string `mapstructure:"args"`
	Init   []string `mapstructure:"init"`
	Env    []string `mapstructure:"env"`
	Probe  Probe    `mapstructure:"probe"`
	// Discovery selects how the node's peer identity is looked up once it is healthy.
	Discovery string `mapstructure:"discovery" validate:"oneof=enode enr none"`
	// Timeout overrides health.timeout for this role when non-zero.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type Probe struct {
	Kind         string `mapstructure:"kind" validate:"oneof=jsonrpc http tcp"`
	Path         string `mapstructure:"path"`
	ExpectStatus []int  `mapstructure:"expect-status"`
}

// ForRole returns the role configuration for the given role.
func (r RolesConfig) ForRole(role localnet.Role) RoleConfig {
	switch role {
	case localnet.RoleExecution:
		return r.Execution
	case localnet.RoleConsensus:
		return r.Consensus
	default:
		return r.Relay
	}
}

// HealthTimeout returns the health timeout of the given role.
func (c Config) HealthTimeout(role localnet.Role) time.Duration {
	if t := c.Roles.ForRole(role).Timeout; t > 0 {
		return t
	}
	return c.Health.Timeout
}

var validate = validator.New()

// Validate checks the configuration. Violations are reported as localnet.ErrInvalidParams.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", localnet.ErrInvalidParams, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed '%s' (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return localnet.NewInvalidParamsErrorf("%s", strings.Join(msgs, "; "))
}

// NewViper returns a viper instance carrying every default and reading LOCALNET_ environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file and decodes the configuration from v.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: could not read config file %s: %v", localnet.ErrInvalidParams, file, err)
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return Config{}, fmt.Errorf("%w: could not decode config: %v", localnet.ErrInvalidParams, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the default configuration, with environment overrides applied.
func Default() (Config, error) {
	return Load(NewViper(), "")
}
