package deployer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/env"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/keys"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/network"
)

// ReuseIDs carries pre-existing component ids supplied by the environment.
// An empty string means the component must be deployed.
type ReuseIDs struct {
	LazyToken        string
	TokenCreator     string
	GasStation       string
	DelegateRegistry string
	Prng             string
	Storage          string
	Main             string
	PoolManager      string
	TradeLotto       string
}

// TokenParams are the LAZY token creation inputs, loaded from the deploy
// parameter file.
type TokenParams struct {
	Name               string `yaml:"name"`
	Symbol             string `yaml:"symbol"`
	Decimals           int64  `yaml:"decimals"`
	MaxSupply          int64  `yaml:"maxSupply"`
	BurnPercent        int64  `yaml:"burnPercent"`
	CreationFeeTinybar int64  `yaml:"creationFeeTinybar"`
}

// Config is everything one orchestrator run needs. Populated from the
// environment and the deploy parameter file before any network I/O.
type Config struct {
	Environment network.Environment
	Operator    network.Operator

	Reuse ReuseIDs
	Token TokenParams

	ArtifactDir string
	StateFile   string

	Resume            bool
	VerifyOnly        bool
	IncludeTradeLotto bool
	NonInteractive    bool

	// TradeLottoSigner validates the optional trade-lotto signature slot.
	// Must be ECDSA; checked at load, before any deployment.
	TradeLottoSigner string
}

// LoadConfig reads the environment and the optional parameter file. Flag
// values are applied by the caller afterwards. Configuration errors are
// returned before any network I/O happens.
func LoadConfig(paramFile string) (*Config, error) {
	environment, err := network.ParseEnvironment(env.GetEnvString("ENVIRONMENT", ""))
	if err != nil {
		return nil, err
	}
	operator, err := network.ParseOperator(env.GetEnvString("ACCOUNT_ID", ""), env.GetEnvString("PRIVATE_KEY", ""))
	if err != nil {
		return nil, err
	}

	reuse := ReuseIDs{}
	for _, slot := range []struct {
		envName string
		target  *string
	}{
		{"LAZY_TOKEN_ID", &reuse.LazyToken},
		{"LAZY_SCT_CONTRACT_ID", &reuse.TokenCreator},
		{"LAZY_GAS_STATION_CONTRACT_ID", &reuse.GasStation},
		{"LAZY_DELEGATE_REGISTRY_CONTRACT_ID", &reuse.DelegateRegistry},
		{"PRNG_CONTRACT_ID", &reuse.Prng},
		{"LAZY_LOTTO_STORAGE", &reuse.Storage},
		{"LAZY_LOTTO_CONTRACT_ID", &reuse.Main},
		{"LAZY_LOTTO_POOL_MANAGER_ID", &reuse.PoolManager},
		{"LAZY_TRADE_LOTTO_CONTRACT_ID", &reuse.TradeLotto},
	} {
		v := env.GetEnvString(slot.envName, "")
		if v != "" && !env.IsValidEntityID(v) && !env.IsValidEvmAddress(v) {
			return nil, fmt.Errorf("%s: %q is neither a Hedera id nor an EVM address", slot.envName, v)
		}
		*slot.target = v
	}

	cfg := &Config{
		Environment: environment,
		Operator:    operator,
		Reuse:       reuse,
		Token: TokenParams{
			Name:               "LAZY",
			Symbol:             "LAZY",
			Decimals:           1,
			MaxSupply:          250_000_000_0,
			BurnPercent:        25,
			CreationFeeTinybar: 50_000_000_00,
		},
		ArtifactDir:      env.GetEnvString("ARTIFACT_DIR", "./artifacts"),
		StateFile:        env.GetEnvString("DEPLOY_STATE_FILE", "./deployment-state.json"),
		VerifyOnly:       env.GetEnvBool("VERIFY_ONLY", false),
		TradeLottoSigner: env.GetEnvString("SIGNING_KEY", ""),
	}

	if paramFile != "" {
		raw, err := os.ReadFile(paramFile)
		if err != nil {
			return nil, fmt.Errorf("reading deploy parameters %s: %w", paramFile, err)
		}
		if err := yaml.Unmarshal(raw, &cfg.Token); err != nil {
			return nil, fmt.Errorf("parsing deploy parameters %s: %w", paramFile, err)
		}
	}

	return cfg, nil
}

// Validate applies the cross-field rules that only hold after flags are
// merged in.
func (c *Config) Validate() error {
	if c.Resume && c.VerifyOnly {
		return fmt.Errorf("--resume and --verify-only are mutually exclusive")
	}
	if c.Token.BurnPercent < 0 || c.Token.BurnPercent > 100 {
		return fmt.Errorf("burn percent %d out of range [0,100]", c.Token.BurnPercent)
	}
	if c.IncludeTradeLotto {
		if env.IsEmpty(c.TradeLottoSigner) {
			return fmt.Errorf("SIGNING_KEY required with --include-trade-lotto")
		}
		key, err := network.ParsePrivateKey(c.TradeLottoSigner)
		if err != nil {
			return fmt.Errorf("SIGNING_KEY: %w", err)
		}
		if err := keys.RequireECDSA(key); err != nil {
			return fmt.Errorf("SIGNING_KEY: %w", err)
		}
	}
	return nil
}
