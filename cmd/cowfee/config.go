package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cowdao-grants/cowfee/config"
	"github.com/cowdao-grants/cowfee/log"
	"github.com/cowdao-grants/cowfee/sweep"
	"github.com/cowdao-grants/cowfee/web3"
	"github.com/cowdao-grants/cowfee/web3/txmanager"
	"github.com/ethereum/go-ethereum/common"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultLogLevel       = "info"
	defaultLogOutput      = "stdout"
	defaultGasBumpTimeout = 5 * time.Minute
	defaultMaxGasWait     = time.Hour
	privateKeyEnv         = "PRIVATE_KEY"
)

// Version is the build version, set at build time with -ldflags
var Version = "dev"

// Config holds the application configuration
type Config struct {
	Network              string        `mapstructure:"network"`
	RPCURL               string        `mapstructure:"rpc-url"`
	Chainlist            int           `mapstructure:"chainlist"`
	MulticallSize        int           `mapstructure:"multicall-size"`
	Module               string        `mapstructure:"module"`
	MaxOrders            int           `mapstructure:"max-orders"`
	BuyAmountSlippageBps uint64        `mapstructure:"buy-amount-slippage-bps"`
	TokenListStrategy    string        `mapstructure:"token-list-strategy"`
	LookbackRange        uint64        `mapstructure:"lookback-range"`
	ConfirmDrip          bool          `mapstructure:"confirm-drip"`
	MaxFeePerGas         float64       `mapstructure:"max-fee-per-gas"`
	MaxPriorityFeePerGas float64       `mapstructure:"max-priority-fee-per-gas"`
	MaxGasIncreasePct    int64         `mapstructure:"max-gas-increase-pct"`
	GasBumpTimeout       time.Duration `mapstructure:"gas-bump-timeout"`
	MaxGasWait           time.Duration `mapstructure:"max-gas-wait"`
	Log                  LogConfig     `mapstructure:"log"`
	PrivKey              string        `mapstructure:"privkey"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig(args []string) (*Config, error) {
	v := viper.New()
	fs := flag.NewFlagSet("cowfee", flag.ContinueOnError)

	fs.StringP("network", "n", config.DefaultNetwork, fmt.Sprintf("network to use %v", config.AvailableNetworks()))
	fs.String("rpc-url", "", "web3 rpc endpoint (defaults to the network public endpoint)")
	fs.Int("chainlist", 0, "number of extra healthy endpoints to take from chainlist.org")
	fs.Int("multicall-size", web3.DefaultMulticallSize, "calls per multicall request")
	fs.StringP("module", "m", "", "fee module address (required)")
	fs.Int("max-orders", sweep.DefaultMaxOrders, "maximum orders per drip")
	fs.Uint64("buy-amount-slippage-bps", sweep.DefaultSlippageBps, "slippage applied to quoted buy amounts, in basis points")
	fs.String("token-list-strategy", string(sweep.DefaultStrategy), fmt.Sprintf("token discovery strategy [%s %s]", sweep.StrategyExplorer, sweep.StrategyChain))
	fs.Uint64("lookback-range", sweep.DefaultLookbackRange, "blocks of settlement trades scanned by the chain strategy")
	fs.Bool("confirm-drip", false, "ask for confirmation before sending each drip")
	fs.Float64("max-fee-per-gas", 0, "fixed max fee per gas in gwei (0 uses the network value)")
	fs.Float64("max-priority-fee-per-gas", 0, "fixed max priority fee per gas in gwei (0 uses the network value)")
	fs.Int64("max-gas-increase-pct", txmanager.DefaultMaxGasIncreasePercentage, "maximum gas price increase over the initial price, in percent")
	fs.Duration("gas-bump-timeout", defaultGasBumpTimeout, "time to wait before re-sending with a higher gas price")
	fs.Duration("max-gas-wait", defaultMaxGasWait, "time to wait for the last submission once the gas price ceiling is reached")
	fs.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error, fatal)")
	fs.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "cowfee v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: cowfee --module=0x... [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nThe keeper private key is read from the %s environment variable,\n", privateKeyEnv)
		fmt.Fprintf(os.Stderr, "  a .env file in the working directory is loaded if present.\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dashes (-) and dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, COWFEE_NETWORK or COWFEE_MAX_ORDERS\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Sweep the gnosis fee module, confirming each drip\n")
		fmt.Fprintf(os.Stderr, "  cowfee --network=gnosis --module=0x123... --confirm-drip\n\n")
		fmt.Fprintf(os.Stderr, "  # Discover tokens from the last 5000 blocks of settlement trades\n")
		fmt.Fprintf(os.Stderr, "  cowfee --module=0x123... --token-list-strategy=chain --lookback-range=5000\n")
	}

	fs.SortFlags = false
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("COWFEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}
	if err := v.BindEnv("privkey", privateKeyEnv); err != nil {
		return nil, fmt.Errorf("error binding %s: %w", privateKeyEnv, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.PrivKey == "" {
		return fmt.Errorf("missing %s environment variable", privateKeyEnv)
	}
	if !common.IsHexAddress(cfg.Module) {
		return fmt.Errorf("invalid or missing fee module address %q (use --module)", cfg.Module)
	}
	if _, err := config.NetworkByName(cfg.Network); err != nil {
		return err
	}
	if _, err := sweep.ParseStrategy(cfg.TokenListStrategy); err != nil {
		return err
	}
	if cfg.MaxOrders <= 0 {
		return fmt.Errorf("max orders must be positive, got %d", cfg.MaxOrders)
	}
	if cfg.BuyAmountSlippageBps >= 10_000 {
		return fmt.Errorf("buy amount slippage must be below 10000 bps, got %d", cfg.BuyAmountSlippageBps)
	}
	if cfg.MulticallSize <= 0 {
		return fmt.Errorf("multicall size must be positive, got %d", cfg.MulticallSize)
	}
	if cfg.MaxFeePerGas < 0 || cfg.MaxPriorityFeePerGas < 0 {
		return fmt.Errorf("gas fee overrides cannot be negative")
	}
	if cfg.MaxFeePerGas > 0 && cfg.MaxPriorityFeePerGas > cfg.MaxFeePerGas {
		return fmt.Errorf("max priority fee per gas (%v) exceeds max fee per gas (%v)", cfg.MaxPriorityFeePerGas, cfg.MaxFeePerGas)
	}
	if cfg.MaxGasIncreasePct < 0 {
		return fmt.Errorf("max gas increase cannot be negative")
	}
	if cfg.GasBumpTimeout <= 0 {
		return fmt.Errorf("gas bump timeout must be positive, got %s", cfg.GasBumpTimeout)
	}
	if cfg.MaxGasWait <= 0 {
		return fmt.Errorf("max gas wait must be positive, got %s", cfg.MaxGasWait)
	}
	if !log.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("invalid log level %q", cfg.Log.Level)
	}
	return nil
}
