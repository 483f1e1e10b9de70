package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/cowdao-grants/cowfee/config"
	"github.com/cowdao-grants/cowfee/explorer"
	"github.com/cowdao-grants/cowfee/log"
	"github.com/cowdao-grants/cowfee/orderbook"
	"github.com/cowdao-grants/cowfee/prompt"
	"github.com/cowdao-grants/cowfee/sweep"
	"github.com/cowdao-grants/cowfee/web3"
	"github.com/cowdao-grants/cowfee/web3/gasstation"
	"github.com/cowdao-grants/cowfee/web3/rpc/chainlist"
	"github.com/cowdao-grants/cowfee/web3/txmanager"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting cowfee", "version", Version, "network", cfg.Network, "logLevel", log.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Errorw(err, "fee sweep failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// run wires the services of the selected network and runs one sweep.
func run(ctx context.Context, cfg *Config) error {
	network, err := config.NetworkByName(cfg.Network)
	if err != nil {
		return err
	}

	node, err := connect(ctx, cfg, network)
	if err != nil {
		return err
	}
	defer node.Close()
	if err := node.SetAccountPrivateKey(cfg.PrivKey); err != nil {
		return fmt.Errorf("failed to set account private key: %w", err)
	}
	node.SetMulticallSize(cfg.MulticallSize)
	log.Infow("keeper account loaded", "address", node.AccountAddress().Hex())

	prices := txmanager.NewGasPriceProvider(node, gasstation.ForChain(network.ChainID)).
		WithFeeOverrides(gweiOrNil(cfg.MaxFeePerGas), gweiOrNil(cfg.MaxPriorityFeePerGas))
	executor := txmanager.New(node, prices, txmanager.Config{
		MaxGasIncreasePercentage:        cfg.MaxGasIncreasePct,
		WaitTimeForMaxGasPrice:          cfg.MaxGasWait,
		TimeoutBeforeIncreasingGasPrice: cfg.GasBumpTimeout,
	})

	strategy, err := sweep.ParseStrategy(cfg.TokenListStrategy)
	if err != nil {
		return err
	}
	services := sweep.Services{
		Chain:     node,
		OrderBook: orderbook.New(network.OrderBookAPI, orderbook.WithChainID(network.ChainID)),
		Executor:  executor,
		Confirmer: prompt.NewTerminal(),
	}
	if network.TokenListAPI != "" {
		services.Tokens = explorer.New(network.TokenListAPI)
	} else if strategy == sweep.StrategyExplorer {
		return fmt.Errorf("network %s has no token list API, use --token-list-strategy=%s", network.Name, sweep.StrategyChain)
	}

	sweeper, err := sweep.New(sweep.Config{
		Module:               common.HexToAddress(cfg.Module),
		Network:              network,
		MaxOrders:            cfg.MaxOrders,
		BuyAmountSlippageBps: cfg.BuyAmountSlippageBps,
		TokenListStrategy:    strategy,
		LookbackRange:        cfg.LookbackRange,
		ConfirmDrip:          cfg.ConfirmDrip,
	}, services, node.AccountAddress())
	if err != nil {
		return err
	}
	_, err = sweeper.Run(ctx)
	return err
}

// connect opens the node on the configured endpoints and checks that it
// serves the selected network.
func connect(ctx context.Context, cfg *Config, network config.Network) (*web3.Node, error) {
	endpoints := []string{network.RPCURL}
	if cfg.RPCURL != "" {
		endpoints = []string{cfg.RPCURL}
	}
	if cfg.Chainlist > 0 {
		extra, err := chainlist.EndpointList(ctx, network.ChainID, cfg.Chainlist)
		if err != nil {
			log.Warnw("chain list unavailable", "chainID", network.ChainID, "error", err.Error())
		} else {
			log.Infow("using endpoints from chain list", "chainID", network.ChainID, "endpoints", extra)
			endpoints = append(endpoints, extra...)
		}
	}

	node, err := web3.New(endpoints)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize web3 client: %w", err)
	}
	if node.ChainID != network.ChainID {
		node.Close()
		return nil, fmt.Errorf("chain ID mismatch: rpc serves %d, network %s is %d", node.ChainID, network.Name, network.ChainID)
	}
	return node, nil
}

func gweiOrNil(gwei float64) *big.Int {
	if gwei <= 0 {
		return nil
	}
	return gasstation.GweiToWei(gwei)
}
