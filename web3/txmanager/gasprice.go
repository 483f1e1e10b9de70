package txmanager

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cowdao-grants/cowfee/log"
)

// GasPriceFetcher is a chain-specific source of gas prices, such as a gas
// station API.
type GasPriceFetcher interface {
	FetchGasPrice(ctx context.Context) (GasPrice, error)
}

// GasPriceFetcherFunc adapts a function to GasPriceFetcher.
type GasPriceFetcherFunc func(ctx context.Context) (GasPrice, error)

func (f GasPriceFetcherFunc) FetchGasPrice(ctx context.Context) (GasPrice, error) {
	return f(ctx)
}

// GasPriceProvider returns the seed price of a transaction. An optional
// override fetcher is tried first; the node fee data is the fallback.
type GasPriceProvider struct {
	source   FeeSource
	override GasPriceFetcher

	maxFeeOverride      *big.Int
	priorityFeeOverride *big.Int
}

// NewGasPriceProvider creates a provider backed by source. override may be
// nil.
func NewGasPriceProvider(source FeeSource, override GasPriceFetcher) *GasPriceProvider {
	return &GasPriceProvider{source: source, override: override}
}

// WithFeeOverrides sets operator fixed values for the max fee and the
// priority fee. A nil value keeps the fetched one. Setting any of them forces
// an EIP-1559 price.
func (p *GasPriceProvider) WithFeeOverrides(maxFee, priorityFee *big.Int) *GasPriceProvider {
	p.maxFeeOverride = copyBig(maxFee)
	p.priorityFeeOverride = copyBig(priorityFee)
	return p
}

// Fetch returns the current gas price. Failures of the override fetcher are
// logged and never returned; node failures are returned as is.
func (p *GasPriceProvider) Fetch(ctx context.Context) (GasPrice, error) {
	price, err := p.fetch(ctx)
	if err != nil {
		return GasPrice{}, err
	}
	return p.applyOverrides(price), nil
}

func (p *GasPriceProvider) fetch(ctx context.Context) (GasPrice, error) {
	if p.override != nil {
		price, err := p.override.FetchGasPrice(ctx)
		if err == nil && price.Valid() {
			return price, nil
		}
		if err == nil {
			err = fmt.Errorf("invalid gas price %s", price)
		}
		log.Warnw("gas price fetcher failed, falling back to node fee data", "error", err.Error())
	}
	fees, err := p.source.FeeData(ctx)
	if err != nil {
		return GasPrice{}, fmt.Errorf("fee data: %w", err)
	}
	if fees.MaxFeePerGas != nil && fees.MaxPriorityFeePerGas != nil {
		return EIP1559Price(fees.MaxFeePerGas, fees.MaxPriorityFeePerGas), nil
	}
	if fees.GasPrice != nil {
		return LegacyPrice(fees.GasPrice), nil
	}
	gasPrice, err := p.source.SuggestGasPrice(ctx)
	if err != nil {
		return GasPrice{}, fmt.Errorf("gas price: %w", err)
	}
	return LegacyPrice(gasPrice), nil
}

func (p *GasPriceProvider) applyOverrides(price GasPrice) GasPrice {
	if p.maxFeeOverride == nil && p.priorityFeeOverride == nil {
		return price
	}
	maxFee, tip := price.MaxFeePerGas, price.MaxPriorityFeePerGas
	if !price.IsEIP1559() {
		maxFee, tip = price.GasPrice, price.GasPrice
	}
	if p.maxFeeOverride != nil {
		maxFee = p.maxFeeOverride
	}
	if p.priorityFeeOverride != nil {
		tip = p.priorityFeeOverride
	}
	return EIP1559Price(maxFee, tip)
}
