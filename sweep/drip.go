package sweep

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/cowdao-grants/cowfee/log"
	"github.com/cowdao-grants/cowfee/orderbook"
	"github.com/cowdao-grants/cowfee/types"
	"github.com/cowdao-grants/cowfee/web3"
	"github.com/cowdao-grants/cowfee/web3/txmanager"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// orderConcurrency is the number of order submissions in flight.
	orderConcurrency = 8

	dripOperation = "drip"
	confirmPrompt = "\nDo you want to send this transaction? (yes/no): "
)

// ErrKeeperMismatch is returned when the signing account is not the module
// keeper.
var ErrKeeperMismatch = errors.New("signer is not the module keeper")

// DripResult is the outcome of one drip call.
type DripResult struct {
	// Hash of the mined transaction. Nil when the drip was cancelled or its
	// nonce was already consumed.
	Hash      *common.Hash
	Cancelled bool
}

// BatchResult is the outcome of one batch of orders.
type BatchResult struct {
	Tokens       []TokenToSwap
	OrderUIDs    []string
	FailedOrders int
	Drip         *DripResult
	Err          error
}

// Report summarises a sweep run.
type Report struct {
	RunID     string
	EthToWrap *big.Int
	Tokens    []TokenToSwap
	Batches   []BatchResult
	// WrapOnly is the drip sent with empty lists to wrap the native
	// balance, when there were no tokens to swap.
	WrapOnly         *DripResult
	ExpectedProceeds *big.Int
	ProceedsSymbol   string
	ExplorerURL      string
}

// Run executes a complete sweep: tokens are planned, then sold in batches of
// MaxOrders orders, each followed by its drip. A failed batch is logged and
// the next one still runs. Without tokens to swap, a drip with empty lists
// wraps the native balance when it reaches minOut.
func (s *Sweeper) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.New().String()}
	runLog := log.With("run", report.RunID, "module", s.cfg.Module.Hex())
	runLog.Info().Str("network", s.cfg.Network.Name).Msg("starting fee sweep")

	info, err := s.svc.Chain.ModuleInfo(ctx, s.cfg.Module)
	if err != nil {
		return nil, fmt.Errorf("failed to read module: %w", err)
	}
	if info.Keeper != s.keeper {
		return nil, fmt.Errorf("%w: keeper %s, signer %s", ErrKeeperMismatch, info.Keeper.Hex(), s.keeper.Hex())
	}

	if report.EthToWrap, err = s.EthToWrap(ctx, info); err != nil {
		return nil, err
	}
	runLog.Info().Str("amount", types.FormatUnits(report.EthToWrap, wrappedNativeDecimals)).Msg("native balance to wrap")

	if report.Tokens, err = s.Plan(ctx, info); err != nil {
		return nil, err
	}
	for _, t := range report.Tokens {
		log.Infow("token to swap",
			"symbol", t.Symbol,
			"address", t.Address.Hex(),
			"balance", types.FormatUnits(t.Balance, t.Decimals),
			"buyAmount", types.FormatUnits(t.BuyAmount, wrappedNativeDecimals),
			"needsApproval", t.NeedsApproval)
	}

	switch {
	case len(report.Tokens) > 0:
		for start := 0; start < len(report.Tokens); start += s.cfg.MaxOrders {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			batch := report.Tokens[start:min(start+s.cfg.MaxOrders, len(report.Tokens))]
			res := s.swapBatch(ctx, info, batch)
			if res.Err != nil {
				log.Errorw(res.Err, "error dripping")
			}
			report.Batches = append(report.Batches, res)
		}
	case report.EthToWrap.Sign() > 0:
		res, err := s.drip(ctx, info, nil, nil)
		if err != nil {
			return report, err
		}
		report.WrapOnly = res
	default:
		runLog.Info().Msg("nothing to sweep")
	}

	s.summarise(ctx, info, report)
	runLog.Info().
		Int("orders", len(report.Tokens)).
		Str("expected", types.FormatUnits(report.ExpectedProceeds, wrappedNativeDecimals)).
		Str("symbol", report.ProceedsSymbol).
		Str("follow", report.ExplorerURL).
		Msgf("fee collection for chain %s initiated", s.cfg.Network.Name)
	return report, nil
}

// summarise fills the expected proceeds of the report: the buy amounts of
// every planned token plus the wrapped native balance.
func (s *Sweeper) summarise(ctx context.Context, info *web3.ModuleInfo, report *Report) {
	amounts := []*big.Int{report.EthToWrap}
	for _, t := range report.Tokens {
		amounts = append(amounts, t.BuyAmount)
	}
	report.ExpectedProceeds = types.SumAmounts(amounts...)
	report.ExplorerURL = s.cfg.Network.SettlementURL(info.Settlement.Hex())

	symbol, err := s.svc.Chain.TokenSymbol(ctx, info.WrappedNativeToken)
	if err != nil {
		log.Debugw("wrapped native token symbol unavailable", "error", err.Error())
		return
	}
	report.ProceedsSymbol = symbol
}

// swapBatch posts the orders of batch and drips the tokens whose order was
// accepted.
func (s *Sweeper) swapBatch(ctx context.Context, info *web3.ModuleInfo, batch []TokenToSwap) BatchResult {
	res := BatchResult{}
	validTo, err := s.svc.Chain.NextValidTo(ctx, info.Address)
	if err != nil {
		res.Err = fmt.Errorf("failed to get nextValidTo: %w", err)
		return res
	}
	if err := s.appData.CheckHash(info.AppData); err != nil {
		res.Err = err
		return res
	}

	posted, uids, failed := s.postOrders(ctx, info, validTo, batch)
	res.Tokens, res.OrderUIDs, res.FailedOrders = posted, uids, len(failed)
	log.Infow("posted orders", "count", len(uids), "failed", len(failed))
	for i, uid := range uids {
		log.Debugw("order posted", "uid", uid, "token", posted[i].Address.Hex())
	}
	for _, err := range failed {
		log.Warnw("failed posting order", "error", err.Error())
	}
	if len(posted) == 0 {
		log.Info("no tokens to swap, skipping approvals and drip")
		return res
	}

	var approve []common.Address
	swaps := make([]web3.Swap, 0, len(posted))
	for _, t := range posted {
		if t.NeedsApproval {
			approve = append(approve, t.Address)
		}
		swaps = append(swaps, web3.Swap{Token: t.Address, SellAmount: t.Balance, BuyAmount: t.BuyAmount})
	}
	res.Drip, res.Err = s.drip(ctx, info, approve, swaps)
	return res
}

// postOrders submits one pre-signed sell order per token. Orders are
// independent: the tokens whose order was accepted are returned with their
// UIDs, in batch order, and every rejection is returned as an error.
func (s *Sweeper) postOrders(ctx context.Context, info *web3.ModuleInfo, validTo uint32, batch []TokenToSwap) ([]TokenToSwap, []string, []error) {
	uids := make([]string, len(batch))
	errs := make([]error, len(batch))
	var g errgroup.Group
	g.SetLimit(orderConcurrency)
	for i := range batch {
		g.Go(func() error {
			t := batch[i]
			uids[i], errs[i] = s.svc.OrderBook.SendOrder(ctx, orderbook.OrderCreation{
				SellToken:         t.Address,
				BuyToken:          info.WrappedNativeToken,
				Receiver:          info.Receiver,
				SellAmount:        types.NewBigInt(t.Balance),
				BuyAmount:         types.NewBigInt(t.BuyAmount),
				ValidTo:           validTo,
				AppData:           s.appData.Content,
				AppDataHash:       s.appData.Hash,
				FeeAmount:         types.NewInt(0),
				Kind:              orderbook.KindSell,
				PartiallyFillable: true,
				SellTokenBalance:  orderbook.BalanceERC20,
				BuyTokenBalance:   orderbook.BalanceERC20,
				SigningScheme:     orderbook.SchemePreSign,
				Signature:         []byte{},
				From:              info.Settlement,
			})
			return nil
		})
	}
	_ = g.Wait()

	var (
		posted     []TokenToSwap
		postedUIDs []string
		failed     []error
	)
	for i, t := range batch {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		posted = append(posted, t)
		postedUIDs = append(postedUIDs, uids[i])
	}
	return posted, postedUIDs, failed
}

// drip calls the module drip with the tokens to approve and swap. The nonce
// and gas limit are fixed before asking for confirmation, so a transaction
// that would revert is never proposed.
func (s *Sweeper) drip(ctx context.Context, info *web3.ModuleInfo, approve []common.Address, swaps []web3.Swap) (*DripResult, error) {
	data, err := web3.DripCalldata(approve, swaps)
	if err != nil {
		return nil, err
	}
	module := info.Address
	req := txmanager.TxRequest{
		From:  s.keeper,
		To:    &module,
		Data:  data,
		Value: new(big.Int),
	}
	nonce, err := s.svc.Chain.NonceAt(ctx, s.keeper)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	req.Nonce = &nonce
	gas, err := s.svc.Chain.EstimateGas(ctx, req)
	if err != nil {
		log.Warn("error estimating gas, please review the transaction parameters")
		return nil, fmt.Errorf("%w: %w", txmanager.ErrEstimateGas, err)
	}
	req.GasLimit = gas
	log.Infow("drip transaction parameters",
		"from", req.From.Hex(),
		"to", module.Hex(),
		"nonce", nonce,
		"gasLimit", gas,
		"approve", len(approve),
		"swaps", len(swaps))

	if s.cfg.ConfirmDrip {
		ok, err := s.svc.Confirmer.Confirm(ctx, confirmPrompt)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Info("All right! Transaction cancelled")
			return &DripResult{Cancelled: true}, nil
		}
	}

	hash, err := s.svc.Executor.Execute(ctx, req, dripOperation, s.cfg.ExecutorOptions...)
	if err != nil {
		return nil, err
	}
	if hash == nil {
		log.Warnw("drip nonce already used, nothing sent", "nonce", nonce)
	}
	return &DripResult{Hash: hash}, nil
}
