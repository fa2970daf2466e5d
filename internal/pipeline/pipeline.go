// Package pipeline sequences the four on-chain steps: approve the input
// token to the router, swap it, approve the output to the lending market,
// then deposit. Each step blocks on its receipt before the next begins.
package pipeline

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yieldroute/yieldroute/internal/chain"
	"github.com/yieldroute/yieldroute/internal/config"
	"github.com/yieldroute/yieldroute/internal/contracts"
	"github.com/yieldroute/yieldroute/internal/errors"
	"github.com/yieldroute/yieldroute/internal/token"
	"github.com/yieldroute/yieldroute/internal/types"
	"github.com/yieldroute/yieldroute/pkg/logger"
)

// Notifier receives step events as the pipeline advances. Implementations
// must not block; delivery failures are logged and never abort a step.
type Notifier interface {
	NotifyStep(event types.StepEvent) error
}

type nopNotifier struct{}

func (nopNotifier) NotifyStep(types.StepEvent) error { return nil }

// Result collects the transaction hashes of a completed run, in submission
// order, plus the actual swap output threaded into the supply step.
type Result struct {
	ApproveSwapTx   common.Hash
	SwapTx          common.Hash
	ApproveSupplyTx common.Hash
	SupplyTx        common.Hash
	AmountOut       *big.Int
}

// TxHashes returns the submitted transaction hashes in submission order.
func (r *Result) TxHashes() []common.Hash {
	hashes := make([]common.Hash, 0, 4)
	for _, h := range []common.Hash{r.ApproveSwapTx, r.SwapTx, r.ApproveSupplyTx, r.SupplyTx} {
		if h != (common.Hash{}) {
			hashes = append(hashes, h)
		}
	}
	return hashes
}

// Pipeline executes one approve -> swap -> approve -> supply sequence.
// A Pipeline is single-use: construct a new one per run.
type Pipeline struct {
	cfg      config.Config
	tm       *chain.TxManager
	factory  *contracts.Factory
	router   *contracts.Router
	market   *contracts.CToken
	tokenIn  *contracts.ERC20
	tokenOut *contracts.ERC20
	notifier Notifier

	// now is injectable so deadline construction is testable.
	now func() time.Time

	mu     sync.Mutex
	state  State
	result Result
}

// New wires a pipeline from explicit configuration. Contract addresses and
// token descriptors all come from cfg; nothing is read from globals.
func New(cfg config.Config, tm *chain.TxManager, notifier Notifier) *Pipeline {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Pipeline{
		cfg:      cfg,
		tm:       tm,
		factory:  contracts.NewFactory(cfg.Factory, tm),
		router:   contracts.NewRouter(cfg.Router, tm),
		market:   contracts.NewCToken(cfg.CToken, tm),
		tokenIn:  contracts.NewERC20(cfg.TokenIn.Address, tm),
		tokenOut: contracts.NewERC20(cfg.TokenOut.Address, tm),
		notifier: notifier,
		now:      time.Now,
		state:    StateIdle,
	}
}

// State reports the pipeline's current position.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Result returns a snapshot of the hashes collected so far.
func (p *Pipeline) Result() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Run executes the full sequence and blocks until it finishes or a step
// fails. Already-mined transactions cannot be rolled back on failure:
// allowances granted before the failing step remain in effect, which is
// acceptable because they are bounded and revocable separately.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	amountIn, err := p.cfg.TokenIn.BaseUnits(p.cfg.AmountIn)
	if err != nil {
		return p.fail(&errors.PreconditionError{Check: "amount in", Detail: err.Error()})
	}

	minOut, err := p.cfg.TokenOut.BaseUnits(p.cfg.MinAmountOut)
	if err != nil {
		return p.fail(&errors.PreconditionError{Check: "minimum amount out", Detail: err.Error()})
	}

	pool, poolFee, err := p.lookupPool(ctx)
	if err != nil {
		return p.fail(err)
	}

	p.setState(StateApproving, "", fmt.Sprintf("approving %s %s for router", p.cfg.AmountIn, p.cfg.TokenIn.Symbol))
	approveTx, err := p.approve(ctx, p.cfg.TokenIn, p.tokenIn, p.router.Address(), amountIn)
	if err != nil {
		return p.fail(err)
	}
	p.record(func(r *Result) { r.ApproveSwapTx = approveTx })

	p.setState(StateSwapping, approveTx.Hex(), fmt.Sprintf("swapping %s %s for %s", p.cfg.AmountIn, p.cfg.TokenIn.Symbol, p.cfg.TokenOut.Symbol))
	swapTx, amountOut, err := p.swap(ctx, pool, poolFee, amountIn, minOut)
	if err != nil {
		return p.fail(err)
	}
	p.record(func(r *Result) {
		r.SwapTx = swapTx
		r.AmountOut = amountOut
	})

	outDisplay := p.cfg.TokenOut.Display(amountOut)
	p.setState(StateApprovingSupply, swapTx.Hex(), fmt.Sprintf("approving %s %s for lending market", outDisplay, p.cfg.TokenOut.Symbol))
	approveSupplyTx, err := p.approve(ctx, p.cfg.TokenOut, p.tokenOut, p.market.Address(), amountOut)
	if err != nil {
		return p.fail(err)
	}
	p.record(func(r *Result) { r.ApproveSupplyTx = approveSupplyTx })

	p.setState(StateSupplying, approveSupplyTx.Hex(), fmt.Sprintf("supplying %s %s", outDisplay, p.cfg.TokenOut.Symbol))
	supplyTx, err := p.supply(ctx, amountOut)
	if err != nil {
		return p.fail(err)
	}
	p.record(func(r *Result) { r.SupplyTx = supplyTx })

	p.setState(StateDone, supplyTx.Hex(), fmt.Sprintf("supplied %s %s", outDisplay, p.cfg.TokenOut.Symbol))

	result := p.Result()
	for _, h := range result.TxHashes() {
		logger.Info("Transaction confirmed: %s", chain.ExplorerTxURL(h))
	}
	return result, nil
}

// lookupPool resolves the pool for the configured pair and fee tier. The
// factory answers the zero address for unknown pairs; that is a hard
// failure, and no transaction is submitted after it.
func (p *Pipeline) lookupPool(ctx context.Context) (*contracts.Pool, uint32, error) {
	poolAddr, err := p.factory.GetPool(ctx, p.cfg.TokenIn.Address, p.cfg.TokenOut.Address, p.cfg.FeeTier)
	if err != nil {
		return nil, 0, err
	}
	if poolAddr == (common.Address{}) {
		return nil, 0, &errors.PreconditionError{
			Check:  "pool exists",
			Detail: fmt.Sprintf("no %s/%s pool at fee tier %d", p.cfg.TokenIn.Symbol, p.cfg.TokenOut.Symbol, p.cfg.FeeTier),
		}
	}

	pool := contracts.NewPool(poolAddr, p.tm)

	token0, err := pool.Token0(ctx)
	if err != nil {
		return nil, 0, err
	}
	token1, err := pool.Token1(ctx)
	if err != nil {
		return nil, 0, err
	}

	in, out := p.cfg.TokenIn.Address, p.cfg.TokenOut.Address
	if !(token0 == in && token1 == out) && !(token0 == out && token1 == in) {
		return nil, 0, &errors.PreconditionError{
			Check:  "pool tokens",
			Detail: fmt.Sprintf("pool %s holds %s/%s, not the configured pair", poolAddr.Hex(), token0.Hex(), token1.Hex()),
		}
	}

	// The fee used for the swap comes from the pool itself, never from
	// caller-supplied configuration.
	poolFee, err := pool.Fee(ctx)
	if err != nil {
		return nil, 0, err
	}

	logger.Info("Resolved %s/%s pool %s at fee tier %d",
		p.cfg.TokenIn.Symbol, p.cfg.TokenOut.Symbol, poolAddr.Hex(), poolFee)
	return pool, poolFee, nil
}

// approve submits exactly one bounded allowance call and blocks until it is
// mined. The amount is denominated in tok's own declared precision.
func (p *Pipeline) approve(ctx context.Context, tok token.Token, erc *contracts.ERC20, spender common.Address, amount *big.Int) (common.Hash, error) {
	tx, err := erc.Approve(ctx, spender, amount)
	if err != nil {
		return common.Hash{}, err
	}

	if _, err := p.tm.WaitMined(ctx, "approve "+tok.Symbol, tx); err != nil {
		return common.Hash{}, err
	}

	logger.Info("Approved %s %s for %s: %s",
		tok.Display(amount), tok.Symbol, spender.Hex(), chain.ExplorerTxURL(tx.Hash()))
	return tx.Hash(), nil
}

// swap submits the exact-input swap and reads the actual output amount from
// the pool's Swap event in the mined receipt.
func (p *Pipeline) swap(ctx context.Context, pool *contracts.Pool, poolFee uint32, amountIn, minOut *big.Int) (common.Hash, *big.Int, error) {
	deadline := p.now().Add(p.cfg.DeadlineOffset)

	priceLimit := p.cfg.SqrtPriceLimitX96
	if priceLimit == nil {
		priceLimit = big.NewInt(0)
	}

	params := contracts.ExactInputSingleParams{
		TokenIn:           p.cfg.TokenIn.Address,
		TokenOut:          p.cfg.TokenOut.Address,
		Fee:               big.NewInt(int64(poolFee)),
		Recipient:         p.tm.From(),
		Deadline:          big.NewInt(deadline.Unix()),
		AmountIn:          amountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: priceLimit,
	}

	tx, err := p.router.ExactInputSingle(ctx, params)
	if err != nil {
		return common.Hash{}, nil, err
	}

	receipt, err := p.tm.WaitMined(ctx, "swap", tx)
	if err != nil {
		return common.Hash{}, nil, err
	}

	amountOut, err := pool.ParseSwapOutput(receipt)
	if err != nil {
		return common.Hash{}, nil, &errors.ChainError{Operation: "read swap output", Err: err}
	}

	logger.Info("Swapped %s %s for %s %s: %s",
		p.cfg.TokenIn.Display(amountIn), p.cfg.TokenIn.Symbol,
		p.cfg.TokenOut.Display(amountOut), p.cfg.TokenOut.Symbol,
		chain.ExplorerTxURL(tx.Hash()))
	return tx.Hash(), amountOut, nil
}

// supply deposits the swap output into the lending market. The allowance
// was granted by the preceding step; mint must never run before it.
func (p *Pipeline) supply(ctx context.Context, amount *big.Int) (common.Hash, error) {
	tx, err := p.market.Mint(ctx, amount)
	if err != nil {
		return common.Hash{}, err
	}

	if _, err := p.tm.WaitMined(ctx, "supply", tx); err != nil {
		return common.Hash{}, err
	}

	logger.Info("Supplied %s %s to lending market: %s",
		p.cfg.TokenOut.Display(amount), p.cfg.TokenOut.Symbol, chain.ExplorerTxURL(tx.Hash()))

	// The receipt-token balance is informational only; a read failure does
	// not fail an otherwise completed pipeline.
	if balance, err := p.market.BalanceOf(ctx, p.tm.From()); err == nil {
		logger.Info("Receipt-token balance: %s", balance.String())
	} else {
		logger.Warn("Failed to read receipt-token balance: %v", err)
	}

	return tx.Hash(), nil
}

func (p *Pipeline) setState(state State, txHash, detail string) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()

	logger.Info("Pipeline state: %s (%s)", state, detail)

	event := types.StepEvent{State: state.String(), TxHash: txHash, Detail: detail}
	if txHash != "" {
		event.ExplorerURL = chain.ExplorerTxURL(common.HexToHash(txHash))
	}
	if err := p.notifier.NotifyStep(event); err != nil {
		logger.Error("Failed to notify step event: %v", err)
	}
}

func (p *Pipeline) record(update func(*Result)) {
	p.mu.Lock()
	update(&p.result)
	p.mu.Unlock()
}

func (p *Pipeline) fail(err error) (Result, error) {
	p.setState(StateFailed, "", err.Error())
	logger.LogTyped(err)
	return p.Result(), err
}
