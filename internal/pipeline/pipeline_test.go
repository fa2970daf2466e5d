package pipeline

import (
	"context"
	"math/big"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yieldroute/yieldroute/internal/chain"
	"github.com/yieldroute/yieldroute/internal/config"
	"github.com/yieldroute/yieldroute/internal/contracts"
	"github.com/yieldroute/yieldroute/internal/errors"
	"github.com/yieldroute/yieldroute/internal/types"
)

const testPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var testPoolAddr = common.HexToAddress("0x5777d92f208679DB4b9778590Fa3CAB3aC9e2168")

// fakeClient is a scripted chain.EthereumClient. Reads are answered by
// selector, writes are recorded and answered with canned receipts.
type fakeClient struct {
	mu sync.Mutex

	poolAddr common.Address
	token0   common.Address
	token1   common.Address
	poolFee  *big.Int

	routerAddr common.Address
	from       common.Address

	revertSwap bool

	viewCalls []ethereum.CallMsg
	sent      []*coretypes.Transaction
	receipts  map[common.Hash]*coretypes.Receipt
}

func newFakeClient(cfg config.Config) *fakeClient {
	return &fakeClient{
		poolAddr:   testPoolAddr,
		token0:     cfg.TokenIn.Address,
		token1:     cfg.TokenOut.Address,
		poolFee:    big.NewInt(int64(cfg.FeeTier)),
		routerAddr: cfg.Router,
		receipts:   make(map[common.Hash]*coretypes.Receipt),
	}
}

func (f *fakeClient) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeClient) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x1}, nil
}

func (f *fakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 200_000, nil
}

func (f *fakeClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	f.viewCalls = append(f.viewCalls, call)
	f.mu.Unlock()

	selector := [4]byte(call.Data[:4])
	switch selector {
	case [4]byte(contracts.FactoryABI.Methods["getPool"].ID):
		return contracts.FactoryABI.Methods["getPool"].Outputs.Pack(f.poolAddr)
	case [4]byte(contracts.PoolABI.Methods["token0"].ID):
		return contracts.PoolABI.Methods["token0"].Outputs.Pack(f.token0)
	case [4]byte(contracts.PoolABI.Methods["token1"].ID):
		return contracts.PoolABI.Methods["token1"].Outputs.Pack(f.token1)
	case [4]byte(contracts.PoolABI.Methods["fee"].ID):
		return contracts.PoolABI.Methods["fee"].Outputs.Pack(f.poolFee)
	case [4]byte(contracts.CTokenABI.Methods["balanceOf"].ID):
		return contracts.CTokenABI.Methods["balanceOf"].Outputs.Pack(big.NewInt(1_000))
	}
	return nil, ethereum.NotFound
}

func (f *fakeClient) SendTransaction(ctx context.Context, tx *coretypes.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, tx)

	receipt := &coretypes.Receipt{
		TxHash:      tx.Hash(),
		Status:      coretypes.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(int64(len(f.sent))),
	}

	if tx.To() != nil && *tx.To() == f.routerAddr {
		if f.revertSwap {
			receipt.Status = coretypes.ReceiptStatusFailed
		} else {
			receipt.Logs = []*coretypes.Log{swapLog(f.poolAddr, f.routerAddr, f.from, tx.Hash())}
		}
	}

	f.receipts[tx.Hash()] = receipt
	return nil
}

func (f *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// swapAmountOut is the scripted pool output: 99.5 DAI.
var swapAmountOut = new(big.Int).Mul(big.NewInt(995), new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil))

func swapLog(pool, sender, recipient common.Address, txHash common.Hash) *coretypes.Log {
	data, err := contracts.PoolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(100_000_000),         // amount0: USDC into the pool
		new(big.Int).Neg(swapAmountOut), // amount1: DAI out to the recipient
		big.NewInt(0),                   // sqrtPriceX96
		big.NewInt(0),                   // liquidity
		big.NewInt(0),                   // tick
	)
	if err != nil {
		panic(err)
	}

	return &coretypes.Log{
		Address: pool,
		Topics: []common.Hash{
			contracts.PoolABI.Events["Swap"].ID,
			common.BytesToHash(sender.Bytes()),
			common.BytesToHash(recipient.Bytes()),
		},
		Data:   data,
		TxHash: txHash,
	}
}

// recordingNotifier captures step events in order.
type recordingNotifier struct {
	mu     sync.Mutex
	events []types.StepEvent
}

func (n *recordingNotifier) NotifyStep(event types.StepEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) states() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	states := make([]string, len(n.events))
	for i, e := range n.events {
		states[i] = e.State
	}
	return states
}

func testConfig() config.Config {
	cfg := config.FromEnv()
	cfg.RPCURL = "http://fake-node"
	cfg.PrivateKey = testPrivateKey
	return cfg
}

func newTestPipeline(t *testing.T, cfg config.Config, client *fakeClient) *Pipeline {
	t.Helper()

	tm, err := chain.NewTxManager(context.Background(), client, cfg.PrivateKey)
	require.NoError(t, err)
	client.from = tm.From()

	return New(cfg, tm, nil)
}

func decodeApprove(t *testing.T, tx *coretypes.Transaction) (common.Address, *big.Int) {
	t.Helper()

	method := contracts.ERC20ABI.Methods["approve"]
	require.Equal(t, method.ID, tx.Data()[:4], "transaction is not an approve call")

	vals, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	return vals[0].(common.Address), vals[1].(*big.Int)
}

func decodeSwapParams(t *testing.T, tx *coretypes.Transaction) reflect.Value {
	t.Helper()

	method := contracts.RouterABI.Methods["exactInputSingle"]
	require.Equal(t, method.ID, tx.Data()[:4], "transaction is not an exactInputSingle call")

	vals, err := method.Inputs.Unpack(tx.Data()[4:])
	require.NoError(t, err)
	return reflect.ValueOf(vals[0])
}

func TestApproveStepSendsExactAllowance(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient(cfg)
	p := newTestPipeline(t, cfg, client)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, client.sent)
	approveTx := client.sent[0]
	assert.Equal(t, cfg.TokenIn.Address, *approveTx.To(), "first transaction must target the input token")

	spender, amount := decodeApprove(t, approveTx)
	assert.Equal(t, cfg.Router, spender)
	assert.Equal(t, big.NewInt(100_000_000), amount, "allowance must be the exact configured amount in USDC units")

	// The approval was mined before the swap was submitted.
	assert.Contains(t, client.receipts, approveTx.Hash())
}

func TestPoolLookupZeroAddressFailsHard(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient(cfg)
	client.poolAddr = common.Address{}
	p := newTestPipeline(t, cfg, client)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.IsType(t, &errors.PreconditionError{}, err)

	assert.Equal(t, StateFailed, p.State())
	assert.Empty(t, client.sent, "no transaction may be submitted after a failed lookup")
	assert.Len(t, client.viewCalls, 1, "the factory lookup must be the only call performed")
}

func TestSwapCarriesPoolFeeTierAndFutureDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.FeeTier = 100
	client := newFakeClient(cfg)
	// The pool reports a different tier than the caller configured; the
	// swap must carry the pool's answer.
	client.poolFee = big.NewInt(500)
	p := newTestPipeline(t, cfg, client)

	submittedAt := time.Now()
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(client.sent), 2)
	params := decodeSwapParams(t, client.sent[1])

	fee := params.FieldByName("Fee").Interface().(*big.Int)
	assert.Equal(t, int64(500), fee.Int64(), "swap fee must come from the pool, not the configuration")

	deadline := params.FieldByName("Deadline").Interface().(*big.Int)
	assert.Greater(t, deadline.Int64(), submittedAt.Unix(), "deadline must be strictly after submission time")

	minOut := params.FieldByName("AmountOutMinimum").Interface().(*big.Int)
	assert.True(t, minOut.Sign() > 0, "minimum output must not be left at zero")

	recipient := params.FieldByName("Recipient").Interface().(common.Address)
	assert.Equal(t, client.from, recipient)
}

func TestSupplyApprovesBeforeMintWithActualSwapOutput(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient(cfg)
	p := newTestPipeline(t, cfg, client)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, client.sent, 4)

	// Third transaction: approve the lending market on the output token.
	approveTx := client.sent[2]
	assert.Equal(t, cfg.TokenOut.Address, *approveTx.To())
	spender, amount := decodeApprove(t, approveTx)
	assert.Equal(t, cfg.CToken, spender)
	assert.Equal(t, swapAmountOut, amount, "supply approval must use the actual swap output, not the input amount")

	// Fourth transaction: mint on the lending market, after the approval.
	mintTx := client.sent[3]
	assert.Equal(t, cfg.CToken, *mintTx.To())
	method := contracts.CTokenABI.Methods["mint"]
	require.Equal(t, method.ID, mintTx.Data()[:4])
	vals, err := method.Inputs.Unpack(mintTx.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, swapAmountOut, vals[0].(*big.Int))
}

func TestPipelineHappyPathReachesDone(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient(cfg)

	tm, err := chain.NewTxManager(context.Background(), client, cfg.PrivateKey)
	require.NoError(t, err)
	client.from = tm.From()

	notifier := &recordingNotifier{}
	p := New(cfg, tm, notifier)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, p.State())

	hashes := result.TxHashes()
	require.Len(t, hashes, 4)
	for i, tx := range client.sent {
		assert.Equal(t, tx.Hash(), hashes[i], "transaction %d out of order", i)
	}

	assert.Equal(t, swapAmountOut, result.AmountOut)

	assert.Equal(t, []string{
		"approving", "swapping", "approving_supply", "supplying", "done",
	}, notifier.states())
}

func TestSwapRevertAbortsBeforeSupply(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient(cfg)
	client.revertSwap = true
	p := newTestPipeline(t, cfg, client)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.IsType(t, &errors.RevertError{}, err)

	assert.Equal(t, StateFailed, p.State())
	require.Len(t, client.sent, 2, "nothing may be submitted after the reverted swap")
	assert.Equal(t, cfg.TokenIn.Address, *client.sent[0].To())
	assert.Equal(t, cfg.Router, *client.sent[1].To())
}

func TestPoolPairMismatchFails(t *testing.T) {
	cfg := testConfig()
	client := newFakeClient(cfg)
	client.token1 = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	p := newTestPipeline(t, cfg, client)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.IsType(t, &errors.PreconditionError{}, err)
	assert.Empty(t, client.sent)
}

func TestSignerAddressDerivation(t *testing.T) {
	key, err := crypto.HexToECDSA(testPrivateKey)
	require.NoError(t, err)

	cfg := testConfig()
	client := newFakeClient(cfg)
	tm, err := chain.NewTxManager(context.Background(), client, cfg.PrivateKey)
	require.NoError(t, err)

	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), tm.From())
}
