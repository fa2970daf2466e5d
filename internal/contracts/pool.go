package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/yieldroute/yieldroute/internal/chain"
)

// Pool wraps a Uniswap V3 pool. Token ordering and the fee tier are read
// from the contract itself rather than trusted from the caller.
type Pool struct {
	addr common.Address
	tm   *chain.TxManager
}

func NewPool(addr common.Address, tm *chain.TxManager) *Pool {
	return &Pool{addr: addr, tm: tm}
}

func (p *Pool) Address() common.Address {
	return p.addr
}

func (p *Pool) Token0(ctx context.Context) (common.Address, error) {
	return p.addressView(ctx, "token0")
}

func (p *Pool) Token1(ctx context.Context) (common.Address, error) {
	return p.addressView(ctx, "token1")
}

// Fee reads the pool's fee tier in hundredths of a basis point.
func (p *Pool) Fee(ctx context.Context) (uint32, error) {
	data, err := PoolABI.Pack("fee")
	if err != nil {
		return 0, fmt.Errorf("failed to pack fee call: %w", err)
	}

	result, err := p.tm.Call(ctx, p.addr, data)
	if err != nil {
		return 0, err
	}

	out, err := PoolABI.Unpack("fee", result)
	if err != nil {
		return 0, fmt.Errorf("failed to unpack fee result: %w", err)
	}
	return uint32(out[0].(*big.Int).Uint64()), nil
}

func (p *Pool) addressView(ctx context.Context, method string) (common.Address, error) {
	data, err := PoolABI.Pack(method)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to pack %s call: %w", method, err)
	}

	result, err := p.tm.Call(ctx, p.addr, data)
	if err != nil {
		return common.Address{}, err
	}

	out, err := PoolABI.Unpack(method, result)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return out[0].(common.Address), nil
}

// swapEvent mirrors the non-indexed fields of the pool's Swap event. The
// amounts are pool deltas: positive flowed into the pool, negative out.
type swapEvent struct {
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         *big.Int
}

// ParseSwapOutput extracts the amount the recipient actually received from a
// mined swap receipt by decoding this pool's Swap event. Swaps never credit
// the exact input amount, so this is the only trustworthy source of the
// output value.
func (p *Pool) ParseSwapOutput(receipt *types.Receipt) (*big.Int, error) {
	swapID := PoolABI.Events["Swap"].ID

	for _, vLog := range receipt.Logs {
		if vLog.Address != p.addr || len(vLog.Topics) == 0 || vLog.Topics[0] != swapID {
			continue
		}

		var event swapEvent
		if err := PoolABI.UnpackIntoInterface(&event, "Swap", vLog.Data); err != nil {
			return nil, fmt.Errorf("failed to unpack Swap event: %w", err)
		}

		if event.Amount0.Sign() < 0 {
			return new(big.Int).Neg(event.Amount0), nil
		}
		if event.Amount1.Sign() < 0 {
			return new(big.Int).Neg(event.Amount1), nil
		}
		return nil, fmt.Errorf("swap event in tx %s has no outgoing amount", receipt.TxHash.Hex())
	}

	return nil, fmt.Errorf("no Swap event from pool %s in tx %s", p.addr.Hex(), receipt.TxHash.Hex())
}
