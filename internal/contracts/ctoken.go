package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/yieldroute/yieldroute/internal/chain"
)

// CToken wraps a Compound-style lending market. Minting deposits the
// underlying asset and credits the caller with receipt tokens that accrue
// interest over time.
type CToken struct {
	addr common.Address
	tm   *chain.TxManager
}

func NewCToken(addr common.Address, tm *chain.TxManager) *CToken {
	return &CToken{addr: addr, tm: tm}
}

func (c *CToken) Address() common.Address {
	return c.addr
}

// Mint deposits the given amount of underlying. The market must already
// hold a sufficient allowance from the caller.
func (c *CToken) Mint(ctx context.Context, amount *big.Int) (*types.Transaction, error) {
	data, err := CTokenABI.Pack("mint", amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack mint call: %w", err)
	}
	return c.tm.Send(ctx, "supply", c.addr, data)
}

// BalanceOf reads the receipt-token balance of the given account.
func (c *CToken) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := CTokenABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	result, err := c.tm.Call(ctx, c.addr, data)
	if err != nil {
		return nil, err
	}

	out, err := CTokenABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf result: %w", err)
	}
	return out[0].(*big.Int), nil
}
