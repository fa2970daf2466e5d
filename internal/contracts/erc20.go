package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/yieldroute/yieldroute/internal/chain"
)

// ERC20 wraps an ERC20 token contract.
type ERC20 struct {
	addr common.Address
	tm   *chain.TxManager
}

func NewERC20(addr common.Address, tm *chain.TxManager) *ERC20 {
	return &ERC20{addr: addr, tm: tm}
}

func (e *ERC20) Address() common.Address {
	return e.addr
}

// Approve grants the spender a bounded allowance and submits the signed
// transaction. The caller is responsible for awaiting the receipt.
func (e *ERC20) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	data, err := ERC20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack approve call: %w", err)
	}
	return e.tm.Send(ctx, "approve", e.addr, data)
}

// Allowance reads the current allowance granted by owner to spender.
func (e *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	data, err := ERC20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to pack allowance call: %w", err)
	}

	result, err := e.tm.Call(ctx, e.addr, data)
	if err != nil {
		return nil, err
	}

	out, err := ERC20ABI.Unpack("allowance", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack allowance result: %w", err)
	}
	return out[0].(*big.Int), nil
}

// BalanceOf reads the token balance of the given account.
func (e *ERC20) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	data, err := ERC20ABI.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	result, err := e.tm.Call(ctx, e.addr, data)
	if err != nil {
		return nil, err
	}

	out, err := ERC20ABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf result: %w", err)
	}
	return out[0].(*big.Int), nil
}
