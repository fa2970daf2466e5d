package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yieldroute/yieldroute/internal/chain"
)

// Factory wraps the Uniswap V3 factory, the registry that maps a token pair
// and fee tier to its pool deployment.
type Factory struct {
	addr common.Address
	tm   *chain.TxManager
}

func NewFactory(addr common.Address, tm *chain.TxManager) *Factory {
	return &Factory{addr: addr, tm: tm}
}

// GetPool looks up the pool address for the pair and fee tier. The factory
// answers the zero address when no pool exists; callers must treat that as
// pool-not-found, never as a usable contract.
func (f *Factory) GetPool(ctx context.Context, tokenA, tokenB common.Address, feeTier uint32) (common.Address, error) {
	data, err := FactoryABI.Pack("getPool", tokenA, tokenB, big.NewInt(int64(feeTier)))
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to pack getPool call: %w", err)
	}

	result, err := f.tm.Call(ctx, f.addr, data)
	if err != nil {
		return common.Address{}, err
	}

	out, err := FactoryABI.Unpack("getPool", result)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unpack getPool result: %w", err)
	}
	return out[0].(common.Address), nil
}
