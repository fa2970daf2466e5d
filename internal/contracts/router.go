package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/yieldroute/yieldroute/internal/chain"
)

// ExactInputSingleParams mirrors the router's exactInputSingle tuple.
type ExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// Router wraps the Uniswap V3 swap router.
type Router struct {
	addr common.Address
	tm   *chain.TxManager
}

func NewRouter(addr common.Address, tm *chain.TxManager) *Router {
	return &Router{addr: addr, tm: tm}
}

func (r *Router) Address() common.Address {
	return r.addr
}

// ExactInputSingle submits a single-pool exact-input swap. The deadline in
// params is enforced by the contract: if the transaction is not mined before
// it, execution reverts, which is the intended safety behavior.
func (r *Router) ExactInputSingle(ctx context.Context, params ExactInputSingleParams) (*types.Transaction, error) {
	data, err := RouterABI.Pack("exactInputSingle", params)
	if err != nil {
		return nil, fmt.Errorf("failed to pack exactInputSingle call: %w", err)
	}
	return r.tm.Send(ctx, "swap", r.addr, data)
}
