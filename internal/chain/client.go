package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthereumClient is the slice of the go-ethereum client surface this service
// uses. The read side matches bind.ContractCaller, the write side what a
// legacy transaction needs, and TransactionReceipt/CodeAt satisfy
// bind.DeployBackend so receipts can be awaited with bind.WaitMined.
type EthereumClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ClientCreator allows tests to substitute the dialed client.
type ClientCreator func(url string) (EthereumClient, error)

// DefaultClientCreator dials a real node over RPC.
func DefaultClientCreator(url string) (EthereumClient, error) {
	return ethclient.Dial(url)
}

const explorerTxTemplate = "https://etherscan.io/tx/%s"

// ExplorerTxURL renders a block-explorer link for a transaction hash.
func ExplorerTxURL(txHash common.Hash) string {
	return fmt.Sprintf(explorerTxTemplate, txHash.Hex())
}
