package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/yieldroute/yieldroute/internal/errors"
)

// TxManager owns the signing key and turns packed calldata into signed,
// submitted transactions. There is exactly one key and one caller, so no
// locking is needed around the nonce: each Send fetches the pending nonce
// fresh and the pipeline never submits concurrently.
type TxManager struct {
	client  EthereumClient
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	signer  types.Signer
}

// NewTxManager derives the sender address from the hex-encoded private key
// and fetches the chain ID from the connected node.
func NewTxManager(ctx context.Context, client EthereumClient, hexKey string) (*TxManager, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, &errors.ChainError{Operation: "parse private key", Err: err}
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, &errors.ChainError{Operation: "fetch chain id", Err: err}
	}

	return &TxManager{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		signer:  types.LatestSignerForChainID(chainID),
	}, nil
}

// From returns the signer address.
func (m *TxManager) From() common.Address {
	return m.from
}

// ChainID returns the connected chain's id.
func (m *TxManager) ChainID() *big.Int {
	return new(big.Int).Set(m.chainID)
}

// Call performs a read-only eth_call against the given contract.
func (m *TxManager) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	result, err := m.client.CallContract(ctx, ethereum.CallMsg{
		From: m.from,
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return nil, &errors.ChainError{Operation: "contract call", Err: err}
	}
	return result, nil
}

// Send signs and submits a contract transaction carrying the given calldata.
// The returned transaction has been accepted by the node but not yet mined.
func (m *TxManager) Send(ctx context.Context, op string, to common.Address, data []byte) (*types.Transaction, error) {
	nonce, err := m.client.PendingNonceAt(ctx, m.from)
	if err != nil {
		return nil, &errors.ChainError{Operation: op + ": fetch nonce", Err: err}
	}

	gasPrice, err := m.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &errors.ChainError{Operation: op + ": suggest gas price", Err: err}
	}

	gas, err := m.client.EstimateGas(ctx, ethereum.CallMsg{
		From: m.from,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return nil, &errors.ChainError{Operation: op + ": estimate gas", Err: err}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	})

	signed, err := types.SignTx(tx, m.signer, m.key)
	if err != nil {
		return nil, &errors.ChainError{Operation: op + ": sign transaction", Err: err}
	}

	if err := m.client.SendTransaction(ctx, signed); err != nil {
		return nil, &errors.ChainError{Operation: op + ": send transaction", Err: err}
	}

	return signed, nil
}

// WaitMined blocks until the transaction has a receipt, then checks the
// execution status. A mined-but-reverted transaction is surfaced as a
// RevertError carrying the transaction hash.
func (m *TxManager) WaitMined(ctx context.Context, op string, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, m.client, tx)
	if err != nil {
		return nil, &errors.ChainError{Operation: op + ": await receipt", Err: err}
	}

	if receipt.Status == types.ReceiptStatusFailed {
		return nil, &errors.RevertError{Operation: op, TxHash: tx.Hash().Hex()}
	}

	return receipt, nil
}
