package config

import (
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/yieldroute/yieldroute/internal/errors"
	"github.com/yieldroute/yieldroute/internal/token"
)

// Ethereum mainnet deployments used as defaults.
const (
	UniswapV3FactoryAddress = "0x1F98431c8aD98523631AE4a59f267346ea31F984"
	UniswapV3RouterAddress  = "0xE592427A0AEce92De3Edee1F18E0157C05861564"
	CompoundCDAIAddress     = "0x5d3a536E4D6DbD6114cc1Ead35777bAB948E3643"
)

// Config carries everything the pipeline needs. It is passed into the
// pipeline constructor explicitly so a different network or pair is a
// different Config value, not a different binary.
type Config struct {
	RPCURL     string
	PrivateKey string

	Factory common.Address
	Router  common.Address
	CToken  common.Address

	TokenIn  token.Token
	TokenOut token.Token

	// FeeTier selects the pool during lookup, in hundredths of a basis
	// point. The tier actually used for the swap is read back from the pool.
	FeeTier uint32

	AmountIn     decimal.Decimal
	MinAmountOut decimal.Decimal

	// SqrtPriceLimitX96 caps the post-swap pool price. Nil or zero disables
	// the cap; the min-output guard still applies.
	SqrtPriceLimitX96 *big.Int

	DeadlineOffset time.Duration

	ListenAddr string
	RunOnStart bool
}

// FromEnv builds a mainnet USDC -> DAI -> cDAI configuration, taking the RPC
// endpoint and signing key from the environment.
func FromEnv() Config {
	cfg := Config{
		RPCURL:     os.Getenv("ETH_RPC_URL"),
		PrivateKey: os.Getenv("ETH_PRIVATE_KEY"),

		Factory: common.HexToAddress(UniswapV3FactoryAddress),
		Router:  common.HexToAddress(UniswapV3RouterAddress),
		CToken:  common.HexToAddress(CompoundCDAIAddress),

		TokenIn:  token.USDC,
		TokenOut: token.DAI,

		FeeTier: 100,

		AmountIn:     decimal.RequireFromString("100"),
		MinAmountOut: decimal.RequireFromString("99"),

		DeadlineOffset: 5 * time.Minute,

		ListenAddr: ":8080",
		RunOnStart: os.Getenv("RUN_ON_START") == "true",
	}

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}

	return cfg
}

// Validate rejects configurations the pipeline cannot act on safely.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return &errors.PreconditionError{Check: "config", Detail: "ETH_RPC_URL is not set"}
	}
	if c.PrivateKey == "" {
		return &errors.PreconditionError{Check: "config", Detail: "ETH_PRIVATE_KEY is not set"}
	}
	if c.AmountIn.Sign() <= 0 {
		return &errors.PreconditionError{Check: "config", Detail: "amount in must be positive"}
	}
	if c.MinAmountOut.Sign() <= 0 {
		return &errors.PreconditionError{Check: "config", Detail: "minimum amount out must be positive"}
	}
	if c.DeadlineOffset <= 0 {
		return &errors.PreconditionError{Check: "config", Detail: "deadline offset must be positive"}
	}
	if c.TokenIn.Address == c.TokenOut.Address {
		return &errors.PreconditionError{Check: "config", Detail: "input and output tokens are identical"}
	}
	return nil
}
