package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Token describes an ERC20 token deployment. Descriptors are static
// configuration and never mutated after construction.
type Token struct {
	ChainID  int64
	Address  common.Address
	Decimals int32
	Symbol   string
	Name     string
}

// Ethereum mainnet descriptors used as configuration defaults.
var (
	USDC = Token{
		ChainID:  1,
		Address:  common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		Decimals: 6,
		Symbol:   "USDC",
		Name:     "USD Coin",
	}
	DAI = Token{
		ChainID:  1,
		Address:  common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
		Decimals: 18,
		Symbol:   "DAI",
		Name:     "Dai Stablecoin",
	}
	WETH = Token{
		ChainID:  1,
		Address:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		Decimals: 18,
		Symbol:   "WETH",
		Name:     "Wrapped Ether",
	}
)

// BaseUnits converts a human-readable amount into the token's smallest unit,
// using this token's own declared precision. Amounts with more fractional
// digits than the token supports are rejected rather than truncated.
func (t Token) BaseUnits(amount decimal.Decimal) (*big.Int, error) {
	shifted := amount.Shift(t.Decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s has more than %d decimal places for %s", amount, t.Decimals, t.Symbol)
	}
	if shifted.IsNegative() {
		return nil, fmt.Errorf("amount %s is negative", amount)
	}
	return shifted.BigInt(), nil
}

// Display converts a base-unit amount back into a human-readable decimal.
func (t Token) Display(base *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(base, -t.Decimals)
}

func (t Token) String() string {
	return fmt.Sprintf("%s (%s)", t.Symbol, t.Address.Hex())
}
