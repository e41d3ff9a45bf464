package types

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// NativeDecimals is the scale of every EVM chain's native currency.
const NativeDecimals = 18

var ErrUnknownAsset = errors.New("unknown asset variant")

// Token is the metadata every amount-bearing call needs. It is supplied
// by the caller (address book, config), never derived.
type Token struct {
	Address  common.Address `json:"address" yaml:"address"`
	ChainID  uint64         `json:"chain_id" yaml:"chain_id"`
	Symbol   string         `json:"symbol" yaml:"symbol"`
	Decimals uint8          `json:"decimals" yaml:"decimals"`
}

// TokenKey identifies a token across chains. Caches keyed by token use it
// rather than the symbol, which is not unique.
type TokenKey struct {
	Address common.Address
	ChainID uint64
}

func (k TokenKey) String() string {
	return fmt.Sprintf("%d:%s", k.ChainID, k.Address.Hex())
}

// Key returns the (address, chainId) identity of t.
func (t Token) Key() TokenKey {
	return TokenKey{Address: t.Address, ChainID: t.ChainID}
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%s)", t.Symbol, t.Key())
}

// PairKey identifies a base/quote price.
type PairKey struct {
	Base  TokenKey
	Quote TokenKey
}

func (k PairKey) String() string {
	return k.Base.String() + "/" + k.Quote.String()
}

// NewPairKey returns the key for the price of base in quote units.
func NewPairKey(base, quote Token) PairKey {
	return PairKey{Base: base.Key(), Quote: quote.Key()}
}

// Asset is either an ERC20 token or a chain's native currency.
// The set of variants is closed: only this package can add one.
type Asset interface {
	Metadata() Token
	isAsset()
}

// ERC20 is a contract token.
type ERC20 struct {
	Token Token
}

func (e ERC20) Metadata() Token { return e.Token }
func (ERC20) isAsset()          {}

// Native is a chain's gas currency (ETH, MATIC, ...).
type Native struct {
	ChainID uint64
	Symbol  string
}

func (n Native) Metadata() Token {
	return Token{ChainID: n.ChainID, Symbol: n.Symbol, Decimals: NativeDecimals}
}

func (Native) isAsset() {}

// NeedsApproval reports whether spending the asset requires an ERC20 allowance.
func NeedsApproval(a Asset) (bool, error) {
	switch a.(type) {
	case ERC20:
		return true, nil
	case Native:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %T", ErrUnknownAsset, a)
	}
}

// Describe returns a short human label for logs.
func Describe(a Asset) (string, error) {
	switch v := a.(type) {
	case ERC20:
		return fmt.Sprintf("erc20 %s", v.Token), nil
	case Native:
		return fmt.Sprintf("native %s on chain %d", v.Symbol, v.ChainID), nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownAsset, a)
	}
}
