// Package pool owns the per-pair reserve state and the direct
// (non-batched) trading operations: pair creation, liquidity joins and
// exits, and constant-product swaps in both directions.
package pool

import (
	"errors"
	"sort"

	"FairSwap/internal/ledger"
)

var (
	// ErrPairNotFound is returned when no pair exists for an asset id.
	ErrPairNotFound = errors.New("pair not found")

	// ErrPairAlreadyExists is returned when creating a pair twice.
	ErrPairAlreadyExists = errors.New("pair already exists")

	// ErrCurrencyAmountTooLow is returned when a currency amount falls
	// short of a required minimum.
	ErrCurrencyAmountTooLow = errors.New("currency amount too low")

	// ErrTokenAmountTooLow is returned when a token amount falls short
	// of a required minimum.
	ErrTokenAmountTooLow = errors.New("token amount too low")

	// ErrCurrencyAmountIsZero is returned for a zero currency_amount
	// parameter.
	ErrCurrencyAmountIsZero = errors.New("currency amount is zero")

	// ErrMaxTokensIsZero is returned for a zero max_tokens parameter.
	ErrMaxTokensIsZero = errors.New("max tokens is zero")

	// ErrMinLiquidityIsZero is returned for a zero min_liquidity
	// parameter.
	ErrMinLiquidityIsZero = errors.New("min liquidity is zero")

	// ErrMaxTokensTooLow is returned when the tokens owed for a join
	// exceed the caller's max_tokens bound.
	ErrMaxTokensTooLow = errors.New("max tokens too low")

	// ErrMinLiquidityTooHigh is returned when the liquidity minted for
	// a join falls below the caller's min_liquidity bound.
	ErrMinLiquidityTooHigh = errors.New("min liquidity too high")

	// ErrLiquidityAmountIsZero is returned for a zero liquidity_amount
	// parameter.
	ErrLiquidityAmountIsZero = errors.New("liquidity amount is zero")

	// ErrMinCurrencyIsZero is returned for a zero min_currency
	// parameter.
	ErrMinCurrencyIsZero = errors.New("min currency is zero")

	// ErrMinTokensIsZero is returned for a zero min_tokens parameter.
	ErrMinTokensIsZero = errors.New("min tokens is zero")

	// ErrProviderLiquidityTooLow is returned when an account tries to
	// burn more liquidity tokens than it holds.
	ErrProviderLiquidityTooLow = errors.New("provider liquidity too low")
)

// Pair is the live reserve state of one currency/asset market.
// TokenReserve is denominated in asset units; CurrencyReserve in
// native currency units.
type Pair struct {
	AssetID          ledger.AssetID
	LiquidityTokenID ledger.AssetID
	CurrencyReserve  uint64
	TokenReserve     uint64
}

// Store is the keyed pair book.
type Store struct {
	pairs map[ledger.AssetID]*Pair
}

// NewStore returns an empty pair store.
func NewStore() *Store {
	return &Store{pairs: make(map[ledger.AssetID]*Pair)}
}

// Get returns the pair for asset, or ErrPairNotFound.
func (s *Store) Get(asset ledger.AssetID) (*Pair, error) {
	p, ok := s.pairs[asset]
	if !ok {
		return nil, ErrPairNotFound
	}
	return p, nil
}

// Exists reports whether a pair is registered for asset.
func (s *Store) Exists(asset ledger.AssetID) bool {
	_, ok := s.pairs[asset]
	return ok
}

// Insert registers a pair under its asset id.
func (s *Store) Insert(p *Pair) {
	s.pairs[p.AssetID] = p
}

// Len reports the number of registered pairs.
func (s *Store) Len() int {
	return len(s.pairs)
}

// All returns every pair ordered by asset id, for deterministic
// iteration in state digests.
func (s *Store) All() []*Pair {
	out := make([]*Pair, 0, len(s.pairs))
	for _, p := range s.pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// Clone deep-copies the store.
func (s *Store) Clone() *Store {
	next := &Store{pairs: make(map[ledger.AssetID]*Pair, len(s.pairs))}
	for id, p := range s.pairs {
		copied := *p
		next.pairs[id] = &copied
	}
	return next
}
