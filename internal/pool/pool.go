package pool

import (
	"math/bits"

	"FairSwap/internal/cpmm"
	"FairSwap/internal/event"
	"FairSwap/internal/ledger"

	"github.com/google/uuid"
)

// Config carries the market parameters shared by every pair.
type Config struct {
	Fee                cpmm.Fee
	MinInitialCurrency uint64
	MinInitialToken    uint64

	// Custody is the account holding every pair's reserves and escrow.
	Custody uuid.UUID
}

// Ledger is a view over the pair store and the balance books, bound
// for the duration of one command. All mutating operations either
// complete fully or, because the core applies commands against a
// cloned state, leave no trace.
type Ledger struct {
	cfg      Config
	pairs    *Store
	currency ledger.Currency
	assets   ledger.Assets
	convert  ledger.Converter
}

// New binds a pool ledger view.
func New(cfg Config, pairs *Store, currency ledger.Currency, assets ledger.Assets, convert ledger.Converter) *Ledger {
	return &Ledger{
		cfg:      cfg,
		pairs:    pairs,
		currency: currency,
		assets:   assets,
		convert:  convert,
	}
}

// CreatePair registers a new market for asset, seeds it with the
// provider's initial deposit and mints the first liquidity tokens.
func (l *Ledger) CreatePair(provider uuid.UUID, asset, liquidityToken ledger.AssetID, currencyAmount, tokenAmount uint64) ([]event.Event, error) {
	if currencyAmount < l.cfg.MinInitialCurrency {
		return nil, ErrCurrencyAmountTooLow
	}
	if tokenAmount < l.cfg.MinInitialToken {
		return nil, ErrTokenAmountTooLow
	}
	if l.assets.TotalIssuance(asset) == 0 {
		return nil, ledger.ErrAssetNotFound
	}
	if l.pairs.Exists(asset) {
		return nil, ErrPairAlreadyExists
	}
	if err := l.assets.Create(liquidityToken, l.cfg.Custody, 1); err != nil {
		return nil, err
	}

	pair := &Pair{AssetID: asset, LiquidityTokenID: liquidityToken}
	liquidityMinted, err := l.convert.CurrencyToAsset(currencyAmount)
	if err != nil {
		return nil, err
	}
	if err := l.join(pair, provider, currencyAmount, tokenAmount, liquidityMinted); err != nil {
		return nil, err
	}
	l.pairs.Insert(pair)

	return []event.Event{
		&event.PairCreated{
			AssetID:          uint32(asset),
			LiquidityTokenID: uint32(liquidityToken),
			Provider:         provider,
			CurrencyAmount:   currencyAmount,
			TokenAmount:      tokenAmount,
			LiquidityMinted:  liquidityMinted,
		},
	}, nil
}

// AddLiquidity joins an existing pair at the current reserve ratio.
// The tokens owed are rounded up by one unit so the provider never
// under-contributes relative to the quoted ratio.
func (l *Ledger) AddLiquidity(provider uuid.UUID, asset ledger.AssetID, currencyAmount, minLiquidity, maxTokens uint64) ([]event.Event, error) {
	if currencyAmount == 0 {
		return nil, ErrCurrencyAmountIsZero
	}
	if maxTokens == 0 {
		return nil, ErrMaxTokensIsZero
	}
	if minLiquidity == 0 {
		return nil, ErrMinLiquidityIsZero
	}
	if l.currency.FreeBalance(provider) < currencyAmount {
		return nil, ledger.ErrBalanceTooLow
	}
	if err := l.assets.CanWithdraw(asset, provider, maxTokens); err != nil {
		return nil, err
	}
	pair, err := l.pairs.Get(asset)
	if err != nil {
		return nil, err
	}

	totalLiquidity := l.assets.TotalIssuance(pair.LiquidityTokenID)
	tokenAmount, err := mulDiv(currencyAmount, pair.TokenReserve, pair.CurrencyReserve)
	if err != nil {
		return nil, err
	}
	tokenAmount++
	liquidityMinted, err := mulDiv(currencyAmount, totalLiquidity, pair.CurrencyReserve)
	if err != nil {
		return nil, err
	}
	if tokenAmount > maxTokens {
		return nil, ErrMaxTokensTooLow
	}
	if liquidityMinted < minLiquidity {
		return nil, ErrMinLiquidityTooHigh
	}

	if err := l.join(pair, provider, currencyAmount, tokenAmount, liquidityMinted); err != nil {
		return nil, err
	}

	return []event.Event{
		&event.LiquidityAdded{
			Provider:        provider,
			AssetID:         uint32(asset),
			CurrencyAmount:  currencyAmount,
			TokenAmount:     tokenAmount,
			LiquidityMinted: liquidityMinted,
		},
	}, nil
}

// RemoveLiquidity burns liquidity tokens and pays out the provider's
// proportional share of both reserves.
func (l *Ledger) RemoveLiquidity(provider uuid.UUID, asset ledger.AssetID, liquidityAmount, minCurrency, minTokens uint64) ([]event.Event, error) {
	if liquidityAmount == 0 {
		return nil, ErrLiquidityAmountIsZero
	}
	if minCurrency == 0 {
		return nil, ErrMinCurrencyIsZero
	}
	if minTokens == 0 {
		return nil, ErrMinTokensIsZero
	}
	pair, err := l.pairs.Get(asset)
	if err != nil {
		return nil, err
	}
	if l.assets.Balance(pair.LiquidityTokenID, provider) < liquidityAmount {
		return nil, ErrProviderLiquidityTooLow
	}

	totalLiquidity := l.assets.TotalIssuance(pair.LiquidityTokenID)
	currencyOut, err := mulDiv(liquidityAmount, pair.CurrencyReserve, totalLiquidity)
	if err != nil {
		return nil, err
	}
	tokenOut, err := mulDiv(liquidityAmount, pair.TokenReserve, totalLiquidity)
	if err != nil {
		return nil, err
	}
	if currencyOut < minCurrency {
		return nil, ErrCurrencyAmountTooLow
	}
	if tokenOut < minTokens {
		return nil, ErrTokenAmountTooLow
	}

	if err := l.assets.Burn(pair.LiquidityTokenID, provider, liquidityAmount); err != nil {
		return nil, err
	}
	if err := l.currency.Transfer(l.cfg.Custody, provider, currencyOut, ledger.AllowDeath); err != nil {
		return nil, err
	}
	if err := l.assets.Transfer(asset, l.cfg.Custody, provider, tokenOut); err != nil {
		return nil, err
	}
	pair.CurrencyReserve = satSub(pair.CurrencyReserve, currencyOut)
	pair.TokenReserve = satSub(pair.TokenReserve, tokenOut)

	return []event.Event{
		&event.LiquidityRemoved{
			Provider:        provider,
			AssetID:         uint32(asset),
			CurrencyAmount:  currencyOut,
			TokenAmount:     tokenOut,
			LiquidityBurned: liquidityAmount,
		},
	}, nil
}

// join performs the shared deposit leg of CreatePair and AddLiquidity:
// pull both contributions into custody, mint liquidity tokens, accrue
// reserves.
func (l *Ledger) join(pair *Pair, provider uuid.UUID, currencyAmount, tokenAmount, liquidityMinted uint64) error {
	if err := l.currency.Transfer(provider, l.cfg.Custody, currencyAmount, ledger.KeepAlive); err != nil {
		return err
	}
	if err := l.assets.Transfer(pair.AssetID, provider, l.cfg.Custody, tokenAmount); err != nil {
		return err
	}
	if err := l.assets.Mint(pair.LiquidityTokenID, provider, liquidityMinted); err != nil {
		return err
	}
	pair.CurrencyReserve = satAdd(pair.CurrencyReserve, currencyAmount)
	pair.TokenReserve = satAdd(pair.TokenReserve, tokenAmount)
	return nil
}

// mulDiv computes floor(a*b/d) with a 128-bit intermediate.
func mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, cpmm.ErrOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, cpmm.ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}

func satAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return ^uint64(0)
	}
	return sum
}

func satSub(a, b uint64) uint64 {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0
	}
	return diff
}
