package settlement

import (
	"math/bits"

	"FairSwap/internal/cpmm"
	"FairSwap/internal/event"
	"FairSwap/internal/ledger"
	"FairSwap/internal/pool"

	"github.com/google/uuid"
)

// Config carries the batch parameters.
type Config struct {
	Fee cpmm.Fee

	// Fragments is the clearing simulation's increment count.
	Fragments uint64

	// MinQueue gates settlement: both queues must be at least this
	// deep.
	MinQueue int

	// Custody is the account holding reserves and escrow.
	Custody uuid.UUID
}

// Engine is a view over the intent book, the pair store and the
// balance books, bound for the duration of one command.
type Engine struct {
	cfg      Config
	pairs    *pool.Store
	book     *Book
	currency ledger.Currency
	assets   ledger.Assets
	convert  ledger.Converter
}

// NewEngine binds a settlement engine view.
func NewEngine(cfg Config, pairs *pool.Store, book *Book, currency ledger.Currency, assets ledger.Assets, convert ledger.Converter) *Engine {
	if cfg.Fragments == 0 {
		cfg.Fragments = 1
	}
	return &Engine{
		cfg:      cfg,
		pairs:    pairs,
		book:     book,
		currency: currency,
		assets:   assets,
		convert:  convert,
	}
}

// Settle clears one batch for asset: aggregate both sides, run the
// fragmented simulation, pay every participant the blended price
// pro-rata, verify custody, and reset the queues. Payouts depend only
// on aggregate batch state, never on queue position.
func (e *Engine) Settle(asset ledger.AssetID) ([]event.Event, error) {
	currencyQueue, err := e.book.Queue(asset, CurrencyToAsset)
	if err != nil {
		return nil, err
	}
	assetQueue, err := e.book.Queue(asset, AssetToCurrency)
	if err != nil {
		return nil, err
	}
	if len(currencyQueue) < e.cfg.MinQueue || len(assetQueue) < e.cfg.MinQueue {
		return nil, ErrQueueTooSmall
	}
	pair, err := e.pairs.Get(asset)
	if err != nil {
		return nil, err
	}

	// Aggregate once per distinct account: duplicate queue entries do
	// not multiply an account's weight, its cumulative already folds
	// every enqueue into one total.
	currencySide := distinct(currencyQueue)
	assetSide := distinct(assetQueue)

	var totalCurrencyIn, totalAssetIn uint64
	for _, account := range currencySide {
		totalCurrencyIn, err = addChecked(totalCurrencyIn, e.book.Cumulative(asset, CurrencyToAsset, account))
		if err != nil {
			return nil, err
		}
	}
	for _, account := range assetSide {
		totalAssetIn, err = addChecked(totalAssetIn, e.book.Cumulative(asset, AssetToCurrency, account))
		if err != nil {
			return nil, err
		}
	}
	totalAssetInCurrency, err := e.convert.AssetToCurrency(totalAssetIn)
	if err != nil {
		return nil, err
	}

	// Only the fee-scaled fraction of each side drives price
	// discovery; the remainder is retained by the pool.
	modifiedCurrencyIn, err := mulDiv(totalCurrencyIn, e.cfg.Fee.Numerator, e.cfg.Fee.Denominator)
	if err != nil {
		return nil, err
	}
	modifiedAssetIn, err := mulDiv(totalAssetInCurrency, e.cfg.Fee.Numerator, e.cfg.Fee.Denominator)
	if err != nil {
		return nil, err
	}

	currencyReserve := pair.CurrencyReserve
	assetReserve, err := e.convert.AssetToCurrency(pair.TokenReserve)
	if err != nil {
		return nil, err
	}
	tempCurrency, tempAsset, err := FragmentedClearing(
		currencyReserve, assetReserve, modifiedCurrencyIn, modifiedAssetIn, e.cfg.Fragments)
	if err != nil {
		return nil, err
	}

	depositedCurrency, err := addChecked(currencyReserve, totalCurrencyIn)
	if err != nil {
		return nil, err
	}
	depositedAsset, err := addChecked(assetReserve, totalAssetInCurrency)
	if err != nil {
		return nil, err
	}
	if tempCurrency > depositedCurrency {
		return nil, ErrCurrencyOverflow
	}
	if tempAsset > depositedAsset {
		return nil, ErrAssetOverflow
	}
	currencyOut := depositedCurrency - tempCurrency
	assetOutCurrency := depositedAsset - tempAsset

	events := make([]event.Event, 0, len(currencySide)+len(assetSide)+1)

	// Pro-rata distribution: each account's payout is the side's total
	// output scaled by its share of the side's input.
	for _, account := range currencySide {
		amountIn := e.book.Cumulative(asset, CurrencyToAsset, account)
		share, err := mulDiv(assetOutCurrency, amountIn, totalCurrencyIn)
		if err != nil {
			return nil, err
		}
		tokensOut, err := e.convert.CurrencyToAsset(share)
		if err != nil {
			return nil, err
		}
		if err := e.assets.Transfer(asset, e.cfg.Custody, account, tokensOut); err != nil {
			return nil, err
		}
		events = append(events, &event.SwappedCurrencyForAsset{
			AssetID:        uint32(asset),
			Buyer:          account,
			CurrencyAmount: amountIn,
			TokenAmount:    tokensOut,
		})
	}
	for _, account := range assetSide {
		amountIn := e.book.Cumulative(asset, AssetToCurrency, account)
		payout, err := mulDiv(currencyOut, amountIn, totalAssetIn)
		if err != nil {
			return nil, err
		}
		if err := e.currency.Transfer(e.cfg.Custody, account, payout, ledger.AllowDeath); err != nil {
			return nil, err
		}
		events = append(events, &event.SwappedAssetForCurrency{
			AssetID:        uint32(asset),
			Buyer:          account,
			CurrencyAmount: payout,
			TokenAmount:    amountIn,
		})
	}

	// Custody must still cover the post-clearing reserves; anything
	// less means value left the pool that the accounting did not
	// predict.
	tempTokenReserve, err := e.convert.CurrencyToAsset(tempAsset)
	if err != nil {
		return nil, err
	}
	if e.currency.FreeBalance(e.cfg.Custody) < tempCurrency {
		return nil, ErrCurrencyLeak
	}
	if e.assets.Balance(asset, e.cfg.Custody) < tempTokenReserve {
		return nil, ErrAssetLeak
	}

	pair.CurrencyReserve = tempCurrency
	pair.TokenReserve = tempTokenReserve
	e.book.reset(asset)

	assetOut, err := e.convert.CurrencyToAsset(assetOutCurrency)
	if err != nil {
		return nil, err
	}
	events = append(events, &event.SettlementPerformed{
		AssetID:      uint32(asset),
		CurrencyOut:  currencyOut,
		AssetOut:     assetOut,
		Participants: len(currencySide) + len(assetSide),
	})
	return events, nil
}

// FragmentedClearing interleaves the two aggregate flows in fragment
// increments against the fixed invariant product k = c0*a0, currency
// side first within each fragment. The result is identical for every
// participant regardless of batch position. Because the currency side
// always moves first, the simulation carries a first-mover bias toward
// that side which shrinks as the fragment count grows; it is
// asymptotically unbiased, not exactly so.
func FragmentedClearing(c0, a0, currencyIn, assetIn, fragments uint64) (tempCurrency, tempAsset uint64, err error) {
	if c0 == 0 || a0 == 0 {
		return 0, 0, cpmm.ErrEmptyReserve
	}
	if fragments == 0 {
		fragments = 1
	}
	kHi, kLo := bits.Mul64(c0, a0)
	currencyStep := currencyIn / fragments
	assetStep := assetIn / fragments

	tempCurrency, tempAsset = c0, a0
	for i := uint64(0); i < fragments; i++ {
		tempCurrency, err = addChecked(tempCurrency, currencyStep)
		if err != nil {
			return 0, 0, ErrCurrencyOverflow
		}
		tempAsset, err = div128(kHi, kLo, tempCurrency)
		if err != nil {
			return 0, 0, ErrAssetOverflow
		}

		tempAsset, err = addChecked(tempAsset, assetStep)
		if err != nil {
			return 0, 0, ErrAssetOverflow
		}
		tempCurrency, err = div128(kHi, kLo, tempAsset)
		if err != nil {
			return 0, 0, ErrCurrencyOverflow
		}
	}
	return tempCurrency, tempAsset, nil
}

func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, cpmm.ErrOverflow
	}
	return sum, nil
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

// div128 computes floor((hi,lo) / d), failing when the quotient does
// not fit in 64 bits.
func div128(hi, lo, d uint64) (uint64, error) {
	if d == 0 || hi >= d {
		return 0, cpmm.ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}
