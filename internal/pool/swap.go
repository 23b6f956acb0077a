package pool

import (
	"FairSwap/internal/cpmm"
	"FairSwap/internal/event"
	"FairSwap/internal/ledger"

	"github.com/google/uuid"
)

// SwapCurrencyForAsset executes a direct currency-to-asset swap at the
// pool's spot price.
func (l *Ledger) SwapCurrencyForAsset(buyer uuid.UUID, asset ledger.AssetID, swap cpmm.Swap) ([]event.Event, error) {
	if err := swap.Validate(); err != nil {
		return nil, err
	}
	pair, err := l.pairs.Get(asset)
	if err != nil {
		return nil, err
	}
	currencyAmount, tokenAmount, err := l.priceCurrencyToAsset(pair, swap)
	if err != nil {
		return nil, err
	}
	if l.currency.FreeBalance(buyer) < currencyAmount {
		return nil, ledger.ErrBalanceTooLow
	}

	if err := l.currency.Transfer(buyer, l.cfg.Custody, currencyAmount, ledger.AllowDeath); err != nil {
		return nil, err
	}
	if err := l.assets.Transfer(asset, l.cfg.Custody, buyer, tokenAmount); err != nil {
		return nil, err
	}
	pair.CurrencyReserve = satAdd(pair.CurrencyReserve, currencyAmount)
	pair.TokenReserve = satSub(pair.TokenReserve, tokenAmount)

	return []event.Event{
		&event.SwappedCurrencyForAsset{
			AssetID:        uint32(asset),
			Buyer:          buyer,
			CurrencyAmount: currencyAmount,
			TokenAmount:    tokenAmount,
		},
	}, nil
}

// SwapAssetForCurrency executes a direct asset-to-currency swap at the
// pool's spot price.
func (l *Ledger) SwapAssetForCurrency(buyer uuid.UUID, asset ledger.AssetID, swap cpmm.Swap) ([]event.Event, error) {
	if err := swap.Validate(); err != nil {
		return nil, err
	}
	pair, err := l.pairs.Get(asset)
	if err != nil {
		return nil, err
	}
	currencyAmount, tokenAmount, err := l.priceAssetToCurrency(pair, swap)
	if err != nil {
		return nil, err
	}
	if err := l.assets.CanWithdraw(asset, buyer, tokenAmount); err != nil {
		return nil, err
	}

	if err := l.assets.Transfer(asset, buyer, l.cfg.Custody, tokenAmount); err != nil {
		return nil, err
	}
	if err := l.currency.Transfer(l.cfg.Custody, buyer, currencyAmount, ledger.AllowDeath); err != nil {
		return nil, err
	}
	pair.CurrencyReserve = satSub(pair.CurrencyReserve, currencyAmount)
	pair.TokenReserve = satAdd(pair.TokenReserve, tokenAmount)

	return []event.Event{
		&event.SwappedAssetForCurrency{
			AssetID:        uint32(asset),
			Buyer:          buyer,
			CurrencyAmount: currencyAmount,
			TokenAmount:    tokenAmount,
		},
	}, nil
}

// priceCurrencyToAsset resolves a currency-to-asset swap spec into the
// concrete (currency in, tokens out) pair. MinOutput and OutputAmount
// are token-denominated; MaxInput is currency-denominated.
func (l *Ledger) priceCurrencyToAsset(pair *Pair, swap cpmm.Swap) (currencyAmount, tokenAmount uint64, err error) {
	tokenReserve, err := l.convert.AssetToCurrency(pair.TokenReserve)
	if err != nil {
		return 0, 0, err
	}
	switch swap.Basis {
	case cpmm.BasisOutput:
		wantCurrency, err := l.convert.AssetToCurrency(swap.OutputAmount)
		if err != nil {
			return 0, 0, err
		}
		currencyAmount, err = l.cfg.Fee.InputFor(wantCurrency, pair.CurrencyReserve, tokenReserve)
		if err != nil {
			return 0, 0, err
		}
		if currencyAmount > swap.MaxInput {
			return 0, 0, cpmm.ErrSlippageExceeded
		}
		return currencyAmount, swap.OutputAmount, nil
	default:
		out, err := l.cfg.Fee.OutputFor(swap.InputAmount, pair.CurrencyReserve, tokenReserve)
		if err != nil {
			return 0, 0, err
		}
		tokenAmount, err = l.convert.CurrencyToAsset(out)
		if err != nil {
			return 0, 0, err
		}
		if tokenAmount < swap.MinOutput {
			return 0, 0, cpmm.ErrSlippageExceeded
		}
		return swap.InputAmount, tokenAmount, nil
	}
}

// priceAssetToCurrency resolves an asset-to-currency swap spec into
// the concrete (currency out, tokens in) pair. InputAmount and
// MaxInput are token-denominated; the bounds on the output side are
// currency-denominated.
func (l *Ledger) priceAssetToCurrency(pair *Pair, swap cpmm.Swap) (currencyAmount, tokenAmount uint64, err error) {
	tokenReserve, err := l.convert.AssetToCurrency(pair.TokenReserve)
	if err != nil {
		return 0, 0, err
	}
	switch swap.Basis {
	case cpmm.BasisOutput:
		in, err := l.cfg.Fee.InputFor(swap.OutputAmount, tokenReserve, pair.CurrencyReserve)
		if err != nil {
			return 0, 0, err
		}
		tokenAmount, err = l.convert.CurrencyToAsset(in)
		if err != nil {
			return 0, 0, err
		}
		if tokenAmount > swap.MaxInput {
			return 0, 0, cpmm.ErrSlippageExceeded
		}
		return swap.OutputAmount, tokenAmount, nil
	default:
		inCurrency, err := l.convert.AssetToCurrency(swap.InputAmount)
		if err != nil {
			return 0, 0, err
		}
		_, currencyAmount, err = l.cfg.Fee.Resolve(
			cpmm.ExactInput(inCurrency, swap.MinOutput), tokenReserve, pair.CurrencyReserve)
		if err != nil {
			return 0, 0, err
		}
		return currencyAmount, swap.InputAmount, nil
	}
}
