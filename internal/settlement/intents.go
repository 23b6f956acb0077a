package settlement

import (
	"FairSwap/internal/cpmm"
	"FairSwap/internal/event"
	"FairSwap/internal/ledger"

	"github.com/google/uuid"
)

// EnqueueCurrencyForAsset escrows a currency amount into the batch
// queue. The feasibility quote against current reserves only proves
// the trade is not degenerate; the execution price is fixed later, at
// settlement.
func (e *Engine) EnqueueCurrencyForAsset(buyer uuid.UUID, asset ledger.AssetID, amountIn uint64) ([]event.Event, error) {
	if amountIn == 0 {
		return nil, cpmm.ErrTradeAmountIsZero
	}
	if e.currency.FreeBalance(buyer) < amountIn {
		return nil, ledger.ErrBalanceTooLow
	}
	pair, err := e.pairs.Get(asset)
	if err != nil {
		return nil, err
	}
	tokenReserve, err := e.convert.AssetToCurrency(pair.TokenReserve)
	if err != nil {
		return nil, err
	}
	if _, err := e.cfg.Fee.OutputFor(amountIn, pair.CurrencyReserve, tokenReserve); err != nil {
		return nil, err
	}

	if err := e.currency.Transfer(buyer, e.cfg.Custody, amountIn, ledger.KeepAlive); err != nil {
		return nil, err
	}
	if err := e.book.Append(asset, CurrencyToAsset, buyer, amountIn); err != nil {
		return nil, err
	}

	return []event.Event{
		&event.AddedSwapCurrencyForAsset{
			AssetID:  uint32(asset),
			Buyer:    buyer,
			AmountIn: amountIn,
		},
	}, nil
}

// EnqueueAssetForCurrency escrows a token amount into the batch queue.
func (e *Engine) EnqueueAssetForCurrency(buyer uuid.UUID, asset ledger.AssetID, amountIn uint64) ([]event.Event, error) {
	if amountIn == 0 {
		return nil, cpmm.ErrTradeAmountIsZero
	}
	if err := e.assets.CanWithdraw(asset, buyer, amountIn); err != nil {
		return nil, err
	}
	pair, err := e.pairs.Get(asset)
	if err != nil {
		return nil, err
	}
	tokenReserve, err := e.convert.AssetToCurrency(pair.TokenReserve)
	if err != nil {
		return nil, err
	}
	amountInCurrency, err := e.convert.AssetToCurrency(amountIn)
	if err != nil {
		return nil, err
	}
	if _, err := e.cfg.Fee.OutputFor(amountInCurrency, tokenReserve, pair.CurrencyReserve); err != nil {
		return nil, err
	}

	if err := e.assets.Transfer(asset, buyer, e.cfg.Custody, amountIn); err != nil {
		return nil, err
	}
	if err := e.book.Append(asset, AssetToCurrency, buyer, amountIn); err != nil {
		return nil, err
	}

	return []event.Event{
		&event.AddedSwapAssetForCurrency{
			AssetID:  uint32(asset),
			Buyer:    buyer,
			AmountIn: amountIn,
		},
	}, nil
}
