package event

import "github.com/google/uuid"

// PairCreated announces a new trading pair and its liquidity token.
type PairCreated struct {
	AssetID          uint32    `json:"asset_id"`
	LiquidityTokenID uint32    `json:"liquidity_token_id"`
	Provider         uuid.UUID `json:"provider"`
	CurrencyAmount   uint64    `json:"currency_amount"`
	TokenAmount      uint64    `json:"token_amount"`
	LiquidityMinted  uint64    `json:"liquidity_minted"`
}

func (e *PairCreated) Kind() Kind    { return KindPairCreated }
func (e *PairCreated) Asset() uint32 { return e.AssetID }

// LiquidityAdded records a proportional join into an existing pair.
type LiquidityAdded struct {
	Provider        uuid.UUID `json:"provider"`
	AssetID         uint32    `json:"asset_id"`
	CurrencyAmount  uint64    `json:"currency_amount"`
	TokenAmount     uint64    `json:"token_amount"`
	LiquidityMinted uint64    `json:"liquidity_minted"`
}

func (e *LiquidityAdded) Kind() Kind    { return KindLiquidityAdded }
func (e *LiquidityAdded) Asset() uint32 { return e.AssetID }

// LiquidityRemoved records a proportional exit from a pair.
type LiquidityRemoved struct {
	Provider        uuid.UUID `json:"provider"`
	AssetID         uint32    `json:"asset_id"`
	CurrencyAmount  uint64    `json:"currency_amount"`
	TokenAmount     uint64    `json:"token_amount"`
	LiquidityBurned uint64    `json:"liquidity_burned"`
}

func (e *LiquidityRemoved) Kind() Kind    { return KindLiquidityRemoved }
func (e *LiquidityRemoved) Asset() uint32 { return e.AssetID }

// SwappedCurrencyForAsset records an executed currency-to-asset swap,
// direct or settled from a batch.
type SwappedCurrencyForAsset struct {
	AssetID        uint32    `json:"asset_id"`
	Buyer          uuid.UUID `json:"buyer"`
	CurrencyAmount uint64    `json:"currency_amount"`
	TokenAmount    uint64    `json:"token_amount"`
}

func (e *SwappedCurrencyForAsset) Kind() Kind    { return KindSwappedCurrencyForAsset }
func (e *SwappedCurrencyForAsset) Asset() uint32 { return e.AssetID }

// SwappedAssetForCurrency records an executed asset-to-currency swap,
// direct or settled from a batch.
type SwappedAssetForCurrency struct {
	AssetID        uint32    `json:"asset_id"`
	Buyer          uuid.UUID `json:"buyer"`
	CurrencyAmount uint64    `json:"currency_amount"`
	TokenAmount    uint64    `json:"token_amount"`
}

func (e *SwappedAssetForCurrency) Kind() Kind    { return KindSwappedAssetForCurrency }
func (e *SwappedAssetForCurrency) Asset() uint32 { return e.AssetID }

// AddedSwapCurrencyForAsset records a currency-side intent joining the
// batch queue.
type AddedSwapCurrencyForAsset struct {
	AssetID  uint32    `json:"asset_id"`
	Buyer    uuid.UUID `json:"buyer"`
	AmountIn uint64    `json:"amount_in"`
}

func (e *AddedSwapCurrencyForAsset) Kind() Kind    { return KindAddedSwapCurrencyForAsset }
func (e *AddedSwapCurrencyForAsset) Asset() uint32 { return e.AssetID }

// AddedSwapAssetForCurrency records an asset-side intent joining the
// batch queue.
type AddedSwapAssetForCurrency struct {
	AssetID  uint32    `json:"asset_id"`
	Buyer    uuid.UUID `json:"buyer"`
	AmountIn uint64    `json:"amount_in"`
}

func (e *AddedSwapAssetForCurrency) Kind() Kind    { return KindAddedSwapAssetForCurrency }
func (e *AddedSwapAssetForCurrency) Asset() uint32 { return e.AssetID }

// SettlementPerformed summarizes one cleared batch.
type SettlementPerformed struct {
	AssetID      uint32 `json:"asset_id"`
	CurrencyOut  uint64 `json:"currency_out"`
	AssetOut     uint64 `json:"asset_out"`
	Participants int    `json:"participants"`
}

func (e *SettlementPerformed) Kind() Kind    { return KindSettlementPerformed }
func (e *SettlementPerformed) Asset() uint32 { return e.AssetID }
