package query

import "time"

// PairResponse represents one trading pair for API queries.
type PairResponse struct {
	AssetID           uint32 `json:"asset_id"`
	LiquidityTokenID  uint32 `json:"liquidity_token_id"`
	CurrencyReserve   int64  `json:"currency_reserve"`
	TokenReserve      int64  `json:"token_reserve"`
	LiquidityIssuance int64  `json:"liquidity_issuance"`

	// Pending batch depth per direction
	CurrencyQueueDepth int `json:"currency_queue_depth"`
	AssetQueueDepth    int `json:"asset_queue_depth"`

	AsOfSequence int64 `json:"as_of_sequence"`
}

// SettlementResponse represents one cleared batch for API queries.
type SettlementResponse struct {
	Sequence     int64     `json:"sequence"`
	AssetID      uint32    `json:"asset_id"`
	CurrencyOut  int64     `json:"currency_out"`
	AssetOut     int64     `json:"asset_out"`
	Participants int       `json:"participants"`
	Timestamp    time.Time `json:"timestamp"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// TransferHistoryEntry represents a transfer log row for API queries.
type TransferHistoryEntry struct {
	TransferID  string    `json:"transfer_id"`
	Sequence    int64     `json:"sequence"`
	AssetID     uint32    `json:"asset_id"`
	FromAccount string    `json:"from_account"`
	ToAccount   string    `json:"to_account"`
	Amount      int64     `json:"amount"`
	Kind        int32     `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset represents an asset whose projected balances do not
// sum to zero. Mints and burns post against the zero account, so a
// consistent projection always nets out.
type UnbalancedAsset struct {
	AssetID   uint32 `json:"asset_id"`
	Imbalance int64  `json:"imbalance"`
}
