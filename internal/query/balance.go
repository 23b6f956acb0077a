package query

import (
	"github.com/google/uuid"
)

// BalanceResponse represents one account balance for API queries.
type BalanceResponse struct {
	Account uuid.UUID `json:"account"`
	AssetID uint32    `json:"asset_id"`
	Balance int64     `json:"balance"`

	AsOfSequence int64 `json:"as_of_sequence"`
}

// AccountBalancesResponse lists every asset an account holds.
type AccountBalancesResponse struct {
	Account      uuid.UUID         `json:"account"`
	Balances     []BalanceResponse `json:"balances"`
	AsOfSequence int64             `json:"as_of_sequence"`
}
