// Package ledger holds the balance books the exchange settles against:
// a native-currency bank and a registry of fungible token classes. Both
// are plain in-memory maps mutated only by the single-threaded core;
// deep Clone support is what makes command application all-or-nothing.
package ledger

import (
	"errors"

	"github.com/google/uuid"
)

// AssetID identifies a fungible token class. ID zero is reserved for
// the native currency in journal records.
type AssetID uint32

// NativeCurrency is the journal asset id for bank transfers.
const NativeCurrency AssetID = 0

// Liveness controls whether a transfer may empty the source account.
type Liveness int

const (
	// KeepAlive rejects transfers that would drop the source below the
	// minimum balance.
	KeepAlive Liveness = iota
	// AllowDeath lets the source be drained entirely.
	AllowDeath
)

var (
	// ErrBalanceTooLow is returned when a currency account cannot cover
	// a transfer.
	ErrBalanceTooLow = errors.New("currency balance too low")

	// ErrNotEnoughTokens is returned when a token account cannot cover
	// a withdrawal.
	ErrNotEnoughTokens = errors.New("not enough tokens")

	// ErrAssetNotFound is returned when a token class does not exist.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrTokenIDInUse is returned when creating a token class under an
	// id that already exists.
	ErrTokenIDInUse = errors.New("token id already in use")

	// ErrOverflow is returned when minting would overflow issuance or a
	// balance.
	ErrOverflow = errors.New("ledger arithmetic overflow")
)

// Currency is the bank-facing view the trading components use.
type Currency interface {
	FreeBalance(account uuid.UUID) uint64
	Transfer(from, to uuid.UUID, amount uint64, liveness Liveness) error
}

// Assets is the token-registry view the trading components use.
type Assets interface {
	Exists(asset AssetID) bool
	Balance(asset AssetID, account uuid.UUID) uint64
	TotalIssuance(asset AssetID) uint64
	CanWithdraw(asset AssetID, account uuid.UUID, amount uint64) error
	Transfer(asset AssetID, from, to uuid.UUID, amount uint64) error
	Mint(asset AssetID, to uuid.UUID, amount uint64) error
	Burn(asset AssetID, from uuid.UUID, amount uint64) error
	Create(asset AssetID, admin uuid.UUID, minBalance uint64) error
}

func addChecked(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}
