package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the emitted trading events.
type Kind int32

const (
	KindUnknown Kind = iota
	KindPairCreated
	KindLiquidityAdded
	KindLiquidityRemoved
	KindSwappedCurrencyForAsset
	KindSwappedAssetForCurrency
	KindAddedSwapCurrencyForAsset
	KindAddedSwapAssetForCurrency
	KindSettlementPerformed
)

// Envelope wraps the outcome of one applied command in the log. One
// envelope is written per command; the events it groups share its
// sequence number.
type Envelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Command that produced this entry
	CommandID uuid.UUID

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Command kind discriminator (wire name, e.g. "settle")
	CommandKind string

	// Pair context
	AssetID uint32

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// JSON-encoded command payload, replayed on restart
	Payload []byte

	// SHA-256 of state AFTER applying this command
	StateHash [32]byte

	// Previous entry's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all emitted trading events implement.
type Event interface {
	// Kind returns the discriminator
	Kind() Kind

	// Asset returns the pair the event belongs to
	Asset() uint32
}

func (k Kind) String() string {
	switch k {
	case KindPairCreated:
		return "PairCreated"
	case KindLiquidityAdded:
		return "LiquidityAdded"
	case KindLiquidityRemoved:
		return "LiquidityRemoved"
	case KindSwappedCurrencyForAsset:
		return "SwappedCurrencyForAsset"
	case KindSwappedAssetForCurrency:
		return "SwappedAssetForCurrency"
	case KindAddedSwapCurrencyForAsset:
		return "AddedSwapCurrencyForAsset"
	case KindAddedSwapAssetForCurrency:
		return "AddedSwapAssetForCurrency"
	case KindSettlementPerformed:
		return "SettlementPerformed"
	default:
		return "Unknown"
	}
}
