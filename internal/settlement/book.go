// Package settlement implements the batched side of the exchange: the
// per-pair intent queues with their cumulative escrow ledgers, and the
// fragmented clearing engine that settles both sides of a batch at one
// blended price.
package settlement

import (
	"errors"
	"sort"

	"FairSwap/internal/ledger"
	"FairSwap/internal/pool"

	"github.com/google/uuid"
)

var (
	// ErrQueueTooSmall is returned when settlement is requested before
	// both queues reach the configured minimum depth.
	ErrQueueTooSmall = errors.New("queue too small")

	// ErrCurrencyOverflow is returned when the clearing simulation
	// drives the currency reserve past the deposited total.
	ErrCurrencyOverflow = errors.New("currency overflow in clearing")

	// ErrAssetOverflow is returned when the clearing simulation drives
	// the asset reserve past the deposited total.
	ErrAssetOverflow = errors.New("asset overflow in clearing")

	// ErrCurrencyLeak is returned when custody holds less currency
	// than the post-clearing reserve predicts.
	ErrCurrencyLeak = errors.New("currency leak detected")

	// ErrAssetLeak is returned when custody holds fewer tokens than
	// the post-clearing reserve predicts.
	ErrAssetLeak = errors.New("asset leak detected")
)

// Direction names the side of a batched intent.
type Direction int32

const (
	CurrencyToAsset Direction = iota
	AssetToCurrency
)

func (d Direction) String() string {
	if d == AssetToCurrency {
		return "asset_to_currency"
	}
	return "currency_to_asset"
}

type bookKey struct {
	asset ledger.AssetID
	dir   Direction
}

// Book holds, per pair and direction, the ordered intent queue and the
// cumulative escrowed amount per account. Queue entries repeat when an
// account enqueues more than once in a batch; the cumulative map folds
// those into one total. Currency-side cumulatives are currency units,
// asset-side cumulatives are asset units.
type Book struct {
	queues     map[bookKey][]uuid.UUID
	cumulative map[bookKey]map[uuid.UUID]uint64
}

// NewBook returns an empty intent book.
func NewBook() *Book {
	return &Book{
		queues:     make(map[bookKey][]uuid.UUID),
		cumulative: make(map[bookKey]map[uuid.UUID]uint64),
	}
}

// InitPair registers empty queues for both directions of a new pair.
func (b *Book) InitPair(asset ledger.AssetID) {
	for _, dir := range []Direction{CurrencyToAsset, AssetToCurrency} {
		key := bookKey{asset: asset, dir: dir}
		if _, ok := b.queues[key]; !ok {
			b.queues[key] = []uuid.UUID{}
			b.cumulative[key] = make(map[uuid.UUID]uint64)
		}
	}
}

// Queue returns the intent queue for one side of a pair.
func (b *Book) Queue(asset ledger.AssetID, dir Direction) ([]uuid.UUID, error) {
	q, ok := b.queues[bookKey{asset: asset, dir: dir}]
	if !ok {
		return nil, pool.ErrPairNotFound
	}
	return q, nil
}

// Depth reports the queue length for one side of a pair.
func (b *Book) Depth(asset ledger.AssetID, dir Direction) int {
	return len(b.queues[bookKey{asset: asset, dir: dir}])
}

// Append records an intent: one queue entry plus the amount accrued
// into the account's cumulative.
func (b *Book) Append(asset ledger.AssetID, dir Direction, account uuid.UUID, amount uint64) error {
	key := bookKey{asset: asset, dir: dir}
	if _, ok := b.queues[key]; !ok {
		return pool.ErrPairNotFound
	}
	b.queues[key] = append(b.queues[key], account)
	b.cumulative[key][account] += amount
	return nil
}

// Cumulative returns the escrowed total for account on one side,
// zero if absent.
func (b *Book) Cumulative(asset ledger.AssetID, dir Direction, account uuid.UUID) uint64 {
	return b.cumulative[bookKey{asset: asset, dir: dir}][account]
}

// CumulativeTotal sums the side's cumulative map. Used by projections
// and state digests.
func (b *Book) CumulativeTotal(asset ledger.AssetID, dir Direction) uint64 {
	var total uint64
	for _, v := range b.cumulative[bookKey{asset: asset, dir: dir}] {
		total += v
	}
	return total
}

// reset empties both queues of a pair and drops every cumulative entry
// on each side, keyed per direction.
func (b *Book) reset(asset ledger.AssetID) {
	for _, dir := range []Direction{CurrencyToAsset, AssetToCurrency} {
		key := bookKey{asset: asset, dir: dir}
		b.queues[key] = []uuid.UUID{}
		b.cumulative[key] = make(map[uuid.UUID]uint64)
	}
}

// Assets returns every asset id with registered queues, sorted, for
// deterministic digests.
func (b *Book) Assets() []ledger.AssetID {
	seen := make(map[ledger.AssetID]struct{})
	for key := range b.queues {
		seen[key.asset] = struct{}{}
	}
	out := make([]ledger.AssetID, 0, len(seen))
	for asset := range seen {
		out = append(out, asset)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Entries returns the side's cumulative entries ordered by first queue
// appearance, for deterministic digests.
func (b *Book) Entries(asset ledger.AssetID, dir Direction) []BookEntry {
	key := bookKey{asset: asset, dir: dir}
	out := make([]BookEntry, 0)
	for _, account := range distinct(b.queues[key]) {
		out = append(out, BookEntry{Account: account, Amount: b.cumulative[key][account]})
	}
	return out
}

// BookEntry is one account's aggregated position on a side.
type BookEntry struct {
	Account uuid.UUID
	Amount  uint64
}

// Clone deep-copies the book.
func (b *Book) Clone() *Book {
	next := NewBook()
	for key, q := range b.queues {
		next.queues[key] = append([]uuid.UUID(nil), q...)
	}
	for key, m := range b.cumulative {
		copied := make(map[uuid.UUID]uint64, len(m))
		for k, v := range m {
			copied[k] = v
		}
		next.cumulative[key] = copied
	}
	return next
}

// distinct returns the queue's accounts deduplicated, preserving first
// appearance order.
func distinct(queue []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(queue))
	out := make([]uuid.UUID, 0, len(queue))
	for _, account := range queue {
		if _, ok := seen[account]; ok {
			continue
		}
		seen[account] = struct{}{}
		out = append(out, account)
	}
	return out
}
