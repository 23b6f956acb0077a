package core

import (
	"encoding/binary"

	"FairSwap/internal/ledger"
	"FairSwap/internal/pool"
	"FairSwap/internal/settlement"
)

// coreState bundles the mutable trading state the core owns. A command
// is dispatched against a clone; the clone replaces the live state only
// when dispatch succeeds, so a failed command leaves no partial writes.
type coreState struct {
	bank    *ledger.Bank
	assets  *ledger.Registry
	pairs   *pool.Store
	book    *settlement.Book
	journal *ledger.Journal
}

func newCoreState(minBalance uint64) *coreState {
	journal := ledger.NewJournal()
	return &coreState{
		bank:    ledger.NewBank(minBalance, journal),
		assets:  ledger.NewRegistry(journal),
		pairs:   pool.NewStore(),
		book:    settlement.NewBook(),
		journal: journal,
	}
}

// clone deep-copies the state. The clone records transfers into its own
// journal so a discarded clone leaves no trace in the committed one.
func (s *coreState) clone() *coreState {
	journal := ledger.NewJournal()
	return &coreState{
		bank:    s.bank.Clone(journal),
		assets:  s.assets.Clone(journal),
		pairs:   s.pairs.Clone(),
		book:    s.book.Clone(),
		journal: journal,
	}
}

// digest builds the canonical bytes hashed into the state chain. The
// encoding walks pairs and book entries in sorted order so equal states
// always produce equal bytes.
func (s *coreState) digest() []byte {
	buf := make([]byte, 0, 256)

	buf = appendUint64LE(buf, s.bank.TotalIssuance())

	pairs := s.pairs.All()
	buf = appendUint64LE(buf, uint64(len(pairs)))
	for _, p := range pairs {
		buf = appendUint32LE(buf, uint32(p.AssetID))
		buf = appendUint32LE(buf, uint32(p.LiquidityTokenID))
		buf = appendUint64LE(buf, p.CurrencyReserve)
		buf = appendUint64LE(buf, p.TokenReserve)
		buf = appendUint64LE(buf, s.assets.TotalIssuance(p.LiquidityTokenID))
		buf = appendUint64LE(buf, s.assets.TotalIssuance(p.AssetID))
	}

	for _, asset := range s.book.Assets() {
		buf = appendUint32LE(buf, uint32(asset))
		for _, dir := range []settlement.Direction{settlement.CurrencyToAsset, settlement.AssetToCurrency} {
			entries := s.book.Entries(asset, dir)
			buf = appendUint64LE(buf, uint64(len(entries)))
			for _, e := range entries {
				buf = append(buf, e.Account[:]...)
				buf = appendUint64LE(buf, e.Amount)
			}
		}
	}

	return buf
}

func appendUint64LE(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendUint32LE(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}
