package ledger

import "github.com/google/uuid"

// TransferKind labels the purpose of a journal record.
type TransferKind int32

const (
	TransferKindMove TransferKind = iota
	TransferKindMint
	TransferKindBurn
)

// Transfer is a single recorded balance movement. Mint and burn
// records use the zero UUID as the missing counterparty.
type Transfer struct {
	Asset  AssetID
	From   uuid.UUID
	To     uuid.UUID
	Amount uint64
	Kind   TransferKind
}

// Journal collects the transfers produced while applying one command.
// The core drains it after a successful apply and persists the entries
// alongside the command record.
type Journal struct {
	entries []Transfer
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) record(t Transfer) {
	if j == nil {
		return
	}
	j.entries = append(j.entries, t)
}

// Drain returns the collected entries and resets the journal.
func (j *Journal) Drain() []Transfer {
	if j == nil {
		return nil
	}
	out := j.entries
	j.entries = nil
	return out
}

// Len reports the number of pending entries.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	return len(j.entries)
}
