package ledger

import "github.com/google/uuid"

// Bank is the in-memory native-currency book. Accounts below the
// minimum balance cannot be left behind by a KeepAlive transfer;
// accounts drained to zero are removed.
type Bank struct {
	balances   map[uuid.UUID]uint64
	minBalance uint64
	journal    *Journal
}

// NewBank constructs an empty bank recording into journal. A nil
// journal disables recording.
func NewBank(minBalance uint64, journal *Journal) *Bank {
	return &Bank{
		balances:   make(map[uuid.UUID]uint64),
		minBalance: minBalance,
		journal:    journal,
	}
}

// FreeBalance returns the spendable balance of account.
func (b *Bank) FreeBalance(account uuid.UUID) uint64 {
	return b.balances[account]
}

// Deposit mints amount into account. Used for genesis funding and
// account top-ups from the ingestion side.
func (b *Bank) Deposit(account uuid.UUID, amount uint64) error {
	next, err := addChecked(b.balances[account], amount)
	if err != nil {
		return err
	}
	b.balances[account] = next
	b.journal.record(Transfer{
		Asset:  NativeCurrency,
		To:     account,
		Amount: amount,
		Kind:   TransferKindMint,
	})
	return nil
}

// Transfer moves amount from one account to another.
func (b *Bank) Transfer(from, to uuid.UUID, amount uint64, liveness Liveness) error {
	if amount == 0 {
		return nil
	}
	have := b.balances[from]
	if have < amount {
		return ErrBalanceTooLow
	}
	remaining := have - amount
	if liveness == KeepAlive && remaining < b.minBalance {
		return ErrBalanceTooLow
	}
	next, err := addChecked(b.balances[to], amount)
	if err != nil {
		return err
	}
	if remaining == 0 {
		delete(b.balances, from)
	} else {
		b.balances[from] = remaining
	}
	b.balances[to] = next
	b.journal.record(Transfer{
		Asset:  NativeCurrency,
		From:   from,
		To:     to,
		Amount: amount,
		Kind:   TransferKindMove,
	})
	return nil
}

// TotalIssuance sums every account balance. Used by audit checks and
// tests, not by the hot path.
func (b *Bank) TotalIssuance() uint64 {
	var total uint64
	for _, v := range b.balances {
		total += v
	}
	return total
}

// Clone deep-copies the bank, rebinding it to journal.
func (b *Bank) Clone(journal *Journal) *Bank {
	next := &Bank{
		balances:   make(map[uuid.UUID]uint64, len(b.balances)),
		minBalance: b.minBalance,
		journal:    journal,
	}
	for k, v := range b.balances {
		next.balances[k] = v
	}
	return next
}
