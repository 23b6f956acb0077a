package projection_test

import (
	"testing"
	"time"

	"FairSwap/internal/projection"
)

func record(seq int64, asset uint32) projection.SettlementRecord {
	return projection.SettlementRecord{
		Sequence:     seq,
		AssetID:      asset,
		CurrencyOut:  100,
		AssetOut:     100,
		Participants: 2,
		Timestamp:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// ===== Test: Recent returns newest first, filtered by pair =====

func TestSettlementHistory_RecentFiltersAndOrders(t *testing.T) {
	h := projection.NewSettlementHistory(16)

	h.Add(record(1, 7))
	h.Add(record(2, 9))
	h.Add(record(3, 7))
	h.Add(record(4, 7))

	got := h.Recent(7, 2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Sequence != 4 || got[1].Sequence != 3 {
		t.Errorf("sequences = %d, %d, want 4, 3", got[0].Sequence, got[1].Sequence)
	}

	if got := h.Recent(9, 10); len(got) != 1 || got[0].Sequence != 2 {
		t.Errorf("asset 9 records = %+v, want single sequence 2", got)
	}
}

// ===== Test: capacity bound evicts oldest =====

func TestSettlementHistory_EvictsOldestAtCapacity(t *testing.T) {
	h := projection.NewSettlementHistory(3)

	for seq := int64(1); seq <= 5; seq++ {
		h.Add(record(seq, 7))
	}

	if h.Len() != 3 {
		t.Fatalf("len = %d, want 3", h.Len())
	}

	got := h.Recent(7, 10)
	if len(got) != 3 {
		t.Fatalf("recent len = %d, want 3", len(got))
	}
	if got[0].Sequence != 5 || got[2].Sequence != 3 {
		t.Errorf("window = [%d..%d], want [5..3]", got[0].Sequence, got[2].Sequence)
	}
}
