package projection

import (
	"sync"
	"time"
)

// SettlementRecord is one cleared batch as kept in memory.
type SettlementRecord struct {
	Sequence     int64
	AssetID      uint32
	CurrencyOut  uint64
	AssetOut     uint64
	Participants int
	Timestamp    time.Time
}

// SettlementHistory keeps the most recent settlement records in memory
// so the query service can answer history requests without a DB round
// trip. The durable record lives in projections.settlements; this is a
// bounded cache that regrows after restart.
type SettlementHistory struct {
	mu      sync.RWMutex
	entries []SettlementRecord
	cap     int
}

func NewSettlementHistory(capacity int) *SettlementHistory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &SettlementHistory{
		entries: make([]SettlementRecord, 0, capacity),
		cap:     capacity,
	}
}

// Add records a settlement, evicting the oldest entry when full.
func (h *SettlementHistory) Add(rec SettlementRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) == h.cap {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, rec)
}

// Recent returns up to limit records for a pair, newest first.
func (h *SettlementHistory) Recent(assetID uint32, limit int) []SettlementRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]SettlementRecord, 0)
	for i := len(h.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if h.entries[i].AssetID == assetID {
			result = append(result, h.entries[i])
		}
	}
	return result
}

// Len reports the number of cached records.
func (h *SettlementHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
