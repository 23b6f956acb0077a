package core

import "container/list"

// IdempotencyChecker deduplicates commands in two tiers: an in-memory
// LRU over composite kind:key strings, falling back to a Postgres
// lookup for keys that have aged out of memory.
type IdempotencyChecker struct {
	lru       *dedupLRU
	dbChecker DBIdempotencyChecker
	stats     DedupStats
}

// DBIdempotencyChecker is the cold-tier lookup, backed by the command
// log's unique (kind, key) index.
type DBIdempotencyChecker interface {
	IsDuplicate(commandKind string, idempotencyKey string) (bool, error)
}

// DedupStats counts dedup outcomes. Only touched from the
// single-threaded core, so plain fields suffice.
type DedupStats struct {
	HitsLRU      int64
	HitsPostgres int64
	LookupErrors int64
}

func NewIdempotencyChecker(capacity int, dbChecker DBIdempotencyChecker) *IdempotencyChecker {
	return &IdempotencyChecker{
		lru:       newDedupLRU(capacity),
		dbChecker: dbChecker,
	}
}

// IsDuplicate reports whether the command was already applied. A
// failed DB lookup counts as not-duplicate so a Postgres outage cannot
// stall command processing; the log's unique index still rejects the
// eventual double insert.
func (ic *IdempotencyChecker) IsDuplicate(commandKind, idempotencyKey string) bool {
	key := commandKind + ":" + idempotencyKey

	if ic.lru.contains(key) {
		ic.stats.HitsLRU++
		return true
	}

	if ic.dbChecker == nil {
		return false
	}

	dup, err := ic.dbChecker.IsDuplicate(commandKind, idempotencyKey)
	if err != nil {
		ic.stats.LookupErrors++
		return false
	}
	if dup {
		ic.stats.HitsPostgres++
		ic.lru.add(key)
	}
	return dup
}

// MarkProcessed records a successfully applied command's key.
func (ic *IdempotencyChecker) MarkProcessed(commandKind, idempotencyKey string) {
	ic.lru.add(commandKind + ":" + idempotencyKey)
}

// WarmFromKeys preloads composite keys, oldest first, so that after a
// restart the hot tier already covers the recent log tail.
func (ic *IdempotencyChecker) WarmFromKeys(keys []string) {
	for _, key := range keys {
		ic.lru.add(key)
	}
}

func (ic *IdempotencyChecker) Stats() DedupStats {
	return ic.stats
}

// dedupLRU is a plain map+list LRU. Not thread-safe; only the core
// goroutine touches it.
type dedupLRU struct {
	capacity  int
	elems     map[string]*list.Element
	order     *list.List
	evictions int64
}

func newDedupLRU(capacity int) *dedupLRU {
	return &dedupLRU{
		capacity: capacity,
		elems:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (l *dedupLRU) contains(key string) bool {
	elem, ok := l.elems[key]
	if ok {
		l.order.MoveToFront(elem)
	}
	return ok
}

func (l *dedupLRU) add(key string) {
	if elem, ok := l.elems[key]; ok {
		l.order.MoveToFront(elem)
		return
	}

	l.elems[key] = l.order.PushFront(key)

	if l.order.Len() > l.capacity {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.elems, oldest.Value.(string))
		l.evictions++
	}
}
