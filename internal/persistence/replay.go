package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// ReplayLoader reads the command log back for startup recovery. There
// are no snapshots: the log holds only applied commands, so replaying
// it from sequence 0 rebuilds the exact in-memory state and hash chain.
type ReplayLoader struct {
	db *sql.DB
}

// LogTip describes the last persisted envelope.
type LogTip struct {
	Sequence  int64
	StateHash []byte
}

func NewReplayLoader(db *sql.DB) *ReplayLoader {
	return &ReplayLoader{db: db}
}

// LoadCommandsFrom loads envelope rows from a given sequence onward,
// ordered by sequence. Used in pages during startup replay.
func (rl *ReplayLoader) LoadCommandsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := rl.db.QueryContext(ctx, `
		SELECT sequence, command_kind, command_id, idempotency_key, asset_id,
		       payload, state_hash, prev_hash, timestamp
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.CommandKind, &e.CommandID, &e.IdempotencyKey,
			&e.AssetID, &e.Payload, &e.StateHash, &e.PrevHash, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// Tip returns the sequence and state hash of the last persisted
// envelope, or nil on an empty log.
func (rl *ReplayLoader) Tip(ctx context.Context) (*LogTip, error) {
	row := rl.db.QueryRowContext(ctx, `
		SELECT sequence, state_hash
		FROM event_log.events
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var tip LogTip
	if err := row.Scan(&tip.Sequence, &tip.StateHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // empty log, cold start
		}
		return nil, fmt.Errorf("load log tip: %w", err)
	}
	return &tip, nil
}

// LoadRecentIdempotencyKeys returns the newest keys in the log, oldest
// first, for warming the in-memory dedup LRU after replay.
func (rl *ReplayLoader) LoadRecentIdempotencyKeys(ctx context.Context, limit int) ([]string, error) {
	rows, err := rl.db.QueryContext(ctx, `
		SELECT command_kind, idempotency_key FROM (
			SELECT sequence, command_kind, idempotency_key
			FROM event_log.events
			ORDER BY sequence DESC
			LIMIT $1
		) recent
		ORDER BY sequence ASC
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var kind, key string
		if err := rows.Scan(&kind, &key); err != nil {
			return nil, err
		}
		keys = append(keys, kind+":"+key)
	}

	return keys, rows.Err()
}
