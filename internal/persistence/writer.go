package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FairSwap/internal/event"
	"FairSwap/internal/ledger"

	"github.com/google/uuid"
)

// CommandLogWriter writes command envelopes and balance transfers to
// Postgres using batch inserts. Multi-row INSERT is used rather than
// the COPY protocol; switch to pgx CopyFrom if write throughput ever
// becomes the bottleneck.
type CommandLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in event_log.events. One row is written
// per applied command; the payload is the JSON-encoded command and is
// what replay reads back on restart.
type EventRow struct {
	Sequence       int64
	CommandKind    string
	CommandID      string
	IdempotencyKey string
	AssetID        int64
	Payload        []byte
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
}

// TransferRow represents a row in event_log.transfers.
type TransferRow struct {
	TransferID  string
	Sequence    int64
	AssetID     int64
	FromAccount string
	ToAccount   string
	Amount      int64
	Kind        int32
	Timestamp   time.Time
}

func NewCommandLogWriter(db *sql.DB) *CommandLogWriter {
	return &CommandLogWriter{db: db}
}

// WriteEventBatch writes a batch of envelope rows inside the given
// transaction. ON CONFLICT DO NOTHING makes replayed writes idempotent.
func (w *CommandLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, command_kind, command_id, idempotency_key, asset_id, payload, state_hash, prev_hash, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*9)

	for i, e := range events {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.Sequence, e.CommandKind, e.CommandID, e.IdempotencyKey,
			e.AssetID, e.Payload, e.StateHash, e.PrevHash, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteTransferBatch writes a batch of transfer rows inside the given
// transaction.
func (w *CommandLogWriter) WriteTransferBatch(ctx context.Context, tx *sql.Tx, transfers []TransferRow) error {
	if len(transfers) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.transfers
		(transfer_id, sequence, asset_id, from_account, to_account, amount, kind, timestamp)
		VALUES `

	values := make([]string, 0, len(transfers))
	args := make([]interface{}, 0, len(transfers)*8)

	for i, t := range transfers {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			t.TransferID, t.Sequence, t.AssetID, t.FromAccount,
			t.ToAccount, t.Amount, t.Kind, t.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (transfer_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// RowFromEnvelope converts a command envelope into its event_log row.
func RowFromEnvelope(env *event.Envelope) EventRow {
	return EventRow{
		Sequence:       env.Sequence,
		CommandKind:    env.CommandKind,
		CommandID:      env.CommandID.String(),
		IdempotencyKey: env.IdempotencyKey,
		AssetID:        int64(env.AssetID),
		Payload:        env.Payload,
		StateHash:      env.StateHash[:],
		PrevHash:       env.PrevHash[:],
		Timestamp:      env.Timestamp,
	}
}

// TransferRowsFromJournal converts the transfers recorded while
// applying one command into their event_log rows. Row IDs are minted
// once per output, so flush retries re-present the same IDs and the
// ON CONFLICT clause keeps partial-failure retries idempotent. Replay
// never reaches the persist channel, so log rows are written once.
func TransferRowsFromJournal(sequence int64, ts time.Time, transfers []ledger.Transfer) []TransferRow {
	if len(transfers) == 0 {
		return nil
	}

	rows := make([]TransferRow, 0, len(transfers))
	for _, t := range transfers {
		rows = append(rows, TransferRow{
			TransferID:  uuid.New().String(),
			Sequence:    sequence,
			AssetID:     int64(t.Asset),
			FromAccount: t.From.String(),
			ToAccount:   t.To.String(),
			Amount:      int64(t.Amount),
			Kind:        int32(t.Kind),
			Timestamp:   ts,
		})
	}
	return rows
}
