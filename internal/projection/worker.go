package projection

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
)

// ProjectionOutput mirrors the data projection workers need from an
// applied command. The orchestrator bridges between core.CoreOutput
// and this.
type ProjectionOutput struct {
	Sequence    int64
	CommandKind string
	AssetID     uint32
	Timestamp   time.Time
	Transfers   []TransferEntry
	Pair        *PairState
	Settlement  *SettlementResult

	QueueDepthCurrency int
	QueueDepthAsset    int
}

// TransferEntry is a simplified transfer for projection consumption.
// Mints carry the zero UUID as FromAccount and burns as ToAccount, so
// the zero account's projected balance is minus the total issuance.
type TransferEntry struct {
	FromAccount string
	ToAccount   string
	AssetID     uint32
	Amount      int64
}

// PairState is a post-command snapshot of one pair.
type PairState struct {
	AssetID           uint32
	LiquidityTokenID  uint32
	CurrencyReserve   uint64
	TokenReserve      uint64
	LiquidityIssuance uint64
}

// SettlementResult summarizes one cleared batch for the history table.
type SettlementResult struct {
	CurrencyOut  uint64
	AssetOut     uint64
	Participants int
}

// ProjectionWorker updates the read-side tables from applied commands.
// The projection channel is non-blocking with drop: if projections
// fall behind, balances can be rebuilt from the transfer log and pair
// rows are refreshed by the next command touching the pair.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan ProjectionOutput
	history   *SettlementHistory
	lastSeq   int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan ProjectionOutput, history *SettlementHistory) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		history:   history,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.processOutput(ctx, output); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v", output.Sequence, err)
				// Continue; projections are eventually consistent
			}

			if output.Settlement != nil && pw.history != nil {
				pw.history.Add(SettlementRecord{
					Sequence:     output.Sequence,
					AssetID:      output.AssetID,
					CurrencyOut:  output.Settlement.CurrencyOut,
					AssetOut:     output.Settlement.AssetOut,
					Participants: output.Settlement.Participants,
					Timestamp:    output.Timestamp,
				})
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output ProjectionOutput) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range output.Transfers {
		if err := pw.updateBalanceProjection(ctx, tx, t, output.Sequence); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	if output.Pair != nil {
		if err := pw.updatePairProjection(ctx, tx, output); err != nil {
			return fmt.Errorf("pair projection: %w", err)
		}
	}

	if output.Settlement != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.settlements
				(sequence, asset_id, currency_out, asset_out, participants, timestamp)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (sequence) DO NOTHING
		`, output.Sequence, output.AssetID,
			int64(output.Settlement.CurrencyOut), int64(output.Settlement.AssetOut),
			output.Settlement.Participants, output.Timestamp,
		); err != nil {
			return fmt.Errorf("settlement projection: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func (pw *ProjectionWorker) updateBalanceProjection(ctx context.Context, tx *sql.Tx, t TransferEntry, seq int64) error {
	// Debit side
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account, asset_id, balance, last_sequence)
		VALUES ($1, $2, -$3, $4)
		ON CONFLICT (account, asset_id)
		DO UPDATE SET balance = projections.balances.balance - $3, last_sequence = $4
	`, t.FromAccount, t.AssetID, t.Amount, seq); err != nil {
		return err
	}

	// Credit side
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account, asset_id, balance, last_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account, asset_id)
		DO UPDATE SET balance = projections.balances.balance + $3, last_sequence = $4
	`, t.ToAccount, t.AssetID, t.Amount, seq); err != nil {
		return err
	}

	return nil
}

func (pw *ProjectionWorker) updatePairProjection(ctx context.Context, tx *sql.Tx, output ProjectionOutput) error {
	p := output.Pair
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.pairs
			(asset_id, liquidity_token_id, currency_reserve, token_reserve,
			 liquidity_issuance, currency_queue_depth, asset_queue_depth,
			 last_sequence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (asset_id) DO UPDATE SET
			currency_reserve = $3, token_reserve = $4, liquidity_issuance = $5,
			currency_queue_depth = $6, asset_queue_depth = $7,
			last_sequence = $8, updated_at = NOW()
	`, p.AssetID, p.LiquidityTokenID,
		int64(p.CurrencyReserve), int64(p.TokenReserve), int64(p.LiquidityIssuance),
		output.QueueDepthCurrency, output.QueueDepthAsset, output.Sequence,
	)
	return err
}

// SyncPair force-refreshes one pair row outside the normal stream.
// Called after startup replay, which applies commands without emitting
// projection outputs.
func (pw *ProjectionWorker) SyncPair(ctx context.Context, state PairState, queueCurrency, queueAsset int, seq int64) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	out := ProjectionOutput{
		Sequence:           seq,
		Pair:               &state,
		QueueDepthCurrency: queueCurrency,
		QueueDepthAsset:    queueAsset,
	}
	if err := pw.updatePairProjection(ctx, tx, out); err != nil {
		return err
	}
	return tx.Commit()
}

// RebuildProjections rebuilds the balance projection from the transfer
// log and clears the rest. Pair rows are restored by SyncPair after
// replay; settlement history is append-only and regrows from new
// batches.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.pairs`,
		`TRUNCATE projections.settlements`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Credit aggregates
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account, asset_id, balance, last_sequence)
		SELECT
			to_account AS account,
			asset_id,
			SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.transfers
		GROUP BY to_account, asset_id
		ON CONFLICT (account, asset_id) DO UPDATE
			SET balance = EXCLUDED.balance, last_sequence = EXCLUDED.last_sequence
	`)
	if err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	// Subtract debits
	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.balances (account, asset_id, balance, last_sequence)
		SELECT
			from_account AS account,
			asset_id,
			-SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.transfers
		GROUP BY from_account, asset_id
		ON CONFLICT (account, asset_id) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`)
	if err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	log.Println("INFO: projection rebuild complete")
	return nil
}
