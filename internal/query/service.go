package query

import (
	"context"
	"database/sql"
	"fmt"

	"FairSwap/internal/projection"

	"github.com/google/uuid"
)

// ErrPairNotFound is returned when the requested pair has no
// projection row.
var ErrPairNotFound = fmt.Errorf("pair not found")

// QueryService provides read-only access to the projection tables and
// the transfer log. All responses include as_of_sequence so callers
// can reason about freshness relative to the applied command stream.
type QueryService struct {
	db      *sql.DB
	history *projection.SettlementHistory
}

// NewQueryService builds a service over the projection DB. history may
// be nil; settlement queries then always hit Postgres.
func NewQueryService(db *sql.DB, history *projection.SettlementHistory) *QueryService {
	return &QueryService{db: db, history: history}
}

// GetPair returns the projected state of one pair.
func (qs *QueryService) GetPair(ctx context.Context, assetID uint32) (*PairResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var p PairResponse
	p.AsOfSequence = asOfSeq
	err = qs.db.QueryRowContext(ctx, `
		SELECT asset_id, liquidity_token_id, currency_reserve, token_reserve,
		       liquidity_issuance, currency_queue_depth, asset_queue_depth
		FROM projections.pairs
		WHERE asset_id = $1
	`, assetID).Scan(
		&p.AssetID, &p.LiquidityTokenID, &p.CurrencyReserve, &p.TokenReserve,
		&p.LiquidityIssuance, &p.CurrencyQueueDepth, &p.AssetQueueDepth,
	)
	if err == sql.ErrNoRows {
		return nil, ErrPairNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPairs returns every projected pair ordered by asset id.
func (qs *QueryService) ListPairs(ctx context.Context) ([]PairResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT asset_id, liquidity_token_id, currency_reserve, token_reserve,
		       liquidity_issuance, currency_queue_depth, asset_queue_depth
		FROM projections.pairs
		ORDER BY asset_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []PairResponse
	for rows.Next() {
		var p PairResponse
		p.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&p.AssetID, &p.LiquidityTokenID, &p.CurrencyReserve, &p.TokenReserve,
			&p.LiquidityIssuance, &p.CurrencyQueueDepth, &p.AssetQueueDepth,
		); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}

	return pairs, rows.Err()
}

// GetBalance returns an account's projected balance for one asset.
func (qs *QueryService) GetBalance(ctx context.Context, account uuid.UUID, assetID uint32) (*BalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var balance int64
	err = qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(balance, 0) FROM projections.balances
		WHERE account = $1 AND asset_id = $2
	`, account.String(), assetID).Scan(&balance)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return &BalanceResponse{
		Account:      account,
		AssetID:      assetID,
		Balance:      balance,
		AsOfSequence: asOfSeq,
	}, nil
}

// GetAccountBalances returns every non-zero projected balance of an
// account.
func (qs *QueryService) GetAccountBalances(ctx context.Context, account uuid.UUID) (*AccountBalancesResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT asset_id, balance FROM projections.balances
		WHERE account = $1 AND balance != 0
		ORDER BY asset_id
	`, account.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resp := &AccountBalancesResponse{Account: account, AsOfSequence: asOfSeq}
	for rows.Next() {
		b := BalanceResponse{Account: account, AsOfSequence: asOfSeq}
		if err := rows.Scan(&b.AssetID, &b.Balance); err != nil {
			return nil, err
		}
		resp.Balances = append(resp.Balances, b)
	}

	return resp, rows.Err()
}

// GetSettlementHistory returns cleared batches for a pair, newest
// first. Uncursored requests are served from the in-memory cache when
// it holds enough records; cursored pagination always reads Postgres.
func (qs *QueryService) GetSettlementHistory(
	ctx context.Context,
	assetID uint32,
	limit int,
	afterSequence *int64,
) ([]SettlementResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	if afterSequence == nil && qs.history != nil {
		if cached := qs.history.Recent(assetID, limit); len(cached) >= limit {
			results := make([]SettlementResponse, 0, len(cached))
			for _, rec := range cached {
				results = append(results, SettlementResponse{
					Sequence:     rec.Sequence,
					AssetID:      rec.AssetID,
					CurrencyOut:  int64(rec.CurrencyOut),
					AssetOut:     int64(rec.AssetOut),
					Participants: rec.Participants,
					Timestamp:    rec.Timestamp,
					AsOfSequence: asOfSeq,
				})
			}
			return results, nil
		}
	}

	query := `
		SELECT sequence, asset_id, currency_out, asset_out, participants, timestamp
		FROM projections.settlements
		WHERE asset_id = $1
	`
	args := []interface{}{assetID}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []SettlementResponse
	for rows.Next() {
		var h SettlementResponse
		h.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&h.Sequence, &h.AssetID, &h.CurrencyOut, &h.AssetOut,
			&h.Participants, &h.Timestamp,
		); err != nil {
			return nil, err
		}
		history = append(history, h)
	}

	return history, rows.Err()
}

// GetTransferHistory returns transfer log rows touching an account,
// with cursor-based pagination.
func (qs *QueryService) GetTransferHistory(
	ctx context.Context,
	account uuid.UUID,
	limit int,
	afterSequence *int64,
) ([]TransferHistoryEntry, error) {
	query := `
		SELECT transfer_id, sequence, asset_id, from_account, to_account, amount, kind, timestamp
		FROM event_log.transfers
		WHERE (from_account = $1 OR to_account = $1)
	`
	args := []interface{}{account.String()}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []TransferHistoryEntry
	for rows.Next() {
		var e TransferHistoryEntry
		if err := rows.Scan(
			&e.TransferID, &e.Sequence, &e.AssetID, &e.FromAccount,
			&e.ToAccount, &e.Amount, &e.Kind, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity in the command log and
// the zero-sum invariant of the balance projection.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e1.prev_hash != COALESCE(e2.state_hash, e1.prev_hash)
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT asset_id, SUM(balance) as total
		FROM projections.balances
		GROUP BY asset_id
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var assetID uint32
		var total int64
		if err := balanceRows.Scan(&assetID, &total); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, UnbalancedAsset{
			AssetID:   assetID,
			Imbalance: total,
		})
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
