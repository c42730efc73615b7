package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

var _ domain.SignalStore = (*SignalStore)(nil)

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a new SignalStore backed by the given connection pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

const signalSelectCols = `id, time_bucket, direction, trade_size, swap_count,
	z_score, gross_profit, cex_fee, dex_fee, gas_cost, net_profit,
	confidence, dex_avg_price, cex_close_price, price_difference, created_at`

// Replace swaps the whole signal set inside one transaction, so readers see
// either the previous run or the new one.
func (s *SignalStore) Replace(ctx context.Context, signals []domain.Signal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: replace signals: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM signals`); err != nil {
		return fmt.Errorf("postgres: clear signals: %w", err)
	}

	if len(signals) > 0 {
		const query = `
			INSERT INTO signals (` + signalSelectCols + `)
			VALUES (
				$1, $2, $3, $4, $5,
				$6, $7, $8, $9, $10, $11,
				$12, $13, $14, $15, COALESCE($16, NOW())
			)`

		batch := &pgx.Batch{}
		for _, sig := range signals {
			var createdAt *time.Time
			if !sig.CreatedAt.IsZero() {
				ts := sig.CreatedAt
				createdAt = &ts
			}
			batch.Queue(query,
				sig.ID, sig.TimeBucket, string(sig.Direction), sig.TradeSize, sig.SwapCount,
				sig.ZScore, sig.GrossProfit, sig.CexFee, sig.DexFee, sig.GasCost, sig.NetProfit,
				sig.Confidence, sig.DexAvgPrice, sig.CexClosePrice, sig.PriceDifference, createdAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for i := range signals {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: insert signal batch item %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: close signal batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: replace signals: commit: %w", err)
	}
	return nil
}

// ListRange returns signals in ascending bucket order.
func (s *SignalStore) ListRange(ctx context.Context, opts domain.ListOpts) ([]domain.Signal, error) {
	query, args := appendListOpts(
		`SELECT `+signalSelectCols+` FROM signals WHERE 1=1`,
		nil, "time_bucket", opts, "time_bucket ASC",
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals: %w", err)
	}
	defer rows.Close()

	var signals []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var direction string
		if err := rows.Scan(
			&sig.ID, &sig.TimeBucket, &direction, &sig.TradeSize, &sig.SwapCount,
			&sig.ZScore, &sig.GrossProfit, &sig.CexFee, &sig.DexFee, &sig.GasCost, &sig.NetProfit,
			&sig.Confidence, &sig.DexAvgPrice, &sig.CexClosePrice, &sig.PriceDifference, &sig.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan signal: %w", err)
		}
		sig.Direction = domain.Direction(direction)
		sig.TimeBucket = sig.TimeBucket.UTC()
		sig.Timestamp = sig.TimeBucket.Unix()
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list signals rows: %w", err)
	}
	return signals, nil
}

// Count returns the number of stored signals.
func (s *SignalStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM signals`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count signals: %w", err)
	}
	return n, nil
}
