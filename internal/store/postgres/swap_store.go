package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

var _ domain.SwapStore = (*SwapStore)(nil)

// SwapStore implements domain.SwapStore over the dex_swaps table of one pool.
type SwapStore struct {
	pool        *pgxpool.Pool
	poolAddress string
}

// NewSwapStore creates a SwapStore. When poolAddress is empty swaps of every
// pool are returned.
func NewSwapStore(pool *pgxpool.Pool, poolAddress string) *SwapStore {
	return &SwapStore{pool: pool, poolAddress: poolAddress}
}

// ListRange returns swaps in ascending block time. The range filters on the
// stamped bucket when present so a bucket's swaps are never split.
func (s *SwapStore) ListRange(ctx context.Context, opts domain.ListOpts) ([]domain.SwapEvent, error) {
	query := `SELECT id, tx_hash, block_timestamp, bucket_start,
		amount_base, amount_quote, gas_used, gas_price, implied_price
		FROM dex_swaps WHERE 1=1`
	var args []any
	if s.poolAddress != "" {
		query += " AND pool_address = $1"
		args = append(args, s.poolAddress)
	}
	query, args = appendListOpts(query, args, "COALESCE(bucket_start, block_timestamp)", opts,
		"block_timestamp ASC, id ASC")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list swaps: %w", err)
	}
	defer rows.Close()

	var swaps []domain.SwapEvent
	for rows.Next() {
		var (
			sw          domain.SwapEvent
			txHash      string
			bucketStart *time.Time
			gasUsed     int64
			gasPrice    int64
		)
		if err := rows.Scan(
			&sw.ID, &txHash, &sw.Timestamp, &bucketStart,
			&sw.BaseAmount, &sw.QuoteAmount, &gasUsed, &gasPrice, &sw.ImpliedPrice,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan swap: %w", err)
		}
		sw.TxHash = common.HexToHash(txHash)
		sw.Timestamp = sw.Timestamp.UTC()
		if bucketStart != nil {
			sw.BucketStart = bucketStart.UTC()
		}
		if gasUsed > 0 {
			sw.GasUsed = uint64(gasUsed)
		}
		if gasPrice > 0 {
			sw.GasPrice = uint64(gasPrice)
		}
		swaps = append(swaps, sw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list swaps rows: %w", err)
	}
	return swaps, nil
}
