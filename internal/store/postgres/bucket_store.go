package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

var _ domain.BucketStore = (*BucketStore)(nil)

// BucketStore implements domain.BucketStore using PostgreSQL.
type BucketStore struct {
	pool *pgxpool.Pool
}

// NewBucketStore creates a new BucketStore backed by the given connection pool.
func NewBucketStore(pool *pgxpool.Pool) *BucketStore {
	return &BucketStore{pool: pool}
}

const bucketSelectCols = `bucket_start, dex_swap_count,
	dex_total_volume_base, dex_total_volume_quote,
	dex_avg_price, dex_min_price, dex_max_price, dex_price_std,
	cex_open, cex_high, cex_low, cex_close,
	cex_volume, cex_quote_volume, cex_trade_count`

// ListRange returns merged buckets in ascending bucket_start order.
func (s *BucketStore) ListRange(ctx context.Context, opts domain.ListOpts) ([]domain.TimeBucket, error) {
	query, args := appendListOpts(
		`SELECT `+bucketSelectCols+` FROM merged_buckets WHERE 1=1`,
		nil, "bucket_start", opts, "bucket_start ASC",
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list buckets: %w", err)
	}
	defer rows.Close()

	var buckets []domain.TimeBucket
	for rows.Next() {
		var b domain.TimeBucket
		if err := rows.Scan(
			&b.BucketStart, &b.DexSwapCount,
			&b.DexTotalVolumeBase, &b.DexTotalVolumeQuote,
			&b.DexAvgPrice, &b.DexMinPrice, &b.DexMaxPrice, &b.DexPriceStdDev,
			&b.CexOpen, &b.CexHigh, &b.CexLow, &b.CexClose,
			&b.CexVolume, &b.CexQuoteVolume, &b.CexTradeCount,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan bucket: %w", err)
		}
		b.BucketStart = b.BucketStart.UTC()
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list buckets rows: %w", err)
	}
	return buckets, nil
}

// stampSwapBuckets records the bucket each swap of the pool falls into, so the
// detector groups swaps by the same key the aggregation used.
const stampSwapBuckets = `
	UPDATE dex_swaps
	SET bucket_start = to_timestamp(floor(extract(epoch FROM block_timestamp) / $1) * $1)
	WHERE pool_address = $2`

// mergeBuckets aggregates swaps and klines into width-aligned buckets. The
// full outer join keeps CEX-only minutes as empty DEX buckets and DEX-only
// minutes with zero CEX liquidity.
const mergeBuckets = `
	WITH dex AS (
		SELECT
			bucket_start,
			COUNT(*)                                          AS swap_count,
			SUM(ABS(amount_base))                             AS vol_base,
			SUM(ABS(amount_quote))                            AS vol_quote,
			AVG(implied_price) FILTER (WHERE implied_price > 0) AS avg_price,
			MIN(implied_price) FILTER (WHERE implied_price > 0) AS min_price,
			MAX(implied_price) FILTER (WHERE implied_price > 0) AS max_price,
			STDDEV_SAMP(implied_price) FILTER (WHERE implied_price > 0) AS std_price
		FROM dex_swaps
		WHERE pool_address = $2
		GROUP BY bucket_start
	),
	cex AS (
		SELECT
			to_timestamp(floor(extract(epoch FROM open_time) / $1) * $1) AS bucket_start,
			(ARRAY_AGG(open ORDER BY open_time ASC))[1]   AS open,
			MAX(high)                                     AS high,
			MIN(low)                                      AS low,
			(ARRAY_AGG(close ORDER BY open_time DESC))[1] AS close,
			SUM(volume)                                   AS volume,
			SUM(quote_volume)                             AS quote_volume,
			SUM(trade_count)                              AS trade_count
		FROM cex_klines
		WHERE symbol = $3
		GROUP BY 1
	)
	INSERT INTO merged_buckets (` + bucketSelectCols + `)
	SELECT
		COALESCE(d.bucket_start, c.bucket_start),
		COALESCE(d.swap_count, 0),
		COALESCE(d.vol_base, 0), COALESCE(d.vol_quote, 0),
		COALESCE(d.avg_price, 0), COALESCE(d.min_price, 0), COALESCE(d.max_price, 0),
		COALESCE(d.std_price, 0),
		COALESCE(c.open, 0), COALESCE(c.high, 0), COALESCE(c.low, 0), COALESCE(c.close, 0),
		COALESCE(c.volume, 0), COALESCE(c.quote_volume, 0), COALESCE(c.trade_count, 0)
	FROM dex d
	FULL OUTER JOIN cex c ON c.bucket_start = d.bucket_start`

// Merge rebuilds merged_buckets from dex_swaps of poolAddress and cex_klines
// of symbol in a single transaction and returns the number of buckets written.
func (s *BucketStore) Merge(ctx context.Context, width time.Duration, poolAddress string, symbol string) (int64, error) {
	seconds := int64(width / time.Second)
	if seconds <= 0 {
		return 0, fmt.Errorf("postgres: merge buckets: width %s below one second", width)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: merge buckets: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, stampSwapBuckets, seconds, poolAddress); err != nil {
		return 0, fmt.Errorf("postgres: stamp swap buckets: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM merged_buckets`); err != nil {
		return 0, fmt.Errorf("postgres: clear merged buckets: %w", err)
	}
	tag, err := tx.Exec(ctx, mergeBuckets, seconds, poolAddress, symbol)
	if err != nil {
		return 0, fmt.Errorf("postgres: merge buckets: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: merge buckets: commit: %w", err)
	}
	return tag.RowsAffected(), nil
}
