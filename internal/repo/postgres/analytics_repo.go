package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AnalyticsRepo struct {
	pool *pgxpool.Pool
}

type ViewRecord struct {
	ListingID int64
	UserAgent string
	IPAddress string
	Referrer  string
}

type DailyViews struct {
	Date  string `json:"date"`
	Views int64  `json:"views"`
}

func NewAnalyticsRepo(pool *pgxpool.Pool) *AnalyticsRepo {
	return &AnalyticsRepo{pool: pool}
}

func (r *AnalyticsRepo) InsertView(ctx context.Context, rec ViewRecord) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if rec.ListingID <= 0 {
		return fmt.Errorf("invalid listing id")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO listing_analytics (listing_id, view_date, user_agent, ip_address, referrer)
VALUES ($1, NOW(), $2, $3, $4)
`, rec.ListingID, rec.UserAgent, rec.IPAddress, rec.Referrer); err != nil {
		return fmt.Errorf("insert view record: %w", err)
	}
	return nil
}

func (r *AnalyticsRepo) DailyViews(ctx context.Context, listingID int64, since time.Time) ([]DailyViews, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if listingID <= 0 {
		return nil, fmt.Errorf("invalid listing id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT DATE(view_date)::text, COUNT(*)
FROM listing_analytics
WHERE listing_id = $1 AND view_date >= $2
GROUP BY DATE(view_date)
ORDER BY DATE(view_date)
`, listingID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query daily views: %w", err)
	}
	defer rows.Close()

	buckets := make([]DailyViews, 0)
	for rows.Next() {
		var bucket DailyViews
		if err := rows.Scan(&bucket.Date, &bucket.Views); err != nil {
			return nil, fmt.Errorf("scan daily views: %w", err)
		}
		buckets = append(buckets, bucket)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate daily views: %w", rows.Err())
	}

	return buckets, nil
}
