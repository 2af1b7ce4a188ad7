package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FavoriteRepo struct {
	pool *pgxpool.Pool
}

func NewFavoriteRepo(pool *pgxpool.Pool) *FavoriteRepo {
	return &FavoriteRepo{pool: pool}
}

// Toggle removes the favorite when it exists, otherwise creates it. Returns
// whether the listing is favorited after the call.
func (r *FavoriteRepo) Toggle(ctx context.Context, userID, listingID int64) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || listingID <= 0 {
		return false, fmt.Errorf("invalid favorite payload")
	}

	var favorited bool
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
DELETE FROM user_favorites
WHERE user_id = $1 AND listing_id = $2
`, userID, listingID)
		if err != nil {
			return fmt.Errorf("delete favorite: %w", err)
		}
		if tag.RowsAffected() > 0 {
			favorited = false
			return nil
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO user_favorites (user_id, listing_id, created_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id, listing_id) DO NOTHING
`, userID, listingID); err != nil {
			return fmt.Errorf("insert favorite: %w", err)
		}
		favorited = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return favorited, nil
}

func (r *FavoriteRepo) ListListingIDs(ctx context.Context, userID int64) ([]int64, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT listing_id
FROM user_favorites
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate favorites: %w", rows.Err())
	}

	return ids, nil
}
