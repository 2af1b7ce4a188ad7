package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pkoziel/ogloszybko/internal/domain/enums"
	"github.com/pkoziel/ogloszybko/internal/domain/model"
)

var ErrListingNotFound = errors.New("listing not found")

type ListingRepo struct {
	pool *pgxpool.Pool
}

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

// CreateListingRecord carries the already-moderated submission into the
// listings table. Moderation fields are decided by the workflow, never here.
type CreateListingRecord struct {
	UserID           int64
	CategoryID       int64
	Title            string
	Description      string
	Price            *string
	Location         string
	ContactPhone     *string
	ContactEmail     *string
	IsApproved       bool
	ModerationStatus enums.ModerationStatus
	ModerationNotes  string
	PublishedNow     bool
}

type UpdateListingRecord struct {
	CategoryID   *int64
	Title        *string
	Description  *string
	Price        *string
	Location     *string
	ContactPhone *string
	ContactEmail *string
}

type ListingFilter struct {
	CategoryID *int64
	Location   string
	MinPrice   *float64
	MaxPrice   *float64
	Search     string
	Sort       enums.ListingSort
	Limit      int
	Offset     int
	// OwnerID scopes the query to one user's listings (dashboard view); when
	// set, unapproved and inactive rows are included.
	OwnerID *int64
}

const listingColumns = `
	l.id, l.user_id, l.category_id, l.title, l.description, l.price::text, l.location,
	l.contact_phone, l.contact_email, l.is_active, l.is_approved, l.is_featured,
	l.moderation_status, l.moderation_notes, l.view_count,
	l.created_at, l.updated_at, l.published_at`

func (r *ListingRepo) Create(ctx context.Context, rec CreateListingRecord) (model.Listing, error) {
	if r.pool == nil {
		return model.Listing{}, fmt.Errorf("postgres pool is nil")
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO listings (
	user_id, category_id, title, description, price, location,
	contact_phone, contact_email, is_active, is_approved, is_featured,
	moderation_status, moderation_notes, view_count,
	created_at, updated_at, published_at
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7, $8, TRUE, $9, FALSE,
	$10, $11, 0,
	NOW(), NOW(), CASE WHEN $12 THEN NOW() ELSE NULL END
)
RETURNING
	id, user_id, category_id, title, description, price::text, location,
	contact_phone, contact_email, is_active, is_approved, is_featured,
	moderation_status, moderation_notes, view_count,
	created_at, updated_at, published_at
`,
		rec.UserID, rec.CategoryID, rec.Title, rec.Description, rec.Price, rec.Location,
		rec.ContactPhone, rec.ContactEmail, rec.IsApproved,
		string(rec.ModerationStatus), rec.ModerationNotes, rec.PublishedNow,
	)

	listing, err := scanListing(row)
	if err != nil {
		return model.Listing{}, fmt.Errorf("insert listing: %w", err)
	}
	return listing, nil
}

func (r *ListingRepo) GetByID(ctx context.Context, id int64) (model.Listing, error) {
	if r.pool == nil {
		return model.Listing{}, fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 {
		return model.Listing{}, ErrListingNotFound
	}

	row := r.pool.QueryRow(ctx, `
SELECT`+listingColumns+`
FROM listings l
WHERE l.id = $1
`, id)

	listing, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Listing{}, ErrListingNotFound
	}
	if err != nil {
		return model.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return listing, nil
}

func (r *ListingRepo) GetDetails(ctx context.Context, id int64) (model.ListingDetails, error) {
	if r.pool == nil {
		return model.ListingDetails{}, fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 {
		return model.ListingDetails{}, ErrListingNotFound
	}

	row := r.pool.QueryRow(ctx, `
SELECT`+listingColumns+`,
	c.id, c.name, c.slug, c.icon, COALESCE(c.description, ''), c.is_active, c.sort_order, c.created_at,
	u.id, u.first_name, u.last_name
FROM listings l
LEFT JOIN categories c ON c.id = l.category_id
LEFT JOIN users u ON u.id = l.user_id
WHERE l.id = $1
`, id)

	details, err := scanListingDetails(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ListingDetails{}, ErrListingNotFound
	}
	if err != nil {
		return model.ListingDetails{}, fmt.Errorf("get listing details: %w", err)
	}

	images, err := r.ListImages(ctx, id)
	if err != nil {
		return model.ListingDetails{}, err
	}
	details.Images = images

	return details, nil
}

func (r *ListingRepo) List(ctx context.Context, filter ListingFilter) ([]model.ListingDetails, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	conditions := make([]string, 0, 6)
	args := make([]any, 0, 8)

	arg := func(value any) string {
		args = append(args, value)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.OwnerID != nil {
		conditions = append(conditions, "l.user_id = "+arg(*filter.OwnerID))
	} else {
		conditions = append(conditions, "l.is_active = TRUE", "l.is_approved = TRUE")
	}
	if filter.CategoryID != nil {
		conditions = append(conditions, "l.category_id = "+arg(*filter.CategoryID))
	}
	if strings.TrimSpace(filter.Location) != "" {
		conditions = append(conditions, "l.location ILIKE "+arg("%"+strings.TrimSpace(filter.Location)+"%"))
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, "l.price >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, "l.price <= "+arg(*filter.MaxPrice))
	}
	if strings.TrimSpace(filter.Search) != "" {
		pattern := "%" + strings.TrimSpace(filter.Search) + "%"
		conditions = append(conditions, "(l.title ILIKE "+arg(pattern)+" OR l.description ILIKE "+arg(pattern)+")")
	}

	var orderBy string
	switch filter.Sort {
	case enums.ListingSortOldest:
		orderBy = "l.created_at ASC"
	case enums.ListingSortPriceAsc:
		orderBy = "l.price ASC NULLS LAST"
	case enums.ListingSortPriceDesc:
		orderBy = "l.price DESC NULLS LAST"
	default:
		orderBy = "l.created_at DESC"
	}

	query := `
SELECT` + listingColumns + `,
	c.id, c.name, c.slug, c.icon, COALESCE(c.description, ''), c.is_active, c.sort_order, c.created_at,
	u.id, u.first_name, u.last_name
FROM listings l
LEFT JOIN categories c ON c.id = l.category_id
LEFT JOIN users u ON u.id = l.user_id
WHERE ` + strings.Join(conditions, " AND ") + `
ORDER BY ` + orderBy + `
LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	items := make([]model.ListingDetails, 0, limit)
	for rows.Next() {
		details, err := scanListingDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		items = append(items, details)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate listings: %w", rows.Err())
	}

	for i := range items {
		images, err := r.ListImages(ctx, items[i].ID)
		if err != nil {
			return nil, err
		}
		items[i].Images = images
	}

	return items, nil
}

// UpdateOwned mutates a listing only when it belongs to userID. Ownership is
// enforced by the single WHERE predicate so a missing listing and a foreign
// listing are indistinguishable to the caller. Every successful update resets
// the moderation state to pending.
func (r *ListingRepo) UpdateOwned(ctx context.Context, id, userID int64, rec UpdateListingRecord) (model.Listing, error) {
	if r.pool == nil {
		return model.Listing{}, fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 || userID <= 0 {
		return model.Listing{}, ErrListingNotFound
	}

	row := r.pool.QueryRow(ctx, `
UPDATE listings SET
	category_id = COALESCE($3, category_id),
	title = COALESCE($4, title),
	description = COALESCE($5, description),
	price = COALESCE($6, price),
	location = COALESCE($7, location),
	contact_phone = COALESCE($8, contact_phone),
	contact_email = COALESCE($9, contact_email),
	is_approved = FALSE,
	moderation_status = 'pending',
	published_at = NULL,
	updated_at = NOW()
WHERE id = $1 AND user_id = $2
RETURNING
	id, user_id, category_id, title, description, price::text, location,
	contact_phone, contact_email, is_active, is_approved, is_featured,
	moderation_status, moderation_notes, view_count,
	created_at, updated_at, published_at
`, id, userID,
		rec.CategoryID, rec.Title, rec.Description, rec.Price,
		rec.Location, rec.ContactPhone, rec.ContactEmail,
	)

	listing, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Listing{}, ErrListingNotFound
	}
	if err != nil {
		return model.Listing{}, fmt.Errorf("update listing: %w", err)
	}
	return listing, nil
}

// DeleteOwned removes a listing owned by userID; image rows cascade. The
// not-found result covers both missing and foreign listings.
func (r *ListingRepo) DeleteOwned(ctx context.Context, id, userID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 || userID <= 0 {
		return ErrListingNotFound
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM listings
WHERE id = $1 AND user_id = $2
`, id, userID)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrListingNotFound
	}
	return nil
}

// IncrementViewCount bumps the counter inside the database so concurrent
// detail reads never lose updates.
func (r *ListingRepo) IncrementViewCount(ctx context.Context, id int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if id <= 0 {
		return fmt.Errorf("invalid listing id")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE listings
SET view_count = view_count + 1
WHERE id = $1
`, id); err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	return nil
}

func (r *ListingRepo) AddImage(ctx context.Context, listingID int64, imageURL, altText string, sortOrder int) (model.ListingImage, error) {
	if r.pool == nil {
		return model.ListingImage{}, fmt.Errorf("postgres pool is nil")
	}
	if listingID <= 0 || strings.TrimSpace(imageURL) == "" {
		return model.ListingImage{}, fmt.Errorf("invalid listing image payload")
	}

	var image model.ListingImage
	err := r.pool.QueryRow(ctx, `
INSERT INTO listing_images (listing_id, image_url, alt_text, sort_order, created_at)
VALUES ($1, $2, $3, $4, NOW())
RETURNING id, listing_id, image_url, COALESCE(alt_text, ''), sort_order, created_at
`, listingID, imageURL, altText, sortOrder).Scan(
		&image.ID, &image.ListingID, &image.ImageURL, &image.AltText, &image.SortOrder, &image.CreatedAt,
	)
	if err != nil {
		return model.ListingImage{}, fmt.Errorf("insert listing image: %w", err)
	}
	return image, nil
}

func (r *ListingRepo) ListImages(ctx context.Context, listingID int64) ([]model.ListingImage, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, listing_id, image_url, COALESCE(alt_text, ''), sort_order, created_at
FROM listing_images
WHERE listing_id = $1
ORDER BY sort_order ASC, id ASC
`, listingID)
	if err != nil {
		return nil, fmt.Errorf("list listing images: %w", err)
	}
	defer rows.Close()

	images := make([]model.ListingImage, 0)
	for rows.Next() {
		var image model.ListingImage
		if err := rows.Scan(
			&image.ID, &image.ListingID, &image.ImageURL, &image.AltText, &image.SortOrder, &image.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan listing image: %w", err)
		}
		images = append(images, image)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate listing images: %w", rows.Err())
	}

	return images, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (model.Listing, error) {
	var listing model.Listing
	var status string
	err := row.Scan(
		&listing.ID, &listing.UserID, &listing.CategoryID,
		&listing.Title, &listing.Description, &listing.Price, &listing.Location,
		&listing.ContactPhone, &listing.ContactEmail,
		&listing.IsActive, &listing.IsApproved, &listing.IsFeatured,
		&status, &listing.ModerationNotes, &listing.ViewCount,
		&listing.CreatedAt, &listing.UpdatedAt, &listing.PublishedAt,
	)
	if err != nil {
		return model.Listing{}, err
	}
	listing.ModerationStatus = enums.ModerationStatus(status)
	return listing, nil
}

func scanListingDetails(row rowScanner) (model.ListingDetails, error) {
	var details model.ListingDetails
	var status string
	var cat struct {
		id        *int64
		name      *string
		slug      *string
		icon      *string
		desc      *string
		isActive  *bool
		sortOrder *int
		createdAt *time.Time
	}
	err := row.Scan(
		&details.ID, &details.UserID, &details.CategoryID,
		&details.Title, &details.Description, &details.Price, &details.Location,
		&details.ContactPhone, &details.ContactEmail,
		&details.IsActive, &details.IsApproved, &details.IsFeatured,
		&status, &details.ModerationNotes, &details.ViewCount,
		&details.CreatedAt, &details.UpdatedAt, &details.PublishedAt,
		&cat.id, &cat.name, &cat.slug, &cat.icon, &cat.desc, &cat.isActive, &cat.sortOrder, &cat.createdAt,
		&details.Owner.ID, &details.Owner.FirstName, &details.Owner.LastName,
	)
	if err != nil {
		return model.ListingDetails{}, err
	}
	details.ModerationStatus = enums.ModerationStatus(status)

	if cat.id != nil {
		category := model.Category{ID: *cat.id}
		if cat.name != nil {
			category.Name = *cat.name
		}
		if cat.slug != nil {
			category.Slug = *cat.slug
		}
		if cat.icon != nil {
			category.Icon = *cat.icon
		}
		if cat.desc != nil {
			category.Description = *cat.desc
		}
		if cat.isActive != nil {
			category.IsActive = *cat.isActive
		}
		if cat.sortOrder != nil {
			category.SortOrder = *cat.sortOrder
		}
		if cat.createdAt != nil {
			category.CreatedAt = *cat.createdAt
		}
		details.Category = &category
	}

	details.Images = []model.ListingImage{}
	return details, nil
}
