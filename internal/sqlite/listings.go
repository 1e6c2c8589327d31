package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

const listingColumns = `listing_id, org_id, listing_type, status, title, description, quantity, unit,
	location, material_identifier_id, published_at, created_at, updated_at`

// CreateListing inserts a listing in DRAFT.
func (b *Backend) CreateListing(ctx context.Context, l types.Listing) (types.Listing, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return types.Listing{}, err
	}
	if err := l.Validate(); err != nil {
		return types.Listing{}, err
	}
	if l.ListingID == "" {
		l.ListingID = generateUUID()
	}
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}
	l.Status = types.ListingDraft
	l.PublishedAt = nil
	l.Title = strings.TrimSpace(l.Title)

	_, err = db.ExecContext(ctx,
		`INSERT INTO listings (`+listingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ListingID, l.OrgID, string(l.Type), string(l.Status), l.Title, l.Description, l.Quantity, l.Unit,
		l.Location, l.MaterialIdentifierID, nullMillis(l.PublishedAt), toMillis(l.CreatedAt), toMillis(l.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return types.Listing{}, types.Wrap(types.CodeNotFound, "listing organization or material identifier not found", err)
		}
		return types.Listing{}, fmt.Errorf("create listing: %w", err)
	}
	return l, nil
}

// GetListing returns one listing.
func (b *Backend) GetListing(ctx context.Context, listingID string) (types.Listing, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return types.Listing{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE listing_id = ?`, listingID)
	l, err := scanListing(row)
	if err != nil {
		return types.Listing{}, notFound(err, "listing", listingID)
	}
	return l, nil
}

// UpdateListingStatus writes l's status, PublishedAt and UpdatedAt if the
// stored status is still expected. A listing that moved concurrently
// yields CONFLICT.
func (b *Backend) UpdateListingStatus(ctx context.Context, l types.Listing, expected types.ListingStatus) error {
	return b.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE listings SET status = ?, published_at = ?, updated_at = ? WHERE listing_id = ? AND status = ?`,
			string(l.Status), nullMillis(l.PublishedAt), toMillis(l.UpdatedAt), l.ListingID, string(expected),
		)
		if err != nil {
			return fmt.Errorf("update listing status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update listing status: %w", err)
		}
		if n == 1 {
			return nil
		}
		var current string
		err = tx.QueryRowContext(ctx, `SELECT status FROM listings WHERE listing_id = ?`, l.ListingID).Scan(&current)
		if err != nil {
			return notFound(err, "listing", l.ListingID)
		}
		return types.New(types.CodeConflict, fmt.Sprintf("listing %s is %s, expected %s", l.ListingID, current, expected))
	})
}

// ListListings returns listings matching filter, newest first.
func (b *Backend) ListListings(ctx context.Context, filter types.ListingFilter) ([]types.Listing, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	if filter.OrgID != "" {
		where = append(where, "org_id = ?")
		args = append(args, filter.OrgID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		where = append(where, "listing_type = ?")
		args = append(args, string(filter.Type))
	}
	q := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY COALESCE(published_at, created_at) DESC, listing_id`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var out []types.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CreatePromotion records a promotion for a listing. A listing holds at
// most one active promotion; a second one while the first runs is CONFLICT.
func (b *Backend) CreatePromotion(ctx context.Context, p types.Promotion) (types.Promotion, error) {
	if p.PromotionID == "" {
		p.PromotionID = generateUUID()
	}
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT promotion_id FROM promotions WHERE listing_id = ? AND expires_at > ?`,
			p.ListingID, toMillis(p.CreatedAt),
		).Scan(&existing)
		switch {
		case err == nil:
			return types.New(types.CodeConflict, "listing "+p.ListingID+" already has an active promotion")
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check active promotion: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO promotions (promotion_id, listing_id, org_id, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
			p.PromotionID, p.ListingID, p.OrgID, toMillis(p.ExpiresAt), toMillis(p.CreatedAt),
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return types.Wrap(types.CodeNotFound, "listing "+p.ListingID+" not found", err)
			}
			return fmt.Errorf("create promotion: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.Promotion{}, err
	}
	return p, nil
}

// ActivePromotion returns the promotion pinning listingID at now.
func (b *Backend) ActivePromotion(ctx context.Context, listingID string, now time.Time) (types.Promotion, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return types.Promotion{}, err
	}
	var (
		p                    types.Promotion
		expiresAt, createdAt int64
	)
	err = db.QueryRowContext(ctx,
		`SELECT promotion_id, listing_id, org_id, expires_at, created_at FROM promotions
		 WHERE listing_id = ? AND expires_at > ? ORDER BY expires_at DESC LIMIT 1`,
		listingID, toMillis(now),
	).Scan(&p.PromotionID, &p.ListingID, &p.OrgID, &expiresAt, &createdAt)
	if err != nil {
		return types.Promotion{}, notFound(err, "active promotion for listing", listingID)
	}
	p.ExpiresAt = fromMillis(expiresAt)
	p.CreatedAt = fromMillis(createdAt)
	return p, nil
}

// PromotedListingIDs returns the ids of listings with an active promotion
// at now.
func (b *Backend) PromotedListingIDs(ctx context.Context, now time.Time) (map[string]bool, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT listing_id FROM promotions WHERE expires_at > ?`, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(r rowScanner) (types.Listing, error) {
	var (
		l                    types.Listing
		typ, status          string
		publishedAt          sql.NullInt64
		createdAt, updatedAt int64
	)
	err := r.Scan(&l.ListingID, &l.OrgID, &typ, &status, &l.Title, &l.Description, &l.Quantity, &l.Unit,
		&l.Location, &l.MaterialIdentifierID, &publishedAt, &createdAt, &updatedAt)
	if err != nil {
		return types.Listing{}, err
	}
	l.Type = types.ListingType(typ)
	l.Status = types.ListingStatus(status)
	l.PublishedAt = timePtr(publishedAt)
	l.CreatedAt = fromMillis(createdAt)
	l.UpdatedAt = fromMillis(updatedAt)
	return l, nil
}
