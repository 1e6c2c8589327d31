package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

const threadColumns = `thread_id, listing_id, buyer_org_id, seller_org_id, live_offer_id, version,
	accepted_offer_id, accepted_at, created_at`

const offerColumns = `offer_id, thread_id, created_by_org_id, state, price, quantity, terms, message,
	expires_at, created_at, updated_at`

// OpenThread returns the thread between buyerOrgID and the owner of
// listingID, creating it on first use. There is one thread per listing and
// buyer.
func (b *Backend) OpenThread(ctx context.Context, listingID, buyerOrgID, sellerOrgID string, at time.Time) (types.OfferThread, error) {
	t := types.OfferThread{
		ThreadID:    generateUUID(),
		ListingID:   listingID,
		BuyerOrgID:  buyerOrgID,
		SellerOrgID: sellerOrgID,
		CreatedAt:   at.UTC(),
	}
	if err := t.Validate(); err != nil {
		return types.OfferThread{}, err
	}
	var out types.OfferThread
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO offer_threads (thread_id, listing_id, buyer_org_id, seller_org_id, version, created_at)
			 VALUES (?, ?, ?, ?, 0, ?) ON CONFLICT (listing_id, buyer_org_id) DO NOTHING`,
			t.ThreadID, t.ListingID, t.BuyerOrgID, t.SellerOrgID, toMillis(t.CreatedAt),
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return types.Wrap(types.CodeNotFound, "listing or organization not found", err)
			}
			return fmt.Errorf("open thread: %w", err)
		}
		row := tx.QueryRowContext(ctx,
			`SELECT `+threadColumns+` FROM offer_threads WHERE listing_id = ? AND buyer_org_id = ?`,
			listingID, buyerOrgID,
		)
		out, err = scanThread(row)
		if err != nil {
			return fmt.Errorf("read thread: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.OfferThread{}, err
	}
	return out, nil
}

// GetThread returns one thread row.
func (b *Backend) GetThread(ctx context.Context, threadID string) (types.OfferThread, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return types.OfferThread{}, err
	}
	t, err := scanThread(db.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM offer_threads WHERE thread_id = ?`, threadID))
	if err != nil {
		return types.OfferThread{}, notFound(err, "offer thread", threadID)
	}
	return t, nil
}

// ListThreadsByOrg returns the threads orgID takes part in, newest first.
func (b *Backend) ListThreadsByOrg(ctx context.Context, orgID string) ([]types.OfferThread, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+threadColumns+` FROM offer_threads WHERE buyer_org_id = ? OR seller_org_id = ?
		 ORDER BY created_at DESC, thread_id`, orgID, orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var out []types.OfferThread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetOffer returns one ledger row.
func (b *Backend) GetOffer(ctx context.Context, offerID string) (types.Offer, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return types.Offer{}, err
	}
	o, err := scanOffer(db.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE offer_id = ?`, offerID))
	if err != nil {
		return types.Offer{}, notFound(err, "offer", offerID)
	}
	return o, nil
}

// LoadOfferThreadWithLiveOffer reads the thread, its version, its live
// offer and the full ledger in one transaction.
func (b *Backend) LoadOfferThreadWithLiveOffer(ctx context.Context, threadID string) (types.ThreadSnapshot, error) {
	var snap types.ThreadSnapshot
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		t, err := scanThread(tx.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM offer_threads WHERE thread_id = ?`, threadID))
		if err != nil {
			return notFound(err, "offer thread", threadID)
		}
		snap.Thread = t

		rows, err := tx.QueryContext(ctx,
			`SELECT `+offerColumns+` FROM offers WHERE thread_id = ? ORDER BY created_at, offer_id`, threadID)
		if err != nil {
			return fmt.Errorf("load ledger: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			o, err := scanOffer(rows)
			if err != nil {
				return fmt.Errorf("scan offer: %w", err)
			}
			snap.Ledger = append(snap.Ledger, o)
		}
		return rows.Err()
	})
	if err != nil {
		return types.ThreadSnapshot{}, err
	}
	if id := snap.Thread.LiveOfferID; id != "" {
		if o, ok := snap.Find(id); ok {
			snap.Live = &o
		}
	}
	return snap, nil
}

// CommitOfferTransition applies c atomically if the thread is still at
// c.ExpectedVersion. On any other version it writes nothing and returns
// ErrVersionConflict.
func (b *Backend) CommitOfferTransition(ctx context.Context, c types.OfferCommit) error {
	at := c.At.UTC()
	return b.withTx(ctx, func(tx *sql.Tx) error {
		var acceptedID sql.NullString
		var acceptedAt sql.NullInt64
		if c.Accepted {
			acceptedID = nullString(c.Offer.OfferID)
			acceptedAt = sql.NullInt64{Int64: toMillis(at), Valid: true}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE offer_threads
			 SET version = version + 1,
			     live_offer_id = ?,
			     accepted_offer_id = COALESCE(accepted_offer_id, ?),
			     accepted_at = COALESCE(accepted_at, ?)
			 WHERE thread_id = ? AND version = ?`,
			nullString(c.LiveOfferID), acceptedID, acceptedAt, c.ThreadID, c.ExpectedVersion,
		)
		if err != nil {
			return fmt.Errorf("bump thread version: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("bump thread version: %w", err)
		}
		if n == 0 {
			var v int64
			err := tx.QueryRowContext(ctx, `SELECT version FROM offer_threads WHERE thread_id = ?`, c.ThreadID).Scan(&v)
			if err != nil {
				return notFound(err, "offer thread", c.ThreadID)
			}
			return types.Wrap(types.CodeConflict,
				fmt.Sprintf("thread %s at version %d, expected %d", c.ThreadID, v, c.ExpectedVersion),
				types.ErrVersionConflict)
		}

		// Retire rows first so the single-live index never sees two.
		for _, id := range c.Superseded {
			if _, err := tx.ExecContext(ctx,
				`UPDATE offers SET state = ?, updated_at = ?
				 WHERE offer_id = ? AND thread_id = ? AND state IN (?, ?)`,
				string(types.OfferSuperseded), toMillis(at), id, c.ThreadID,
				string(types.OfferOpen), string(types.OfferCounter),
			); err != nil {
				return fmt.Errorf("supersede offer %s: %w", id, err)
			}
		}

		if c.Discard {
			res, err := tx.ExecContext(ctx,
				`DELETE FROM offers WHERE offer_id = ? AND thread_id = ? AND state = ?`,
				c.Offer.OfferID, c.ThreadID, string(types.OfferDraft))
			if err != nil {
				return fmt.Errorf("discard offer: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return types.New(types.CodeConflict, "offer "+c.Offer.OfferID+" is no longer a draft")
			}
			return nil
		}

		if c.Offer.ThreadID != c.ThreadID {
			return types.New(types.CodeInvalidArgument, "offer row belongs to another thread")
		}
		o := c.Offer
		_, err = tx.ExecContext(ctx,
			`INSERT INTO offers (`+offerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (offer_id) DO UPDATE SET
			   state = excluded.state,
			   price = excluded.price,
			   quantity = excluded.quantity,
			   terms = excluded.terms,
			   message = excluded.message,
			   expires_at = excluded.expires_at,
			   updated_at = excluded.updated_at`,
			o.OfferID, o.ThreadID, o.CreatedByOrgID, string(o.State), o.Price, o.Quantity, o.Terms, o.Message,
			nullMillis(o.ExpiresAt), toMillis(o.CreatedAt), toMillis(o.UpdatedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return types.Wrap(types.CodeConflict, "thread already has a live offer", err)
			}
			return fmt.Errorf("write offer: %w", err)
		}
		return nil
	})
}

// ListExpiredLiveOffers returns up to limit live offers whose expiry is at
// or before now, oldest expiry first.
func (b *Backend) ListExpiredLiveOffers(ctx context.Context, now time.Time, limit int) ([]types.ExpiredOffer, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = types.DefaultSweepBatch
	}
	rows, err := db.QueryContext(ctx,
		`SELECT thread_id, offer_id FROM offers
		 WHERE state IN (?, ?) AND expires_at IS NOT NULL AND expires_at <= ?
		 ORDER BY expires_at, offer_id LIMIT ?`,
		string(types.OfferOpen), string(types.OfferCounter), toMillis(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired offers: %w", err)
	}
	defer rows.Close()

	var out []types.ExpiredOffer
	for rows.Next() {
		var e types.ExpiredOffer
		if err := rows.Scan(&e.ThreadID, &e.OfferID); err != nil {
			return nil, fmt.Errorf("scan expired offer: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanThread(r rowScanner) (types.OfferThread, error) {
	var (
		t                  types.OfferThread
		liveID, acceptedID sql.NullString
		acceptedAt         sql.NullInt64
		createdAt          int64
	)
	err := r.Scan(&t.ThreadID, &t.ListingID, &t.BuyerOrgID, &t.SellerOrgID, &liveID, &t.Version,
		&acceptedID, &acceptedAt, &createdAt)
	if err != nil {
		return types.OfferThread{}, err
	}
	t.LiveOfferID = liveID.String
	t.AcceptedOfferID = acceptedID.String
	t.AcceptedAt = timePtr(acceptedAt)
	t.CreatedAt = fromMillis(createdAt)
	return t, nil
}

func scanOffer(r rowScanner) (types.Offer, error) {
	var (
		o                    types.Offer
		state                string
		expiresAt            sql.NullInt64
		createdAt, updatedAt int64
	)
	err := r.Scan(&o.OfferID, &o.ThreadID, &o.CreatedByOrgID, &state, &o.Price, &o.Quantity, &o.Terms, &o.Message,
		&expiresAt, &createdAt, &updatedAt)
	if err != nil {
		return types.Offer{}, err
	}
	o.State = types.OfferState(state)
	o.ExpiresAt = timePtr(expiresAt)
	o.CreatedAt = fromMillis(createdAt)
	o.UpdatedAt = fromMillis(updatedAt)
	return o, nil
}
