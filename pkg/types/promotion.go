package types

import "time"

// PromotionDuration is how long a purchased promotion pins a listing.
const PromotionDuration = 5 * 24 * time.Hour

// Promotion pins a listing to the top of browse results until ExpiresAt.
// A listing has at most one active promotion.
type Promotion struct {
	PromotionID string    `json:"promotion_id"`
	ListingID   string    `json:"listing_id"`
	OrgID       string    `json:"org_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Active reports whether the promotion still pins its listing at now.
func (p Promotion) Active(now time.Time) bool {
	return now.Before(p.ExpiresAt)
}

// NewPromotionExpiry returns the expiry of a promotion bought at now.
func NewPromotionExpiry(now time.Time) time.Time {
	return now.Add(PromotionDuration)
}
