// Package reveal decides what a viewer may see of listings and of the
// organizations behind them. Listings are gated by an early-access window;
// legal identities are hidden behind pseudonymous handles until an offer in
// a shared thread is accepted.
//
// Every function is pure: the current time is always a parameter.
package reveal

import (
	"time"

	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// EarlyAccessWindow is how long after publication a listing is visible only
// to its owner and to premium organizations.
const EarlyAccessWindow = 48 * time.Hour

// Viewer is the organization looking at a listing. The zero value is an
// anonymous viewer.
type Viewer struct {
	OrgID string
	Tier  types.Tier
}

// Anonymous reports whether v carries no organization.
func (v Viewer) Anonymous() bool { return v.OrgID == "" }

// EarlyAccessRestricted reports whether a viewer of the given tier is still
// inside the early-access window of a listing published at publishedAt.
func EarlyAccessRestricted(publishedAt time.Time, tier types.Tier, now time.Time) bool {
	if tier == types.TierPremium {
		return false
	}
	return now.Sub(publishedAt) < EarlyAccessWindow
}

// Visible reports whether v may see l at now. The owning organization sees
// its listings in any status. Everyone else sees only PUBLISHED listings,
// and non-premium viewers only once the early-access window has elapsed.
func Visible(l types.Listing, v Viewer, now time.Time) bool {
	if !v.Anonymous() && v.OrgID == l.OrgID {
		return true
	}
	if l.Status != types.ListingPublished || l.PublishedAt == nil {
		return false
	}
	tier := v.Tier
	if v.Anonymous() {
		tier = ""
	}
	return !EarlyAccessRestricted(*l.PublishedAt, tier, now)
}

// Identity is an organization's real identity, disclosed to a counterparty
// only after acceptance.
type Identity struct {
	OrgID     string `json:"org_id"`
	LegalName string `json:"legal_name"`
	Website   string `json:"website,omitempty"`
	Country   string `json:"country"`
}

// Reveal returns org's identity as seen inside thread at now, or nil while
// the thread has no accepted offer. Once AcceptedAt is stamped it is never
// cleared, so a non-nil result stays non-nil for every later now, whatever
// happens to the listing.
func Reveal(org types.Organization, thread types.OfferThread, now time.Time) *Identity {
	if thread.AcceptedAt == nil || now.Before(*thread.AcceptedAt) {
		return nil
	}
	if !thread.IsParticipant(org.OrgID) {
		return nil
	}
	return &Identity{
		OrgID:     org.OrgID,
		LegalName: org.LegalName,
		Website:   org.Website,
		Country:   org.Country,
	}
}

// OrganizationView is what a counterparty is shown about an organization.
// Identity stays nil until Reveal grants it.
type OrganizationView struct {
	OrgID    string     `json:"org_id"`
	Handle   string     `json:"handle"`
	Tier     types.Tier `json:"tier"`
	Verified bool       `json:"verified"`
	Identity *Identity  `json:"identity,omitempty"`
}

// Project builds the counterparty view of org within thread at now.
func Project(org types.Organization, thread types.OfferThread, now time.Time) OrganizationView {
	return OrganizationView{
		OrgID:    org.OrgID,
		Handle:   org.Handle,
		Tier:     org.Tier,
		Verified: org.Verified(),
		Identity: Reveal(org, thread, now),
	}
}
