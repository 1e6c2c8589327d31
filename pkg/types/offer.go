package types

import "time"

// OfferState is an offer's position in the negotiation.
type OfferState string

// Offer states. OPEN and COUNTER are the live states; COUNTER records that
// the most recent move came from the other side of the thread.
const (
	OfferDraft      OfferState = "DRAFT"
	OfferOpen       OfferState = "OPEN"
	OfferCounter    OfferState = "COUNTER"
	OfferAccepted   OfferState = "ACCEPTED"
	OfferRejected   OfferState = "REJECTED"
	OfferSuperseded OfferState = "SUPERSEDED"
	OfferExpired    OfferState = "EXPIRED"
)

// OfferStates lists every offer state in lifecycle order.
var OfferStates = []OfferState{
	OfferDraft,
	OfferOpen,
	OfferCounter,
	OfferAccepted,
	OfferRejected,
	OfferSuperseded,
	OfferExpired,
}

// IsLive reports whether s is OPEN or COUNTER.
func (s OfferState) IsLive() bool {
	return s == OfferOpen || s == OfferCounter
}

// IsTerminal reports whether s is ACCEPTED, REJECTED, SUPERSEDED or EXPIRED.
func (s OfferState) IsTerminal() bool {
	switch s {
	case OfferAccepted, OfferRejected, OfferSuperseded, OfferExpired:
		return true
	}
	return false
}

// Valid reports whether s is a recognized state.
func (s OfferState) Valid() bool {
	return s == OfferDraft || s.IsLive() || s.IsTerminal()
}

// OfferThread is the bilateral negotiation between a listing's owner (the
// seller side) and one counterparty (the buyer side). Version increases on
// every committed transition and is the compare-and-swap key.
type OfferThread struct {
	ThreadID        string     `json:"thread_id"`
	ListingID       string     `json:"listing_id"`
	BuyerOrgID      string     `json:"buyer_org_id"`
	SellerOrgID     string     `json:"seller_org_id"`
	LiveOfferID     string     `json:"live_offer_id,omitempty"`
	Version         int64      `json:"version"`
	AcceptedOfferID string     `json:"accepted_offer_id,omitempty"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Validate checks that both sides are set and distinct.
func (t OfferThread) Validate() error {
	if t.ListingID == "" || t.BuyerOrgID == "" || t.SellerOrgID == "" {
		return New(CodeInvalidArgument, "thread requires listing, buyer and seller")
	}
	if t.BuyerOrgID == t.SellerOrgID {
		return New(CodeInvalidArgument, "an organization cannot negotiate with itself")
	}
	return nil
}

// IsParticipant reports whether orgID is the buyer or the seller.
func (t OfferThread) IsParticipant(orgID string) bool {
	return orgID != "" && (orgID == t.BuyerOrgID || orgID == t.SellerOrgID)
}

// Counterparty returns the other side of the thread, or "" when orgID is
// not a participant.
func (t OfferThread) Counterparty(orgID string) string {
	switch orgID {
	case "":
		return ""
	case t.BuyerOrgID:
		return t.SellerOrgID
	case t.SellerOrgID:
		return t.BuyerOrgID
	}
	return ""
}

// Revealed reports whether an offer in the thread has been accepted.
func (t OfferThread) Revealed() bool {
	return t.AcceptedAt != nil
}

// Offer is one row of a thread's append-only ledger. A counter never edits
// the live row; it supersedes it and appends a new one.
type Offer struct {
	OfferID        string     `json:"offer_id"`
	ThreadID       string     `json:"thread_id"`
	CreatedByOrgID string     `json:"created_by_org_id"`
	State          OfferState `json:"state"`
	Price          float64    `json:"price,omitempty"`
	Quantity       string     `json:"quantity,omitempty"`
	Terms          string     `json:"terms,omitempty"`
	Message        string     `json:"message,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsLive reports whether the offer is awaiting a response.
func (o Offer) IsLive() bool { return o.State.IsLive() }

// Expired reports whether the offer carries an expiry that has elapsed at now.
func (o Offer) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}

// ThreadSnapshot is what storage returns for a thread: the thread row with
// its version, the live offer (nil when none), and the full ledger in
// creation order.
type ThreadSnapshot struct {
	Thread OfferThread
	Live   *Offer
	Ledger []Offer
}

// LiveCount returns the number of ledger rows in a live state.
func (s ThreadSnapshot) LiveCount() int {
	n := 0
	for _, o := range s.Ledger {
		if o.IsLive() {
			n++
		}
	}
	return n
}

// Find returns the ledger row with the given id.
func (s ThreadSnapshot) Find(offerID string) (Offer, bool) {
	for _, o := range s.Ledger {
		if o.OfferID == offerID {
			return o, true
		}
	}
	return Offer{}, false
}

// OfferCommit is a transition handed to storage. Storage applies it only if
// the thread is still at ExpectedVersion, and otherwise returns
// ErrVersionConflict without writing anything.
type OfferCommit struct {
	ThreadID        string
	ExpectedVersion int64
	Offer           Offer    // Row to insert or update.
	Superseded      []string // Live rows to mark SUPERSEDED.
	Discard         bool     // Delete Offer (a DRAFT) instead of writing it.
	LiveOfferID     string   // Thread's live pointer after the commit; "" for none.
	Accepted        bool     // Stamp AcceptedOfferID/AcceptedAt on the thread.
	At              time.Time
}

// ExpiredOffer identifies a live offer whose expiry has elapsed.
type ExpiredOffer struct {
	ThreadID string
	OfferID  string
}
