// Package access is the capability evaluator. It decides, for one request,
// whether a principal may perform an action on a target, down to single
// fields. Grants come from a closed table of role, action and target kind;
// cross-cutting denials run after the grants and always win.
//
// Evaluate is a pure function of its arguments. It holds no state and reads
// no clock, so it is safe for concurrent use and replayable in tests.
package access

import (
	"fmt"
	"time"

	"github.com/mesh-intelligence/veilmarket/internal/reveal"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// Action is an operation on a target. Manage implies every other action on
// the same target kind.
type Action string

// Actions.
const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// Kind is the entity class of a target.
type Kind string

// Target kinds.
const (
	KindOrganization       Kind = "Organization"
	KindUser               Kind = "User"
	KindListing            Kind = "Listing"
	KindOfferThread        Kind = "OfferThread"
	KindOffer              Kind = "Offer"
	KindNotification       Kind = "Notification"
	KindPromotion          Kind = "Promotion"
	KindSubscription       Kind = "Subscription"
	KindMaterialIdentifier Kind = "MaterialIdentifier"
)

// Fields with private contact data on a User.
const (
	FieldEmail = "email"
	FieldPhone = "phone"
)

// Decision reasons.
const (
	ReasonGranted       = "granted"
	ReasonNoGrant       = "no matching grant"
	ReasonUnknownAction = "unknown action"
	ReasonUnknownKind   = "unknown target kind"
	ReasonEarlyAccess   = "listing is in its early-access window"
	ReasonContactField  = "contact fields of other users are private"
	ReasonTerminalOffer = "offer is in a terminal state"
	ReasonSoleOwner     = "the sole owner cannot delete themself"
)

// Principal is the caller: anonymous when UserID is empty, otherwise a user
// with every seat it holds.
type Principal struct {
	UserID string
	Seats  []types.Seat
}

// Authenticated reports whether the principal is a user.
func (p Principal) Authenticated() bool { return p.UserID != "" }

// SeatIn returns the principal's seat in orgID.
func (p Principal) SeatIn(orgID string) (types.Seat, bool) {
	if orgID == "" {
		return types.Seat{}, false
	}
	for _, s := range p.usableSeats() {
		if s.OrgID == orgID {
			return s, true
		}
	}
	return types.Seat{}, false
}

// ActingFor narrows p to its seat in orgID. Roles and tier held through
// other organizations do not carry over; without a seat in orgID the
// result holds none.
func (p Principal) ActingFor(orgID string) Principal {
	out := Principal{UserID: p.UserID}
	if seat, ok := p.SeatIn(orgID); ok {
		out.Seats = []types.Seat{seat}
	}
	return out
}

// Premium reports whether any of the principal's seats is in a premium org.
func (p Principal) Premium() bool {
	for _, s := range p.usableSeats() {
		if s.Tier == types.TierPremium {
			return true
		}
	}
	return false
}

// usableSeats drops seats that are incomplete or belong to another user.
func (p Principal) usableSeats() []types.Seat {
	out := make([]types.Seat, 0, len(p.Seats))
	for _, s := range p.Seats {
		if s.OrgID == "" || !types.ValidRole(s.Role) {
			continue
		}
		if s.UserID != "" && s.UserID != p.UserID {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Target references the entity being acted on, with the ownership
// attributes the evaluator scopes on. Only the fields relevant to Kind need
// to be set; anything missing fails closed.
type Target struct {
	Kind Kind
	ID   string

	// OrgID is the owning organization: the organization itself, or the
	// owner of a Listing, Promotion, Subscription, or the org whose member a
	// User target is being managed as.
	OrgID string

	// UserID is the owning user of a Notification.
	UserID string

	// BuyerOrgID and SellerOrgID are the participants of an Offer or
	// OfferThread.
	BuyerOrgID  string
	SellerOrgID string

	ListingStatus types.ListingStatus
	PublishedAt   *time.Time
	OfferState    types.OfferState

	// OwnerSeats is the number of OWNER seats in OrgID, for User deletes.
	OwnerSeats int
}

// Decision is the outcome of an evaluation.
type Decision struct {
	Allow  bool
	Reason string
}

func allow() Decision { return Decision{Allow: true, Reason: ReasonGranted} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// Evaluate decides whether p may perform action on target at now. field
// names a single attribute of the target, or is empty for the whole record.
func Evaluate(p Principal, action Action, target Target, field string, now time.Time) Decision {
	if actionBits[action] == 0 {
		return deny(ReasonUnknownAction)
	}
	if !knownKinds[target.Kind] {
		return deny(ReasonUnknownKind)
	}

	var granted actionSet
	if p.Authenticated() {
		granted = userGrants(p, target, now)
	} else {
		granted = anonymousGrants(target, now)
	}
	if !granted.permits(action) {
		if target.Kind == KindListing && earlyAccessBlocked(p, target, now) {
			return deny(ReasonEarlyAccess)
		}
		return deny(ReasonNoGrant)
	}
	if reason, denied := crossCuttingDenial(p, action, target, field); denied {
		return deny(reason)
	}
	return allow()
}

// Require is Evaluate returning a FORBIDDEN error on denial.
func Require(p Principal, action Action, target Target, field string, now time.Time) error {
	d := Evaluate(p, action, target, field, now)
	if d.Allow {
		return nil
	}
	msg := fmt.Sprintf("%s %s", action, target.Kind)
	if field != "" {
		msg += "." + field
	}
	return types.New(types.CodeForbidden, msg+": "+d.Reason)
}

// Redact returns u with every field p may not read blanked out.
func Redact(p Principal, u types.User, now time.Time) types.User {
	target := Target{Kind: KindUser, ID: u.UserID}
	if !Evaluate(p, ActionRead, target, FieldEmail, now).Allow {
		u.Email = ""
	}
	if !Evaluate(p, ActionRead, target, FieldPhone, now).Allow {
		u.Phone = ""
	}
	return u
}

// crossCuttingDenial applies the rules that override every grant.
func crossCuttingDenial(p Principal, action Action, t Target, field string) (string, bool) {
	switch t.Kind {
	case KindUser:
		if (action == ActionRead || action == ActionManage) &&
			(field == FieldEmail || field == FieldPhone) &&
			t.ID != p.UserID {
			return ReasonContactField, true
		}
		if (action == ActionDelete || action == ActionManage) && t.ID == p.UserID {
			if seat, ok := p.SeatIn(t.OrgID); ok && seat.Role == types.RoleOwner && t.OwnerSeats <= 1 {
				return ReasonSoleOwner, true
			}
		}
	case KindOffer:
		if (action == ActionUpdate || action == ActionManage) && t.OfferState.IsTerminal() {
			return ReasonTerminalOffer, true
		}
	}
	return "", false
}

// earlyAccessBlocked reports whether the only thing between p and reading a
// published listing is the early-access window.
func earlyAccessBlocked(p Principal, t Target, now time.Time) bool {
	if t.ListingStatus != types.ListingPublished || t.PublishedAt == nil {
		return false
	}
	tier := types.TierFree
	if p.Authenticated() && p.Premium() {
		tier = types.TierPremium
	}
	return reveal.EarlyAccessRestricted(*t.PublishedAt, tier, now)
}
