package access

import (
	"time"

	"github.com/mesh-intelligence/veilmarket/internal/reveal"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// actionSet is a bitmask of the four primitive actions.
type actionSet uint8

const (
	bitCreate actionSet = 1 << iota
	bitRead
	bitUpdate
	bitDelete

	bitManage = bitCreate | bitRead | bitUpdate | bitDelete
)

var actionBits = map[Action]actionSet{
	ActionCreate: bitCreate,
	ActionRead:   bitRead,
	ActionUpdate: bitUpdate,
	ActionDelete: bitDelete,
	ActionManage: bitManage,
}

var knownKinds = map[Kind]bool{
	KindOrganization:       true,
	KindUser:               true,
	KindListing:            true,
	KindOfferThread:        true,
	KindOffer:              true,
	KindNotification:       true,
	KindPromotion:          true,
	KindSubscription:       true,
	KindMaterialIdentifier: true,
}

// permits reports whether every primitive action implied by a is granted.
func (s actionSet) permits(a Action) bool {
	bits := actionBits[a]
	return bits != 0 && s&bits == bits
}

// anonymousGrants allows reading published listings past early access.
func anonymousGrants(t Target, now time.Time) actionSet {
	if t.Kind == KindListing && marketplaceVisible(t, "", now) {
		return bitRead
	}
	return 0
}

// userGrants unions the base grants of any user with the grants of each
// seat the user holds.
func userGrants(p Principal, t Target, now time.Time) actionSet {
	var s actionSet

	switch t.Kind {
	case KindUser:
		if t.ID != "" && t.ID == p.UserID {
			s |= bitRead | bitUpdate
		}
	case KindNotification:
		if t.UserID != "" && t.UserID == p.UserID {
			s |= bitRead | bitUpdate
		}
	case KindMaterialIdentifier:
		s |= bitRead
	case KindListing:
		tier := types.TierFree
		if p.Premium() {
			tier = types.TierPremium
		}
		if marketplaceVisible(t, tier, now) {
			s |= bitRead
		}
	}

	for _, seat := range p.usableSeats() {
		s |= seatGrants(seat, t)
	}
	return s
}

// seatGrants is the role table. Org-scoped kinds match on Target.OrgID;
// negotiation kinds match when the seat's org is a participant.
func seatGrants(seat types.Seat, t Target) actionSet {
	inOrg := t.OrgID != "" && t.OrgID == seat.OrgID
	party := seat.OrgID == t.BuyerOrgID || seat.OrgID == t.SellerOrgID

	switch seat.Role {
	case types.RoleOwner:
		switch t.Kind {
		case KindOrganization, KindListing, KindPromotion, KindSubscription:
			if inOrg {
				return bitManage
			}
		case KindOffer, KindOfferThread:
			if party {
				return bitManage
			}
		case KindUser:
			if inOrg {
				return bitManage
			}
		case KindMaterialIdentifier:
			return bitCreate | bitUpdate
		}

	case types.RoleAdmin:
		switch t.Kind {
		case KindOrganization:
			if inOrg {
				return bitCreate | bitRead | bitUpdate
			}
		case KindListing, KindPromotion, KindUser:
			if inOrg {
				return bitManage
			}
		case KindOffer, KindOfferThread:
			if party {
				return bitManage
			}
		case KindMaterialIdentifier:
			return bitCreate | bitUpdate
		}

	case types.RoleMember:
		switch t.Kind {
		case KindOrganization, KindUser, KindPromotion:
			if inOrg {
				return bitRead
			}
		case KindListing:
			if !inOrg {
				return 0
			}
			s := bitRead | bitCreate
			if t.ListingStatus == types.ListingDraft {
				s |= bitUpdate
			}
			return s
		case KindOffer, KindOfferThread:
			if party {
				return bitManage
			}
		}

	case types.RoleViewer:
		switch t.Kind {
		case KindOrganization, KindListing:
			if inOrg {
				return bitRead
			}
		case KindOffer, KindOfferThread:
			if party {
				return bitRead
			}
		}
	}
	return 0
}

// marketplaceVisible reports whether a listing of another org may be read
// by a viewer of the given tier.
func marketplaceVisible(t Target, tier types.Tier, now time.Time) bool {
	if t.ListingStatus != types.ListingPublished || t.PublishedAt == nil {
		return false
	}
	return !reveal.EarlyAccessRestricted(*t.PublishedAt, tier, now)
}
