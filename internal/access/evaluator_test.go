package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

var (
	now         = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	freshPub    = now.Add(-10 * time.Hour)
	maturePub   = now.Add(-72 * time.Hour)
	allActions  = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}
	anonymous   = Principal{}
	acmeOrg     = "org-acme"
	brightOrg   = "org-bright"
	outsiderOrg = "org-outsider"
)

func principal(userID string, role types.Role, orgID string, tier types.Tier) Principal {
	return Principal{
		UserID: userID,
		Seats:  []types.Seat{{UserID: userID, OrgID: orgID, Role: role, Tier: tier}},
	}
}

func listing(orgID string, status types.ListingStatus, publishedAt *time.Time) Target {
	return Target{Kind: KindListing, ID: "lst", OrgID: orgID, ListingStatus: status, PublishedAt: publishedAt}
}

func offerTarget(state types.OfferState) Target {
	return Target{Kind: KindOffer, ID: "off", BuyerOrgID: acmeOrg, SellerOrgID: brightOrg, OfferState: state}
}

func TestEvaluateUnknownInputsFailClosed(t *testing.T) {
	owner := principal("u1", types.RoleOwner, acmeOrg, types.TierPremium)
	assert.Equal(t, ReasonUnknownAction, Evaluate(owner, "approve", Target{Kind: KindOrganization, OrgID: acmeOrg}, "", now).Reason)
	assert.Equal(t, ReasonUnknownKind, Evaluate(owner, ActionRead, Target{Kind: "Invoice", OrgID: acmeOrg}, "", now).Reason)
	assert.False(t, Evaluate(owner, ActionRead, Target{Kind: KindOrganization}, "", now).Allow, "missing org id")
}

func TestEvaluateAnonymous(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		target Target
		want   bool
	}{
		{name: "read mature published listing", action: ActionRead, target: listing(brightOrg, types.ListingPublished, &maturePub), want: true},
		{name: "read fresh published listing", action: ActionRead, target: listing(brightOrg, types.ListingPublished, &freshPub)},
		{name: "read draft listing", action: ActionRead, target: listing(brightOrg, types.ListingDraft, nil)},
		{name: "read archived listing", action: ActionRead, target: listing(brightOrg, types.ListingArchived, &maturePub)},
		{name: "update mature listing", action: ActionUpdate, target: listing(brightOrg, types.ListingPublished, &maturePub)},
		{name: "read organization", action: ActionRead, target: Target{Kind: KindOrganization, OrgID: brightOrg}},
		{name: "read offer", action: ActionRead, target: offerTarget(types.OfferOpen)},
		{name: "read material identifier", action: ActionRead, target: Target{Kind: KindMaterialIdentifier}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(anonymous, tt.action, tt.target, "", now).Allow)
		})
	}
}

func TestEvaluateRoleTable(t *testing.T) {
	org := Target{Kind: KindOrganization, ID: acmeOrg, OrgID: acmeOrg}
	draft := listing(acmeOrg, types.ListingDraft, nil)
	published := listing(acmeOrg, types.ListingPublished, &freshPub)
	offer := offerTarget(types.OfferOpen)
	member := Target{Kind: KindUser, ID: "u-other", OrgID: acmeOrg, OwnerSeats: 1}
	sub := Target{Kind: KindSubscription, OrgID: acmeOrg}
	promo := Target{Kind: KindPromotion, OrgID: acmeOrg}

	tests := []struct {
		role    types.Role
		target  Target
		allowed []Action
	}{
		{types.RoleOwner, org, allActions},
		{types.RoleOwner, draft, allActions},
		{types.RoleOwner, published, allActions},
		{types.RoleOwner, offer, allActions},
		{types.RoleOwner, member, allActions},
		{types.RoleOwner, sub, allActions},
		{types.RoleOwner, promo, allActions},

		{types.RoleAdmin, org, []Action{ActionCreate, ActionRead, ActionUpdate}},
		{types.RoleAdmin, published, allActions},
		{types.RoleAdmin, offer, allActions},
		{types.RoleAdmin, member, allActions},
		{types.RoleAdmin, sub, nil},
		{types.RoleAdmin, promo, allActions},

		{types.RoleMember, org, []Action{ActionRead}},
		{types.RoleMember, draft, []Action{ActionCreate, ActionRead, ActionUpdate}},
		{types.RoleMember, published, []Action{ActionCreate, ActionRead}},
		{types.RoleMember, offer, allActions},
		{types.RoleMember, member, []Action{ActionRead}},
		{types.RoleMember, sub, nil},

		{types.RoleViewer, org, []Action{ActionRead}},
		{types.RoleViewer, draft, []Action{ActionRead}},
		{types.RoleViewer, published, []Action{ActionRead}},
		{types.RoleViewer, offer, []Action{ActionRead}},
		{types.RoleViewer, member, nil},
		{types.RoleViewer, promo, nil},
	}

	for _, tt := range tests {
		p := principal("u1", tt.role, acmeOrg, types.TierFree)
		allowed := map[Action]bool{}
		for _, a := range tt.allowed {
			allowed[a] = true
		}
		for _, a := range allActions {
			got := Evaluate(p, a, tt.target, "", now).Allow
			assert.Equal(t, allowed[a], got, "%s %s %s", tt.role, a, tt.target.Kind)
		}
	}
}

func TestEvaluateSeatsAreScopedToTheirOrg(t *testing.T) {
	owner := principal("u1", types.RoleOwner, outsiderOrg, types.TierFree)
	assert.False(t, Evaluate(owner, ActionUpdate, listing(acmeOrg, types.ListingDraft, nil), "", now).Allow)
	assert.False(t, Evaluate(owner, ActionRead, offerTarget(types.OfferOpen), "", now).Allow)
	assert.False(t, Evaluate(owner, ActionRead, Target{Kind: KindOrganization, OrgID: acmeOrg}, "", now).Allow)
}

func TestEvaluateMultipleSeats(t *testing.T) {
	p := Principal{UserID: "u1", Seats: []types.Seat{
		{UserID: "u1", OrgID: acmeOrg, Role: types.RoleViewer, Tier: types.TierFree},
		{UserID: "u1", OrgID: brightOrg, Role: types.RoleMember, Tier: types.TierFree},
	}}
	assert.True(t, Evaluate(p, ActionUpdate, offerTarget(types.OfferOpen), "", now).Allow, "member seat on seller side")
	assert.False(t, Evaluate(p, ActionUpdate, listing(acmeOrg, types.ListingDraft, nil), "", now).Allow, "viewer seat in acme")
	assert.True(t, Evaluate(p, ActionUpdate, listing(brightOrg, types.ListingDraft, nil), "", now).Allow)
}

func TestActingForDropsOtherSeats(t *testing.T) {
	p := Principal{UserID: "u1", Seats: []types.Seat{
		{UserID: "u1", OrgID: brightOrg, Role: types.RoleViewer, Tier: types.TierPremium},
		{UserID: "u1", OrgID: acmeOrg, Role: types.RoleMember, Tier: types.TierFree},
	}}
	require.True(t, Evaluate(p, ActionUpdate, offerTarget(types.OfferOpen), "", now).Allow)

	seller := p.ActingFor(brightOrg)
	assert.Equal(t, "u1", seller.UserID)
	assert.Len(t, seller.Seats, 1)
	assert.False(t, Evaluate(seller, ActionUpdate, offerTarget(types.OfferOpen), "", now).Allow, "viewer seat acts for the seller")

	buyer := p.ActingFor(acmeOrg)
	assert.True(t, Evaluate(buyer, ActionUpdate, offerTarget(types.OfferOpen), "", now).Allow)
	assert.False(t, buyer.Premium(), "premium tier of another org does not carry over")
	assert.False(t, Evaluate(buyer, ActionRead, listing(outsiderOrg, types.ListingPublished, &freshPub), "", now).Allow)

	none := p.ActingFor(outsiderOrg)
	assert.True(t, none.Authenticated())
	assert.Empty(t, none.Seats)
}

func TestEvaluateIgnoresMalformedSeats(t *testing.T) {
	p := Principal{UserID: "u1", Seats: []types.Seat{
		{UserID: "u1", OrgID: "", Role: types.RoleOwner},
		{UserID: "u1", OrgID: acmeOrg, Role: "SUPERUSER"},
		{UserID: "someone-else", OrgID: acmeOrg, Role: types.RoleOwner},
	}}
	assert.False(t, Evaluate(p, ActionRead, Target{Kind: KindOrganization, OrgID: acmeOrg}, "", now).Allow)
	assert.False(t, Evaluate(p, ActionRead, Target{Kind: KindOrganization, OrgID: ""}, "", now).Allow)
}

func TestEvaluateBaseGrants(t *testing.T) {
	p := principal("u1", types.RoleViewer, acmeOrg, types.TierFree)

	self := Target{Kind: KindUser, ID: "u1"}
	assert.True(t, Evaluate(p, ActionRead, self, "", now).Allow)
	assert.True(t, Evaluate(p, ActionUpdate, self, "", now).Allow)
	assert.False(t, Evaluate(p, ActionDelete, self, "", now).Allow)

	mine := Target{Kind: KindNotification, ID: "n1", UserID: "u1"}
	theirs := Target{Kind: KindNotification, ID: "n2", UserID: "u2"}
	assert.True(t, Evaluate(p, ActionRead, mine, "", now).Allow)
	assert.True(t, Evaluate(p, ActionUpdate, mine, "", now).Allow)
	assert.False(t, Evaluate(p, ActionRead, theirs, "", now).Allow)
	assert.False(t, Evaluate(p, ActionUpdate, theirs, "", now).Allow)

	assert.True(t, Evaluate(p, ActionRead, Target{Kind: KindMaterialIdentifier}, "", now).Allow)
	assert.False(t, Evaluate(p, ActionCreate, Target{Kind: KindMaterialIdentifier}, "", now).Allow)
}

func TestEvaluateContactFieldsArePrivate(t *testing.T) {
	owner := principal("u-owner", types.RoleOwner, acmeOrg, types.TierPremium)
	colleague := Target{Kind: KindUser, ID: "u-colleague", OrgID: acmeOrg, OwnerSeats: 1}

	assert.True(t, Evaluate(owner, ActionRead, colleague, "", now).Allow)
	assert.True(t, Evaluate(owner, ActionRead, colleague, "first_name", now).Allow)

	for _, field := range []string{FieldEmail, FieldPhone} {
		d := Evaluate(owner, ActionRead, colleague, field, now)
		assert.False(t, d.Allow, "owner reading colleague %s", field)
		assert.Equal(t, ReasonContactField, d.Reason)

		assert.True(t, Evaluate(owner, ActionRead, Target{Kind: KindUser, ID: "u-owner"}, field, now).Allow,
			"own %s is readable", field)
	}
}

func TestEvaluateTerminalOffersAreImmutable(t *testing.T) {
	owner := principal("u1", types.RoleOwner, acmeOrg, types.TierFree)
	for _, state := range []types.OfferState{types.OfferAccepted, types.OfferRejected, types.OfferSuperseded, types.OfferExpired} {
		d := Evaluate(owner, ActionUpdate, offerTarget(state), "", now)
		assert.False(t, d.Allow, "update %s", state)
		assert.Equal(t, ReasonTerminalOffer, d.Reason)
		assert.True(t, Evaluate(owner, ActionRead, offerTarget(state), "", now).Allow, "read %s", state)
	}
	for _, state := range []types.OfferState{types.OfferDraft, types.OfferOpen, types.OfferCounter} {
		assert.True(t, Evaluate(owner, ActionUpdate, offerTarget(state), "", now).Allow, "update %s", state)
	}
}

func TestEvaluateSoleOwnerCannotDeleteSelf(t *testing.T) {
	owner := principal("u1", types.RoleOwner, acmeOrg, types.TierFree)

	sole := Target{Kind: KindUser, ID: "u1", OrgID: acmeOrg, OwnerSeats: 1}
	d := Evaluate(owner, ActionDelete, sole, "", now)
	assert.False(t, d.Allow)
	assert.Equal(t, ReasonSoleOwner, d.Reason)

	shared := Target{Kind: KindUser, ID: "u1", OrgID: acmeOrg, OwnerSeats: 2}
	assert.True(t, Evaluate(owner, ActionDelete, shared, "", now).Allow)

	other := Target{Kind: KindUser, ID: "u2", OrgID: acmeOrg, OwnerSeats: 1}
	assert.True(t, Evaluate(owner, ActionDelete, other, "", now).Allow)
}

func TestEvaluatePremiumEarlyAccess(t *testing.T) {
	fresh := listing(brightOrg, types.ListingPublished, &freshPub)
	free := principal("u1", types.RoleMember, acmeOrg, types.TierFree)
	premium := principal("u2", types.RoleViewer, outsiderOrg, types.TierPremium)

	d := Evaluate(free, ActionRead, fresh, "", now)
	assert.False(t, d.Allow)
	assert.Equal(t, ReasonEarlyAccess, d.Reason)
	assert.True(t, Evaluate(premium, ActionRead, fresh, "", now).Allow)

	mature := listing(brightOrg, types.ListingPublished, &maturePub)
	assert.True(t, Evaluate(free, ActionRead, mature, "", now).Allow)
	assert.False(t, Evaluate(premium, ActionUpdate, mature, "", now).Allow, "premium grants read only")

	draft := listing(brightOrg, types.ListingDraft, nil)
	assert.False(t, Evaluate(premium, ActionRead, draft, "", now).Allow)
}

func TestRequire(t *testing.T) {
	viewer := principal("u1", types.RoleViewer, acmeOrg, types.TierFree)
	err := Require(viewer, ActionUpdate, offerTarget(types.OfferOpen), "", now)
	assert.ErrorIs(t, err, types.ErrForbidden)
	assert.False(t, types.Retryable(err))
	assert.NoError(t, Require(viewer, ActionRead, offerTarget(types.OfferOpen), "", now))
}

func TestRedact(t *testing.T) {
	owner := principal("u-owner", types.RoleOwner, acmeOrg, types.TierFree)
	u := types.User{UserID: "u-colleague", Email: "c@acme.example.com", Phone: "+1 555 0100", FirstName: "Sarah"}

	got := Redact(owner, u, now)
	assert.Empty(t, got.Email)
	assert.Empty(t, got.Phone)
	assert.Equal(t, "Sarah", got.FirstName)

	self := Principal{UserID: "u-colleague"}
	assert.Equal(t, u, Redact(self, u, now))
}
