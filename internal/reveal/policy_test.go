package reveal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

var publishedAt = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)

func publishedListing(owner string) types.Listing {
	at := publishedAt
	return types.Listing{
		ListingID:   "lst-1",
		OrgID:       owner,
		Status:      types.ListingPublished,
		PublishedAt: &at,
	}
}

func TestVisibleEarlyAccessBoundary(t *testing.T) {
	l := publishedListing("seller")
	before := publishedAt.Add(47*time.Hour + 59*time.Minute)
	after := publishedAt.Add(48*time.Hour + time.Minute)

	free := Viewer{OrgID: "free-org", Tier: types.TierFree}
	premium := Viewer{OrgID: "premium-org", Tier: types.TierPremium}

	assert.False(t, Visible(l, free, before))
	assert.True(t, Visible(l, free, after))
	assert.True(t, Visible(l, premium, before))
	assert.True(t, Visible(l, premium, after))
	assert.True(t, Visible(l, free, publishedAt.Add(EarlyAccessWindow)), "window is half-open")
}

func TestVisibleTenHoursAfterPublication(t *testing.T) {
	l := publishedListing("seller")
	now := publishedAt.Add(10 * time.Hour)

	assert.False(t, Visible(l, Viewer{OrgID: "x", Tier: types.TierFree}, now))
	assert.True(t, Visible(l, Viewer{OrgID: "y", Tier: types.TierPremium}, now))
}

func TestVisibleOwnerAndAnonymous(t *testing.T) {
	now := publishedAt.Add(time.Hour)
	l := publishedListing("seller")
	owner := Viewer{OrgID: "seller", Tier: types.TierFree}

	assert.True(t, Visible(l, owner, now), "owner skips the window")
	assert.False(t, Visible(l, Viewer{}, now), "anonymous waits for the window")
	assert.True(t, Visible(l, Viewer{Tier: types.TierPremium}, now.Add(EarlyAccessWindow)))

	draft := types.Listing{OrgID: "seller", Status: types.ListingDraft}
	assert.True(t, Visible(draft, owner, now))
	assert.False(t, Visible(draft, Viewer{OrgID: "p", Tier: types.TierPremium}, now))

	archived := publishedListing("seller")
	archived.Status = types.ListingArchived
	assert.True(t, Visible(archived, owner, now))
	assert.False(t, Visible(archived, Viewer{OrgID: "p", Tier: types.TierPremium}, now.Add(100*time.Hour)))
}

func TestVisibleAnonymousCannotClaimPremium(t *testing.T) {
	l := publishedListing("seller")
	assert.False(t, Visible(l, Viewer{Tier: types.TierPremium}, publishedAt.Add(time.Hour)))
}

func TestRevealBeforeAcceptance(t *testing.T) {
	org := types.Organization{OrgID: "buyer", LegalName: "Acme Ingredients Corp", Website: "https://acme.example.com", Country: "US"}
	thread := types.OfferThread{ThreadID: "t1", BuyerOrgID: "buyer", SellerOrgID: "seller"}

	assert.Nil(t, Reveal(org, thread, publishedAt))
	view := Project(org, thread, publishedAt)
	assert.Nil(t, view.Identity)
	assert.Equal(t, "buyer", view.OrgID)
}

func TestRevealIsMonotonic(t *testing.T) {
	acceptedAt := publishedAt.Add(72 * time.Hour)
	org := types.Organization{OrgID: "seller", LegalName: "BrightChem Solutions", Country: "DE"}
	thread := types.OfferThread{
		ThreadID:        "t1",
		BuyerOrgID:      "buyer",
		SellerOrgID:     "seller",
		AcceptedOfferID: "o9",
		AcceptedAt:      &acceptedAt,
	}

	assert.Nil(t, Reveal(org, thread, acceptedAt.Add(-time.Second)), "replay before acceptance stays masked")

	for _, d := range []time.Duration{0, time.Hour, 24 * time.Hour, 365 * 24 * time.Hour} {
		id := Reveal(org, thread, acceptedAt.Add(d))
		require.NotNil(t, id, "reveal at +%s", d)
		assert.Equal(t, "BrightChem Solutions", id.LegalName)
		assert.Equal(t, "DE", id.Country)
	}
}

func TestRevealOnlyForParticipants(t *testing.T) {
	acceptedAt := publishedAt
	thread := types.OfferThread{BuyerOrgID: "buyer", SellerOrgID: "seller", AcceptedAt: &acceptedAt}
	outsider := types.Organization{OrgID: "other", LegalName: "Other Ltd"}
	assert.Nil(t, Reveal(outsider, thread, publishedAt.Add(time.Hour)))
}
