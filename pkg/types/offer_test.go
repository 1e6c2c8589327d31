package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOfferStateClasses(t *testing.T) {
	live := map[OfferState]bool{OfferOpen: true, OfferCounter: true}
	terminal := map[OfferState]bool{
		OfferAccepted:   true,
		OfferRejected:   true,
		OfferSuperseded: true,
		OfferExpired:    true,
	}
	for _, s := range OfferStates {
		assert.Equal(t, live[s], s.IsLive(), "IsLive(%s)", s)
		assert.Equal(t, terminal[s], s.IsTerminal(), "IsTerminal(%s)", s)
		assert.True(t, s.Valid())
	}
	assert.False(t, OfferDraft.IsLive())
	assert.False(t, OfferDraft.IsTerminal())
	assert.False(t, OfferState("PENDING").Valid())
}

func TestOfferThreadValidate(t *testing.T) {
	assert.NoError(t, OfferThread{ListingID: "l", BuyerOrgID: "b", SellerOrgID: "s"}.Validate())
	assert.ErrorIs(t, OfferThread{ListingID: "l", BuyerOrgID: "s", SellerOrgID: "s"}.Validate(), ErrInvalidArgument)
	assert.ErrorIs(t, OfferThread{BuyerOrgID: "b", SellerOrgID: "s"}.Validate(), ErrInvalidArgument)
}

func TestOfferThreadCounterparty(t *testing.T) {
	th := OfferThread{BuyerOrgID: "buyer", SellerOrgID: "seller"}
	assert.Equal(t, "seller", th.Counterparty("buyer"))
	assert.Equal(t, "buyer", th.Counterparty("seller"))
	assert.Equal(t, "", th.Counterparty("outsider"))
	assert.Equal(t, "", th.Counterparty(""))
	assert.True(t, th.IsParticipant("buyer"))
	assert.False(t, th.IsParticipant(""))
}

func TestOfferExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	at := now.Add(time.Hour)
	o := Offer{ExpiresAt: &at}
	assert.False(t, o.Expired(now))
	assert.True(t, o.Expired(at))
	assert.True(t, o.Expired(at.Add(time.Second)))
	assert.False(t, Offer{}.Expired(now), "offers without expiry never expire")
}

func TestThreadSnapshotHelpers(t *testing.T) {
	snap := ThreadSnapshot{Ledger: []Offer{
		{OfferID: "a", State: OfferSuperseded},
		{OfferID: "b", State: OfferCounter},
		{OfferID: "c", State: OfferDraft},
	}}
	assert.Equal(t, 1, snap.LiveCount())
	o, ok := snap.Find("b")
	assert.True(t, ok)
	assert.Equal(t, OfferCounter, o.State)
	_, ok = snap.Find("z")
	assert.False(t, ok)
}
