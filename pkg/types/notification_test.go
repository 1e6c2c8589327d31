package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationMarkRead(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	n := &Notification{NotificationID: "n1", UserID: "u1"}

	assert.ErrorIs(t, n.MarkRead("u2", now), ErrForbidden)
	assert.Nil(t, n.ReadAt)

	require.NoError(t, n.MarkRead("u1", now))
	require.NotNil(t, n.ReadAt)
	assert.True(t, n.ReadAt.Equal(now))

	require.NoError(t, n.MarkRead("u1", now.Add(time.Hour)), "idempotent")
	assert.True(t, n.ReadAt.Equal(now), "first read time is kept")
}

func TestPromotionActive(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	p := Promotion{ExpiresAt: NewPromotionExpiry(now)}
	assert.True(t, p.Active(now))
	assert.True(t, p.Active(now.Add(5*24*time.Hour-time.Second)))
	assert.False(t, p.Active(now.Add(5*24*time.Hour)))
}

func TestOrganizationValidate(t *testing.T) {
	org := Organization{OrgID: "o1", LegalName: "Acme", Tier: TierPremium, Verification: VerificationVerified}
	assert.NoError(t, org.Validate())
	assert.True(t, org.Verified())

	bad := org
	bad.Tier = "GOLD"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidArgument)

	bad = org
	bad.LegalName = ""
	assert.ErrorIs(t, bad.Validate(), ErrInvalidArgument)
}
