package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/veilmarket/internal/sqlite"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

func TestGetUserRedactsContactFields(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	self, err := f.svc.GetUser(ctx, sqlite.SeedUserAlice, sqlite.SeedUserAlice)
	require.NoError(t, err)
	assert.NotEmpty(t, self.Email)
	assert.NotEmpty(t, self.Phone)

	colleague, err := f.svc.GetUser(ctx, sqlite.SeedUserBob, sqlite.SeedUserAlice)
	require.NoError(t, err)
	assert.Equal(t, "Alice", colleague.FirstName)
	assert.Empty(t, colleague.Email)
	assert.Empty(t, colleague.Phone)

	owner, err := f.svc.GetUser(ctx, sqlite.SeedUserAlice, sqlite.SeedUserBob)
	require.NoError(t, err)
	assert.Empty(t, owner.Email, "even an owner cannot read a member's email")

	_, err = f.svc.GetUser(ctx, sqlite.SeedUserCarol, sqlite.SeedUserAlice)
	assert.ErrorIs(t, err, types.ErrForbidden, "no shared organization")
	_, err = f.svc.GetUser(ctx, sqlite.SeedUserAlice, "user-ghost")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestAddMember(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.addOrg(t, "org-coastal", "user-erin", types.TierFree)

	err := f.svc.AddMember(ctx, sqlite.SeedUserBob, types.Seat{UserID: "user-erin", OrgID: sqlite.SeedOrgAcme, Role: types.RoleMember})
	assert.ErrorIs(t, err, types.ErrForbidden, "members cannot invite")

	require.NoError(t, f.svc.AddMember(ctx, sqlite.SeedUserAlice, types.Seat{UserID: "user-erin", OrgID: sqlite.SeedOrgAcme, Role: types.RoleAdmin}))
	assert.Equal(t, []types.NotificationType{types.NotifyInviteReceived}, notificationTypes(t, f, "user-erin"))
	assert.Len(t, f.mailer.To("user-erin@example.com"), 1)

	err = f.svc.AddMember(ctx, "user-erin", types.Seat{UserID: sqlite.SeedUserBob, OrgID: sqlite.SeedOrgAcme, Role: types.RoleOwner})
	assert.ErrorIs(t, err, types.ErrForbidden, "admins cannot appoint owners")
	require.NoError(t, f.svc.AddMember(ctx, "user-erin", types.Seat{UserID: sqlite.SeedUserBob, OrgID: sqlite.SeedOrgAcme, Role: types.RoleViewer}))

	seats, err := f.backend.ListSeatsByUser(ctx, sqlite.SeedUserBob)
	require.NoError(t, err)
	require.Len(t, seats, 1)
	assert.Equal(t, types.RoleViewer, seats[0].Role)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	err := f.svc.RemoveMember(ctx, sqlite.SeedUserCarol, sqlite.SeedOrgBrightChem, sqlite.SeedUserCarol)
	assert.ErrorIs(t, err, types.ErrForbidden, "the sole owner cannot leave")

	err = f.svc.RemoveMember(ctx, sqlite.SeedUserDave, sqlite.SeedOrgBrightChem, sqlite.SeedUserCarol)
	assert.ErrorIs(t, err, types.ErrForbidden)

	require.NoError(t, f.svc.RemoveMember(ctx, sqlite.SeedUserDave, sqlite.SeedOrgBrightChem, sqlite.SeedUserDave), "anyone may leave")
	err = f.svc.RemoveMember(ctx, sqlite.SeedUserCarol, sqlite.SeedOrgBrightChem, sqlite.SeedUserDave)
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, f.svc.RemoveMember(ctx, sqlite.SeedUserAlice, sqlite.SeedOrgAcme, sqlite.SeedUserBob))
	seats, err := f.backend.ListSeatsByOrg(ctx, sqlite.SeedOrgAcme)
	require.NoError(t, err)
	assert.Len(t, seats, 1)
}

func TestNotificationsAreOwnedByTheirUser(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.openOffer(t)

	unread, err := f.svc.ListNotifications(ctx, sqlite.SeedUserCarol, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	n := unread[0]
	assert.Equal(t, types.NotifyOfferReceived, n.Type)
	assert.NotContains(t, n.Payload, "org_id", "offer notifications carry no organization")

	_, err = f.svc.MarkNotificationRead(ctx, sqlite.SeedUserDave, n.NotificationID)
	assert.ErrorIs(t, err, types.ErrForbidden)

	read, err := f.svc.MarkNotificationRead(ctx, sqlite.SeedUserCarol, n.NotificationID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)

	unread, err = f.svc.ListNotifications(ctx, sqlite.SeedUserCarol, true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	_, err = f.svc.ListNotifications(ctx, "", false)
	assert.ErrorIs(t, err, types.ErrForbidden)
	_, err = f.svc.MarkNotificationRead(ctx, sqlite.SeedUserCarol, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}
