package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/veilmarket/internal/offer"
	"github.com/mesh-intelligence/veilmarket/internal/sqlite"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

var _ Store = (*sqlite.Backend)(nil)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Email
}

func (m *recordingMailer) Send(_ context.Context, msg Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) To(addr string) []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Email
	for _, e := range m.sent {
		if e.To == addr {
			out = append(out, e)
		}
	}
	return out
}

// fixture is a broker over a seeded SQLite store. Acme (PREMIUM) buys,
// BrightChem (FREE) sells.
type fixture struct {
	svc     *Service
	backend *sqlite.Backend
	seed    sqlite.SeedResult
	clock   *fakeClock
	mailer  *recordingMailer
}

// matureListing is published 72h before testNow; freshListing 10h before.
func (f fixture) matureListing() string { return f.seed.ListingIDs[0] }
func (f fixture) freshListing() string  { return f.seed.ListingIDs[1] }

func newFixture(t *testing.T, ttl time.Duration) fixture {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { _ = b.Detach() })
	res, err := b.Seed(context.Background(), testNow)
	require.NoError(t, err)

	clock := &fakeClock{now: testNow}
	mailer := &recordingMailer{}
	svc := NewService(b, Options{Mailer: mailer, Clock: clock, OfferTTL: ttl})
	return fixture{svc: svc, backend: b, seed: res, clock: clock, mailer: mailer}
}

// openOffer has bob submit an offer on the mature listing.
func (f fixture) openOffer(t *testing.T) types.Offer {
	t.Helper()
	o, err := f.svc.CreateOffer(context.Background(), sqlite.SeedUserBob, CreateOfferInput{
		ListingID: f.matureListing(),
		Terms:     offer.Terms{Price: 1750, Quantity: "20 t", Message: "Can ship from Rotterdam"},
		Submit:    true,
	})
	require.NoError(t, err)
	require.Equal(t, types.OfferOpen, o.State)
	return o
}

func notificationTypes(t *testing.T, f fixture, userID string) []types.NotificationType {
	t.Helper()
	ns, err := f.backend.ListNotifications(context.Background(), userID, false)
	require.NoError(t, err)
	out := make([]types.NotificationType, 0, len(ns))
	for i := len(ns) - 1; i >= 0; i-- {
		out = append(out, ns[i].Type)
	}
	return out
}

// addOrg creates an organization with one OWNER seat for userID.
func (f fixture) addOrg(t *testing.T, orgID, userID string, tier types.Tier) {
	t.Helper()
	ctx := context.Background()
	_, err := f.backend.CreateOrganization(ctx, types.Organization{
		OrgID:        orgID,
		Handle:       orgID + "-h",
		Tier:         tier,
		Verification: types.VerificationUnverified,
		LegalName:    "Org " + orgID,
		CreatedAt:    testNow,
	})
	require.NoError(t, err)
	_, err = f.backend.CreateUser(ctx, types.User{UserID: userID, Email: userID + "@example.com", FirstName: "U", LastName: userID, CreatedAt: testNow})
	require.NoError(t, err)
	require.NoError(t, f.backend.AddSeat(ctx, types.Seat{UserID: userID, OrgID: orgID, Role: types.RoleOwner}))
}
