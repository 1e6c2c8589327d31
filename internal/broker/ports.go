package broker

import (
	"context"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// Directory holds organizations, users and seats.
type Directory interface {
	GetUser(ctx context.Context, userID string) (types.User, error)
	GetOrganization(ctx context.Context, orgID string) (types.Organization, error)
	ListSeatsByUser(ctx context.Context, userID string) ([]types.Seat, error)
	ListSeatsByOrg(ctx context.Context, orgID string) ([]types.Seat, error)
	CountOwners(ctx context.Context, orgID string) (int, error)
	AddSeat(ctx context.Context, seat types.Seat) error
	RemoveSeat(ctx context.Context, userID, orgID string) error
}

// Listings stores listings, their promotions and the material identifiers
// they reference.
type Listings interface {
	GetListing(ctx context.Context, listingID string) (types.Listing, error)
	CreateListing(ctx context.Context, l types.Listing) (types.Listing, error)
	UpdateListingStatus(ctx context.Context, l types.Listing, expected types.ListingStatus) error
	ListListings(ctx context.Context, filter types.ListingFilter) ([]types.Listing, error)
	CreatePromotion(ctx context.Context, p types.Promotion) (types.Promotion, error)
	ActivePromotion(ctx context.Context, listingID string, now time.Time) (types.Promotion, error)
	PromotedListingIDs(ctx context.Context, now time.Time) (map[string]bool, error)
	CreateMaterialIdentifier(ctx context.Context, m types.MaterialIdentifier) (types.MaterialIdentifier, error)
	GetMaterialIdentifier(ctx context.Context, id string) (types.MaterialIdentifier, error)
}

// Offers stores threads and their ledgers. CommitOfferTransition must apply
// a commit only when the thread is still at its expected version.
type Offers interface {
	GetOffer(ctx context.Context, offerID string) (types.Offer, error)
	OpenThread(ctx context.Context, listingID, buyerOrgID, sellerOrgID string, at time.Time) (types.OfferThread, error)
	ListThreadsByOrg(ctx context.Context, orgID string) ([]types.OfferThread, error)
	LoadOfferThreadWithLiveOffer(ctx context.Context, threadID string) (types.ThreadSnapshot, error)
	CommitOfferTransition(ctx context.Context, c types.OfferCommit) error
	ListExpiredLiveOffers(ctx context.Context, now time.Time, limit int) ([]types.ExpiredOffer, error)
}

// Notifications stores per-user notifications.
type Notifications interface {
	CreateNotification(ctx context.Context, n types.Notification) (types.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]types.Notification, error)
	GetNotification(ctx context.Context, notificationID string) (types.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string, at time.Time) error
}

// Reveals records identity disclosures.
type Reveals interface {
	RecordReveal(ctx context.Context, orgID, threadID string, at time.Time) error
}

// Store is everything the broker persists through.
type Store interface {
	Directory
	Listings
	Offers
	Notifications
	Reveals
}

// Email is one outbound message.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// LogMailer writes each message to the log instead of sending it.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs msg.
func (m LogMailer) Send(ctx context.Context, msg Email) error {
	ResolveLogger(m.Logger).InfoContext(ctx, "send email",
		"event", "mail_sent",
		"module", "broker",
		"layer", "mailer",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}
