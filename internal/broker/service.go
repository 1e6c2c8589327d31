// Package broker orchestrates the negotiation core. Every operation loads
// the caller's seats, asks the capability evaluator, runs the pure state
// machine, commits through the store, and then dispatches side effects.
// Effects run after the commit and never unwind it.
package broker

import (
	"context"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/veilmarket/internal/access"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// Options configures a Service. Zero fields take defaults.
type Options struct {
	Mailer Mailer
	Clock  Clock
	Logger *slog.Logger

	// OfferTTL is the expiry given to submitted offers that carry none.
	// Zero leaves them without expiry.
	OfferTTL time.Duration
}

// Service is the broker.
type Service struct {
	store      Store
	dispatcher *Dispatcher
	clock      Clock
	logger     *slog.Logger
	offerTTL   time.Duration
}

// NewService builds a broker over store.
func NewService(store Store, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	logger := ResolveLogger(opts.Logger)
	if opts.Mailer == nil {
		opts.Mailer = LogMailer{Logger: logger}
	}
	return &Service{
		store:      store,
		dispatcher: NewDispatcher(store, opts.Mailer, opts.Clock, logger),
		clock:      opts.Clock,
		logger:     logger,
		offerTTL:   opts.OfferTTL,
	}
}

// Now returns the broker's current time.
func (s *Service) Now() time.Time { return s.clock.Now().UTC() }

// Principal loads userID and its seats. An empty userID is the anonymous
// principal.
func (s *Service) Principal(ctx context.Context, userID string) (access.Principal, error) {
	if userID == "" {
		return access.Principal{}, nil
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return access.Principal{}, err
	}
	seats, err := s.store.ListSeatsByUser(ctx, userID)
	if err != nil {
		return access.Principal{}, err
	}
	return access.Principal{UserID: userID, Seats: seats}, nil
}

// actingOrg picks the organization p acts for in thread. hint, when set,
// must name one of p's seats on the thread.
func actingOrg(p access.Principal, thread types.OfferThread, hint string) (string, error) {
	if hint != "" {
		if _, ok := p.SeatIn(hint); !ok || !thread.IsParticipant(hint) {
			return "", types.New(types.CodeForbidden, "no seat in "+hint+" on this thread")
		}
		return hint, nil
	}
	var found []string
	for _, orgID := range []string{thread.BuyerOrgID, thread.SellerOrgID} {
		if _, ok := p.SeatIn(orgID); ok {
			found = append(found, orgID)
		}
	}
	switch len(found) {
	case 0:
		return "", types.New(types.CodeForbidden, "not a participant of this thread")
	case 1:
		return found[0], nil
	}
	return "", types.New(types.CodeInvalidArgument, "seats on both sides of the thread; name the acting organization")
}

func offerTarget(thread types.OfferThread, o types.Offer) access.Target {
	return access.Target{
		Kind:        access.KindOffer,
		ID:          o.OfferID,
		BuyerOrgID:  thread.BuyerOrgID,
		SellerOrgID: thread.SellerOrgID,
		OfferState:  o.State,
	}
}

func threadTarget(thread types.OfferThread) access.Target {
	return access.Target{
		Kind:        access.KindOfferThread,
		ID:          thread.ThreadID,
		BuyerOrgID:  thread.BuyerOrgID,
		SellerOrgID: thread.SellerOrgID,
	}
}

func listingTarget(l types.Listing) access.Target {
	return access.Target{
		Kind:          access.KindListing,
		ID:            l.ListingID,
		OrgID:         l.OrgID,
		ListingStatus: l.Status,
		PublishedAt:   l.PublishedAt,
	}
}
