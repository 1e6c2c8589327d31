package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mesh-intelligence/veilmarket/internal/offer"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// dispatchStore is the part of Store the dispatcher writes through.
type dispatchStore interface {
	Directory
	Notifications
	Reveals
}

// Dispatcher runs the side effects of committed transitions.
type Dispatcher struct {
	store  dispatchStore
	mailer Mailer
	clock  Clock
	logger *slog.Logger
}

// NewDispatcher builds a dispatcher.
func NewDispatcher(store dispatchStore, mailer Mailer, clock Clock, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{store: store, mailer: mailer, clock: clock, logger: ResolveLogger(logger)}
}

// Dispatch runs effects in order. Failures are logged and skipped; they
// never undo the transition that produced the effects.
func (d *Dispatcher) Dispatch(ctx context.Context, effects []offer.Effect) {
	for _, e := range effects {
		var err error
		switch e.Kind {
		case offer.EffectNotify:
			err = d.notifyOrg(ctx, e.OrgID, e.Type, e.Payload)
		case offer.EffectReveal:
			err = d.reveal(ctx, e)
		default:
			err = fmt.Errorf("unknown effect kind %q", e.Kind)
		}
		if err != nil {
			d.logger.ErrorContext(ctx, "effect dispatch failed",
				"event", "effect_dispatch_failed",
				"module", "broker",
				"layer", "dispatcher",
				"kind", string(e.Kind),
				"type", string(e.Type),
				"org_id", e.OrgID,
				"thread_id", e.ThreadID,
				"error", err.Error(),
			)
		}
	}
}

func (d *Dispatcher) reveal(ctx context.Context, e offer.Effect) error {
	if err := d.store.RecordReveal(ctx, e.OrgID, e.ThreadID, d.clock.Now().UTC()); err != nil {
		return fmt.Errorf("record reveal: %w", err)
	}
	payload := map[string]string{"thread_id": e.ThreadID, "org_id": e.OrgID}
	if id := e.Payload["listing_id"]; id != "" {
		payload["listing_id"] = id
	}
	return d.notifyOrg(ctx, e.OrgID, types.NotifyIdentityRevealed, payload)
}

// notifyOrg writes a notification for, and mails, every seat of orgID. It
// keeps going past a failing seat and returns the first error.
func (d *Dispatcher) notifyOrg(ctx context.Context, orgID string, typ types.NotificationType, payload map[string]string) error {
	seats, err := d.store.ListSeatsByOrg(ctx, orgID)
	if err != nil {
		return fmt.Errorf("list seats: %w", err)
	}
	var first error
	for _, seat := range seats {
		if err := d.notifyUser(ctx, seat, typ, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (d *Dispatcher) notifyUser(ctx context.Context, seat types.Seat, typ types.NotificationType, payload map[string]string) error {
	n, err := d.store.CreateNotification(ctx, types.Notification{
		UserID:    seat.UserID,
		OrgID:     seat.OrgID,
		Type:      typ,
		Payload:   payload,
		CreatedAt: d.clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	u, err := d.store.GetUser(ctx, seat.UserID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	if u.Email == "" {
		return nil
	}
	msg := Email{To: u.Email, Subject: subject(typ), Body: body(n)}
	if err := d.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

var subjects = map[types.NotificationType]string{
	types.NotifyOfferReceived:    "You received a new offer",
	types.NotifyOfferCountered:   "Your offer was countered",
	types.NotifyOfferAccepted:    "An offer was accepted",
	types.NotifyOfferRejected:    "Your offer was rejected",
	types.NotifyOfferExpired:     "An offer expired",
	types.NotifyIdentityRevealed: "Your identity was revealed to a counterparty",
	types.NotifyListingPromoted:  "Your listing is promoted",
	types.NotifyInviteReceived:   "You were invited to an organization",
}

func subject(typ types.NotificationType) string {
	if s, ok := subjects[typ]; ok {
		return s
	}
	return string(typ)
}

// body lists the payload ids only; payloads never carry identities.
func body(n types.Notification) string {
	keys := make([]string, 0, len(n.Payload))
	for k := range n.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", subject(n.Type))
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, n.Payload[k])
	}
	return b.String()
}
