// Package offer is the negotiation state machine. Apply takes a snapshot of
// a thread, the offer an event targets, and the event, and returns the next
// state of the thread together with the side effects the transition implies.
// It performs no I/O; effects are descriptions for the broker to dispatch
// after the transition is committed.
package offer

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// EventKind names a negotiation event.
type EventKind string

// Events.
const (
	EventSubmit  EventKind = "submit"
	EventCounter EventKind = "counter"
	EventAccept  EventKind = "accept"
	EventReject  EventKind = "reject"
	EventExpire  EventKind = "expire"
	EventDiscard EventKind = "discard"
)

// Terms are the commercial content of an offer row.
type Terms struct {
	Price     float64    `json:"price"`
	Quantity  string     `json:"quantity,omitempty"`
	Terms     string     `json:"terms,omitempty"`
	Message   string     `json:"message,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Validate checks terms against the time they are proposed at.
func (t Terms) Validate(at time.Time) error {
	if t.Price < 0 {
		return types.New(types.CodeInvalidArgument, "price must not be negative")
	}
	if t.ExpiresAt != nil && !t.ExpiresAt.After(at) {
		return types.New(types.CodeInvalidArgument, "expiry must be in the future")
	}
	return nil
}

// Event is one negotiation step. ActorOrgID is the organization acting; it
// is empty only for system events (expire).
type Event struct {
	Kind       EventKind
	ActorOrgID string
	At         time.Time
	Terms      *Terms // Counter terms; optional replacement terms on submit.
}

// EffectKind classifies a side effect.
type EffectKind string

// Effect kinds.
const (
	EffectNotify EffectKind = "notify"
	EffectReveal EffectKind = "reveal"
)

// Effect is a side effect to run after a transition commits. Notify effects
// address every seat of OrgID; reveal effects disclose OrgID's identity to
// the other participant of ThreadID.
type Effect struct {
	Kind     EffectKind
	OrgID    string
	ThreadID string
	OfferID  string
	Type     types.NotificationType
	Payload  map[string]string
}

// Result is the outcome of Apply.
type Result struct {
	// Offer is the targeted row after the event.
	Offer types.Offer
	// Created is the row appended by a counter.
	Created *types.Offer
	// Superseded lists live rows the transition retires.
	Superseded []string
	// Discarded is set when the targeted DRAFT is deleted.
	Discarded bool
	// LiveOfferID is the thread's live offer after the event, "" for none.
	LiveOfferID string
	// Accepted is set when the event concludes the thread.
	Accepted bool
	Effects  []Effect
}

// Commit turns the result into the storage write for snap.
func (r Result) Commit(snap types.ThreadSnapshot, at time.Time) types.OfferCommit {
	c := types.OfferCommit{
		ThreadID:        snap.Thread.ThreadID,
		ExpectedVersion: snap.Thread.Version,
		Offer:           r.Offer,
		Superseded:      r.Superseded,
		Discard:         r.Discarded,
		LiveOfferID:     r.LiveOfferID,
		Accepted:        r.Accepted,
		At:              at,
	}
	if r.Created != nil {
		c.Offer = *r.Created
	}
	return c
}

// newID returns a time-ordered identifier for new offer rows.
var newID = func() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Draft builds a new DRAFT row on thread for actorOrgID.
func Draft(thread types.OfferThread, actorOrgID string, terms Terms, at time.Time) (types.Offer, error) {
	if !thread.IsParticipant(actorOrgID) {
		return types.Offer{}, types.New(types.CodeForbidden, "only a participant may draft an offer")
	}
	if thread.Revealed() {
		return types.Offer{}, types.New(types.CodeConflict, "thread is already concluded")
	}
	if err := terms.Validate(at); err != nil {
		return types.Offer{}, err
	}
	o := types.Offer{
		OfferID:        newID(),
		ThreadID:       thread.ThreadID,
		CreatedByOrgID: actorOrgID,
		State:          types.OfferDraft,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	applyTerms(&o, terms)
	return o, nil
}

// Apply runs ev against target within snap.
func Apply(snap types.ThreadSnapshot, target types.Offer, ev Event) (Result, error) {
	thread := snap.Thread
	if target.ThreadID != thread.ThreadID {
		return Result{}, types.New(types.CodeNotFound, "offer does not belong to thread")
	}
	cur, ok := snap.Find(target.OfferID)
	if !ok {
		return Result{}, types.New(types.CodeNotFound, "offer "+target.OfferID+" not in thread ledger")
	}

	if ev.Kind == EventExpire {
		if ev.ActorOrgID != "" {
			return Result{}, types.New(types.CodeForbidden, "only the system may expire an offer")
		}
	} else if !thread.IsParticipant(ev.ActorOrgID) {
		return Result{}, types.New(types.CodeForbidden, "actor is not a participant of the thread")
	}

	var (
		res Result
		err error
	)
	switch ev.Kind {
	case EventSubmit:
		res, err = submit(snap, cur, ev)
	case EventDiscard:
		res, err = discard(snap, cur, ev)
	case EventCounter, EventAccept, EventReject, EventExpire:
		if err = requireLive(snap, cur); err != nil {
			return Result{}, err
		}
		if (ev.Kind == EventCounter || ev.Kind == EventAccept) && cur.Expired(ev.At) {
			// The deadline binds before the sweeper records it.
			return Result{}, types.New(types.CodeInvalidTransition,
				fmt.Sprintf("offer %s expired at %s", cur.OfferID, cur.ExpiresAt.Format(time.RFC3339)))
		}
		switch ev.Kind {
		case EventCounter:
			res, err = counter(snap, cur, ev)
		case EventAccept:
			res, err = accept(snap, cur, ev)
		case EventReject:
			res, err = reject(snap, cur, ev)
		default:
			res, err = expire(snap, cur, ev)
		}
	default:
		return Result{}, types.New(types.CodeInvalidArgument, fmt.Sprintf("unknown event %q", ev.Kind))
	}
	if err != nil {
		return Result{}, err
	}
	if err := checkSingleLive(snap, res); err != nil {
		return Result{}, err
	}
	return res, nil
}

// requireLive rejects events on drafts and on rows that are no longer the
// thread's live offer.
func requireLive(snap types.ThreadSnapshot, cur types.Offer) error {
	if cur.State == types.OfferDraft {
		return types.New(types.CodeInvalidTransition, "offer has not been submitted")
	}
	if !cur.IsLive() || snap.Thread.LiveOfferID != cur.OfferID {
		return types.New(types.CodeConflict, fmt.Sprintf("offer %s is no longer live (%s)", cur.OfferID, cur.State))
	}
	return nil
}

func submit(snap types.ThreadSnapshot, cur types.Offer, ev Event) (Result, error) {
	if cur.State != types.OfferDraft {
		return Result{}, types.New(types.CodeInvalidTransition, "only a draft can be submitted")
	}
	if ev.ActorOrgID != cur.CreatedByOrgID {
		return Result{}, types.New(types.CodeForbidden, "only the creator may submit a draft")
	}
	if snap.Thread.Revealed() {
		return Result{}, types.New(types.CodeConflict, "thread is already concluded")
	}
	if snap.Thread.LiveOfferID != "" || snap.LiveCount() > 0 {
		return Result{}, types.New(types.CodeConflict, "thread already has a live offer")
	}
	if ev.Terms != nil {
		if err := ev.Terms.Validate(ev.At); err != nil {
			return Result{}, err
		}
		applyTerms(&cur, *ev.Terms)
	}
	if cur.Expired(ev.At) {
		return Result{}, types.New(types.CodeInvalidArgument, "draft expiry has already passed")
	}
	cur.State = types.OfferOpen
	cur.UpdatedAt = ev.At
	return Result{
		Offer:       cur,
		LiveOfferID: cur.OfferID,
		Effects: []Effect{
			notify(snap.Thread, cur, snap.Thread.Counterparty(cur.CreatedByOrgID), types.NotifyOfferReceived),
		},
	}, nil
}

func discard(snap types.ThreadSnapshot, cur types.Offer, ev Event) (Result, error) {
	if cur.State != types.OfferDraft {
		return Result{}, types.New(types.CodeInvalidTransition, "only a draft can be discarded")
	}
	if ev.ActorOrgID != cur.CreatedByOrgID {
		return Result{}, types.New(types.CodeForbidden, "only the creator may discard a draft")
	}
	return Result{
		Offer:       cur,
		Discarded:   true,
		LiveOfferID: snap.Thread.LiveOfferID,
	}, nil
}

func counter(snap types.ThreadSnapshot, cur types.Offer, ev Event) (Result, error) {
	if ev.Terms == nil {
		return Result{}, types.New(types.CodeInvalidArgument, "a counter requires terms")
	}
	if err := ev.Terms.Validate(ev.At); err != nil {
		return Result{}, err
	}
	state := types.OfferCounter
	if ev.ActorOrgID == cur.CreatedByOrgID {
		state = types.OfferOpen
	}
	next := types.Offer{
		OfferID:        newID(),
		ThreadID:       cur.ThreadID,
		CreatedByOrgID: ev.ActorOrgID,
		State:          state,
		CreatedAt:      ev.At,
		UpdatedAt:      ev.At,
	}
	applyTerms(&next, *ev.Terms)

	cur.State = types.OfferSuperseded
	cur.UpdatedAt = ev.At
	return Result{
		Offer:       cur,
		Created:     &next,
		Superseded:  []string{cur.OfferID},
		LiveOfferID: next.OfferID,
		Effects: []Effect{
			notify(snap.Thread, next, snap.Thread.Counterparty(ev.ActorOrgID), types.NotifyOfferCountered),
		},
	}, nil
}

func accept(snap types.ThreadSnapshot, cur types.Offer, ev Event) (Result, error) {
	if ev.ActorOrgID == cur.CreatedByOrgID {
		return Result{}, types.New(types.CodeForbidden, "an offer cannot be accepted by its creator")
	}
	var others []string
	for _, o := range snap.Ledger {
		if o.IsLive() && o.OfferID != cur.OfferID {
			others = append(others, o.OfferID)
		}
	}
	cur.State = types.OfferAccepted
	cur.UpdatedAt = ev.At
	t := snap.Thread
	return Result{
		Offer:      cur,
		Superseded: others,
		Accepted:   true,
		Effects: []Effect{
			reveal(t, cur, t.BuyerOrgID),
			reveal(t, cur, t.SellerOrgID),
			notify(t, cur, t.BuyerOrgID, types.NotifyOfferAccepted),
			notify(t, cur, t.SellerOrgID, types.NotifyOfferAccepted),
		},
	}, nil
}

func reject(snap types.ThreadSnapshot, cur types.Offer, ev Event) (Result, error) {
	if ev.ActorOrgID == cur.CreatedByOrgID {
		return Result{}, types.New(types.CodeForbidden, "an offer cannot be rejected by its creator")
	}
	cur.State = types.OfferRejected
	cur.UpdatedAt = ev.At
	return Result{
		Offer:   cur,
		Effects: []Effect{notify(snap.Thread, cur, cur.CreatedByOrgID, types.NotifyOfferRejected)},
	}, nil
}

func expire(snap types.ThreadSnapshot, cur types.Offer, ev Event) (Result, error) {
	if !cur.Expired(ev.At) {
		return Result{}, types.New(types.CodeInvalidTransition, "offer has not reached its expiry")
	}
	cur.State = types.OfferExpired
	cur.UpdatedAt = ev.At
	t := snap.Thread
	return Result{
		Offer: cur,
		Effects: []Effect{
			notify(t, cur, t.BuyerOrgID, types.NotifyOfferExpired),
			notify(t, cur, t.SellerOrgID, types.NotifyOfferExpired),
		},
	}, nil
}

// checkSingleLive verifies that the thread has at most one live offer after
// res and that the live pointer names it.
func checkSingleLive(snap types.ThreadSnapshot, res Result) error {
	retired := make(map[string]bool, len(res.Superseded)+1)
	for _, id := range res.Superseded {
		retired[id] = true
	}
	if !res.Offer.IsLive() || res.Discarded {
		retired[res.Offer.OfferID] = true
	}

	var live []string
	for _, o := range snap.Ledger {
		if o.OfferID == res.Offer.OfferID && !retired[o.OfferID] {
			live = append(live, o.OfferID)
			continue
		}
		if o.IsLive() && !retired[o.OfferID] {
			live = append(live, o.OfferID)
		}
	}
	if res.Created != nil && res.Created.IsLive() {
		live = append(live, res.Created.OfferID)
	}

	switch {
	case len(live) > 1:
		return types.New(types.CodeConflict, fmt.Sprintf("thread %s would hold %d live offers", snap.Thread.ThreadID, len(live)))
	case len(live) == 1 && res.LiveOfferID != live[0]:
		return types.New(types.CodeConflict, "live offer pointer does not match ledger")
	case len(live) == 0 && res.LiveOfferID != "":
		return types.New(types.CodeConflict, "live offer pointer names a retired offer")
	}
	return nil
}

func applyTerms(o *types.Offer, t Terms) {
	o.Price = t.Price
	o.Quantity = t.Quantity
	o.Terms = t.Terms
	o.Message = t.Message
	o.ExpiresAt = t.ExpiresAt
}

func payload(t types.OfferThread, o types.Offer) map[string]string {
	return map[string]string{
		"thread_id":  t.ThreadID,
		"listing_id": t.ListingID,
		"offer_id":   o.OfferID,
		"state":      string(o.State),
	}
}

func notify(t types.OfferThread, o types.Offer, orgID string, typ types.NotificationType) Effect {
	return Effect{
		Kind:     EffectNotify,
		OrgID:    orgID,
		ThreadID: t.ThreadID,
		OfferID:  o.OfferID,
		Type:     typ,
		Payload:  payload(t, o),
	}
}

func reveal(t types.OfferThread, o types.Offer, orgID string) Effect {
	return Effect{
		Kind:     EffectReveal,
		OrgID:    orgID,
		ThreadID: t.ThreadID,
		OfferID:  o.OfferID,
		Type:     types.NotifyIdentityRevealed,
		Payload:  payload(t, o),
	}
}
