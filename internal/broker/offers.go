package broker

import (
	"context"
	"errors"
	"time"

	"github.com/mesh-intelligence/veilmarket/internal/access"
	"github.com/mesh-intelligence/veilmarket/internal/offer"
	"github.com/mesh-intelligence/veilmarket/internal/reveal"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// CreateOfferInput opens a negotiation on a listing.
type CreateOfferInput struct {
	ListingID string
	// BuyerOrgID is the organization making the offer. It may be left
	// empty when the caller holds exactly one seat outside the listing's
	// organization.
	BuyerOrgID string
	Terms      offer.Terms
	// Submit sends the offer straight to OPEN instead of leaving a DRAFT.
	Submit bool
}

// CreateOffer opens (or reuses) the caller's thread on a published listing
// and appends a new offer to it. Access is decided by the caller's seat in
// the buying organization alone. With Submit the offer is written once,
// already OPEN; a refused submission leaves no draft behind.
func (s *Service) CreateOffer(ctx context.Context, userID string, in CreateOfferInput) (types.Offer, error) {
	now := s.Now()
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return types.Offer{}, err
	}
	l, err := s.store.GetListing(ctx, in.ListingID)
	if err != nil {
		return types.Offer{}, err
	}
	if err := access.Require(p, access.ActionRead, listingTarget(l), "", now); err != nil {
		return types.Offer{}, err
	}
	if l.Status != types.ListingPublished {
		return types.Offer{}, types.New(types.CodeConflict, "listing "+l.ListingID+" is not published")
	}
	buyer, err := buyerOrg(p, l, in.BuyerOrgID)
	if err != nil {
		return types.Offer{}, err
	}
	acting := p.ActingFor(buyer)
	if err := access.Require(acting, access.ActionRead, listingTarget(l), "", now); err != nil {
		return types.Offer{}, err
	}
	target := access.Target{Kind: access.KindOffer, BuyerOrgID: buyer, SellerOrgID: l.OrgID}
	if err := access.Require(acting, access.ActionCreate, target, "", now); err != nil {
		return types.Offer{}, err
	}

	thread, err := s.store.OpenThread(ctx, l.ListingID, buyer, l.OrgID, now)
	if err != nil {
		return types.Offer{}, err
	}
	snap, err := s.store.LoadOfferThreadWithLiveOffer(ctx, thread.ThreadID)
	if err != nil {
		return types.Offer{}, err
	}
	draft, err := offer.Draft(snap.Thread, buyer, in.Terms, now)
	if err != nil {
		return types.Offer{}, err
	}

	if in.Submit {
		staged := snap
		staged.Ledger = append(append([]types.Offer(nil), snap.Ledger...), draft)
		ev := offer.Event{Kind: offer.EventSubmit, ActorOrgID: buyer, At: now}
		ev.Terms = s.withDefaultExpiry(ev, draft)
		res, err := s.transition(ctx, staged, draft, ev)
		if err != nil {
			return types.Offer{}, err
		}
		return res.Offer, nil
	}

	err = s.store.CommitOfferTransition(ctx, types.OfferCommit{
		ThreadID:        snap.Thread.ThreadID,
		ExpectedVersion: snap.Thread.Version,
		Offer:           draft,
		LiveOfferID:     snap.Thread.LiveOfferID,
		At:              now,
	})
	if err != nil {
		return types.Offer{}, err
	}
	s.logger.InfoContext(ctx, "offer drafted",
		"event", "offer_drafted",
		"module", "broker",
		"layer", "service",
		"thread_id", draft.ThreadID,
		"offer_id", draft.OfferID,
		"org_id", buyer,
	)
	return draft, nil
}

// buyerOrg resolves the organization making an offer on l.
func buyerOrg(p access.Principal, l types.Listing, hint string) (string, error) {
	if hint != "" {
		if hint == l.OrgID {
			return "", types.New(types.CodeInvalidArgument, "an organization cannot make an offer on its own listing")
		}
		if _, ok := p.SeatIn(hint); !ok {
			return "", types.New(types.CodeForbidden, "no seat in "+hint)
		}
		return hint, nil
	}
	var found []string
	for _, seat := range p.Seats {
		if seat.OrgID != l.OrgID {
			if _, ok := p.SeatIn(seat.OrgID); ok {
				found = append(found, seat.OrgID)
			}
		}
	}
	switch len(found) {
	case 0:
		return "", types.New(types.CodeForbidden, "no seat in an organization other than the listing's")
	case 1:
		return found[0], nil
	}
	return "", types.New(types.CodeInvalidArgument, "several organizations could make this offer; name one")
}

// SubmitOffer sends a DRAFT to the counterparty, optionally replacing its
// terms.
func (s *Service) SubmitOffer(ctx context.Context, userID, offerID string, terms *offer.Terms) (offer.Result, error) {
	return s.ApplyOfferEvent(ctx, userID, offerID, offer.Event{Kind: offer.EventSubmit, Terms: terms})
}

// CounterOffer supersedes the live offer with new terms.
func (s *Service) CounterOffer(ctx context.Context, userID, offerID string, terms offer.Terms) (offer.Result, error) {
	return s.ApplyOfferEvent(ctx, userID, offerID, offer.Event{Kind: offer.EventCounter, Terms: &terms})
}

// AcceptOffer concludes the thread on the live offer and reveals both
// parties to each other.
func (s *Service) AcceptOffer(ctx context.Context, userID, offerID string) (offer.Result, error) {
	return s.ApplyOfferEvent(ctx, userID, offerID, offer.Event{Kind: offer.EventAccept})
}

// RejectOffer declines the live offer.
func (s *Service) RejectOffer(ctx context.Context, userID, offerID string) (offer.Result, error) {
	return s.ApplyOfferEvent(ctx, userID, offerID, offer.Event{Kind: offer.EventReject})
}

// DiscardOffer deletes an unsubmitted DRAFT.
func (s *Service) DiscardOffer(ctx context.Context, userID, offerID string) error {
	_, err := s.ApplyOfferEvent(ctx, userID, offerID, offer.Event{Kind: offer.EventDiscard})
	return err
}

// ApplyOfferEvent runs ev on offerID for userID. ev.ActorOrgID may name the
// acting organization; otherwise it is taken from the user's seats. Only
// the seat in the acting organization is consulted. ev.At defaults to now.
func (s *Service) ApplyOfferEvent(ctx context.Context, userID, offerID string, ev offer.Event) (offer.Result, error) {
	if ev.At.IsZero() {
		ev.At = s.Now()
	}
	if ev.Kind == offer.EventExpire {
		return offer.Result{}, types.New(types.CodeForbidden, "only the system may expire an offer")
	}
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return offer.Result{}, err
	}
	snap, target, err := s.loadOffer(ctx, offerID)
	if err != nil {
		return offer.Result{}, err
	}

	ev.ActorOrgID, err = actingOrg(p, snap.Thread, ev.ActorOrgID)
	if err != nil {
		return offer.Result{}, err
	}
	action := access.ActionUpdate
	if ev.Kind == offer.EventDiscard {
		action = access.ActionDelete
	}
	d := access.Evaluate(p.ActingFor(ev.ActorOrgID), action, offerTarget(snap.Thread, target), "", ev.At)
	switch {
	case d.Reason == access.ReasonTerminalOffer:
		return offer.Result{}, types.New(types.CodeConflict, "offer "+offerID+" is "+string(target.State))
	case !d.Allow:
		return offer.Result{}, types.New(types.CodeForbidden, string(action)+" Offer: "+d.Reason)
	}
	ev.Terms = s.withDefaultExpiry(ev, target)
	return s.transition(ctx, snap, target, ev)
}

// ExpireOffer expires a live offer whose deadline has passed, acting as
// the system.
func (s *Service) ExpireOffer(ctx context.Context, e types.ExpiredOffer) (offer.Result, error) {
	snap, target, err := s.loadOffer(ctx, e.OfferID)
	if err != nil {
		return offer.Result{}, err
	}
	if target.ThreadID != e.ThreadID {
		return offer.Result{}, types.New(types.CodeNotFound, "offer "+e.OfferID+" not in thread "+e.ThreadID)
	}
	return s.transition(ctx, snap, target, offer.Event{Kind: offer.EventExpire, At: s.Now()})
}

func (s *Service) loadOffer(ctx context.Context, offerID string) (types.ThreadSnapshot, types.Offer, error) {
	o, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return types.ThreadSnapshot{}, types.Offer{}, err
	}
	snap, err := s.store.LoadOfferThreadWithLiveOffer(ctx, o.ThreadID)
	if err != nil {
		return types.ThreadSnapshot{}, types.Offer{}, err
	}
	target, ok := snap.Find(offerID)
	if !ok {
		return types.ThreadSnapshot{}, types.Offer{}, types.New(types.CodeNotFound, "offer "+offerID+" not found")
	}
	return snap, target, nil
}

// withDefaultExpiry returns ev's terms with the configured TTL filled in
// for submissions and counters that carry no expiry.
func (s *Service) withDefaultExpiry(ev offer.Event, target types.Offer) *offer.Terms {
	if s.offerTTL <= 0 {
		return ev.Terms
	}
	var terms offer.Terms
	switch {
	case ev.Kind == offer.EventCounter && ev.Terms != nil:
		terms = *ev.Terms
	case ev.Kind == offer.EventSubmit && ev.Terms != nil:
		terms = *ev.Terms
	case ev.Kind == offer.EventSubmit && target.State == types.OfferDraft:
		terms = offer.Terms{
			Price:     target.Price,
			Quantity:  target.Quantity,
			Terms:     target.Terms,
			Message:   target.Message,
			ExpiresAt: target.ExpiresAt,
		}
	default:
		return ev.Terms
	}
	if terms.ExpiresAt == nil {
		terms.ExpiresAt = expiryAfter(ev.At, s.offerTTL)
	}
	return &terms
}

// transition applies ev, commits the result and dispatches its effects.
func (s *Service) transition(ctx context.Context, snap types.ThreadSnapshot, target types.Offer, ev offer.Event) (offer.Result, error) {
	res, err := offer.Apply(snap, target, ev)
	if err != nil {
		return offer.Result{}, err
	}
	if err := s.store.CommitOfferTransition(ctx, res.Commit(snap, ev.At)); err != nil {
		if errors.Is(err, types.ErrConflict) {
			s.logger.InfoContext(ctx, "offer transition lost a race",
				"event", "offer_transition_conflict",
				"module", "broker",
				"layer", "service",
				"thread_id", snap.Thread.ThreadID,
				"offer_id", target.OfferID,
				"kind", string(ev.Kind),
			)
		}
		return offer.Result{}, err
	}
	s.logger.InfoContext(ctx, "offer transition committed",
		"event", "offer_transition",
		"module", "broker",
		"layer", "service",
		"thread_id", snap.Thread.ThreadID,
		"offer_id", target.OfferID,
		"kind", string(ev.Kind),
		"state", string(res.Offer.State),
		"version", snap.Thread.Version+1,
	)
	s.dispatcher.Dispatch(ctx, res.Effects)
	return res, nil
}

// ThreadView is a participant's view of a thread. Counterparty identity is
// present only after reveal; until then offer text is contact-masked and
// the counterparty's drafts are hidden.
type ThreadView struct {
	Thread       types.OfferThread       `json:"thread"`
	ViewerOrgID  string                  `json:"viewer_org_id"`
	Counterparty reveal.OrganizationView `json:"counterparty"`
	Live         *types.Offer            `json:"live,omitempty"`
	Ledger       []types.Offer           `json:"ledger"`
}

// ThreadView returns threadID as seen by userID. orgID may name the
// viewing organization when the user holds seats on both sides.
func (s *Service) ThreadView(ctx context.Context, userID, threadID, orgID string) (ThreadView, error) {
	now := s.Now()
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return ThreadView{}, err
	}
	snap, err := s.store.LoadOfferThreadWithLiveOffer(ctx, threadID)
	if err != nil {
		return ThreadView{}, err
	}
	viewer, err := actingOrg(p, snap.Thread, orgID)
	if err != nil {
		return ThreadView{}, err
	}
	if err := access.Require(p.ActingFor(viewer), access.ActionRead, threadTarget(snap.Thread), "", now); err != nil {
		return ThreadView{}, err
	}
	org, err := s.store.GetOrganization(ctx, snap.Thread.Counterparty(viewer))
	if err != nil {
		return ThreadView{}, err
	}

	view := ThreadView{
		Thread:       snap.Thread,
		ViewerOrgID:  viewer,
		Counterparty: reveal.Project(org, snap.Thread, now),
		Ledger:       make([]types.Offer, 0, len(snap.Ledger)),
	}
	revealed := view.Counterparty.Identity != nil
	for _, o := range snap.Ledger {
		if o.State == types.OfferDraft && o.CreatedByOrgID != viewer {
			continue
		}
		if !revealed {
			o.Terms = reveal.MaskContact(o.Terms)
			o.Message = reveal.MaskContact(o.Message)
		}
		view.Ledger = append(view.Ledger, o)
		if snap.Live != nil && o.OfferID == snap.Live.OfferID {
			live := o
			view.Live = &live
		}
	}
	return view, nil
}

// ListThreads returns the threads of every organization userID sits in.
func (s *Service) ListThreads(ctx context.Context, userID string) ([]types.OfferThread, error) {
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []types.OfferThread
	for _, seat := range p.Seats {
		threads, err := s.store.ListThreadsByOrg(ctx, seat.OrgID)
		if err != nil {
			return nil, err
		}
		for _, t := range threads {
			if !seen[t.ThreadID] {
				seen[t.ThreadID] = true
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// expiryAfter returns at+ttl, or nil when ttl is not positive.
func expiryAfter(at time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	exp := at.Add(ttl)
	return &exp
}
