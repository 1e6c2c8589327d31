package broker

import (
	"context"
	"sort"
	"time"

	"github.com/mesh-intelligence/veilmarket/internal/access"
	"github.com/mesh-intelligence/veilmarket/internal/offer"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// ListingView is a listing in browse results.
type ListingView struct {
	types.Listing
	Promoted bool `json:"promoted"`
}

// RegisterMaterialIdentifier records a material identifier, returning the
// existing row when the scheme and value are already known.
func (s *Service) RegisterMaterialIdentifier(ctx context.Context, userID string, m types.MaterialIdentifier) (types.MaterialIdentifier, error) {
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return types.MaterialIdentifier{}, err
	}
	target := access.Target{Kind: access.KindMaterialIdentifier}
	if err := access.Require(p, access.ActionCreate, target, "", s.Now()); err != nil {
		return types.MaterialIdentifier{}, err
	}
	return s.store.CreateMaterialIdentifier(ctx, m)
}

// CreateListing stores l as a DRAFT of l.OrgID.
func (s *Service) CreateListing(ctx context.Context, userID string, l types.Listing) (types.Listing, error) {
	now := s.Now()
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return types.Listing{}, err
	}
	l.Status = types.ListingDraft
	l.PublishedAt = nil
	if err := access.Require(p, access.ActionCreate, listingTarget(l), "", now); err != nil {
		return types.Listing{}, err
	}
	if _, err := s.store.GetMaterialIdentifier(ctx, l.MaterialIdentifierID); err != nil {
		return types.Listing{}, err
	}
	l.CreatedAt = now
	l.UpdatedAt = now
	created, err := s.store.CreateListing(ctx, l)
	if err != nil {
		return types.Listing{}, err
	}
	s.logger.InfoContext(ctx, "listing created",
		"event", "listing_created",
		"module", "broker",
		"layer", "service",
		"listing_id", created.ListingID,
		"org_id", created.OrgID,
	)
	return created, nil
}

// PublishListing moves a DRAFT listing to PUBLISHED.
func (s *Service) PublishListing(ctx context.Context, userID, listingID string) (types.Listing, error) {
	return s.moveListing(ctx, userID, listingID, "listing_published", (*types.Listing).Publish)
}

// ArchiveListing moves a PUBLISHED listing to ARCHIVED. Threads on the
// listing keep their state and any reveal already granted.
func (s *Service) ArchiveListing(ctx context.Context, userID, listingID string) (types.Listing, error) {
	return s.moveListing(ctx, userID, listingID, "listing_archived", (*types.Listing).Archive)
}

func (s *Service) moveListing(ctx context.Context, userID, listingID, event string, move func(*types.Listing, time.Time) error) (types.Listing, error) {
	now := s.Now()
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return types.Listing{}, err
	}
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return types.Listing{}, err
	}
	if err := access.Require(p, access.ActionUpdate, listingTarget(l), "", now); err != nil {
		return types.Listing{}, err
	}
	expected := l.Status
	if err := move(&l, now); err != nil {
		return types.Listing{}, types.Wrap(types.CodeInvalidTransition, "listing "+listingID+" is "+string(expected), err)
	}
	if err := s.store.UpdateListingStatus(ctx, l, expected); err != nil {
		return types.Listing{}, err
	}
	s.logger.InfoContext(ctx, "listing status changed",
		"event", event,
		"module", "broker",
		"layer", "service",
		"listing_id", l.ListingID,
		"status", string(l.Status),
	)
	return l, nil
}

// GetListing returns a listing userID may read. An empty userID reads as
// the anonymous public.
func (s *Service) GetListing(ctx context.Context, userID, listingID string) (types.Listing, error) {
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return types.Listing{}, err
	}
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return types.Listing{}, err
	}
	if err := access.Require(p, access.ActionRead, listingTarget(l), "", s.Now()); err != nil {
		return types.Listing{}, err
	}
	return l, nil
}

// BrowseListings returns the listings matching filter that userID may read,
// listings with an active promotion first.
func (s *Service) BrowseListings(ctx context.Context, userID string, filter types.ListingFilter) ([]ListingView, error) {
	now := s.Now()
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit := filter.Limit
	filter.Limit = 0
	listings, err := s.store.ListListings(ctx, filter)
	if err != nil {
		return nil, err
	}
	promoted, err := s.store.PromotedListingIDs(ctx, now)
	if err != nil {
		return nil, err
	}

	out := make([]ListingView, 0, len(listings))
	for _, l := range listings {
		if !access.Evaluate(p, access.ActionRead, listingTarget(l), "", now).Allow {
			continue
		}
		out = append(out, ListingView{Listing: l, Promoted: promoted[l.ListingID]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Promoted && !out[j].Promoted
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PromoteListing pins a published listing to the top of browse results for
// types.PromotionDuration.
func (s *Service) PromoteListing(ctx context.Context, userID, listingID string) (types.Promotion, error) {
	now := s.Now()
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return types.Promotion{}, err
	}
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return types.Promotion{}, err
	}
	target := access.Target{Kind: access.KindPromotion, OrgID: l.OrgID}
	if err := access.Require(p, access.ActionCreate, target, "", now); err != nil {
		return types.Promotion{}, err
	}
	if l.Status != types.ListingPublished {
		return types.Promotion{}, types.New(types.CodeConflict, "only a published listing can be promoted")
	}
	promo, err := s.store.CreatePromotion(ctx, types.Promotion{
		ListingID: l.ListingID,
		OrgID:     l.OrgID,
		ExpiresAt: types.NewPromotionExpiry(now),
		CreatedAt: now,
	})
	if err != nil {
		return types.Promotion{}, err
	}
	s.dispatcher.Dispatch(ctx, []offer.Effect{{
		Kind:  offer.EffectNotify,
		OrgID: l.OrgID,
		Type:  types.NotifyListingPromoted,
		Payload: map[string]string{
			"listing_id":   l.ListingID,
			"promotion_id": promo.PromotionID,
			"expires_at":   promo.ExpiresAt.Format(time.RFC3339),
		},
	}})
	return promo, nil
}
