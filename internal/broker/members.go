package broker

import (
	"context"

	"github.com/mesh-intelligence/veilmarket/internal/access"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// GetUser returns targetUserID as userID may see it: contact fields are
// blank unless userID reads its own record. Only the user and members of a
// shared organization may read it.
func (s *Service) GetUser(ctx context.Context, userID, targetUserID string) (types.User, error) {
	now := s.Now()
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	u, err := s.store.GetUser(ctx, targetUserID)
	if err != nil {
		return types.User{}, err
	}
	seats, err := s.store.ListSeatsByUser(ctx, targetUserID)
	if err != nil {
		return types.User{}, err
	}

	target := access.Target{Kind: access.KindUser, ID: targetUserID}
	for _, seat := range seats {
		if _, ok := p.SeatIn(seat.OrgID); ok {
			target.OrgID = seat.OrgID
			if access.Evaluate(p, access.ActionRead, target, "", now).Allow {
				break
			}
		}
	}
	if err := access.Require(p, access.ActionRead, target, "", now); err != nil {
		return types.User{}, err
	}
	return access.Redact(p, u, now), nil
}

// AddMember gives memberUserID a seat in seat.OrgID, or changes the role of
// an existing seat. The new member is notified.
func (s *Service) AddMember(ctx context.Context, userID string, seat types.Seat) error {
	now := s.Now()
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return err
	}
	target := access.Target{Kind: access.KindUser, ID: seat.UserID, OrgID: seat.OrgID}
	if err := access.Require(p, access.ActionCreate, target, "", now); err != nil {
		return err
	}
	if seat.Role == types.RoleOwner {
		if caller, _ := p.SeatIn(seat.OrgID); caller.Role != types.RoleOwner {
			return types.New(types.CodeForbidden, "only an owner may appoint an owner")
		}
	}
	if err := s.store.AddSeat(ctx, seat); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "member added",
		"event", "member_added",
		"module", "broker",
		"layer", "service",
		"org_id", seat.OrgID,
		"user_id", seat.UserID,
		"role", string(seat.Role),
	)
	payload := map[string]string{"org_id": seat.OrgID, "role": string(seat.Role)}
	if err := s.dispatcher.notifyUser(ctx, seat, types.NotifyInviteReceived, payload); err != nil {
		s.logger.ErrorContext(ctx, "invite notification failed",
			"event", "effect_dispatch_failed",
			"module", "broker",
			"layer", "dispatcher",
			"user_id", seat.UserID,
			"error", err.Error(),
		)
	}
	return nil
}

// RemoveMember deletes memberUserID's seat in orgID. A user may leave on
// their own; the last owner of an organization may not.
func (s *Service) RemoveMember(ctx context.Context, userID, orgID, memberUserID string) error {
	now := s.Now()
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return err
	}
	seats, err := s.store.ListSeatsByUser(ctx, memberUserID)
	if err != nil {
		return err
	}
	var member *types.Seat
	for i := range seats {
		if seats[i].OrgID == orgID {
			member = &seats[i]
		}
	}
	if member == nil {
		return types.New(types.CodeNotFound, "user "+memberUserID+" has no seat in "+orgID)
	}
	owners, err := s.store.CountOwners(ctx, orgID)
	if err != nil {
		return err
	}
	target := access.Target{Kind: access.KindUser, ID: memberUserID, OrgID: orgID, OwnerSeats: owners}
	if memberUserID != userID {
		if err := access.Require(p, access.ActionDelete, target, "", now); err != nil {
			return err
		}
	} else if d := access.Evaluate(p, access.ActionDelete, target, "", now); d.Reason == access.ReasonSoleOwner {
		return types.New(types.CodeForbidden, d.Reason)
	}
	if member.Role == types.RoleOwner && owners <= 1 {
		return types.New(types.CodeConflict, "an organization must keep one owner")
	}
	if err := s.store.RemoveSeat(ctx, memberUserID, orgID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "member removed",
		"event", "member_removed",
		"module", "broker",
		"layer", "service",
		"org_id", orgID,
		"user_id", memberUserID,
	)
	return nil
}
