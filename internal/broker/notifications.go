package broker

import (
	"context"

	"github.com/mesh-intelligence/veilmarket/internal/access"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// ListNotifications returns userID's notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]types.Notification, error) {
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !p.Authenticated() {
		return nil, types.New(types.CodeForbidden, "notifications require a user")
	}
	return s.store.ListNotifications(ctx, userID, unreadOnly)
}

// MarkNotificationRead marks one of userID's notifications read.
func (s *Service) MarkNotificationRead(ctx context.Context, userID, notificationID string) (types.Notification, error) {
	now := s.Now()
	p, err := s.Principal(ctx, userID)
	if err != nil {
		return types.Notification{}, err
	}
	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return types.Notification{}, err
	}
	target := access.Target{Kind: access.KindNotification, ID: n.NotificationID, UserID: n.UserID}
	if err := access.Require(p, access.ActionUpdate, target, "", now); err != nil {
		return types.Notification{}, err
	}
	if err := n.MarkRead(userID, now); err != nil {
		return types.Notification{}, err
	}
	if err := s.store.MarkNotificationRead(ctx, n.NotificationID, *n.ReadAt); err != nil {
		return types.Notification{}, err
	}
	return n, nil
}
