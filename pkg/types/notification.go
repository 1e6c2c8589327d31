package types

import "time"

// NotificationType classifies a notification for routing and display.
type NotificationType string

// Notification types.
const (
	NotifyOfferReceived    NotificationType = "OFFER_RECEIVED"
	NotifyOfferCountered   NotificationType = "OFFER_COUNTERED"
	NotifyOfferAccepted    NotificationType = "OFFER_ACCEPTED"
	NotifyOfferRejected    NotificationType = "OFFER_REJECTED"
	NotifyOfferExpired     NotificationType = "OFFER_EXPIRED"
	NotifyIdentityRevealed NotificationType = "IDENTITY_REVEALED"
	NotifyListingPromoted  NotificationType = "LISTING_PROMOTED"
	NotifyInviteReceived   NotificationType = "INVITE_RECEIVED"
)

// Notification is a message to one user, created only as a side effect of
// an offer or listing transition.
type Notification struct {
	NotificationID string            `json:"notification_id"`
	UserID         string            `json:"user_id"`
	OrgID          string            `json:"org_id"`
	Type           NotificationType  `json:"type"`
	Payload        map[string]string `json:"payload,omitempty"`
	ReadAt         *time.Time        `json:"read_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// MarkRead records that userID read the notification. Only the owning user
// may do so. Marking an already read notification keeps the first ReadAt.
func (n *Notification) MarkRead(userID string, now time.Time) error {
	if userID == "" || userID != n.UserID {
		return ErrForbidden
	}
	if n.ReadAt != nil {
		return nil
	}
	at := now.UTC()
	n.ReadAt = &at
	return nil
}
