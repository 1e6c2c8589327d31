package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

const notificationColumns = `notification_id, user_id, org_id, notification_type, payload, read_at, created_at`

// CreateNotification inserts a notification for one user.
func (b *Backend) CreateNotification(ctx context.Context, n types.Notification) (types.Notification, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return types.Notification{}, err
	}
	if n.UserID == "" || n.Type == "" {
		return types.Notification{}, types.New(types.CodeInvalidArgument, "notification requires user and type")
	}
	if n.NotificationID == "" {
		n.NotificationID = generateUUID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return types.Notification{}, fmt.Errorf("marshal notification payload: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.NotificationID, n.UserID, n.OrgID, string(n.Type), string(payload), nullMillis(n.ReadAt), toMillis(n.CreatedAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return types.Notification{}, types.Wrap(types.CodeNotFound, "user "+n.UserID+" not found", err)
		}
		return types.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// GetNotification returns one notification.
func (b *Backend) GetNotification(ctx context.Context, notificationID string) (types.Notification, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return types.Notification{}, err
	}
	n, err := scanNotification(db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE notification_id = ?`, notificationID))
	if err != nil {
		return types.Notification{}, notFound(err, "notification", notificationID)
	}
	return n, nil
}

// ListNotifications returns a user's notifications, newest first.
func (b *Backend) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]types.Notification, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		q += ` AND read_at IS NULL`
	}
	q += ` ORDER BY created_at DESC, notification_id DESC`

	rows, err := db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []types.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead stamps ReadAt once; later calls keep the first time.
func (b *Backend) MarkNotificationRead(ctx context.Context, notificationID string, at time.Time) error {
	db, err := b.handle(ctx)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE notification_id = ?`,
		toMillis(at), notificationID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.New(types.CodeNotFound, "notification "+notificationID+" not found")
	}
	return nil
}

// RecordReveal records that orgID's identity was disclosed in threadID.
// Reveals are permanent; recording one twice keeps the first time.
func (b *Backend) RecordReveal(ctx context.Context, orgID, threadID string, at time.Time) error {
	db, err := b.handle(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO reveals (org_id, thread_id, revealed_at) VALUES (?, ?, ?)
		 ON CONFLICT (org_id, thread_id) DO NOTHING`,
		orgID, threadID, toMillis(at),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return types.Wrap(types.CodeNotFound, "offer thread "+threadID+" not found", err)
		}
		return fmt.Errorf("record reveal: %w", err)
	}
	return nil
}

// RevealedAt returns when orgID was revealed in threadID, or nil.
func (b *Backend) RevealedAt(ctx context.Context, orgID, threadID string) (*time.Time, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return nil, err
	}
	var at sql.NullInt64
	err = db.QueryRowContext(ctx,
		`SELECT revealed_at FROM reveals WHERE org_id = ? AND thread_id = ?`, orgID, threadID,
	).Scan(&at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reveal: %w", err)
	}
	return timePtr(at), nil
}

func scanNotification(r rowScanner) (types.Notification, error) {
	var (
		n         types.Notification
		typ       string
		payload   string
		readAt    sql.NullInt64
		createdAt int64
	)
	if err := r.Scan(&n.NotificationID, &n.UserID, &n.OrgID, &typ, &payload, &readAt, &createdAt); err != nil {
		return types.Notification{}, err
	}
	n.Type = types.NotificationType(typ)
	if payload != "" && payload != "null" {
		if err := json.Unmarshal([]byte(payload), &n.Payload); err != nil {
			return types.Notification{}, fmt.Errorf("unmarshal notification payload: %w", err)
		}
	}
	n.ReadAt = timePtr(readAt)
	n.CreatedAt = fromMillis(createdAt)
	return n, nil
}
