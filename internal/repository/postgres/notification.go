package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dentallab-api/internal/model"
	"github.com/jwalitptl/dentallab-api/internal/repository"
)

const notificationColumns = `id, recipient_kind, recipient_id, title, body, link, is_read, created_at`

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{NewBaseRepository(db)}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `INSERT INTO notifications (` + notificationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.exec(ctx, query, n.ID, n.RecipientKind, n.RecipientID, n.Title, n.Body, n.Link, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) List(ctx context.Context, recipient model.Recipient, page model.Pagination) ([]*model.Notification, int, error) {
	page = page.Normalize()

	var total int
	countQuery := `SELECT COUNT(*) FROM notifications WHERE recipient_kind = ? AND recipient_id = ?`
	if err := r.get(ctx, "notification", &total, countQuery, recipient.Kind, recipient.ID); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	var items []*model.Notification
	query := `
		SELECT ` + notificationColumns + ` FROM notifications
		WHERE recipient_kind = ? AND recipient_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	if err := r.selectAll(ctx, &items, query, recipient.Kind, recipient.ID, page.PageSize, page.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return items, total, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipient model.Recipient) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE recipient_kind = ? AND recipient_id = ? AND is_read = ?`
	if err := r.get(ctx, "notification", &count, query, recipient.Kind, recipient.ID, false); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// The mutations below are scoped to the recipient and succeed whether or not
// a row matched, so repeating them is harmless.

func (r *notificationRepository) MarkRead(ctx context.Context, recipient model.Recipient, id uuid.UUID) error {
	query := `UPDATE notifications SET is_read = ? WHERE id = ? AND recipient_kind = ? AND recipient_id = ?`
	if _, err := r.exec(ctx, query, true, id, recipient.Kind, recipient.ID); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipient model.Recipient) error {
	query := `UPDATE notifications SET is_read = ? WHERE recipient_kind = ? AND recipient_id = ? AND is_read = ?`
	if _, err := r.exec(ctx, query, true, recipient.Kind, recipient.ID, false); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (r *notificationRepository) Delete(ctx context.Context, recipient model.Recipient, id uuid.UUID) error {
	query := `DELETE FROM notifications WHERE id = ? AND recipient_kind = ? AND recipient_id = ?`
	if _, err := r.exec(ctx, query, id, recipient.Kind, recipient.ID); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) DeleteAll(ctx context.Context, recipient model.Recipient) error {
	query := `DELETE FROM notifications WHERE recipient_kind = ? AND recipient_id = ?`
	if _, err := r.exec(ctx, query, recipient.Kind, recipient.ID); err != nil {
		return fmt.Errorf("failed to delete notifications: %w", err)
	}
	return nil
}
