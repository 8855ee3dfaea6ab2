package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/enums"
	pkgerrors "github.com/angelmondragon/expiry-tracker/pkg/errors"
	"github.com/angelmondragon/expiry-tracker/pkg/pagination"
)

// Service is the user-facing side of the notification log: the in-app feed
// and its read markers.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type ListParams struct {
	UserID uuid.UUID
	// Limit is clamped to [1, pagination.MaxLimit]; zero means the default.
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult is one page of the feed. Cursor is empty on the last page.
type ListResult struct {
	Items  []Entry `json:"items"`
	Cursor string  `json:"cursor,omitempty"`
}

// Entry is the public view of a notification record.
type Entry struct {
	ID         uuid.UUID                  `json:"id"`
	ItemID     *uuid.UUID                 `json:"item_id,omitempty"`
	Message    string                     `json:"message"`
	Type       enums.NotificationType     `json:"type"`
	Priority   enums.NotificationPriority `json:"priority"`
	Reason     enums.NotificationReason   `json:"reason"`
	NotifyDate string                     `json:"notify_date"`
	Read       bool                       `json:"read"`
	ReadAt     *time.Time                 `json:"read_at,omitempty"`
	CreatedAt  time.Time                  `json:"created_at"`
}

func newEntry(n models.Notification) Entry {
	return Entry{
		ID:         n.ID,
		ItemID:     n.ItemID,
		Message:    n.Message,
		Type:       n.Type,
		Priority:   n.Priority,
		Reason:     n.Reason,
		NotifyDate: n.NotifyDate.Format(time.DateOnly),
		Read:       n.ReadAt != nil,
		ReadAt:     n.ReadAt,
		CreatedAt:  n.CreatedAt,
	}
}

type feedService struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &feedService{repo: repo, now: time.Now}, nil
}

func requireID(id uuid.UUID, name string) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, name+" required").
			WithDetails(map[string]string{"field": name})
	}
	return nil
}

func (s *feedService) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if err := requireID(params.UserID, "user_id"); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]string{"field": "cursor"})
	}

	rows, next, err := s.repo.List(ctx, listNotificationsParams{
		UserID:     params.UserID,
		Limit:      pagination.NormalizeLimit(params.Limit),
		Cursor:     cursor,
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	page := &ListResult{Items: make([]Entry, 0, len(rows))}
	for _, row := range rows {
		page.Items = append(page.Items, newEntry(row))
	}
	if next != nil {
		page.Cursor = pagination.EncodeCursor(*next)
	}
	return page, nil
}

// MarkRead is idempotent: re-reading keeps the first read time.
func (s *feedService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := requireID(userID, "user_id"); err != nil {
		return err
	}
	if err := requireID(notificationID, "notification_id"); err != nil {
		return err
	}

	result, err := s.repo.MarkRead(ctx, userID, notificationID, s.now().UTC())
	switch {
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	case !result.Found:
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *feedService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := requireID(userID, "user_id"); err != nil {
		return 0, err
	}
	updated, err := s.repo.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return updated, nil
}
