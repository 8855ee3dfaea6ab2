package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/expiry-tracker/pkg/calendar"
	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/enums"
	"gorm.io/gorm"
)

// Recorder persists notification intents, collapsing repeats of the same
// (user, item, reason) within one calendar day.
type Recorder struct {
	repo Repository
	loc  *time.Location
}

func NewRecorder(repo Repository, loc *time.Location) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Recorder{repo: repo, loc: loc}, nil
}

// WithTx returns a recorder writing through tx.
func (r *Recorder) WithTx(tx *gorm.DB) *Recorder {
	return &Recorder{repo: r.repo.WithTx(tx), loc: r.loc}
}

// Record stores the intent as a notification row. It returns false when an
// equivalent record already exists for the day.
func (r *Recorder) Record(ctx context.Context, intent Intent, now time.Time) (bool, error) {
	row := r.build(intent, now)
	created, err := r.repo.CreateIfAbsent(ctx, row)
	if err != nil {
		return false, fmt.Errorf("record %s notification: %w", intent.Reason, err)
	}
	return created, nil
}

func (r *Recorder) build(intent Intent, now time.Time) *models.Notification {
	typ := intent.Type
	if typ == "" {
		typ = enums.NotificationTypeInApp
	}
	priority := intent.Priority
	if !priority.IsValid() {
		priority = enums.NotificationPriorityNormal
	}
	status := intent.Status
	if status == "" {
		status = enums.NotificationStatusPending
	}
	return &models.Notification{
		UserID:     intent.UserID,
		ItemID:     intent.ItemID,
		Message:    intent.Message,
		Type:       typ,
		Priority:   priority,
		Status:     status,
		Reason:     intent.Reason,
		NotifyDate: calendar.Today(now, r.loc),
		CreatedAt:  now.UTC(),
	}
}
