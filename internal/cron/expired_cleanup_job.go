package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/expiry-tracker/internal/items"
	"github.com/angelmondragon/expiry-tracker/internal/notifications"
	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/enums"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
)

const (
	ExpiredCleanupJobName = "cleanup-expired-items"
	defaultExpiredGrace   = 24 * time.Hour
)

type ExpiredCleanupJobParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Items    items.Repository
	Recorder *notifications.Recorder
	// Remote is optional; without it linked items are only removed locally.
	Remote items.RemoteStatusSetter
	Grace  time.Duration
}

// NewExpiredCleanupJob deletes items that have been expired for longer than
// the grace period, leaving an "item removed" notification behind.
func NewExpiredCleanupJob(params ExpiredCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("items repository required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("recorder required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultExpiredGrace
	}
	return &expiredCleanupJob{
		logg:     params.Logger,
		db:       params.DB,
		items:    params.Items,
		recorder: params.Recorder,
		remote:   params.Remote,
		grace:    grace,
		now:      time.Now,
	}, nil
}

type expiredCleanupJob struct {
	logg     *logger.Logger
	db       txRunner
	items    items.Repository
	recorder *notifications.Recorder
	remote   items.RemoteStatusSetter
	grace    time.Duration
	now      func() time.Time
}

func (j *expiredCleanupJob) Name() string { return ExpiredCleanupJobName }

func (j *expiredCleanupJob) Run(ctx context.Context) error {
	now := j.now()
	cutoff := now.UTC().Add(-j.grace)
	stale, err := j.items.ListExpiredBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list expired items: %w", err)
	}

	var errs error
	removed := 0
	for _, item := range stale {
		if err := j.remove(ctx, item, now); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("remove item %s: %w", item.ID, err))
			continue
		}
		removed++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"found":   len(stale),
		"removed": removed,
	})
	j.logg.Info(logCtx, "expired item cleanup complete")
	return errs
}

func (j *expiredCleanupJob) remove(ctx context.Context, item models.Item, now time.Time) error {
	ctx = j.logg.WithItemID(j.logg.WithUserID(ctx, item.UserID.String()), item.ID.String())
	if j.remote != nil && item.IsLinked() && item.RemoteStatus != enums.RemoteStatusInactive {
		if err := j.remote.SetRemoteStatus(ctx, item.UserID, *item.ExternalID, enums.RemoteStatusInactive); err != nil {
			j.logg.Warn(j.logg.WithField(ctx, "error", err.Error()), "remote deactivation failed; removing locally")
		}
	}

	intent := notifications.Intent{
		UserID:   item.UserID,
		Type:     enums.NotificationTypeInApp,
		Reason:   enums.NotificationReasonItemRemoved,
		Priority: enums.NotificationPriorityNormal,
		Message:  fmt.Sprintf("Item '%s' was removed after expiring", item.Name),
	}
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := j.recorder.WithTx(tx).Record(ctx, intent, now); err != nil {
			return err
		}
		return j.items.WithTx(tx).Delete(ctx, item.ID)
	})
}
