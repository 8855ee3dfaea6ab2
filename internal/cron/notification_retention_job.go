package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/expiry-tracker/pkg/logger"
)

const (
	NotificationRetentionJobName = "notification-retention"
	defaultRetentionDays         = 30
)

type retentionStore interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type NotificationRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Notifications retentionStore
	// Days of history kept, counted in whole local days before today.
	Days     int
	Location *time.Location
}

// NewNotificationRetentionJob removes notification history older than the
// configured number of local calendar days. Delivery dedup only consults the
// current day, so pruning never causes a resend.
func NewNotificationRetentionJob(params NotificationRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Notifications == nil:
		return nil, errors.New("notifications store required")
	}
	days := params.Days
	if days <= 0 {
		days = defaultRetentionDays
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &notificationRetentionJob{
		logg:  params.Logger,
		db:    params.DB,
		store: params.Notifications,
		days:  days,
		loc:   loc,
		now:   time.Now,
	}, nil
}

type notificationRetentionJob struct {
	logg  *logger.Logger
	db    txRunner
	store retentionStore
	days  int
	loc   *time.Location
	now   func() time.Time
}

func (j *notificationRetentionJob) Name() string { return NotificationRetentionJobName }

// cutoff is local midnight at the start of the oldest retained day.
func (j *notificationRetentionJob) cutoff() time.Time {
	y, m, d := j.now().In(j.loc).Date()
	return time.Date(y, m, d-j.days, 0, 0, 0, 0, j.loc)
}

func (j *notificationRetentionJob) Run(ctx context.Context) error {
	cutoff := j.cutoff()
	var deleted int64
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) (err error) {
		deleted, err = j.store.DeleteOlderThan(ctx, tx, cutoff)
		return err
	}); err != nil {
		return fmt.Errorf("%s: %w", NotificationRetentionJobName, err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff.UTC(),
		"retention_days": j.days,
		"deleted":        deleted,
	}), "notification history pruned")
	return nil
}
