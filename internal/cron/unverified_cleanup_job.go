package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/expiry-tracker/internal/users"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
)

const (
	UnverifiedCleanupJobName = "cleanup-unverified-accounts"
	defaultUnverifiedGrace   = 7 * 24 * time.Hour
)

type UnverifiedCleanupJobParams struct {
	Logger *logger.Logger
	DB     txRunner
	Users  *users.Repository
	Grace  time.Duration
}

func NewUnverifiedCleanupJob(params UnverifiedCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultUnverifiedGrace
	}
	return &unverifiedCleanupJob{
		logg:  params.Logger,
		db:    params.DB,
		users: params.Users,
		grace: grace,
		now:   time.Now,
	}, nil
}

type unverifiedCleanupJob struct {
	logg  *logger.Logger
	db    txRunner
	users *users.Repository
	grace time.Duration
	now   func() time.Time
}

func (j *unverifiedCleanupJob) Name() string { return UnverifiedCleanupJobName }

// Run deletes each stale unverified account with its items and notifications
// in its own transaction.
func (j *unverifiedCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	stale, err := j.users.ListUnverifiedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list unverified accounts: %w", err)
	}

	var errs error
	deleted := 0
	for _, user := range stale {
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			return j.users.WithTx(tx).DeleteCascade(ctx, user.ID)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete account %s: %w", user.ID, err))
			continue
		}
		deleted++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"found":   len(stale),
		"deleted": deleted,
	})
	j.logg.Info(logCtx, "unverified account cleanup complete")
	return errs
}
