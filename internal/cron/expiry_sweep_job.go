package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/expiry-tracker/internal/items"
	"github.com/angelmondragon/expiry-tracker/internal/notifications"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
)

const ExpirySweepJobName = "daily-expiry-sweep"

type lifecycleSweeper interface {
	Run(ctx context.Context, now time.Time) (items.SweepResult, error)
}

type digestSweeper interface {
	Run(ctx context.Context, now time.Time) (notifications.DigestResult, error)
}

type ExpirySweepJobParams struct {
	Logger    *logger.Logger
	Lifecycle lifecycleSweeper
	Digest    digestSweeper
}

// NewExpirySweepJob recomputes every item's status and then sends the digest.
// Both phases run as of the fired occurrence, not the wall clock at start, so
// the digest's once-per-day window lines up across consecutive days.
func NewExpirySweepJob(params ExpirySweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lifecycle == nil {
		return nil, fmt.Errorf("lifecycle sweeper required")
	}
	if params.Digest == nil {
		return nil, fmt.Errorf("digest sweeper required")
	}
	return &expirySweepJob{
		logg:      params.Logger,
		lifecycle: params.Lifecycle,
		digest:    params.Digest,
		now:       time.Now,
	}, nil
}

type expirySweepJob struct {
	logg      *logger.Logger
	lifecycle lifecycleSweeper
	digest    digestSweeper
	now       func() time.Time
}

func (j *expirySweepJob) Name() string { return ExpirySweepJobName }

func (j *expirySweepJob) Run(ctx context.Context) error {
	now, ok := ScheduledAt(ctx)
	if !ok {
		now = j.now()
	}
	var errs error

	sweep, err := j.lifecycle.Run(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("status sweep: %w", err))
	}
	digest, err := j.digest.Run(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("digest: %w", err))
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":        sweep.Scanned,
		"transitioned":   sweep.Transitioned,
		"sweep_failed":   sweep.Failed,
		"candidates":     digest.Candidates,
		"reminders":      digest.Reminders,
		"digests_sent":   digest.Sent,
		"digests_failed": digest.Failed,
	})
	j.logg.Info(logCtx, "expiry sweep complete")
	return errs
}
