package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/expiry-tracker/pkg/errors"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
	"github.com/angelmondragon/expiry-tracker/pkg/metrics"
)

const (
	defaultMisfireGrace = time.Hour
	maxMissedScan       = 1000
	releaseTimeout      = 5 * time.Second
)

type trigger string

const (
	triggerScheduled trigger = "scheduled"
	triggerCatchUp   trigger = "catch_up"
	triggerManual    trigger = "manual"
)

var (
	errOverlap = errors.New("job already running")
	errLocked  = errors.New("job locked by another process")
)

// SchedulerParams configure the scheduler.
type SchedulerParams struct {
	Logger       *logger.Logger
	Registry     *Registry
	Locks        LockProvider
	State        RunState
	Metrics      *metrics.CronJobMetrics
	Location     *time.Location
	MisfireGrace time.Duration
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name         string    `json:"name"`
	Spec         string    `json:"spec"`
	NextRun      time.Time `json:"next_run"`
	MisfireGrace float64   `json:"misfire_grace_seconds"`
	Coalesce     bool      `json:"coalesce"`
}

// SchedulerService fires registered jobs on their cron triggers. Each job runs
// at most once at a time, in this process and across processes sharing the
// lock provider.
type SchedulerService struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockProvider
	state    RunState
	metrics  *metrics.CronJobMetrics
	loc      *time.Location
	grace    time.Duration
	now      func() time.Time

	mu      sync.Mutex
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewSchedulerService builds a scheduler. Locks and State are optional; without
// them the scheduler only guards against overlap inside this process and does
// not catch up after a restart.
func NewSchedulerService(params SchedulerParams) (*SchedulerService, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	grace := params.MisfireGrace
	if grace <= 0 {
		grace = defaultMisfireGrace
	}
	return &SchedulerService{
		logg:     params.Logger,
		registry: registry,
		locks:    params.Locks,
		state:    params.State,
		metrics:  params.Metrics,
		loc:      loc,
		grace:    grace,
		now:      time.Now,
	}, nil
}

// AddJob registers cfg, replacing any job with the same name. A running
// scheduler starts firing the new trigger immediately.
func (s *SchedulerService) AddJob(cfg JobConfig) error {
	if cfg.Job == nil || cfg.Job.Name() == "" {
		return fmt.Errorf("named job required")
	}
	schedule, err := parseSchedule(cfg.Spec, s.loc)
	if err != nil {
		return err
	}
	grace := cfg.MisfireGrace
	if grace <= 0 {
		grace = s.grace
	}
	if next := schedule.Next(s.now()); next.IsZero() {
		return fmt.Errorf("cron spec %q never fires", cfg.Spec)
	}
	e := &entry{job: cfg.Job, spec: cfg.Spec, schedule: schedule, grace: grace, coalesce: cfg.Coalesce, running: &sync.Mutex{}}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.registry.get(cfg.Job.Name()); ok {
		e.running = prev.running
	}
	if prev := s.registry.put(e); prev != nil && prev.cancel != nil {
		prev.cancel()
	}
	if s.baseCtx != nil {
		s.launch(e)
	}
	return nil
}

// RemoveJob unregisters name. It reports whether the job existed.
func (s *SchedulerService) RemoveJob(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.registry.remove(name)
	if prev == nil {
		return false
	}
	if prev.cancel != nil {
		prev.cancel()
	}
	return true
}

// Jobs lists registered jobs with their next fire time.
func (s *SchedulerService) Jobs() []JobInfo {
	now := s.now()
	entries := s.registry.list()
	out := make([]JobInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, JobInfo{
			Name:         e.name(),
			Spec:         e.spec,
			NextRun:      e.schedule.Next(now),
			MisfireGrace: e.grace.Seconds(),
			Coalesce:     e.coalesce,
		})
	}
	return out
}

// Start begins firing triggers. Occurrences missed while the process was down
// are caught up first, subject to misfire grace and coalescing.
func (s *SchedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseCtx != nil {
		return fmt.Errorf("scheduler already started")
	}
	s.baseCtx, s.stop = context.WithCancel(ctx)
	for _, e := range s.registry.list() {
		s.launch(e)
	}
	s.logg.Info(s.logg.WithField(ctx, "jobs", s.registry.Names()), "scheduler started")
	return nil
}

// Stop halts the triggers and waits for in-flight jobs until ctx is done.
func (s *SchedulerService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stop != nil {
		s.stop()
	}
	s.baseCtx, s.stop = nil, nil
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logg.Info(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

// RunNow executes name immediately, outside its trigger. It still honours
// max_instances=1 and does not count as a scheduled occurrence.
func (s *SchedulerService) RunNow(ctx context.Context, name string) error {
	e, ok := s.registry.get(name)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("job %q not registered", name))
	}
	err := s.execute(ctx, e, s.now(), triggerManual)
	switch {
	case errors.Is(err, errOverlap), errors.Is(err, errLocked):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, fmt.Sprintf("job %q is already running", name))
	default:
		return err
	}
}

// launch must be called with s.mu held.
func (s *SchedulerService) launch(e *entry) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	e.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx, e)
}

func (s *SchedulerService) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()
	s.catchUp(ctx, e)

	var prev time.Time
	for {
		from := s.now()
		if from.Before(prev) {
			from = prev
		}
		next := e.schedule.Next(from)
		if next.IsZero() {
			s.logg.Warn(s.logg.WithJob(ctx, e.name()), "schedule has no further occurrences; stopping trigger")
			return
		}
		prev = next
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.wg.Add(1)
		go func(scheduledAt time.Time) {
			defer s.wg.Done()
			_ = s.fire(ctx, e, scheduledAt, triggerScheduled)
		}(next)
	}
}

// catchUp replays occurrences that fell between the stored last run and now.
func (s *SchedulerService) catchUp(ctx context.Context, e *entry) {
	missed := s.missedOccurrences(ctx, e, s.now())
	if len(missed) == 0 {
		return
	}
	if e.coalesce {
		if len(missed) > 1 {
			logCtx := s.logg.WithFields(s.logg.WithJob(ctx, e.name()), map[string]any{
				"missed":       len(missed),
				"scheduled_at": missed[len(missed)-1],
			})
			s.logg.Info(logCtx, "coalescing missed occurrences into one run")
		}
		missed = missed[len(missed)-1:]
	}
	for _, scheduledAt := range missed {
		if ctx.Err() != nil {
			return
		}
		_ = s.fire(ctx, e, scheduledAt, triggerCatchUp)
	}
}

func (s *SchedulerService) missedOccurrences(ctx context.Context, e *entry, now time.Time) []time.Time {
	if s.state == nil {
		return nil
	}
	last, ok, err := s.state.LastRun(ctx, e.name())
	if err != nil {
		s.logg.Error(s.logg.WithJob(ctx, e.name()), "read last run", err)
		return nil
	}
	if !ok {
		return nil
	}
	var missed []time.Time
	for at := e.schedule.Next(last); !at.After(now) && !at.IsZero(); at = e.schedule.Next(at) {
		missed = append(missed, at)
		if len(missed) >= maxMissedScan {
			missed = missed[1:]
		}
	}
	return missed
}

// fire runs one occurrence unless it is past its misfire grace.
func (s *SchedulerService) fire(ctx context.Context, e *entry, scheduledAt time.Time, how trigger) error {
	if late := s.now().Sub(scheduledAt); late > e.grace {
		logCtx := s.logg.WithFields(s.logg.WithJob(ctx, e.name()), map[string]any{
			"scheduled_at": scheduledAt,
			"late_by":      late.String(),
			"trigger":      string(how),
		})
		s.logg.Warn(logCtx, "occurrence missed its grace window; skipping")
		s.metrics.IncSkipped(e.name(), metrics.SkipMisfire)
		s.markRun(ctx, e, scheduledAt)
		return nil
	}
	err := s.execute(ctx, e, scheduledAt, how)
	if errors.Is(err, errOverlap) || errors.Is(err, errLocked) {
		return err
	}
	s.markRun(ctx, e, scheduledAt)
	return err
}

func (s *SchedulerService) execute(ctx context.Context, e *entry, scheduledAt time.Time, how trigger) error {
	jobCtx := s.logg.WithFields(s.logg.WithJob(ctx, e.name()), map[string]any{
		"event":        "cron.job",
		"scheduled_at": scheduledAt,
		"trigger":      string(how),
	})

	if !e.running.TryLock() {
		s.logg.Info(jobCtx, "previous run still in progress; skipping")
		s.metrics.IncSkipped(e.name(), metrics.SkipOverlap)
		return errOverlap
	}
	defer e.running.Unlock()

	if s.locks != nil {
		lock := s.locks.For(e.name())
		locked, err := lock.Acquire(jobCtx)
		if err != nil {
			s.logg.Error(jobCtx, "job lock acquire failed", err)
			return fmt.Errorf("lock acquire: %w", err)
		}
		if !locked {
			s.logg.Info(jobCtx, "another instance holds the job lock; skipping")
			s.metrics.IncSkipped(e.name(), metrics.SkipLocked)
			return errLocked
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(jobCtx), releaseTimeout)
			defer cancel()
			if relErr := lock.Release(releaseCtx); relErr != nil {
				s.logg.Error(jobCtx, "failed to release job lock", relErr)
			}
		}()
	}

	// stopping the scheduler lets an in-flight job finish
	runCtx := withScheduledAt(context.WithoutCancel(jobCtx), scheduledAt)
	s.logg.Info(runCtx, "job start")
	start := s.now()
	err := s.runJob(runCtx, e.job)
	duration := s.now().Sub(start)
	s.metrics.ObserveDuration(e.name(), duration)
	runCtx = s.logg.WithField(runCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(runCtx, "job failed", err)
		s.metrics.IncFailure(e.name())
		return err
	}
	s.logg.Info(runCtx, "job completed")
	s.metrics.IncSuccess(e.name())
	return nil
}

// runJob converts a panicking job into an error so the trigger keeps firing.
func (s *SchedulerService) runJob(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

func (s *SchedulerService) markRun(ctx context.Context, e *entry, scheduledAt time.Time) {
	if s.state == nil {
		return
	}
	if err := s.state.MarkRun(context.WithoutCancel(ctx), e.name(), scheduledAt); err != nil {
		s.logg.Error(s.logg.WithJob(ctx, e.name()), "store last run", err)
	}
}
