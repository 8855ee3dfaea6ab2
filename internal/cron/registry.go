package cron

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	robfig "github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobConfig binds a job to its trigger.
type JobConfig struct {
	Job Job
	// Spec is a standard five-field cron expression evaluated in the
	// scheduler's timezone.
	Spec string
	// MisfireGrace bounds how late an occurrence may start. Zero uses the
	// scheduler default.
	MisfireGrace time.Duration
	// Coalesce collapses several missed occurrences into one catch-up run.
	Coalesce bool
}

type entry struct {
	job      Job
	spec     string
	schedule robfig.Schedule
	grace    time.Duration
	coalesce bool

	// running is shared with any entry that replaces this one so a
	// re-registered job still never overlaps itself.
	running *sync.Mutex
	cancel  context.CancelFunc
}

func (e *entry) name() string { return e.job.Name() }

type scheduledAtKey struct{}

func withScheduledAt(ctx context.Context, at time.Time) context.Context {
	return context.WithValue(ctx, scheduledAtKey{}, at)
}

// ScheduledAt returns the occurrence time a job run was fired for. Manual
// runs carry the time they were requested.
func ScheduledAt(ctx context.Context) (time.Time, bool) {
	at, ok := ctx.Value(scheduledAtKey{}).(time.Time)
	return at, ok && !at.IsZero()
}

// Registry tracks scheduled jobs by name. Registering a name again replaces
// the earlier entry.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]*entry{}}
}

// put stores e and returns the entry it replaced, if any.
func (r *Registry) put(e *entry) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := e.name()
	prev, ok := r.entries[name]
	if !ok {
		r.order = append(r.order, name)
	}
	r.entries[name] = e
	return prev
}

func (r *Registry) remove(name string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.entries[name]
	if !ok {
		return nil
	}
	delete(r.entries, name)
	for i, candidate := range r.order {
		if candidate == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return prev
}

func (r *Registry) get(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// list returns the entries in registration order.
func (r *Registry) list() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

// Names returns the registered job names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// parseSchedule pins spec to loc. Specs carrying their own CRON_TZ keep it.
func parseSchedule(spec string, loc *time.Location) (robfig.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("cron spec required")
	}
	if loc != nil && !strings.HasPrefix(spec, "CRON_TZ=") && !strings.HasPrefix(spec, "TZ=") {
		spec = "CRON_TZ=" + loc.String() + " " + spec
	}
	schedule, err := robfig.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	return schedule, nil
}
