package items

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/expiry-tracker/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const defaultSweepBatch = 200

type SweeperParams struct {
	Logger     *logger.Logger
	Repository Repository
	Dispatcher *Dispatcher
	Policy     Policy
	BatchSize  int
}

// SweepResult summarises one lifecycle sweep.
type SweepResult struct {
	Scanned      int
	Transitioned int
	Failed       int
}

// Sweeper recomputes every stored item and dispatches natural transitions.
type Sweeper struct {
	logg       *logger.Logger
	repo       Repository
	dispatcher *Dispatcher
	policy     Policy
	batch      int
}

func NewSweeper(params SweeperParams) (*Sweeper, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("items repository required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &Sweeper{
		logg:       params.Logger,
		repo:       params.Repository,
		dispatcher: params.Dispatcher,
		policy:     params.Policy.normalized(),
		batch:      batch,
	}, nil
}

// Run walks all items once as of now. A failing item is logged and counted;
// the sweep carries on and returns the combined errors.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (SweepResult, error) {
	var (
		result SweepResult
		errs   error
		after  uuid.UUID
	)
	for {
		rows, err := s.repo.ListForSweep(ctx, after, s.batch)
		if err != nil {
			return result, multierr.Append(errs, fmt.Errorf("list items: %w", err))
		}
		for _, item := range rows {
			result.Scanned++
			t, ok := Recompute(item, now, s.policy, false)
			if !ok {
				continue
			}
			if err := s.dispatcher.Dispatch(ctx, t); err != nil {
				result.Failed++
				s.logg.Error(s.logg.WithItemID(ctx, item.ID.String()), "item transition failed", err)
				errs = multierr.Append(errs, err)
				continue
			}
			result.Transitioned++
		}
		if len(rows) < s.batch {
			break
		}
		after = rows[len(rows)-1].ID
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"scanned":      result.Scanned,
		"transitioned": result.Transitioned,
		"failed":       result.Failed,
	})
	s.logg.Info(logCtx, "item lifecycle sweep complete")
	return result, errs
}
