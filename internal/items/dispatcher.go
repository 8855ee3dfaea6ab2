package items

import (
	"context"
	"fmt"

	"github.com/angelmondragon/expiry-tracker/internal/notifications"
	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/enums"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
	"github.com/angelmondragon/expiry-tracker/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RemoteStatusSetter mirrors a local status to the remote inventory.
type RemoteStatusSetter interface {
	SetRemoteStatus(ctx context.Context, userID uuid.UUID, externalID string, status enums.RemoteStatus) error
}

type DispatcherParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository Repository
	Recorder   *notifications.Recorder
	Remote     RemoteStatusSetter
	Metrics    *metrics.ExpiryMetrics
}

// Dispatcher executes the side effects of a Transition. The local status and
// notification rows commit together; remote mirroring runs afterwards and never
// rolls the local change back.
type Dispatcher struct {
	logg     *logger.Logger
	db       txRunner
	repo     Repository
	recorder *notifications.Recorder
	remote   RemoteStatusSetter
	metrics  *metrics.ExpiryMetrics
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("items repository required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("notification recorder required")
	}
	return &Dispatcher{
		logg:     params.Logger,
		db:       params.DB,
		repo:     params.Repository,
		recorder: params.Recorder,
		remote:   params.Remote,
		metrics:  params.Metrics,
	}, nil
}

// Dispatch commits t locally and then reconciles the remote copy.
func (d *Dispatcher) Dispatch(ctx context.Context, t Transition) error {
	if err := d.Commit(ctx, t); err != nil {
		return err
	}
	d.Reconcile(ctx, t)
	return nil
}

// Commit writes the status change and records the notification intents in one
// transaction.
func (d *Dispatcher) Commit(ctx context.Context, t Transition) error {
	return d.db.WithTx(ctx, func(tx *gorm.DB) error {
		return d.commitTx(ctx, tx, t)
	})
}

func (d *Dispatcher) commitTx(ctx context.Context, tx *gorm.DB, t Transition) error {
	if t.Changed() {
		row := models.Item{ID: t.ItemID}
		t.Apply(&row)
		if err := d.repo.WithTx(tx).UpdateStatus(ctx, &row); err != nil {
			return fmt.Errorf("update item status: %w", err)
		}
	}
	recorder := d.recorder.WithTx(tx)
	for _, intent := range t.Notifications {
		if _, err := recorder.Record(ctx, intent, t.At); err != nil {
			return err
		}
	}
	if t.Changed() {
		d.metrics.IncTransition(string(t.To))
	}
	return nil
}

// Reconcile pushes the remote sync intent, if any. Failures are logged only.
func (d *Dispatcher) Reconcile(ctx context.Context, t Transition) {
	if t.Remote == nil || d.remote == nil {
		return
	}
	err := d.remote.SetRemoteStatus(ctx, t.Remote.UserID, t.Remote.ExternalID, t.Remote.Status)
	if err != nil {
		logCtx := d.logg.WithItemID(ctx, t.ItemID.String())
		logCtx = d.logg.WithFields(logCtx, map[string]any{
			"external_id":   t.Remote.ExternalID,
			"remote_status": string(t.Remote.Status),
			"error":         err.Error(),
		})
		d.logg.Warn(logCtx, "remote status sync failed")
	}
}
