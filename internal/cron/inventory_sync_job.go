package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/expiry-tracker/internal/inventorysync"
	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
)

const InventorySyncJobName = "inventory-sync"

type connectedUsers interface {
	ListConnected(ctx context.Context) ([]models.User, error)
}

type inventorySyncer interface {
	SyncInventory(ctx context.Context, userID uuid.UUID) (inventorysync.SyncResult, error)
}

type InventorySyncJobParams struct {
	Logger *logger.Logger
	Users  connectedUsers
	Syncer inventorySyncer
}

func NewInventorySyncJob(params InventorySyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("inventory syncer required")
	}
	return &inventorySyncJob{logg: params.Logger, users: params.Users, syncer: params.Syncer}, nil
}

type inventorySyncJob struct {
	logg   *logger.Logger
	users  connectedUsers
	syncer inventorySyncer
}

func (j *inventorySyncJob) Name() string { return InventorySyncJobName }

// Run pulls remote inventory for every connected user, one user at a time.
// A failing user does not stop the others.
func (j *inventorySyncJob) Run(ctx context.Context) error {
	connected, err := j.users.ListConnected(ctx)
	if err != nil {
		return fmt.Errorf("list connected users: %w", err)
	}
	var errs error
	synced := 0
	for _, user := range connected {
		userCtx := j.logg.WithUserID(ctx, user.ID.String())
		if _, err := j.syncer.SyncInventory(userCtx, user.ID); err != nil {
			j.logg.Warn(j.logg.WithField(userCtx, "error", err.Error()), "inventory sync failed for user")
			errs = multierr.Append(errs, fmt.Errorf("sync user %s: %w", user.ID, err))
			continue
		}
		synced++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"users":  len(connected),
		"synced": synced,
	})
	j.logg.Info(logCtx, "inventory sync job complete")
	return errs
}
