package inventorysync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/enums"
	"github.com/angelmondragon/expiry-tracker/pkg/zoho"
)

// SyncResult summarises one inventory pull.
type SyncResult struct {
	Fetched     int `json:"fetched"`
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Deactivated int `json:"deactivated"`
	Skipped     int `json:"skipped"`
}

// SyncInventory pulls every active remote item and upserts it locally by
// external id. Linked local items missing from the active listing are marked
// remote-inactive whatever their local status; nothing is deleted.
func (a *Adapter) SyncInventory(ctx context.Context, userID uuid.UUID) (SyncResult, error) {
	var result SyncResult
	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return result, err
	}
	ctx = a.logg.WithUserID(ctx, user.ID.String())

	var remote []zoho.Item
	err = a.call(ctx, user, "list_items", func(creds zoho.Credentials) error {
		var err error
		remote, err = a.remote.ListItems(ctx, creds, zoho.ListItemsParams{Status: zoho.StatusActive})
		return err
	})
	if err != nil {
		return result, err
	}
	result.Fetched = len(remote)

	now := a.now().UTC()
	seen := make(map[string]struct{}, len(remote))
	var errs error
	for _, ri := range remote {
		externalID := strings.TrimSpace(string(ri.ItemID))
		if externalID == "" {
			result.Skipped++
			continue
		}
		seen[externalID] = struct{}{}

		existing, err := a.items.FindByExternalID(ctx, externalID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			item := models.Item{
				UserID:          user.ID,
				ExternalID:      &externalID,
				Status:          enums.ItemStatusPending,
				StatusChangedAt: &now,
				RemoteStatus:    enums.RemoteStatusActive,
			}
			applyRemote(&item, ri)
			if err := a.items.Create(ctx, &item); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("create %s: %w", externalID, err))
				continue
			}
			result.Created++
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("load %s: %w", externalID, err))
		case existing.UserID != user.ID:
			a.logg.Warn(a.logg.WithField(ctx, "external_id", externalID), "remote item linked to another account; skipping")
			result.Skipped++
		default:
			applyRemote(existing, ri)
			existing.RemoteStatus = enums.RemoteStatusActive
			if err := a.items.Update(ctx, existing); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("update %s: %w", externalID, err))
				continue
			}
			result.Updated++
		}
	}

	linked, err := a.items.ListLinkedByUser(ctx, user.ID)
	if err != nil {
		return result, multierr.Append(errs, fmt.Errorf("list linked items: %w", err))
	}
	for _, item := range linked {
		if _, ok := seen[*item.ExternalID]; ok {
			continue
		}
		if item.RemoteStatus == enums.RemoteStatusInactive {
			continue
		}
		if err := a.items.MarkRemoteStatus(ctx, item.ID, enums.RemoteStatusInactive); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("deactivate %s: %w", item.ID, err))
			continue
		}
		result.Deactivated++
	}

	logCtx := a.logg.WithFields(ctx, map[string]any{
		"fetched":     result.Fetched,
		"created":     result.Created,
		"updated":     result.Updated,
		"deactivated": result.Deactivated,
		"skipped":     result.Skipped,
	})
	a.logg.Info(logCtx, "inventory sync complete")
	return result, errs
}

func applyRemote(item *models.Item, ri zoho.Item) {
	item.Name = strings.TrimSpace(ri.Name)
	if item.Name == "" {
		item.Name = string(ri.ItemID)
	}
	if desc := strings.TrimSpace(ri.Description); desc != "" {
		item.Description = &desc
	}
	if unit := strings.TrimSpace(ri.Unit); unit != "" {
		item.Unit = unit
	} else if item.Unit == "" {
		item.Unit = "pcs"
	}
	rate := ri.Rate.Decimal
	purchase := ri.PurchaseRate.Decimal
	item.SellingPrice = &rate
	item.CostPrice = &purchase
	item.Quantity = ri.StockOnHand.Decimal
}
