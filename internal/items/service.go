package items

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/expiry-tracker/pkg/calendar"
	"github.com/angelmondragon/expiry-tracker/pkg/db"
	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/enums"
	pkgerrors "github.com/angelmondragon/expiry-tracker/pkg/errors"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultUnit           = "pcs"
	maxDiscountPercentage = 100
)

// RemoteInventory is the slice of the remote adapter the item service drives.
type RemoteInventory interface {
	CreateRemoteItem(ctx context.Context, item models.Item) (string, error)
	UpdateRemoteItem(ctx context.Context, item models.Item) error
	DeleteRemoteItem(ctx context.Context, userID uuid.UUID, externalID string) error
}

// Service covers user-driven item edits.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input ItemInput, mirror bool) (*models.Item, error)
	Update(ctx context.Context, userID, itemID uuid.UUID, input ItemInput) (*models.Item, error)
	Delete(ctx context.Context, userID, itemID uuid.UUID) error
	RefreshStatus(ctx context.Context, userID, itemID uuid.UUID, force bool) (*models.Item, error)
	SetDiscount(ctx context.Context, userID, itemID uuid.UUID, percentage decimal.Decimal) (*models.Item, error)
}

type ServiceParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository Repository
	Dispatcher *Dispatcher
	Remote     RemoteInventory
	Policy     Policy
}

type service struct {
	logg       *logger.Logger
	db         txRunner
	repo       Repository
	dispatcher *Dispatcher
	remote     RemoteInventory
	policy     Policy
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db runner required")
	}
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "items repository required")
	}
	if params.Dispatcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "dispatcher required")
	}
	return &service{
		logg:       params.Logger,
		db:         params.DB,
		repo:       params.Repository,
		dispatcher: params.Dispatcher,
		remote:     params.Remote,
		policy:     params.Policy.normalized(),
		now:        time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input ItemInput, mirror bool) (*models.Item, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := Validate(input); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	item := models.Item{ID: uuid.New(), UserID: userID}
	applyInput(&item, input)
	item.Status = enums.ItemStatusPending
	item.StatusChangedAt = &now

	ctx = s.logg.WithItemID(s.logg.WithUserID(ctx, userID.String()), item.ID.String())
	t, changed := Recompute(item, now, s.policy, false)
	if mirror && s.remote != nil {
		// the remote copy is created with the derived status already applied
		snapshot := item
		t.Apply(&snapshot)
		externalID, err := s.remote.CreateRemoteItem(ctx, snapshot)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "remote item create failed; keeping local copy unlinked")
		} else if externalID != "" {
			item.ExternalID = &externalID
		}
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, &item); err != nil {
			return err
		}
		if changed {
			return s.dispatcher.commitTx(ctx, tx, t)
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "remote item already linked to another item")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item")
	}
	t.Apply(&item)
	s.logg.Info(s.logg.WithField(ctx, "status", string(item.Status)), "item created")
	return &item, nil
}

func (s *service) Update(ctx context.Context, userID, itemID uuid.UUID, input ItemInput) (*models.Item, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}
	item, err := s.load(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	applyInput(item, input)

	t, changed := Recompute(*item, now, s.policy, false)
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, item); err != nil {
			return err
		}
		if changed {
			return s.dispatcher.commitTx(ctx, tx, t)
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update item")
	}
	if changed {
		t.Apply(item)
	}

	ctx = s.logg.WithItemID(ctx, item.ID.String())
	if item.IsLinked() && s.remote != nil {
		// the full update carries the new status, so no separate status push
		if err := s.remote.UpdateRemoteItem(ctx, *item); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "remote item update failed")
		}
	}
	return item, nil
}

func (s *service) Delete(ctx context.Context, userID, itemID uuid.UUID) error {
	item, err := s.load(ctx, userID, itemID)
	if err != nil {
		return err
	}
	ctx = s.logg.WithItemID(ctx, item.ID.String())
	if item.IsLinked() && s.remote != nil {
		if err := s.remote.DeleteRemoteItem(ctx, item.UserID, *item.ExternalID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "remote item deactivate failed")
		}
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Delete(ctx, item.ID)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete item")
	}
	s.logg.Info(ctx, "item deleted")
	return nil
}

// RefreshStatus is the on-read recompute. force re-emits the intents for the
// current status; the recorder's per-day dedup absorbs repeats.
func (s *service) RefreshStatus(ctx context.Context, userID, itemID uuid.UUID, force bool) (*models.Item, error) {
	item, err := s.load(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	t, ok := Recompute(*item, s.now(), s.policy, force)
	if !ok {
		return item, nil
	}
	if err := s.dispatcher.Dispatch(ctx, t); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh item status")
	}
	t.Apply(item)
	return item, nil
}

// SetDiscount prices the item at percentage off its selling price. Items with
// no selling price are returned untouched.
func (s *service) SetDiscount(ctx context.Context, userID, itemID uuid.UUID, percentage decimal.Decimal) (*models.Item, error) {
	if percentage.IsNegative() || percentage.GreaterThan(decimal.NewFromInt(maxDiscountPercentage)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"percentage": "must be between 0 and 100"})
	}
	item, err := s.load(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if item.SellingPrice == nil {
		return item, nil
	}
	factor := decimal.NewFromInt(1).Sub(percentage.Div(decimal.NewFromInt(100)))
	discounted := item.SellingPrice.Mul(factor).Round(2)
	item.DiscountedPrice = &discounted
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set discount")
	}
	return item, nil
}

func (s *service) load(ctx context.Context, userID, itemID uuid.UUID) (*models.Item, error) {
	item, err := s.repo.FindByUserAndID(ctx, userID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("load item %s", itemID))
	}
	return item, nil
}

func applyInput(item *models.Item, input ItemInput) {
	item.Name = strings.TrimSpace(input.Name)
	item.Description = input.Description
	item.Quantity = input.Quantity
	item.Unit = strings.TrimSpace(input.Unit)
	if item.Unit == "" {
		item.Unit = defaultUnit
	}
	item.PurchaseDate = normalizeDate(input.PurchaseDate)
	item.ExpiryDate = normalizeDate(input.ExpiryDate)
	item.CostPrice = input.CostPrice
	item.SellingPrice = input.SellingPrice
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := calendar.Normalize(*t)
	return &d
}
