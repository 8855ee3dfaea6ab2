package items

import (
	"context"
	"time"

	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes persistence helpers for items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, item *models.Item) error
	UpdateStatus(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	FindByUserAndID(ctx context.Context, userID, id uuid.UUID) (*models.Item, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Item, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Item, error)
	ListForSweep(ctx context.Context, after uuid.UUID, limit int) ([]models.Item, error)
	ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]models.Item, error)
	ListLinkedByUser(ctx context.Context, userID uuid.UUID) ([]models.Item, error)
	MarkRemoteStatus(ctx context.Context, id uuid.UUID, status enums.RemoteStatus) error
	ListDigestCandidates(ctx context.Context) ([]models.Item, error)
	MarkExpiryReported(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an items repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// Update writes every user-editable column.
func (r *repositoryImpl) Update(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"name":             item.Name,
			"description":      item.Description,
			"quantity":         item.Quantity,
			"unit":             item.Unit,
			"purchase_date":    item.PurchaseDate,
			"expiry_date":      item.ExpiryDate,
			"cost_price":       item.CostPrice,
			"selling_price":    item.SellingPrice,
			"discounted_price": item.DiscountedPrice,
			"external_id":      item.ExternalID,
			"remote_status":    item.RemoteStatus,
		}).Error
}

// UpdateStatus persists the lifecycle columns only.
func (r *repositoryImpl) UpdateStatus(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"status":             item.Status,
			"status_changed_at":  item.StatusChangedAt,
			"expiry_reported_at": item.ExpiryReportedAt,
		}).Error
}

// Delete removes the item and the notifications that reference it.
func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Where("item_id = ?", id).Delete(&models.Notification{}).Error; err != nil {
		return err
	}
	return conn.Where("id = ?", id).Delete(&models.Item{}).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repositoryImpl) FindByUserAndID(ctx context.Context, userID, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repositoryImpl) FindByExternalID(ctx context.Context, externalID string) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "external_id = ?", externalID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repositoryImpl) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Item, error) {
	var rows []models.Item
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("expiry_date IS NULL, expiry_date ASC, name ASC").
		Find(&rows).Error
	return rows, err
}

// ListForSweep pages through every item in id order.
func (r *repositoryImpl) ListForSweep(ctx context.Context, after uuid.UUID, limit int) ([]models.Item, error) {
	query := r.db.WithContext(ctx).Order("id ASC").Limit(limit)
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	var rows []models.Item
	err := query.Find(&rows).Error
	return rows, err
}

// ListExpiredBefore returns items that entered Expired before cutoff.
func (r *repositoryImpl) ListExpiredBefore(ctx context.Context, cutoff time.Time) ([]models.Item, error) {
	var rows []models.Item
	err := r.db.WithContext(ctx).
		Where("status = ? AND status_changed_at IS NOT NULL AND status_changed_at < ?", enums.ItemStatusExpired, cutoff).
		Order("status_changed_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) ListLinkedByUser(ctx context.Context, userID uuid.UUID) ([]models.Item, error) {
	var rows []models.Item
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND external_id IS NOT NULL AND external_id <> ''", userID).
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) MarkRemoteStatus(ctx context.Context, id uuid.UUID, status enums.RemoteStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ?", id).
		UpdateColumn("remote_status", status).Error
}

// ListDigestCandidates returns dated items that still need reporting. An
// expired item stays eligible until one digest has reported it.
func (r *repositoryImpl) ListDigestCandidates(ctx context.Context) ([]models.Item, error) {
	var rows []models.Item
	err := r.db.WithContext(ctx).
		Where("expiry_date IS NOT NULL").
		Where("status <> ? OR expiry_reported_at IS NULL", enums.ItemStatusExpired).
		Where("remote_status <> ?", enums.RemoteStatusInactive).
		Order("user_id ASC, expiry_date ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) MarkExpiryReported(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id IN ?", ids).
		UpdateColumn("expiry_reported_at", at).Error
}
