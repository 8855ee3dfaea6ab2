package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/expiry-tracker/pkg/enums"
)

// Item is a perishable inventory unit owned by a single user.
type Item struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID           uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	Name             string             `gorm:"column:name;type:text;not null"`
	Description      *string            `gorm:"column:description;type:text"`
	Quantity         decimal.Decimal    `gorm:"column:quantity;type:numeric(12,3);not null;default:0"`
	Unit             string             `gorm:"column:unit;type:text;not null;default:'pcs'"`
	PurchaseDate     *time.Time         `gorm:"column:purchase_date;type:date"`
	ExpiryDate       *time.Time         `gorm:"column:expiry_date;type:date;index"`
	CostPrice        *decimal.Decimal   `gorm:"column:cost_price;type:numeric(12,2)"`
	SellingPrice     *decimal.Decimal   `gorm:"column:selling_price;type:numeric(12,2)"`
	DiscountedPrice  *decimal.Decimal   `gorm:"column:discounted_price;type:numeric(12,2)"`
	ExternalID       *string            `gorm:"column:external_id;type:text;uniqueIndex:ux_items_external_id"`
	Status           enums.ItemStatus   `gorm:"column:status;type:text;not null;default:'pending';index"`
	StatusChangedAt  *time.Time         `gorm:"column:status_changed_at"`
	RemoteStatus     enums.RemoteStatus `gorm:"column:remote_status;type:text;not null;default:'active'"`
	ExpiryReportedAt *time.Time         `gorm:"column:expiry_reported_at"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Item) TableName() string { return "items" }

// BeforeCreate assigns the primary key so inserts behave the same on every
// driver.
func (i *Item) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Status == "" {
		i.Status = enums.ItemStatusPending
	}
	if i.RemoteStatus == "" {
		i.RemoteStatus = enums.RemoteStatusActive
	}
	return nil
}

// IsLinked reports whether the item mirrors a remote inventory record.
func (i *Item) IsLinked() bool {
	return i.ExternalID != nil && *i.ExternalID != ""
}
