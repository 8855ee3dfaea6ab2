package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/expiry-tracker/pkg/enums"
)

// Notification stores one notification decision or delivery receipt. The
// (user, item, reason, notify_date) tuple is unique so repeated decisions on the
// same calendar day collapse into one row.
type Notification struct {
	ID         uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index;uniqueIndex:ux_notifications_dedup,priority:1"`
	ItemID     *uuid.UUID                 `gorm:"column:item_id;type:uuid;index;uniqueIndex:ux_notifications_dedup,priority:2"`
	Message    string                     `gorm:"column:message;type:text;not null"`
	Type       enums.NotificationType     `gorm:"column:type;type:text;not null"`
	Priority   enums.NotificationPriority `gorm:"column:priority;type:text;not null;default:'normal'"`
	Status     enums.NotificationStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	Reason     enums.NotificationReason   `gorm:"column:reason;type:text;not null;uniqueIndex:ux_notifications_dedup,priority:3"`
	NotifyDate time.Time                  `gorm:"column:notify_date;type:date;not null;uniqueIndex:ux_notifications_dedup,priority:4"`
	ReadAt     *time.Time                 `gorm:"column:read_at"`
	CreatedAt  time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
