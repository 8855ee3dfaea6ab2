package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User carries the fields the expiry engine consumes: notification preferences
// and the remote inventory credential bundle.
type User struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email              string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name               string     `gorm:"column:name;type:text"`
	IsVerified         bool       `gorm:"column:is_verified;not null;default:false"`
	EmailNotifications bool       `gorm:"column:email_notifications;not null"`
	SMSNotifications   bool       `gorm:"column:sms_notifications;not null;default:false"`
	InAppNotifications bool       `gorm:"column:in_app_notifications;not null"`
	ZohoClientID       *string    `gorm:"column:zoho_client_id;type:text"`
	ZohoClientSecret   *string    `gorm:"column:zoho_client_secret;type:text"`
	ZohoAccessToken    *string    `gorm:"column:zoho_access_token;type:text"`
	ZohoRefreshToken   *string    `gorm:"column:zoho_refresh_token;type:text"`
	ZohoTokenExpiresAt *time.Time `gorm:"column:zoho_token_expires_at"`
	ZohoOrganizationID *string    `gorm:"column:zoho_organization_id;type:text"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasRemoteAccount reports whether a refresh token and organization are on file.
func (u *User) HasRemoteAccount() bool {
	return u.ZohoRefreshToken != nil && *u.ZohoRefreshToken != "" &&
		u.ZohoOrganizationID != nil && *u.ZohoOrganizationID != ""
}
