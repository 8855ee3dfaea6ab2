package users

import (
	"context"
	"time"

	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs loads every user in ids; missing ids are simply absent.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListConnected returns users holding a refresh token and organization id.
func (r *Repository) ListConnected(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("zoho_refresh_token IS NOT NULL AND zoho_refresh_token <> ''").
		Where("zoho_organization_id IS NOT NULL AND zoho_organization_id <> ''").
		Order("created_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateTokens persists a refreshed access token.
func (r *Repository) UpdateTokens(ctx context.Context, id uuid.UUID, update TokenUpdate) error {
	columns := map[string]any{
		"zoho_access_token":     update.AccessToken,
		"zoho_token_expires_at": update.ExpiresAt.UTC(),
	}
	if update.RefreshToken != nil && *update.RefreshToken != "" {
		columns["zoho_refresh_token"] = *update.RefreshToken
	}
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumns(columns).Error
}

// SaveConnection stores the full credential bundle for a newly linked account.
func (r *Repository) SaveConnection(ctx context.Context, id uuid.UUID, conn Connection) error {
	columns := map[string]any{
		"zoho_client_id":        conn.ClientID,
		"zoho_client_secret":    conn.ClientSecret,
		"zoho_organization_id":  conn.OrganizationID,
		"zoho_access_token":     conn.Token.AccessToken,
		"zoho_token_expires_at": conn.Token.ExpiresAt.UTC(),
	}
	if conn.Token.RefreshToken != nil {
		columns["zoho_refresh_token"] = *conn.Token.RefreshToken
	}
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumns(columns).Error
}

// ListUnverifiedBefore returns unverified accounts created before cutoff.
func (r *Repository) ListUnverifiedBefore(ctx context.Context, cutoff time.Time) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("is_verified = ? AND created_at < ?", false, cutoff).
		Order("created_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteCascade removes the user together with their notifications and items.
// Rows are deleted explicitly so the cascade holds on stores without foreign
// key enforcement.
func (r *Repository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	conn := r.db.WithContext(ctx)
	if err := conn.Where("user_id = ?", id).Delete(&models.Notification{}).Error; err != nil {
		return err
	}
	if err := conn.Where("user_id = ?", id).Delete(&models.Item{}).Error; err != nil {
		return err
	}
	return conn.Where("id = ?", id).Delete(&models.User{}).Error
}
