// Package inventorysync mirrors local item state to the remote inventory
// service and pulls remote inventory into local storage.
package inventorysync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/angelmondragon/expiry-tracker/internal/items"
	"github.com/angelmondragon/expiry-tracker/internal/users"
	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/enums"
	pkgerrors "github.com/angelmondragon/expiry-tracker/pkg/errors"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
	"github.com/angelmondragon/expiry-tracker/pkg/metrics"
	"github.com/angelmondragon/expiry-tracker/pkg/zoho"
)

const tokenExpirySkew = 30 * time.Second

type remoteClient interface {
	ListItems(ctx context.Context, creds zoho.Credentials, params zoho.ListItemsParams) ([]zoho.Item, error)
	CreateItem(ctx context.Context, creds zoho.Credentials, payload zoho.ItemPayload) (*zoho.Item, error)
	UpdateItem(ctx context.Context, creds zoho.Credentials, itemID string, payload zoho.ItemPayload) (*zoho.Item, error)
	ListOrganizations(ctx context.Context, accessToken string) ([]zoho.Organization, error)
	Refresh(ctx context.Context, clientID, clientSecret, refreshToken string) (*oauth2.Token, error)
	Exchange(ctx context.Context, clientID, clientSecret, code string) (*oauth2.Token, error)
	AuthCodeURL(clientID, state string) string
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateTokens(ctx context.Context, id uuid.UUID, update users.TokenUpdate) error
	SaveConnection(ctx context.Context, id uuid.UUID, conn users.Connection) error
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type AdapterParams struct {
	Logger     *logger.Logger
	Remote     remoteClient
	Users      userStore
	Items      items.Repository
	Limiter    rateLimiter
	RateLimit  int64
	RateWindow time.Duration
	Metrics    *metrics.ExpiryMetrics
}

// Adapter is the remote reconciliation boundary. Every remote failure comes
// back as an error value for the caller to log; nothing here panics or blocks
// a local commit.
type Adapter struct {
	logg       *logger.Logger
	remote     remoteClient
	users      userStore
	items      items.Repository
	limiter    rateLimiter
	rateLimit  int64
	rateWindow time.Duration
	metrics    *metrics.ExpiryMetrics
	now        func() time.Time
}

func NewAdapter(params AdapterParams) (*Adapter, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Remote == nil {
		return nil, fmt.Errorf("remote client required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("items repository required")
	}
	window := params.RateWindow
	if window <= 0 {
		window = time.Minute
	}
	return &Adapter{
		logg:       params.Logger,
		remote:     params.Remote,
		users:      params.Users,
		items:      params.Items,
		limiter:    params.Limiter,
		rateLimit:  params.RateLimit,
		rateWindow: window,
		metrics:    params.Metrics,
		now:        time.Now,
	}, nil
}

// ValidToken returns a usable access token for user, refreshing at most once
// when the stored token has expired. ok is false when no token can be had;
// callers treat that as "sync unavailable".
func (a *Adapter) ValidToken(ctx context.Context, user *models.User) (string, bool) {
	if user == nil {
		return "", false
	}
	if token := stringValue(user.ZohoAccessToken); token != "" && user.ZohoTokenExpiresAt != nil &&
		a.now().Add(tokenExpirySkew).Before(*user.ZohoTokenExpiresAt) {
		return token, true
	}
	return a.refresh(ctx, user)
}

func (a *Adapter) refresh(ctx context.Context, user *models.User) (string, bool) {
	ctx = a.logg.WithUserID(ctx, user.ID.String())
	tok, err := a.remote.Refresh(ctx, stringValue(user.ZohoClientID), stringValue(user.ZohoClientSecret), stringValue(user.ZohoRefreshToken))
	a.metrics.ObserveRemoteCall("refresh_token", err == nil)
	if err != nil {
		a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), "token refresh failed")
		return "", false
	}

	update := users.TokenUpdate{AccessToken: tok.AccessToken, ExpiresAt: tok.Expiry}
	if tok.RefreshToken != "" && tok.RefreshToken != stringValue(user.ZohoRefreshToken) {
		rotated := tok.RefreshToken
		update.RefreshToken = &rotated
		user.ZohoRefreshToken = &rotated
	}
	access := tok.AccessToken
	expires := tok.Expiry.UTC()
	user.ZohoAccessToken = &access
	user.ZohoTokenExpiresAt = &expires

	if err := a.users.UpdateTokens(ctx, user.ID, update); err != nil {
		a.logg.Error(ctx, "persist refreshed token", err)
	}
	return access, true
}

// call runs fn with valid credentials. An unauthorized response triggers one
// refresh and exactly one retry.
func (a *Adapter) call(ctx context.Context, user *models.User, op string, fn func(zoho.Credentials) error) error {
	if !user.HasRemoteAccount() {
		return pkgerrors.New(pkgerrors.CodeNotConnected, "inventory account not connected")
	}
	if err := a.allow(ctx, user.ID); err != nil {
		return err
	}
	token, ok := a.ValidToken(ctx, user)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotConnected, "no valid access token")
	}
	creds := zoho.Credentials{AccessToken: token, OrganizationID: stringValue(user.ZohoOrganizationID)}

	err := fn(creds)
	if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		a.logg.Info(a.logg.WithField(ctx, "operation", op), "remote rejected token; refreshing once")
		token, ok = a.refresh(ctx, user)
		if ok {
			creds.AccessToken = token
			err = fn(creds)
		}
	}
	a.metrics.ObserveRemoteCall(op, err == nil)
	return err
}

func (a *Adapter) allow(ctx context.Context, userID uuid.UUID) error {
	if a.limiter == nil || a.rateLimit <= 0 {
		return nil
	}
	allowed, _, err := a.limiter.FixedWindowAllow(ctx, "zoho:"+userID.String(), a.rateLimit, a.rateWindow)
	if err != nil {
		a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), "remote rate limiter unavailable")
		return nil
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "remote call budget exhausted")
	}
	return nil
}

func (a *Adapter) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := a.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

// CreateRemoteItem mirrors item remotely and returns the remote id. A remote
// item with the same name is reused: an active one is linked, an inactive one
// is reactivated.
func (a *Adapter) CreateRemoteItem(ctx context.Context, item models.Item) (string, error) {
	user, err := a.loadUser(ctx, item.UserID)
	if err != nil {
		return "", err
	}
	desired := item.Status.RemoteStatus()
	payload := fullPayload(item, desired)
	ctx = a.logg.WithUserID(ctx, user.ID.String())

	var remoteID string
	err = a.call(ctx, user, "create_item", func(creds zoho.Credentials) error {
		active, err := a.findByName(ctx, creds, item.Name, zoho.StatusActive)
		if err != nil {
			return err
		}
		if active != nil {
			remoteID = string(active.ItemID)
			if desired == enums.RemoteStatusInactive {
				_, err = a.remote.UpdateItem(ctx, creds, remoteID, zoho.ItemPayload{Status: zoho.StatusInactive})
			}
			return err
		}

		inactive, err := a.findByName(ctx, creds, item.Name, zoho.StatusInactive)
		if err != nil {
			return err
		}
		if inactive != nil {
			remoteID = string(inactive.ItemID)
			_, err = a.remote.UpdateItem(ctx, creds, remoteID, payload)
			return err
		}

		createPayload := payload
		createPayload.StockOnHand = nil
		createPayload.ItemType = "inventory"
		createPayload.ProductType = "goods"
		if item.Quantity.IsPositive() {
			createPayload.InitialStock = zoho.NewAmount(item.Quantity)
			if item.CostPrice != nil {
				createPayload.InitialStockRate = zoho.NewAmount(*item.CostPrice)
			}
		}
		created, err := a.remote.CreateItem(ctx, creds, createPayload)
		if err != nil {
			return err
		}
		remoteID = string(created.ItemID)
		return nil
	})
	if err != nil {
		return "", err
	}
	a.logg.Info(a.logg.WithField(ctx, "external_id", remoteID), "remote item linked")
	return remoteID, nil
}

func (a *Adapter) findByName(ctx context.Context, creds zoho.Credentials, name, status string) (*zoho.Item, error) {
	found, err := a.remote.ListItems(ctx, creds, zoho.ListItemsParams{Name: name, Status: status})
	if err != nil {
		return nil, err
	}
	for i := range found {
		if strings.EqualFold(strings.TrimSpace(found[i].Name), strings.TrimSpace(name)) {
			return &found[i], nil
		}
	}
	return nil, nil
}

// UpdateRemoteItem pushes a full replace of the item's remote fields.
func (a *Adapter) UpdateRemoteItem(ctx context.Context, item models.Item) error {
	if !item.IsLinked() {
		return pkgerrors.New(pkgerrors.CodeValidation, "item is not linked to a remote item")
	}
	user, err := a.loadUser(ctx, item.UserID)
	if err != nil {
		return err
	}
	payload := fullPayload(item, item.Status.RemoteStatus())
	return a.call(ctx, user, "update_item", func(creds zoho.Credentials) error {
		_, err := a.remote.UpdateItem(ctx, creds, *item.ExternalID, payload)
		return err
	})
}

// DeleteRemoteItem deactivates the remote item; the remote side has no hard
// delete.
func (a *Adapter) DeleteRemoteItem(ctx context.Context, userID uuid.UUID, externalID string) error {
	return a.SetRemoteStatus(ctx, userID, externalID, enums.RemoteStatusInactive)
}

// SetRemoteStatus flips the remote active flag.
func (a *Adapter) SetRemoteStatus(ctx context.Context, userID uuid.UUID, externalID string, status enums.RemoteStatus) error {
	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	return a.call(ctx, user, "set_status", func(creds zoho.Credentials) error {
		_, err := a.remote.UpdateItem(ctx, creds, externalID, zoho.ItemPayload{Status: string(status)})
		return err
	})
}

func fullPayload(item models.Item, status enums.RemoteStatus) zoho.ItemPayload {
	payload := zoho.ItemPayload{
		Name:        item.Name,
		Description: item.Description,
		Unit:        item.Unit,
		Status:      string(status),
		StockOnHand: zoho.NewAmount(item.Quantity),
	}
	if item.SellingPrice != nil {
		payload.Rate = zoho.NewAmount(*item.SellingPrice)
	}
	if item.CostPrice != nil {
		payload.PurchaseRate = zoho.NewAmount(*item.CostPrice)
	}
	return payload
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return strings.TrimSpace(*ptr)
}
