package inventorysync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/angelmondragon/expiry-tracker/internal/items"
	"github.com/angelmondragon/expiry-tracker/internal/users"
	"github.com/angelmondragon/expiry-tracker/pkg/db/dbtest"
	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/enums"
	pkgerrors "github.com/angelmondragon/expiry-tracker/pkg/errors"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
	"github.com/angelmondragon/expiry-tracker/pkg/zoho"
)

type updateCall struct {
	Token   string
	ItemID  string
	Payload zoho.ItemPayload
}

type fakeRemote struct {
	listFn     func(params zoho.ListItemsParams) ([]zoho.Item, error)
	updateErrs []error
	refreshTok *oauth2.Token
	refreshErr error

	refreshCalls int
	updates      []updateCall
	creates      []zoho.ItemPayload
	listTokens   []string
}

func (f *fakeRemote) ListItems(ctx context.Context, creds zoho.Credentials, params zoho.ListItemsParams) ([]zoho.Item, error) {
	f.listTokens = append(f.listTokens, creds.AccessToken)
	if f.listFn != nil {
		return f.listFn(params)
	}
	return nil, nil
}

func (f *fakeRemote) CreateItem(ctx context.Context, creds zoho.Credentials, payload zoho.ItemPayload) (*zoho.Item, error) {
	f.creates = append(f.creates, payload)
	return &zoho.Item{ItemID: "new-1", Name: payload.Name}, nil
}

func (f *fakeRemote) UpdateItem(ctx context.Context, creds zoho.Credentials, itemID string, payload zoho.ItemPayload) (*zoho.Item, error) {
	f.updates = append(f.updates, updateCall{Token: creds.AccessToken, ItemID: itemID, Payload: payload})
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &zoho.Item{ItemID: zoho.ID(itemID)}, nil
}

func (f *fakeRemote) ListOrganizations(ctx context.Context, accessToken string) ([]zoho.Organization, error) {
	return []zoho.Organization{{OrganizationID: "org-from-api"}}, nil
}

func (f *fakeRemote) Refresh(ctx context.Context, clientID, clientSecret, refreshToken string) (*oauth2.Token, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshTok, nil
}

func (f *fakeRemote) Exchange(ctx context.Context, clientID, clientSecret, code string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "exchanged", RefreshToken: "refresh-new", Expiry: time.Now().Add(time.Hour)}, nil
}

func (f *fakeRemote) AuthCodeURL(clientID, state string) string {
	return "https://accounts.example/auth?client_id=" + clientID + "&state=" + state
}

var adapterNow = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

type adapterFixture struct {
	conn    *gorm.DB
	remote  *fakeRemote
	adapter *Adapter
	users   *users.Repository
	items   items.Repository
	user    models.User
}

func strPtr(v string) *string { return &v }

func newAdapterFixture(t *testing.T, tokenExpiry time.Time) *adapterFixture {
	t.Helper()
	conn := dbtest.Open(t)
	user := dbtest.SeedUser(t, conn, func(u *models.User) {
		u.ZohoAccessToken = strPtr("stale-or-valid")
		u.ZohoRefreshToken = strPtr("refresh-1")
		u.ZohoOrganizationID = strPtr("org-1")
		u.ZohoTokenExpiresAt = &tokenExpiry
	})
	remote := &fakeRemote{refreshTok: &oauth2.Token{AccessToken: "fresh", Expiry: adapterNow.Add(time.Hour)}}
	usersRepo := users.NewRepository(conn)
	itemsRepo := items.NewRepository(conn)

	adapter, err := NewAdapter(AdapterParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Remote: remote,
		Users:  usersRepo,
		Items:  itemsRepo,
	})
	require.NoError(t, err)
	adapter.now = func() time.Time { return adapterNow }

	return &adapterFixture{conn: conn, remote: remote, adapter: adapter, users: usersRepo, items: itemsRepo, user: user}
}

func TestValidToken_UsesUnexpiredToken(t *testing.T) {
	f := newAdapterFixture(t, adapterNow.Add(time.Hour))
	token, ok := f.adapter.ValidToken(context.Background(), &f.user)
	require.True(t, ok)
	assert.Equal(t, "stale-or-valid", token)
	assert.Zero(t, f.remote.refreshCalls)
}

func TestValidToken_RefreshesExpiredTokenOnce(t *testing.T) {
	f := newAdapterFixture(t, adapterNow.Add(-time.Minute))

	token, ok := f.adapter.ValidToken(context.Background(), &f.user)
	require.True(t, ok)
	assert.Equal(t, "fresh", token)
	assert.Equal(t, 1, f.remote.refreshCalls)

	stored, err := f.users.FindByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh", *stored.ZohoAccessToken)
	assert.Equal(t, "refresh-1", *stored.ZohoRefreshToken)
}

func TestValidToken_RefreshFailureReturnsNoToken(t *testing.T) {
	f := newAdapterFixture(t, adapterNow.Add(-time.Minute))
	f.remote.refreshErr = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid_grant")

	token, ok := f.adapter.ValidToken(context.Background(), &f.user)
	assert.False(t, ok)
	assert.Empty(t, token)
	assert.Equal(t, 1, f.remote.refreshCalls)
}

func TestSetRemoteStatus_RetriesOnceAfterUnauthorized(t *testing.T) {
	f := newAdapterFixture(t, adapterNow.Add(time.Hour))
	unauthorized := pkgerrors.New(pkgerrors.CodeUnauthorized, "zoho update_item failed with status 401")
	f.remote.updateErrs = []error{unauthorized, nil}

	err := f.adapter.SetRemoteStatus(context.Background(), f.user.ID, "ext-1", enums.RemoteStatusInactive)
	require.NoError(t, err)
	require.Len(t, f.remote.updates, 2)
	assert.Equal(t, "stale-or-valid", f.remote.updates[0].Token)
	assert.Equal(t, "fresh", f.remote.updates[1].Token)
	assert.Equal(t, "inactive", f.remote.updates[1].Payload.Status)
	assert.Equal(t, 1, f.remote.refreshCalls)
}

func TestDeleteRemoteItem_GivesUpAfterSecondUnauthorized(t *testing.T) {
	f := newAdapterFixture(t, adapterNow.Add(time.Hour))
	unauthorized := pkgerrors.New(pkgerrors.CodeUnauthorized, "401")
	f.remote.updateErrs = []error{unauthorized, unauthorized, unauthorized}

	err := f.adapter.DeleteRemoteItem(context.Background(), f.user.ID, "ext-1")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Len(t, f.remote.updates, 2)
	assert.Equal(t, 1, f.remote.refreshCalls)
}

func TestCall_RequiresConnectedAccount(t *testing.T) {
	f := newAdapterFixture(t, adapterNow.Add(time.Hour))
	other := dbtest.SeedUser(t, f.conn)

	err := f.adapter.SetRemoteStatus(context.Background(), other.ID, "ext-1", enums.RemoteStatusActive)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotConnected))
	assert.Empty(t, f.remote.updates)
}

func TestCreateRemoteItem_ReactivatesInactiveMatch(t *testing.T) {
	f := newAdapterFixture(t, adapterNow.Add(time.Hour))
	f.remote.listFn = func(params zoho.ListItemsParams) ([]zoho.Item, error) {
		if params.Status == zoho.StatusInactive {
			return []zoho.Item{{ItemID: "old-7", Name: "milk", Status: zoho.StatusInactive}}, nil
		}
		return nil, nil
	}
	price := decimal.RequireFromString("1.99")
	item := models.Item{UserID: f.user.ID, Name: "Milk", Unit: "l", Quantity: decimal.NewFromInt(3), SellingPrice: &price, Status: enums.ItemStatusActive}

	id, err := f.adapter.CreateRemoteItem(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, "old-7", id)
	assert.Empty(t, f.remote.creates)
	require.Len(t, f.remote.updates, 1)
	assert.Equal(t, "active", f.remote.updates[0].Payload.Status)
	assert.True(t, f.remote.updates[0].Payload.Rate.Equal(price))
}

func TestCreateRemoteItem_LinksActiveMatch(t *testing.T) {
	f := newAdapterFixture(t, adapterNow.Add(time.Hour))
	f.remote.listFn = func(params zoho.ListItemsParams) ([]zoho.Item, error) {
		if params.Status == zoho.StatusActive {
			return []zoho.Item{{ItemID: "live-3", Name: "Milk"}}, nil
		}
		return nil, nil
	}

	id, err := f.adapter.CreateRemoteItem(context.Background(), models.Item{UserID: f.user.ID, Name: "Milk", Status: enums.ItemStatusExpiringSoon})
	require.NoError(t, err)
	assert.Equal(t, "live-3", id)
	assert.Empty(t, f.remote.creates)
	assert.Empty(t, f.remote.updates)
}

func TestCreateRemoteItem_CreatesWhenNoMatch(t *testing.T) {
	f := newAdapterFixture(t, adapterNow.Add(time.Hour))
	cost := decimal.RequireFromString("0.80")

	id, err := f.adapter.CreateRemoteItem(context.Background(), models.Item{
		UserID:    f.user.ID,
		Name:      "Bread",
		Quantity:  decimal.NewFromInt(5),
		CostPrice: &cost,
		Status:    enums.ItemStatusExpired,
	})
	require.NoError(t, err)
	assert.Equal(t, "new-1", id)
	require.Len(t, f.remote.creates, 1)
	created := f.remote.creates[0]
	assert.Equal(t, "inactive", created.Status)
	assert.Equal(t, "inventory", created.ItemType)
	require.NotNil(t, created.InitialStock)
	assert.True(t, created.InitialStock.Equal(decimal.NewFromInt(5)))
	assert.Nil(t, created.StockOnHand)
}

func TestSyncInventory_UpsertsAndSoftRemoves(t *testing.T) {
	f := newAdapterFixture(t, adapterNow.Add(time.Hour))
	ctx := context.Background()
	expiry := adapterNow.AddDate(0, 0, 60)

	existing := dbtest.SeedItem(t, f.conn, f.user.ID, func(i *models.Item) {
		i.Name = "Old name"
		i.ExternalID = strPtr("r-1")
	})
	vanished := dbtest.SeedItem(t, f.conn, f.user.ID, func(i *models.Item) {
		i.ExternalID = strPtr("r-gone")
		i.ExpiryDate = &expiry
		i.Status = enums.ItemStatusActive
	})
	expired := dbtest.SeedItem(t, f.conn, f.user.ID, func(i *models.Item) {
		i.ExternalID = strPtr("r-expired")
		i.Status = enums.ItemStatusExpired
	})
	pending := dbtest.SeedItem(t, f.conn, f.user.ID, func(i *models.Item) {
		i.ExternalID = strPtr("r-pending")
		i.Status = enums.ItemStatusPending
	})
	alreadyInactive := dbtest.SeedItem(t, f.conn, f.user.ID, func(i *models.Item) {
		i.ExternalID = strPtr("r-inactive")
		i.Status = enums.ItemStatusActive
		i.RemoteStatus = enums.RemoteStatusInactive
	})

	f.remote.listFn = func(params zoho.ListItemsParams) ([]zoho.Item, error) {
		return []zoho.Item{
			{ItemID: "r-1", Name: "Cheddar", Unit: "kg", StockOnHand: zoho.Amount{Decimal: decimal.NewFromInt(2)}},
			{ItemID: "r-2", Name: "Brie", Rate: zoho.Amount{Decimal: decimal.RequireFromString("4.50")}},
		}, nil
	}

	result, err := f.adapter.SyncInventory(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Fetched: 2, Created: 1, Updated: 1, Deactivated: 3}, result)

	updated, err := f.items.FindByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cheddar", updated.Name)
	assert.Equal(t, "kg", updated.Unit)

	created, err := f.items.FindByExternalID(ctx, "r-2")
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, created.UserID)
	assert.Equal(t, enums.ItemStatusPending, created.Status)

	gone, err := f.items.FindByID(ctx, vanished.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RemoteStatusInactive, gone.RemoteStatus)

	for _, id := range []uuid.UUID{expired.ID, pending.ID, alreadyInactive.ID} {
		item, err := f.items.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, enums.RemoteStatusInactive, item.RemoteStatus, *item.ExternalID)
	}
}

func TestSyncInventory_ListFailureIsReturned(t *testing.T) {
	f := newAdapterFixture(t, adapterNow.Add(time.Hour))
	f.remote.listFn = func(zoho.ListItemsParams) ([]zoho.Item, error) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("timeout"), "zoho list_items failed")
	}
	_, err := f.adapter.SyncInventory(context.Background(), f.user.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestConnectAccount(t *testing.T) {
	f := newAdapterFixture(t, adapterNow.Add(time.Hour))
	ctx := context.Background()
	fresh := dbtest.SeedUser(t, f.conn)

	url, err := f.adapter.AuthURL(ctx, fresh.ID, "state-9")
	require.NoError(t, err)
	assert.Contains(t, url, "state=state-9")

	require.NoError(t, f.adapter.ConnectAccount(ctx, fresh.ID, "code-1"))
	stored, err := f.users.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasRemoteAccount())
	assert.Equal(t, "org-from-api", *stored.ZohoOrganizationID)
	assert.Equal(t, "exchanged", *stored.ZohoAccessToken)

	err = f.adapter.ConnectAccount(ctx, fresh.ID, " ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNewAdapter_ValidatesDeps(t *testing.T) {
	_, err := NewAdapter(AdapterParams{})
	require.Error(t, err)
	_, err = NewAdapter(AdapterParams{Logger: logger.New(logger.Options{ServiceName: "test"})})
	require.Error(t, err)
}
