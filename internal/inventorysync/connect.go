package inventorysync

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/expiry-tracker/internal/users"
	pkgerrors "github.com/angelmondragon/expiry-tracker/pkg/errors"
)

// AuthURL returns the consent URL for userID. state is echoed back on the
// callback.
func (a *Adapter) AuthURL(ctx context.Context, userID uuid.UUID, state string) (string, error) {
	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return a.remote.AuthCodeURL(stringValue(user.ZohoClientID), state), nil
}

// ConnectAccount exchanges an authorization code and stores the resulting
// credential bundle. The organization lookup is best-effort.
func (a *Adapter) ConnectAccount(ctx context.Context, userID uuid.UUID, code string) error {
	if strings.TrimSpace(code) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "authorization code required")
	}
	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	ctx = a.logg.WithUserID(ctx, user.ID.String())
	clientID := stringValue(user.ZohoClientID)
	secret := stringValue(user.ZohoClientSecret)

	tok, err := a.remote.Exchange(ctx, clientID, secret, code)
	a.metrics.ObserveRemoteCall("exchange_code", err == nil)
	if err != nil {
		return err
	}

	orgID := stringValue(user.ZohoOrganizationID)
	orgs, err := a.remote.ListOrganizations(ctx, tok.AccessToken)
	switch {
	case err != nil:
		a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), "organization lookup failed")
	case len(orgs) > 0:
		orgID = string(orgs[0].OrganizationID)
	}

	conn := users.Connection{
		ClientID:       clientID,
		ClientSecret:   secret,
		OrganizationID: orgID,
		Token: users.TokenUpdate{
			AccessToken: tok.AccessToken,
			ExpiresAt:   tok.Expiry,
		},
	}
	if tok.RefreshToken != "" {
		refresh := tok.RefreshToken
		conn.Token.RefreshToken = &refresh
	}
	if err := a.users.SaveConnection(ctx, user.ID, conn); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save inventory connection")
	}
	a.logg.Info(ctx, "inventory account connected")
	return nil
}
