// Package zoho is a thin HTTP/JSON client for the remote inventory API and its
// OAuth2 token endpoint.
package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/angelmondragon/expiry-tracker/pkg/config"
	pkgerrors "github.com/angelmondragon/expiry-tracker/pkg/errors"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
)

const (
	defaultTimeout = 20 * time.Second
	maxBodyLog     = 2048
	maxListPages   = 50
)

var (
	errLoggerRequired  = errors.New("zoho logger is required")
	errBaseURLRequired = errors.New("zoho api base url is required")
)

// Credentials authorise a single API call.
type Credentials struct {
	AccessToken    string
	OrganizationID string
}

// ListItemsParams filters the items listing.
type ListItemsParams struct {
	Status string
	Name   string
}

// Client exposes the remote inventory endpoints with centralized logging and
// error mapping.
type Client struct {
	http        *http.Client
	baseURL     string
	accountsURL string
	clientID    string
	secret      string
	redirectURL string
	scopes      []string
	timeout     time.Duration
	logger      *logger.Logger
}

// NewClient validates cfg and builds a client. httpClient may be nil.
func NewClient(cfg config.ZohoConfig, httpClient *http.Client, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if base == "" {
		return nil, errBaseURLRequired
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:        httpClient,
		baseURL:     base,
		accountsURL: strings.TrimRight(strings.TrimSpace(cfg.AccountsURL), "/"),
		clientID:    cfg.ClientID,
		secret:      cfg.ClientSecret,
		redirectURL: cfg.RedirectURL,
		scopes:      cfg.Scopes,
		timeout:     timeout,
		logger:      logg,
	}, nil
}

// OAuthConfig returns the OAuth2 settings. Per-user client credentials
// override the configured ones when set.
func (c *Client) OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	if strings.TrimSpace(clientID) == "" {
		clientID = c.clientID
	}
	if strings.TrimSpace(clientSecret) == "" {
		clientSecret = c.secret
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  c.redirectURL,
		Scopes:       c.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.accountsURL + "/oauth/v2/auth",
			TokenURL:  c.accountsURL + "/oauth/v2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL builds the consent URL for an offline grant.
func (c *Client) AuthCodeURL(clientID, state string) string {
	return c.OAuthConfig(clientID, "").AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for a token.
func (c *Client) Exchange(ctx context.Context, clientID, clientSecret, code string) (*oauth2.Token, error) {
	ctx, cancel := c.oauthContext(ctx)
	defer cancel()

	c.log(ctx, "request", "exchange_code", nil)
	tok, err := c.OAuthConfig(clientID, clientSecret).Exchange(ctx, code)
	if err != nil {
		c.log(ctx, "error", "exchange_code", map[string]any{"error": err.Error()})
		return nil, mapOAuthError(err, "exchange code")
	}
	c.log(ctx, "response", "exchange_code", map[string]any{"expiry": tok.Expiry})
	return tok, nil
}

// Refresh performs one refresh-token grant.
func (c *Client) Refresh(ctx context.Context, clientID, clientSecret, refreshToken string) (*oauth2.Token, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotConnected, "refresh token missing")
	}
	ctx, cancel := c.oauthContext(ctx)
	defer cancel()

	c.log(ctx, "request", "refresh_token", nil)
	src := c.OAuthConfig(clientID, clientSecret).TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		c.log(ctx, "error", "refresh_token", map[string]any{"error": err.Error()})
		return nil, mapOAuthError(err, "refresh token")
	}
	c.log(ctx, "response", "refresh_token", map[string]any{"expiry": tok.Expiry})
	return tok, nil
}

// ListItems returns every item matching params, following pagination. A
// listing longer than maxListPages fails rather than returning a partial set.
func (c *Client) ListItems(ctx context.Context, creds Credentials, params ListItemsParams) ([]Item, error) {
	var out []Item
	for page := 1; ; page++ {
		query := url.Values{}
		if params.Status != "" {
			query.Set("status", params.Status)
		}
		if params.Name != "" {
			query.Set("name", params.Name)
		}
		query.Set("page", strconv.Itoa(page))

		var resp listItemsResponse
		if err := c.do(ctx, creds, http.MethodGet, "/items", query, nil, &resp, "list_items"); err != nil {
			return nil, err
		}
		out = append(out, resp.Items...)
		if !resp.PageContext.HasMorePage {
			return out, nil
		}
		if page >= maxListPages {
			return nil, pkgerrors.New(pkgerrors.CodeDependency,
				fmt.Sprintf("remote item listing exceeds %d pages", maxListPages)).
				WithDetails(map[string]any{"pages": page, "fetched": len(out)})
		}
	}
}

// CreateItem posts a new item.
func (c *Client) CreateItem(ctx context.Context, creds Credentials, payload ItemPayload) (*Item, error) {
	var resp itemResponse
	if err := c.do(ctx, creds, http.MethodPost, "/items", nil, payload, &resp, "create_item"); err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// UpdateItem replaces the fields set in payload.
func (c *Client) UpdateItem(ctx context.Context, creds Credentials, itemID string, payload ItemPayload) (*Item, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remote item id required")
	}
	var resp itemResponse
	path := "/items/" + url.PathEscape(itemID)
	if err := c.do(ctx, creds, http.MethodPut, path, nil, payload, &resp, "update_item"); err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// ListOrganizations returns the organizations visible to accessToken.
func (c *Client) ListOrganizations(ctx context.Context, accessToken string) ([]Organization, error) {
	var resp organizationsResponse
	creds := Credentials{AccessToken: accessToken}
	if err := c.do(ctx, creds, http.MethodGet, "/organizations", nil, nil, &resp, "list_organizations"); err != nil {
		return nil, err
	}
	return resp.Organizations, nil
}

func (c *Client) do(ctx context.Context, creds Credentials, method, path string, query url.Values, body, dest any, op string) error {
	if strings.TrimSpace(creds.AccessToken) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "access token required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if query == nil {
		query = url.Values{}
	}
	if creds.OrganizationID != "" {
		query.Set("organization_id", creds.OrganizationID)
	}
	endpoint := c.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("zoho %s: encode body", op))
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("zoho %s: build request", op))
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+creds.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log(ctx, "request", op, map[string]any{"method": method, "path": path})
	resp, err := c.http.Do(req)
	if err != nil {
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("zoho %s failed", op))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("zoho %s: read body", op))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log(ctx, "error", op, map[string]any{
			"status_code": resp.StatusCode,
			"body":        truncate(string(raw), maxBodyLog),
			"error":       resp.Status,
		})
		return pkgerrors.New(domainCodeForStatus(resp.StatusCode), fmt.Sprintf("zoho %s failed with status %d", op, resp.StatusCode)).
			WithDetails(map[string]any{"status_code": resp.StatusCode})
	}

	if dest != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, dest); err != nil {
			c.log(ctx, "error", op, map[string]any{"error": err.Error(), "body": truncate(string(raw), maxBodyLog)})
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("zoho %s: malformed payload", op))
		}
	}
	c.log(ctx, "response", op, map[string]any{"status_code": resp.StatusCode})
	return nil
}

func (c *Client) oauthContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("zoho %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Debug(ctx, fmt.Sprintf("zoho %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "code", "email", "authorization"} {
		if strings.Contains(lower, sensitive) && lower != "status_code" {
			return "[REDACTED]"
		}
	}
	return value
}

func mapOAuthError(err error, op string) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		code := domainCodeForStatus(retrieveErr.Response.StatusCode)
		if code == pkgerrors.CodeValidation {
			// invalid_grant and friends: the stored grant is no longer usable
			code = pkgerrors.CodeUnauthorized
		}
		return pkgerrors.Wrap(code, err, fmt.Sprintf("zoho %s failed", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("zoho %s failed", op))
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeStateConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
