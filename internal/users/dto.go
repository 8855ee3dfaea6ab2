package users

import "time"

// TokenUpdate carries the result of a refresh or authorization-code exchange.
// A nil RefreshToken keeps the stored value.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken *string
	ExpiresAt    time.Time
}

// Connection is the credential bundle written when a user links a remote
// inventory account.
type Connection struct {
	ClientID       string
	ClientSecret   string
	OrganizationID string
	Token          TokenUpdate
}
