// Package credential is the typed form of a user's durable mailbox
// authorization: an OAuth2 access/refresh token pair plus the client
// settings needed to refresh it.
package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// GoogleTokenURI is the default token endpoint for mailbox credentials.
const GoogleTokenURI = "https://oauth2.googleapis.com/token"

var (
	ErrInvalid = errors.New("invalid credential")
	ErrRefresh = errors.New("credential refresh failed")
)

type Credential struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	TokenURI     string    `json:"token_uri"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	Scopes       []string  `json:"scopes,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Validate checks that the credential can be refreshed.
func (c Credential) Validate() error {
	if c.RefreshToken == "" {
		return fmt.Errorf("%w: missing refresh token", ErrInvalid)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%w: missing client id", ErrInvalid)
	}
	u, err := url.Parse(c.TokenURI)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: bad token uri %q", ErrInvalid, c.TokenURI)
	}
	return nil
}

// WithDefaults fills the empty client settings of c from d.
func (c Credential) WithDefaults(d Credential) Credential {
	if c.TokenURI == "" {
		c.TokenURI = d.TokenURI
	}
	if c.ClientID == "" {
		c.ClientID = d.ClientID
	}
	if c.ClientSecret == "" {
		c.ClientSecret = d.ClientSecret
	}
	if len(c.Scopes) == 0 {
		c.Scopes = d.Scopes
	}
	return c
}

func (c Credential) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: c.TokenURI},
		Scopes:       c.Scopes,
	}
}

func (c Credential) token() *oauth2.Token {
	return &oauth2.Token{AccessToken: c.Token, RefreshToken: c.RefreshToken, Expiry: c.Expiry, TokenType: "Bearer"}
}

// Refresh exchanges the refresh token for a fresh access token, whatever the
// current expiry says. A rotated refresh token replaces the old one.
func (c Credential) Refresh(ctx context.Context) (Credential, error) {
	if err := c.Validate(); err != nil {
		return Credential{}, err
	}
	stale := c.token()
	stale.AccessToken = ""
	tok, err := c.config().TokenSource(ctx, stale).Token()
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrRefresh, err)
	}
	out := c
	out.Token = tok.AccessToken
	out.Expiry = tok.Expiry
	if tok.RefreshToken != "" {
		out.RefreshToken = tok.RefreshToken
	}
	return out, nil
}

// HTTPClient returns a client authorizing requests with this credential and
// refreshing it transparently when it expires.
func (c Credential) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, c.config().TokenSource(ctx, c.token()))
}
