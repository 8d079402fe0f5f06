// Package authorization verifies billing authorization events. An event is a
// compact HS256 JWT signed with the shared secret of the billing provider.
package authorization

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// EventType is the only event that triggers a dispatch.
const EventType = "setup_intent.succeeded"

var ErrUnverifiedEvent = errors.New("unverified authorization event")

// EventClaims is the payload of an authorization event.
type EventClaims struct {
	Type  string `json:"typ"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Event is a verified authorization event.
type Event struct {
	ID       string
	Type     string
	Email    string
	IssuedAt time.Time
}

type Verifier struct {
	secret []byte
	maxAge time.Duration
	guard  ReplayGuard
	now    func() time.Time
}

func NewVerifier(secret string, maxAge time.Duration, guard ReplayGuard) *Verifier {
	return &Verifier{secret: []byte(secret), maxAge: maxAge, guard: guard, now: time.Now}
}

// Verify checks signature, type, freshness and uniqueness of the event.
// Every failure wraps ErrUnverifiedEvent.
func (v *Verifier) Verify(ctx context.Context, token string) (Event, error) {
	var claims EventClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuedAt(), jwt.WithTimeFunc(v.now))
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrUnverifiedEvent, err)
	}
	if claims.Type != EventType {
		return Event{}, fmt.Errorf("%w: type %q", ErrUnverifiedEvent, claims.Type)
	}
	if claims.ID == "" || claims.IssuedAt == nil {
		return Event{}, fmt.Errorf("%w: missing jti or iat", ErrUnverifiedEvent)
	}
	issued := claims.IssuedAt.Time
	if v.now().Sub(issued) > v.maxAge {
		return Event{}, fmt.Errorf("%w: issued %s", ErrUnverifiedEvent, issued.Format(time.RFC3339))
	}
	first, err := v.guard.Claim(ctx, claims.ID, 2*v.maxAge)
	if err != nil {
		return Event{}, fmt.Errorf("%w: replay guard: %v", ErrUnverifiedEvent, err)
	}
	if !first {
		return Event{}, fmt.Errorf("%w: replayed %s", ErrUnverifiedEvent, claims.ID)
	}
	return Event{ID: claims.ID, Type: claims.Type, Email: claims.Email, IssuedAt: issued}, nil
}

// Sign issues an event token. Used by tests and the billing simulator.
func Sign(secret string, claims EventClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
