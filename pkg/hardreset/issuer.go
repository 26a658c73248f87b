// Package hardreset implements the two-phase confirmation flow for the most
// destructive toolkit commands. Phase 1 issues a short-lived bearer token;
// phase 2 (the destructive call) must present the token plus the
// human-entered acknowledgment literal. Tokens are checked, never consumed;
// expiry is the only invalidation.
package hardreset

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// TokenPrefix namespaces hard-reset tokens so they are recognizable in logs
// that failed to scrub them (and can be rotated by bumping the version).
const TokenPrefix = "RTH"

// DefaultTTL is the confirmation window. Minutes, not hours: the token
// exists to prove a human asked for this run, not to be stockpiled.
const DefaultTTL = 10 * time.Minute

// ErrRejected is the only validation failure ever surfaced. Unknown,
// expired, malformed and wrong-tenant tokens are indistinguishable to the
// caller so a probing script learns nothing about why.
var ErrRejected = errors.New("hard-reset confirmation rejected")

// Token is the issued confirmation credential.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store persists issued tokens for later validation. Implementations must
// treat expiry as authoritative; a Get after ExpiresAt may or may not still
// find the entry.
type Store interface {
	Put(ctx context.Context, token, tenantID string, expiresAt time.Time) error
	Get(ctx context.Context, token string) (tenantID string, expiresAt time.Time, found bool, err error)
}

// Clock abstracts time for deterministic expiry tests.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

// Issuer issues and validates hard-reset tokens. The second token segment is
// random; the third is an HMAC tag binding the token to the tenant it was
// issued for, keyed by an HKDF derivation of the toolkit secret. A token
// replayed against a different tenant fails before the store is consulted.
type Issuer struct {
	store   Store
	ttl     time.Duration
	hmacKey []byte
	clock   Clock
}

// NewIssuer derives the binding key from secret and returns an issuer over
// the given store. A non-positive ttl falls back to DefaultTTL.
func NewIssuer(store Store, secret string, ttl time.Duration) (*Issuer, error) {
	if store == nil {
		return nil, errors.New("hardreset: store is required")
	}
	if secret == "" {
		return nil, errors.New("hardreset: secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("opskit/hard-reset-token/v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("hardreset: key derivation failed: %w", err)
	}

	return &Issuer{store: store, ttl: ttl, hmacKey: key, clock: wallClock{}}, nil
}

// WithClock injects a test clock.
func (i *Issuer) WithClock(c Clock) *Issuer {
	if c != nil {
		i.clock = c
	}
	return i
}

// TTL returns the configured confirmation window.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue creates a fresh token for tenantID. Every call yields a distinct
// token; previously issued tokens stay valid until their own expiry.
func (i *Issuer) Issue(ctx context.Context, tenantID string) (*Token, error) {
	if tenantID == "" {
		return nil, errors.New("hardreset: tenant id is required")
	}

	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("hardreset: entropy unavailable: %w", err)
	}
	random := hex.EncodeToString(raw)

	token := fmt.Sprintf("%s.%s.%s", TokenPrefix, random, i.tag(tenantID, random))
	expiresAt := i.clock.Now().Add(i.ttl)

	if err := i.store.Put(ctx, token, tenantID, expiresAt); err != nil {
		return nil, fmt.Errorf("hardreset: store put failed: %w", err)
	}
	return &Token{Token: token, ExpiresAt: expiresAt}, nil
}

// Validate checks token for tenantID. Any failure returns ErrRejected.
func (i *Issuer) Validate(ctx context.Context, tenantID, token string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] != TokenPrefix {
		return ErrRejected
	}
	if !hmac.Equal([]byte(parts[2]), []byte(i.tag(tenantID, parts[1]))) {
		return ErrRejected
	}

	storedTenant, expiresAt, found, err := i.store.Get(ctx, token)
	if err != nil || !found {
		return ErrRejected
	}
	if storedTenant != tenantID {
		return ErrRejected
	}
	if !i.clock.Now().Before(expiresAt) {
		return ErrRejected
	}
	return nil
}

func (i *Issuer) tag(tenantID, random string) string {
	mac := hmac.New(sha256.New, i.hmacKey)
	mac.Write([]byte(tenantID))
	mac.Write([]byte{'.'})
	mac.Write([]byte(random))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}
