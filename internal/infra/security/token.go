package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avelko/account-iam/internal/core/domain"
)

// DefaultTokenTTL applies when neither configuration nor the caller supply
// an expiry.
const DefaultTokenTTL = 1800 * time.Second

// TokenPayload is the subject a verified token binds.
type TokenPayload struct {
	ID   int64
	Kind domain.AccountKind
}

type tokenClaims struct {
	AccountID int64  `json:"id"`
	Kind      string `json:"type"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies signed, time-limited bearer tokens carrying
// an account id and principal kind. It is stateless: validity is entirely a
// function of signature and expiry.
type TokenCodec struct {
	keys       KeyProvider
	kid        string
	issuer     string
	defaultTTL time.Duration
	now        func() time.Time
}

// NewTokenCodec constructs a codec signing with the provider's active key.
func NewTokenCodec(keys KeyProvider, kid, issuer string, defaultTTL time.Duration) *TokenCodec {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTokenTTL
	}
	return &TokenCodec{
		keys:       keys,
		kid:        kid,
		issuer:     issuer,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// WithClock overrides the codec clock, for tests.
func (c *TokenCodec) WithClock(clock func() time.Time) *TokenCodec {
	if clock != nil {
		c.now = clock
	}
	return c
}

// Issue signs a token embedding the account id and kind, expiring after ttl.
// A non-positive ttl falls back to the configured default.
func (c *TokenCodec) Issue(id int64, kind domain.AccountKind, ttl time.Duration) (string, error) {
	if id <= 0 {
		return "", fmt.Errorf("account id is required")
	}
	if !kind.Valid() {
		return "", fmt.Errorf("unknown principal kind %q", kind)
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	now := c.now().UTC()
	claims := tokenClaims{
		AccountID: id,
		Kind:      string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = c.kid

	signingKey, err := c.keys.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("get signing key: %w", err)
	}

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify returns the embedded payload when the signature is valid and the
// token has not expired. The second return value is false on any failure;
// callers cannot distinguish an expired token from a tampered one.
func (c *TokenCodec) Verify(token string) (*TokenPayload, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, false
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}

		kid, ok := t.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid header not found")
		}

		return c.keys.GetVerificationKey(kid)
	}, jwt.WithTimeFunc(func() time.Time { return c.now() }), jwt.WithExpirationRequired())
	if err != nil || parsed == nil || !parsed.Valid {
		return nil, false
	}

	kind := domain.AccountKind(claims.Kind)
	if claims.AccountID <= 0 || !kind.Valid() {
		return nil, false
	}

	return &TokenPayload{ID: claims.AccountID, Kind: kind}, true
}
