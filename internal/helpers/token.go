package helpers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "repairhub"

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenManager mints HS256 session tokens and verifies them. When a JWKS
// endpoint is loaded it also accepts RS256 admin tokens signed by that
// provider.
type TokenManager struct {
	secret []byte
	expiry time.Duration
	jwks   *keyfunc.JWKS
	now    func() time.Time
}

func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

// LoadJWKS fetches the remote key set. Keys are refreshed in the background
// until ctx is cancelled or Close is called.
func (tm *TokenManager) LoadJWKS(ctx context.Context, jwksURL string) error {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return fmt.Errorf("failed to load JWKS from %s: %w", jwksURL, err)
	}
	tm.jwks = jwks
	return nil
}

func (tm *TokenManager) Close() {
	if tm.jwks != nil {
		tm.jwks.EndBackground()
	}
}

func (tm *TokenManager) Expiry() time.Duration {
	return tm.expiry
}

func (tm *TokenManager) Issue(userID, email, role string) (string, time.Time, error) {
	if !ValidRole(role) {
		return "", time.Time{}, fmt.Errorf("unknown role %q", role)
	}
	now := tm.now()
	expiresAt := now.Add(tm.expiry)
	claims := SessionClaims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (tm *TokenManager) Validate(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, tm.keyFunc,
		jwt.WithValidMethods([]string{"HS256", "RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	if _, external := token.Method.(*jwt.SigningMethodRSA); external {
		if !slices.Contains(claims.AppMetadata.Roles, RoleAdmin) {
			return nil, fmt.Errorf("%w: external token without admin role", ErrInvalidToken)
		}
		claims.Role = RoleAdmin
	}
	if !ValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: unknown role", ErrInvalidToken)
	}
	return claims, nil
}

func (tm *TokenManager) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		return tm.secret, nil
	case *jwt.SigningMethodRSA:
		if tm.jwks == nil {
			return nil, errors.New("no key set configured for RS256 tokens")
		}
		return tm.jwks.Keyfunc(token)
	}
	return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
}
