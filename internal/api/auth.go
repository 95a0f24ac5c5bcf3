package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/albapepper/execassist/internal/api/respond"
	"github.com/albapepper/execassist/internal/models"
)

// Claims are the bearer token claims. Subject carries the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	UserID int64
	Role   string
}

type principalKey struct{}

// PrincipalFrom returns the caller stored by RequireRole.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret          []byte
	bootstrapUserID int64
}

// NewAuthenticator creates an authenticator. bootstrapUserID, when non-zero,
// is treated as an admin whatever role its token carries.
func NewAuthenticator(secret string, bootstrapUserID int64) *Authenticator {
	return &Authenticator{secret: []byte(secret), bootstrapUserID: bootstrapUserID}
}

// IssueToken signs a token for userID with the given role.
func (a *Authenticator) IssueToken(userID int64, role string, ttl time.Duration, now time.Time) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("AUTH_JWT_SECRET is not set")
	}
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate parses the bearer token on r.
func (a *Authenticator) Authenticate(r *http.Request) (Principal, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return Principal{}, errors.New("missing bearer token")
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, fmt.Errorf("parse token: %w", err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	p := Principal{UserID: id, Role: claims.Role}
	if a.bootstrapUserID != 0 && id == a.bootstrapUserID {
		p.Role = models.RoleAdmin
	}
	return p, nil
}

// RequireRole rejects requests whose token does not carry role. With no
// secret configured every request is refused.
func (a *Authenticator) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(a.secret) == 0 {
				respond.WriteError(w, http.StatusServiceUnavailable, "AUTH_DISABLED", "Admin API is not configured")
				return
			}
			p, err := a.Authenticate(r)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="execassist"`)
				respond.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing token")
				return
			}
			if p.Role != role {
				respond.WriteError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient role")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
		})
	}
}
