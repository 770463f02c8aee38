// internal/auth/bearer.go
//
// Bearer-token identity middleware.
//
// Context
// -------
// Tokens are HS256 JWTs signed with the shared `auth.jwt_secret`.  The
// subject claim is the user id; the tenant id lives in a configurable
// claim (`tenant_id` by default).
//
// A missing, malformed, expired, or wrongly signed token leaves the request
// anonymous.  Anonymous callers are routed to the default database, so no
// request is rejected here.

package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Bearer returns middleware that verifies the Authorization header and
// attaches the resulting Identity.
func Bearer(secret []byte, tenantClaim string) func(http.Handler) http.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			id, err := parse(parser, secret, tenantClaim, raw)
			if err != nil {
				zap.L().Debug("bearer token rejected", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Sign issues a token for id that expires after ttl.  Used by tests and
// operator tooling.
func Sign(secret []byte, tenantClaim string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": id.UserID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if id.TenantID != "" {
		claims[tenantClaim] = id.TenantID
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parse(p *jwt.Parser, secret []byte, tenantClaim, raw string) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := p.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return Identity{}, err
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return Identity{}, err
	}
	var tenant string
	if v, ok := claims[tenantClaim]; ok {
		s, ok := v.(string)
		if !ok {
			return Identity{}, fmt.Errorf("claim %q is not a string", tenantClaim)
		}
		tenant = s
	}
	return Identity{UserID: sub, TenantID: tenant}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || tok == "" {
		return "", false
	}
	return strings.TrimSpace(tok), true
}
