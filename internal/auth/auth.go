// Package auth resolves the calling user from a bearer token issued by the
// external authentication backend.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"financeiro/internal/core"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type contextKey struct{}

// Verifier validates HS256 tokens. The subject claim is the user id.
type Verifier struct {
	secret []byte
	issuer string
	// devUser is used when no secret is configured.
	devUser core.ID
}

func NewVerifier(secret, issuer string, devUser core.ID) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, devUser: devUser}
}

// Enabled reports whether tokens are checked at all.
func (v *Verifier) Enabled() bool { return len(v.secret) > 0 }

// Parse validates tokenString and returns its subject.
func (v *Verifier) Parse(tokenString string) (core.ID, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	return core.ID(claims.Subject), nil
}

// Issue signs a token for userID. Used by tests and local tooling; real
// tokens come from the authentication backend.
func (v *Verifier) Issue(userID core.ID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   string(userID),
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Resolve extracts the user of r. Without a configured secret the dev user
// is returned, which may be empty.
func (v *Verifier) Resolve(r *http.Request) (core.ID, error) {
	if !v.Enabled() {
		return v.devUser, nil
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return v.Parse(strings.TrimSpace(token))
}

// Middleware stores the resolved user in the request context. Requests
// without a valid identity continue with an empty user; the services layer
// rejects them.
func (v *Verifier) Middleware(onError func(*http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := v.Resolve(r)
			if err != nil && onError != nil {
				onError(r, err)
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

func WithUser(ctx context.Context, userID core.ID) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the user stored by Middleware, or "".
func UserID(ctx context.Context) core.ID {
	id, _ := ctx.Value(contextKey{}).(core.ID)
	return id
}
