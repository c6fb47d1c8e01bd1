// Package identity resolves the employee acting on a request.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const EmployeeHeader = "X-Employee"

type actorKey struct{}

// Actor returns the employee recorded on ctx, or "" when none was resolved.
func Actor(ctx context.Context) string {
	a, _ := ctx.Value(actorKey{}).(string)
	return a
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Middleware resolves the actor. With a secret it requires an HS256 bearer
// token and takes the actor from the subject claim. Without one it trusts the
// X-Employee header.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				actor := strings.TrimSpace(r.Header.Get(EmployeeHeader))
				next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))

				return
			}

			actor, err := fromBearer(r.Header.Get("Authorization"), secret)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func fromBearer(authz, secret string) (string, error) {
	if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
		return "", errors.New("missing bearer token")
	}

	raw := strings.TrimSpace(authz[len("Bearer "):])

	claims := &jwt.RegisteredClaims{}

	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	if !tok.Valid || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}

	return claims.Subject, nil
}
