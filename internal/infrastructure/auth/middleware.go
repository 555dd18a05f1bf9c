package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mkasongo/kembo-wallet/internal/infrastructure/redis"
)

type contextKey string

const accountIDKey contextKey = "account_id"

// CallerID extracts the authenticated account id from the request
// context. Empty when the request did not pass AuthMiddleware.
func CallerID(ctx context.Context) string {
	id, _ := ctx.Value(accountIDKey).(string)
	return id
}

// AuthMiddleware validates the bearer token and checks it against the
// cached session token before admitting the request.
func AuthMiddleware(redisClient redis.RedisClient, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			accountID, err := ParseToken(tokenString, jwtSecret)
			if err != nil {
				slog.Warn("token validation failed", "error", err)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			cached, err := redisClient.Get(r.Context(), fmt.Sprintf("account:%s:token", accountID))
			if err != nil || cached != tokenString {
				slog.Warn("session token mismatch", "account_id", accountID)
				http.Error(w, "session expired", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithCaller injects an account id into the context. Used by tests and
// in-process callers that bypass HTTP.
func WithCaller(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}
