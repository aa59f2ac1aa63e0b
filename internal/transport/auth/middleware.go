package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"microfinance-reports/internal/domain"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

// TokenFinder resolves a plain bearer token. Both the Postgres repository and
// the in-memory store implement it.
type TokenFinder interface {
	FindTokenByPlainToken(ctx context.Context, plainToken string) (*domain.PersonalAccessToken, error)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Authenticate returns the user owning the request's bearer token. Only the
// Authorization header is read.
func Authenticate(r *http.Request, tokens TokenFinder) (*domain.PersonalAccessToken, error) {
	return authenticate(r.Context(), tokens, bearerToken(r))
}

// AuthenticateWebSocket also accepts the token query parameter, since browser
// websocket clients cannot set headers. The header wins when both are valid.
func AuthenticateWebSocket(r *http.Request, tokens TokenFinder) (*domain.PersonalAccessToken, error) {
	return authenticate(r.Context(), tokens, bearerToken(r), r.URL.Query().Get("token"))
}

func authenticate(ctx context.Context, tokens TokenFinder, candidates ...string) (*domain.PersonalAccessToken, error) {
	for _, plain := range candidates {
		if plain == "" {
			continue
		}
		pat, err := tokens.FindTokenByPlainToken(ctx, plain)
		if err != nil {
			continue
		}
		if pat.ExpiresAt != nil && pat.ExpiresAt.Before(time.Now()) {
			return nil, errTokenExpired
		}
		return pat, nil
	}
	return nil, domain.ErrTokenNotFound
}

var errTokenExpired = errors.New("token expired")

func SanctumMiddleware(tokens TokenFinder, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pat, err := Authenticate(r, tokens)
			if err != nil {
				log.Debug("request rejected",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote", r.RemoteAddr),
					zap.Error(err),
				)
				msg := "Unauthorized"
				if errors.Is(err, errTokenExpired) {
					msg = "Token expired"
				}
				unauthorized(w, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), pat.UserID)))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error_code": http.StatusUnauthorized,
		"status":     "error",
		"message":    message,
		"data":       nil,
	})
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	if !ok {
		return 0, errors.New("userID not found in context")
	}
	return userID, nil
}
