package devserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type contextKey string

const userIDKey contextKey = "userID"

// Auth is the bearer-token middleware for the protected operations. Failures
// answer in the service's envelope shape, not huma's problem format, so
// clients see the same wire behavior as against the real service.
type Auth struct {
	store *Store
	log   *slog.Logger
}

func NewAuth(store *Store, log *slog.Logger) *Auth {
	return &Auth{
		store: store,
		log:   log.With("component", "auth middleware"),
	}
}

func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token := ctx.Header("Authorization")

		if len(token) < 7 || token[:7] != "Bearer " {
			a.reject(ctx, "Missing authentication")
			return
		}

		userID, err := a.store.ValidateToken(token[7:])
		if err != nil {
			a.log.Info("rejected token", "error", err)
			a.reject(ctx, "Invalid token")
			return
		}

		next(huma.WithContext(ctx, context.WithValue(ctx.Context(), userIDKey, userID)))
	}
}

func (a *Auth) reject(ctx huma.Context, message string) {
	ctx.SetStatus(http.StatusUnauthorized)
	ctx.SetHeader("Content-Type", "application/json")
	if err := json.NewEncoder(ctx.BodyWriter()).Encode(errorEnvelope(message)); err != nil {
		a.log.Error("encode auth rejection", "error", err)
	}
}

func userIDFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}
