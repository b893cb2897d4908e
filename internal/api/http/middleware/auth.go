package middleware

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/karsaz_backend/internal/service/auth"
	pasetotoken "github.com/Alijeyrad/karsaz_backend/pkg/paseto"
	"github.com/Alijeyrad/karsaz_backend/pkg/reqctx"
)

// SessionStore is the slice of *redis.Client the bearer check needs.
type SessionStore interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthRequired admits requests carrying a valid PASETO access token whose
// session is still live. Claims land in c.Locals(pasetotoken.CtxKeyClaims)
// and in the request context.
//
// A session store outage answers 503 rather than 401 so clients do not
// drop a good token.
func AuthRequired(mgr *pasetotoken.Manager, sessions SessionStore) fiber.Handler {
	return func(c fiber.Ctx) error {
		token, found := pasetotoken.BearerToken(c)
		if !found {
			return fiber.ErrUnauthorized
		}

		claims, err := mgr.Verify(token)
		if err != nil || claims.Type != pasetotoken.TokenTypeAccess || claims.SessionID == nil {
			return fiber.ErrUnauthorized
		}

		n, err := sessions.Exists(c.Context(), auth.SessionKey(*claims.SessionID)).Result()
		switch {
		case err != nil:
			slog.ErrorContext(c.Context(), "session lookup failed", "session_id", claims.SessionID, "error", err)
			return fiber.ErrServiceUnavailable
		case n == 0:
			return fiber.ErrUnauthorized
		}

		c.Locals(pasetotoken.CtxKeyClaims, claims)
		c.SetContext(reqctx.WithClaims(c.Context(), claims))
		return c.Next()
	}
}
