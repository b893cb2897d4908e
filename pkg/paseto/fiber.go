package pasetotoken

import (
	"strings"

	"github.com/gofiber/fiber/v3"
)

// CtxKeyClaims is the fiber locals key the auth middleware stores *Claims under.
const CtxKeyClaims = "auth.claims"

// BearerToken returns the token from an "Authorization: Bearer <token>" header.
func BearerToken(c fiber.Ctx) (string, bool) {
	scheme, token, found := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func ClaimsFromFiber(c fiber.Ctx) (*Claims, bool) {
	cl, ok := c.Locals(CtxKeyClaims).(*Claims)
	return cl, ok && cl != nil
}
