package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/faith-connect/faith_connect/internal/identity"
)

// AuthMiddleware holds the handlers placed in front of the auth endpoints.
type AuthMiddleware struct {
	// RateLimit guards the endpoints that send a code.
	RateLimit fiber.Handler
	// RequireUser authenticates the bearer token.
	RequireUser fiber.Handler
}

// RegisterAuthRoutes wires the /auth endpoints. Paths keep their trailing
// slash, as the web client calls them.
func RegisterAuthRoutes(r fiber.Router, h *identity.Handler, mw AuthMiddleware) {
	group := r.Group("/auth")

	limited := func(handler fiber.Handler) []fiber.Handler {
		if mw.RateLimit == nil {
			return []fiber.Handler{handler}
		}
		return []fiber.Handler{mw.RateLimit, handler}
	}
	group.Post("/login/", limited(h.Login)...)
	group.Post("/signup/", limited(h.Signup)...)
	group.Post("/resend-otp/", limited(h.ResendOTP)...)
	group.Post("/verify-otp/", h.VerifyOTP)
	group.Post("/token/refresh/", h.Refresh)

	group.Post("/logout/", mw.RequireUser, h.Logout)
	group.Get("/profile/", mw.RequireUser, h.Profile)
	group.Patch("/profile/", mw.RequireUser, h.UpdateProfile)
}
