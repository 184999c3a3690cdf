package routes

import (
	"github.com/anjiri1684/psych_admin/handlers"
	"github.com/gofiber/fiber/v2"
)

func AuthRoutes(app *fiber.App, h *handlers.Handler) {
	app.Get("/", h.LoginPage)

	auth := app.Group("/auth")
	auth.Post("/login", h.Login)
	auth.Post("/logout", h.Logout)
}
