package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/anjiri1684/psych_admin/middleware"
	"github.com/anjiri1684/psych_admin/services"
	"github.com/anjiri1684/psych_admin/views"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) LoginPage(c *fiber.Ctx) error {
	notice := ""
	if c.Query("login") == "required" {
		notice = "Please log in to continue."
	}
	html, err := views.RenderLoginPage(h.AppName, notice)
	if err != nil {
		return err
	}
	return c.Type("html").SendString(html)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	token, expires, err := h.Auth.Login(req.Email, req.Password)
	switch {
	case errors.Is(err, services.ErrAdminNotConfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Admin login is not configured. Set ADMIN_EMAIL and ADMIN_PASSWORD."})
	case errors.Is(err, services.ErrInvalidCredentials):
		log.Printf("Failed admin login for %s", req.Email)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid credentials"})
	case err != nil:
		log.Printf("[ERROR] sign admin token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Could not login"})
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.JSON(fiber.Map{"token": token, "expires_at": expires})
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.SecureCookies,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.JSON(fiber.Map{"message": "Logged out"})
}
