package handlers

import (
	"errors"
	"log"
	"strconv"

	"github.com/anjiri1684/psych_admin/backend"
	"github.com/anjiri1684/psych_admin/services"
	"github.com/anjiri1684/psych_admin/websocket"
	"github.com/gofiber/fiber/v2"
)

const unconfiguredNotice = "The backend is not configured. Set SUPABASE_URL and SUPABASE_ANON_KEY (or BACKEND=postgres with DATABASE_URL) and restart."

// Handler carries the services every route needs.
type Handler struct {
	Questions     *services.QuestionService
	Lists         *services.ListSync
	Dashboard     *services.DashboardService
	Reports       *services.ReportService
	Auth          *services.AdminAuth
	Hub           *websocket.Hub
	AppName       string
	DateLayout    string
	SecureCookies bool
}

func unknownTestType(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown test type"})
}

func parseQuestionID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("questionId"), 10, 64)
	return id, err == nil && id > 0
}

// respondError maps the service error taxonomy onto HTTP answers. action
// names what the admin was doing, e.g. "add question".
func respondError(c *fiber.Ctx, err error, action string) error {
	var (
		validationErr *services.ValidationError
		partialErr    *services.PartialWriteError
		writeErr      *services.BackendWriteError
		readErr       *services.BackendReadError
	)

	switch {
	case errors.Is(err, backend.ErrUnconfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": unconfiguredNotice, "unconfigured": true})
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":        validationErr.Message,
			"field":        validationErr.Field,
			"option_index": validationErr.OptionIndex,
		})
	case errors.As(err, &partialErr):
		log.Printf("🔥 Partial write while trying to %s: %v", action, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":       "Failed to " + action + ": " + backendMessage(partialErr.Err),
			"partial":     true,
			"question_id": partialErr.QuestionID,
			"compensated": partialErr.Compensated,
		})
	case errors.As(err, &writeErr):
		log.Printf("🔥 Failed to %s: %v", action, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to " + action + ": " + backendMessage(writeErr.Err)})
	case errors.As(err, &readErr):
		log.Printf("Failed to load %s: %v", readErr.Op, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to load " + readErr.Op + "."})
	case errors.Is(err, services.ErrQuestionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Question not found"})
	}
	log.Printf("[ERROR] %s: %v", action, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to " + action})
}

func backendMessage(err error) string {
	var apiErr *backend.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var writeErr *services.BackendWriteError
	if errors.As(err, &writeErr) {
		return backendMessage(writeErr.Err)
	}
	return err.Error()
}
