package routes

import (
	"github.com/anjiri1684/psych_admin/handlers"
	"github.com/anjiri1684/psych_admin/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func AdminRoutes(app *fiber.App, h *handlers.Handler, secret []byte) {
	admin := app.Group("/admin", middleware.Protected(secret), middleware.AdminRequired())

	api := admin.Group("/api")
	api.Get("/stats", h.GetStats)
	api.Get("/users", h.GetUsers)
	api.Get("/results", h.GetResults)
	api.Get("/results/report", h.GenerateResultsReport)

	questions := api.Group("/questions")
	questions.Post("/form/options", h.EditFormOptions)
	questions.Get("/:testType", h.ListQuestionRows)
	questions.Get("/:testType/form", h.GetQuestionForm)
	questions.Post("/:testType", h.CreateQuestion)

	question := api.Group("/question")
	question.Get("/:questionId", h.GetQuestion)
	question.Put("/:questionId", h.UpdateQuestion)
	question.Delete("/:questionId", h.DeleteQuestion)

	admin.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	admin.Get("/ws", websocket.New(h.Hub.Serve))

	admin.Get("", h.DashboardPage)
	admin.Get("/:section", h.DashboardPage)
}
