package handlers

import (
	"errors"
	"fmt"
	"log"

	"github.com/anjiri1684/psych_admin/models"
	"github.com/anjiri1684/psych_admin/services"
	"github.com/anjiri1684/psych_admin/views"
	"github.com/gofiber/fiber/v2"
)

type FormOptionsRequest struct {
	Action   string                `json:"action" validate:"required,oneof=add remove"`
	Index    int                   `json:"index"`
	TestType models.TestType       `json:"test_type"`
	Form     services.QuestionForm `json:"form" validate:"-"`
}

func (h *Handler) ListQuestionRows(c *fiber.Ctx) error {
	testType, ok := models.ParseTestType(c.Params("testType"))
	if !ok {
		return unknownTestType(c)
	}

	list, err := h.Lists.Refresh(c.UserContext(), testType)
	if err != nil {
		return respondError(c, err, "load questions")
	}
	return c.JSON(list)
}

// GetQuestionForm returns a reset add-question form with two empty options.
func (h *Handler) GetQuestionForm(c *fiber.Ctx) error {
	testType, ok := models.ParseTestType(c.Params("testType"))
	if !ok {
		return unknownTestType(c)
	}

	html, err := views.RenderQuestionForm(services.NewQuestionForm(testType).FormData())
	if err != nil {
		return respondError(c, err, "render question form")
	}
	return c.JSON(fiber.Map{"html": html})
}

// EditFormOptions adds or removes an option row on the posted form state and
// returns the re-rendered form.
func (h *Handler) EditFormOptions(c *fiber.Ctx) error {
	var req FormOptionsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "action must be add or remove"})
	}

	form := req.Form
	if form.TestType == "" {
		form.TestType = req.TestType
	}
	switch req.Action {
	case "add":
		form.AddOption()
	case "remove":
		if err := form.RemoveOption(req.Index); err != nil {
			if errors.Is(err, services.ErrMinimumOptions) {
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "At least 2 options are required."})
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	html, err := views.RenderQuestionForm(form.FormData())
	if err != nil {
		return respondError(c, err, "render question form")
	}
	return c.JSON(fiber.Map{"html": html, "option_count": len(form.Options)})
}

func (h *Handler) CreateQuestion(c *fiber.Ctx) error {
	testType, ok := models.ParseTestType(c.Params("testType"))
	if !ok {
		return unknownTestType(c)
	}

	var form services.QuestionForm
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	form.TestType = testType

	drafts, err := form.ValidateAndCollect()
	if err != nil {
		return respondError(c, err, "add question")
	}

	question, err := h.Questions.CreateQuestionWithOptions(c.UserContext(), testType, form.TrimmedText(), drafts)
	if err != nil {
		return respondError(c, err, "add question")
	}
	log.Printf("✅ Question %d added to %s with %d options", question.ID, testType, len(question.Options))

	resp := fiber.Map{"message": "Question added successfully!", "question": question}
	h.attachRows(c, resp, testType)
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *Handler) GetQuestion(c *fiber.Ctx) error {
	id, ok := parseQuestionID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid question ID"})
	}

	question, err := h.Questions.GetQuestion(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "load question")
	}
	html, err := views.RenderQuestionDetail(*question, h.DateLayout)
	if err != nil {
		return respondError(c, err, "render question")
	}
	return c.JSON(fiber.Map{"html": html, "question": question})
}

// UpdateQuestion answers 501 until question editing exists.
func (h *Handler) UpdateQuestion(c *fiber.Ctx) error {
	if _, ok := parseQuestionID(c); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid question ID"})
	}
	return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "Editing questions is not available yet."})
}

// DeleteQuestion removes a question and its options. The list refreshed is
// the one the question belongs to; ?test_type only matters when the
// question is already gone.
func (h *Handler) DeleteQuestion(c *fiber.Ctx) error {
	id, ok := parseQuestionID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid question ID"})
	}

	var testType models.TestType
	if raw := c.Query("test_type"); raw != "" {
		tt, ok := models.ParseTestType(raw)
		if !ok {
			return unknownTestType(c)
		}
		testType = tt
	}

	question, err := h.Questions.GetQuestion(c.UserContext(), id)
	switch {
	case errors.Is(err, services.ErrQuestionNotFound):
	case err != nil:
		return respondError(c, err, "delete question")
	default:
		testType = question.TestType
	}

	if err := h.Questions.DeleteQuestionCascade(c.UserContext(), id); err != nil {
		return respondError(c, err, "delete question")
	}
	log.Printf("Question %d deleted", id)

	resp := fiber.Map{"message": "Question deleted successfully!"}
	if testType == "" {
		return c.JSON(resp)
	}
	h.attachRows(c, resp, testType)
	return c.JSON(resp)
}

// attachRows adds the refreshed list to a mutation response. The mutation
// already happened, so a failed refresh only becomes a notice.
func (h *Handler) attachRows(c *fiber.Ctx, resp fiber.Map, testType models.TestType) {
	list, err := h.Lists.AfterMutation(c.UserContext(), testType)
	if err != nil {
		log.Printf("Failed to refresh %s questions: %v", testType, err)
		resp["notice"] = fmt.Sprintf("Failed to load %s questions.", testType)
		return
	}
	resp["rows"] = list.Rows
	resp["test_type"] = testType
}
