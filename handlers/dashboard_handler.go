package handlers

import (
	"errors"
	"fmt"
	"log"

	"github.com/anjiri1684/psych_admin/backend"
	"github.com/anjiri1684/psych_admin/views"
	"github.com/gofiber/fiber/v2"
)

// DashboardPage serves the full admin page with the requested section active.
func (h *Handler) DashboardPage(c *fiber.Ctx) error {
	section := c.Params("section", "dashboard")
	if !views.ValidSection(section) {
		return fiber.NewError(fiber.StatusNotFound, "Unknown section "+section)
	}

	data := views.PageData{AppName: h.AppName, ActiveSection: section}
	stats, err := h.Dashboard.Stats(c.UserContext())
	switch {
	case errors.Is(err, backend.ErrUnconfigured):
		data.Notice = unconfiguredNotice
	case err != nil:
		log.Printf("Failed to load dashboard counters: %v", err)
		data.Notice = "Failed to load dashboard counters."
	default:
		data.Stats = stats
	}

	html, err := views.RenderDashboardPage(data)
	if err != nil {
		return err
	}
	return c.Type("html").SendString(html)
}

func (h *Handler) GetStats(c *fiber.Ctx) error {
	stats, err := h.Dashboard.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err, "load dashboard counters")
	}
	return c.JSON(stats)
}

func (h *Handler) GetUsers(c *fiber.Ctx) error {
	profiles, err := h.Dashboard.Profiles(c.UserContext())
	if err != nil {
		return respondError(c, err, "load users")
	}
	html, err := views.RenderUserTable(profiles, h.DateLayout)
	if err != nil {
		return respondError(c, err, "render users")
	}
	return c.JSON(fiber.Map{"html": html, "count": len(profiles)})
}

func (h *Handler) GetResults(c *fiber.Ctx) error {
	results, err := h.Dashboard.Results(c.UserContext())
	if err != nil {
		return respondError(c, err, "load results")
	}
	html, err := views.RenderResultTable(results, h.DateLayout)
	if err != nil {
		return respondError(c, err, "render results")
	}
	return c.JSON(fiber.Map{"html": html, "count": len(results)})
}

// GenerateResultsReport redirects to the uploaded report when storage is
// configured and streams the PDF otherwise.
func (h *Handler) GenerateResultsReport(c *fiber.Ctx) error {
	report, err := h.Reports.ResultsReport(c.UserContext())
	if err != nil {
		return respondError(c, err, "generate results report")
	}
	if report.URL != "" {
		return c.Redirect(report.URL, fiber.StatusSeeOther)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", report.FileName))
	return c.Send(report.PDF)
}
