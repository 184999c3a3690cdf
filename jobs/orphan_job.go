package jobs

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/anjiri1684/psych_admin/models"
	"github.com/anjiri1684/psych_admin/services"
	"github.com/robfig/cron/v3"
)

// Mailer is the part of the email service the sweep needs.
type Mailer interface {
	Send(toName, toEmail, subject, htmlContent string) error
}

// OrphanSweeper finds questions that were saved without their options, which
// happens when an options insert fails and the rollback fails too.
type OrphanSweeper struct {
	Questions   *services.QuestionService
	GracePeriod time.Duration
	Cleanup     bool
	Mailer      Mailer
	AlertEmail  string
	Now         func() time.Time
}

func (s *OrphanSweeper) Run(ctx context.Context) ([]models.Question, error) {
	log.Println("Running job: SweepOrphanedQuestions...")

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	orphans, err := s.Questions.FindOrphans(ctx, now().Add(-s.GracePeriod))
	if err != nil {
		log.Printf("Error checking for orphaned questions: %v", err)
		return nil, err
	}
	if len(orphans) == 0 {
		log.Println("No orphaned questions found.")
		return nil, nil
	}

	for _, q := range orphans {
		log.Printf("⚠️ Question %d (%s) has no options", q.ID, q.TestType)
	}

	if s.Cleanup {
		removed := 0
		for _, q := range orphans {
			if err := s.Questions.DeleteQuestionCascade(ctx, q.ID); err != nil {
				log.Printf("Error removing orphaned question %d: %v", q.ID, err)
				continue
			}
			removed++
		}
		log.Printf("Removed %d orphaned question(s).", removed)
	}

	if s.Mailer != nil && s.AlertEmail != "" {
		if err := s.Mailer.Send("", s.AlertEmail, "Questions without options found", orphanReport(orphans, s.Cleanup)); err != nil {
			log.Printf("🔥 Failed to send orphaned question alert: %v", err)
		}
	}
	return orphans, nil
}

// Schedule registers the sweep on c using a standard five-field spec.
func (s *OrphanSweeper) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.Run(ctx)
	})
}

func orphanReport(orphans []models.Question, removed bool) string {
	var b strings.Builder
	b.WriteString("<h1>Questions without options</h1><ul>")
	for _, q := range orphans {
		fmt.Fprintf(&b, "<li>#%d [%s] %s</li>", q.ID, q.TestType, html.EscapeString(q.QuestionText))
	}
	b.WriteString("</ul>")
	if removed {
		b.WriteString("<p>These questions were removed.</p>")
	} else {
		b.WriteString("<p>Set ORPHAN_CLEANUP=true to remove them automatically.</p>")
	}
	return b.String()
}
