package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anjiri1684/psych_admin/backend"
	"github.com/anjiri1684/psych_admin/models"
)

type OrderMode string

const (
	// OrderAppend places a new question after the existing ones of its test type.
	OrderAppend OrderMode = "append"
	// OrderFixed writes question_order = 1 for every question.
	OrderFixed OrderMode = "fixed"
)

func ParseOrderMode(s string) (OrderMode, error) {
	switch OrderMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrderAppend:
		return OrderAppend, nil
	case OrderFixed:
		return OrderFixed, nil
	}
	return "", fmt.Errorf("unknown question order mode %q", s)
}

// QuestionService keeps a question and its options consistent on a backend
// that has no multi-table transactions of its own.
type QuestionService struct {
	client    backend.Client
	orderMode OrderMode
}

func NewQuestionService(client backend.Client, orderMode OrderMode) *QuestionService {
	if orderMode == "" {
		orderMode = OrderAppend
	}
	return &QuestionService{client: client, orderMode: orderMode}
}

// CreateQuestionWithOptions writes the question and then its options. When
// the client supports transactions both writes commit together; otherwise a
// failed options insert is compensated by deleting the question again.
func (s *QuestionService) CreateQuestionWithOptions(ctx context.Context, testType models.TestType, questionText string, options []models.OptionDraft) (*models.Question, error) {
	questionText = strings.TrimSpace(questionText)
	if _, ok := models.ParseTestType(string(testType)); !ok {
		return nil, &ValidationError{Field: "test_type", OptionIndex: -1, Message: "Unknown test type."}
	}
	if questionText == "" {
		return nil, &ValidationError{Field: "question_text", OptionIndex: -1, Message: "Please enter the question text."}
	}
	if len(options) < 2 {
		return nil, &ValidationError{Field: "options", OptionIndex: -1, Message: "At least 2 options are required."}
	}
	for i, o := range options {
		if strings.TrimSpace(o.Text) == "" {
			return nil, &ValidationError{Field: "option_text", OptionIndex: i, Message: fmt.Sprintf("Please enter the text of option %d.", i+1)}
		}
	}

	if tx, ok := s.client.(backend.Transactor); ok {
		var created *models.Question
		err := tx.Transaction(ctx, func(c backend.Client) error {
			q, err := s.insertQuestion(ctx, c, testType, questionText)
			if err != nil {
				return err
			}
			if err := insertOptions(ctx, c, q, options); err != nil {
				return err
			}
			created = q
			return nil
		})
		if err != nil {
			var writeErr *BackendWriteError
			if errors.As(err, &writeErr) {
				return nil, writeErr
			}
			return nil, &BackendWriteError{Op: "add question", Err: err}
		}
		return created, nil
	}

	q, err := s.insertQuestion(ctx, s.client, testType, questionText)
	if err != nil {
		return nil, err
	}
	if err := insertOptions(ctx, s.client, q, options); err != nil {
		partial := &PartialWriteError{QuestionID: q.ID, Err: err}
		// The request context may already be cancelled; the cleanup must still run.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if delErr := s.client.Delete(cleanupCtx, backend.TableQuestions, backend.Eq("id", q.ID)); delErr != nil {
			partial.CompensateErr = delErr
			log.Printf("🔥 Question %d is orphaned without options: %v (rollback failed: %v)", q.ID, err, delErr)
		} else {
			partial.Compensated = true
			log.Printf("⚠️ Rolled back question %d after its options failed to save: %v", q.ID, err)
		}
		return nil, partial
	}
	return q, nil
}

func (s *QuestionService) insertQuestion(ctx context.Context, c backend.Client, testType models.TestType, text string) (*models.Question, error) {
	order := 1
	if s.orderMode == OrderAppend {
		count, err := c.Count(ctx, backend.Query{
			Table:   backend.TableQuestions,
			Filters: []backend.Filter{backend.Eq("test_type", testType)},
		})
		if err != nil {
			return nil, &BackendWriteError{Op: "add question", Err: err}
		}
		order = int(count) + 1
	}

	q := &models.Question{TestType: testType, QuestionText: text, QuestionOrder: order}
	if err := c.Insert(ctx, backend.TableQuestions, q); err != nil {
		return nil, &BackendWriteError{Op: "add question", Err: err}
	}
	if q.ID == 0 {
		return nil, &BackendWriteError{Op: "add question", Err: errors.New("backend did not return the new question id")}
	}
	return q, nil
}

func insertOptions(ctx context.Context, c backend.Client, q *models.Question, drafts []models.OptionDraft) error {
	rows := make([]models.Option, len(drafts))
	for i, d := range drafts {
		rows[i] = models.Option{
			QuestionID: q.ID,
			OptionText: strings.TrimSpace(d.Text),
			DiscD:      clampScore(d.Scores[0]),
			DiscI:      clampScore(d.Scores[1]),
			DiscS:      clampScore(d.Scores[2]),
			DiscC:      clampScore(d.Scores[3]),
		}
	}
	if err := c.Insert(ctx, backend.TableOptions, &rows); err != nil {
		return &BackendWriteError{Op: "add question options", Err: err}
	}
	q.Options = rows
	return nil
}

func clampScore(v int) int {
	if v < models.ScoreMin {
		return models.ScoreMin
	}
	if v > models.ScoreMax {
		return models.ScoreMax
	}
	return v
}

// DeleteQuestionCascade removes the options of a question and then the
// question. If the options cannot be removed the question is left alone.
func (s *QuestionService) DeleteQuestionCascade(ctx context.Context, questionID int64) error {
	if err := s.client.Delete(ctx, backend.TableOptions, backend.Eq("question_id", questionID)); err != nil {
		return &BackendWriteError{Op: "delete question options", Err: err}
	}
	if err := s.client.Delete(ctx, backend.TableQuestions, backend.Eq("id", questionID)); err != nil {
		return &BackendWriteError{Op: "delete question", Err: err}
	}
	return nil
}

// ListQuestions returns the questions of one test type with their options,
// in question_order.
func (s *QuestionService) ListQuestions(ctx context.Context, testType models.TestType) ([]models.Question, error) {
	var questions []models.Question
	err := s.client.Select(ctx, backend.Query{
		Table:   backend.TableQuestions,
		Embeds:  []backend.Embed{{Relation: backend.TableOptions}},
		Filters: []backend.Filter{backend.Eq("test_type", testType)},
		Order:   &backend.Order{Column: "question_order", Ascending: true},
	}, &questions)
	if err != nil {
		return nil, &BackendReadError{Op: "questions", Err: err}
	}
	return questions, nil
}

var ErrQuestionNotFound = errors.New("question not found")

func (s *QuestionService) GetQuestion(ctx context.Context, questionID int64) (*models.Question, error) {
	var questions []models.Question
	err := s.client.Select(ctx, backend.Query{
		Table:   backend.TableQuestions,
		Embeds:  []backend.Embed{{Relation: backend.TableOptions}},
		Filters: []backend.Filter{backend.Eq("id", questionID)},
	}, &questions)
	if err != nil {
		return nil, &BackendReadError{Op: "question", Err: err}
	}
	if len(questions) == 0 {
		return nil, ErrQuestionNotFound
	}
	return &questions[0], nil
}

// FindOrphans returns questions without any option that were created before
// the cutoff.
func (s *QuestionService) FindOrphans(ctx context.Context, createdBefore time.Time) ([]models.Question, error) {
	var questions []models.Question
	err := s.client.Select(ctx, backend.Query{
		Table:  backend.TableQuestions,
		Embeds: []backend.Embed{{Relation: backend.TableOptions, Columns: []string{"id"}}},
		Order:  &backend.Order{Column: "created_at", Ascending: true},
	}, &questions)
	if err != nil {
		return nil, &BackendReadError{Op: "questions", Err: err}
	}
	var orphans []models.Question
	for _, q := range questions {
		if len(q.Options) == 0 && q.CreatedAt.Before(createdBefore) {
			orphans = append(orphans, q)
		}
	}
	return orphans, nil
}
