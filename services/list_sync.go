package services

import (
	"context"
	"fmt"

	"github.com/anjiri1684/psych_admin/models"
	"github.com/anjiri1684/psych_admin/views"
)

// Notifier is told about mutations so other open dashboards can refresh.
type Notifier interface {
	QuestionsChanged(testType models.TestType)
}

type QuestionList struct {
	TestType  models.TestType   `json:"test_type"`
	Questions []models.Question `json:"-"`
	Rows      string            `json:"rows"`
}

// ListSync reloads a test type's questions from the backend and renders them.
// It keeps no copy between calls: every refresh reads the backend.
type ListSync struct {
	questions  *QuestionService
	notifier   Notifier
	dateLayout string
}

func NewListSync(questions *QuestionService, notifier Notifier, dateLayout string) *ListSync {
	return &ListSync{questions: questions, notifier: notifier, dateLayout: dateLayout}
}

func (l *ListSync) Refresh(ctx context.Context, testType models.TestType) (*QuestionList, error) {
	questions, err := l.questions.ListQuestions(ctx, testType)
	if err != nil {
		return nil, err
	}
	rows, err := views.RenderQuestionRows(questions, l.dateLayout)
	if err != nil {
		return nil, fmt.Errorf("render question rows: %w", err)
	}
	return &QuestionList{TestType: testType, Questions: questions, Rows: rows}, nil
}

// AfterMutation must follow every successful create or delete.
func (l *ListSync) AfterMutation(ctx context.Context, testType models.TestType) (*QuestionList, error) {
	if l.notifier != nil {
		l.notifier.QuestionsChanged(testType)
	}
	return l.Refresh(ctx, testType)
}
