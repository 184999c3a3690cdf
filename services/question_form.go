package services

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/anjiri1684/psych_admin/models"
	"github.com/anjiri1684/psych_admin/views"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ScoreInput is a raw score field. The page sends strings, API clients may
// send numbers; both decode to the text the admin typed.
type ScoreInput string

func (s *ScoreInput) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*s = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		*s = ScoreInput(unquoted)
		return nil
	}
	*s = ScoreInput(raw)
	return nil
}

type OptionForm struct {
	Text   string       `json:"text" validate:"required"`
	Scores []ScoreInput `json:"scores"`
}

// QuestionForm is the add-question form as submitted.
type QuestionForm struct {
	TestType     models.TestType `json:"test_type" validate:"required,oneof=disc mbti stress"`
	QuestionText string          `json:"question_text" validate:"required"`
	Options      []OptionForm    `json:"options" validate:"min=2,dive"`
}

// NewQuestionForm returns a reset form with two empty option rows.
func NewQuestionForm(testType models.TestType) *QuestionForm {
	f := &QuestionForm{TestType: testType}
	f.AddOption()
	f.AddOption()
	return f
}

func (f *QuestionForm) AddOption() {
	f.Options = append(f.Options, OptionForm{Scores: make([]ScoreInput, 4)})
}

// RemoveOption drops the option at index unless that would leave fewer than
// two options.
func (f *QuestionForm) RemoveOption(index int) error {
	if len(f.Options) < 3 {
		return ErrMinimumOptions
	}
	if index < 0 || index >= len(f.Options) {
		return fmt.Errorf("option %d does not exist", index+1)
	}
	f.Options = append(f.Options[:index], f.Options[index+1:]...)
	return nil
}

var optionIndexPattern = regexp.MustCompile(`Options\[(\d+)\]`)

// ValidateAndCollect checks the form and returns the option drafts ready to
// be written. It stops at the first problem.
func (f *QuestionForm) ValidateAndCollect() ([]models.OptionDraft, error) {
	trimmed := QuestionForm{
		TestType:     f.TestType,
		QuestionText: strings.TrimSpace(f.QuestionText),
		Options:      make([]OptionForm, len(f.Options)),
	}
	for i, o := range f.Options {
		trimmed.Options[i] = OptionForm{Text: strings.TrimSpace(o.Text), Scores: o.Scores}
	}

	if err := validate.Struct(trimmed); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, toValidationError(verrs[0])
		}
		return nil, err
	}

	drafts := make([]models.OptionDraft, len(trimmed.Options))
	for i, o := range trimmed.Options {
		drafts[i].Text = o.Text
		for j := 0; j < len(drafts[i].Scores) && j < len(o.Scores); j++ {
			drafts[i].Scores[j] = ParseScore(string(o.Scores[j]))
		}
	}
	return drafts, nil
}

func (f *QuestionForm) TrimmedText() string {
	return strings.TrimSpace(f.QuestionText)
}

func (f *QuestionForm) FormData() views.FormData {
	data := views.FormData{TestType: f.TestType, QuestionText: f.QuestionText}
	for _, o := range f.Options {
		fo := views.FormOption{Text: o.Text}
		for j := 0; j < len(fo.Scores) && j < len(o.Scores); j++ {
			fo.Scores[j] = string(o.Scores[j])
		}
		data.Options = append(data.Options, fo)
	}
	return data
}

func toValidationError(fe validator.FieldError) *ValidationError {
	switch fe.StructField() {
	case "TestType":
		return &ValidationError{Field: "test_type", OptionIndex: -1, Message: "Unknown test type."}
	case "QuestionText":
		return &ValidationError{Field: "question_text", OptionIndex: -1, Message: "Please enter the question text."}
	case "Options":
		return &ValidationError{Field: "options", OptionIndex: -1, Message: "At least 2 options are required."}
	}
	index := -1
	if m := optionIndexPattern.FindStringSubmatch(fe.Namespace()); m != nil {
		index, _ = strconv.Atoi(m[1])
	}
	return &ValidationError{
		Field:       "option_text",
		OptionIndex: index,
		Message:     fmt.Sprintf("Please enter the text of option %d.", index+1),
	}
}

// ParseScore reads a leading integer the way the browser's parseInt does:
// "7" and "7.5" give 7, blank or non-numeric input gives 0, and digits past
// the int range saturate.
func ParseScore(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if errors.Is(err, strconv.ErrRange) {
		if s[0] == '-' {
			return math.MinInt
		}
		return math.MaxInt
	}
	if err != nil {
		return 0
	}
	return n
}
