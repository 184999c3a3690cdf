// Package views turns records into HTML. Every function here is pure: it
// returns markup and touches nothing else. All text goes through
// html/template, so question text, names and result payloads are escaped.
package views

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"strings"
	"time"

	"github.com/anjiri1684/psych_admin/models"
	"gorm.io/datatypes"
)

const DefaultDateLayout = "2006-01-02"

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("views").Funcs(template.FuncMap{
	"inc":     func(i int) int { return i + 1 },
	"dash":    dash,
	"yesno":   func(b bool) string { return map[bool]string{true: "Yes", false: "No"}[b] },
	"payload": payload,
	"date":    formatDate,
	"label":   testTypeLabel,
}).ParseFS(templateFS, "templates/*.html"))

type Section struct {
	ID    string
	Title string
}

var Sections = []Section{
	{ID: "dashboard", Title: "Dashboard"},
	{ID: "users", Title: "Users"},
	{ID: "disc-questions", Title: "DiSC Questions"},
	{ID: "mbti-questions", Title: "MBTI Questions"},
	{ID: "stress-questions", Title: "Stress Questions"},
	{ID: "results", Title: "Results"},
}

func ValidSection(id string) bool {
	for _, s := range Sections {
		if s.ID == id {
			return true
		}
	}
	return false
}

// RenderQuestionRows renders the <tr> rows of a question table body. An empty
// list yields a single placeholder row spanning every column.
func RenderQuestionRows(questions []models.Question, dateLayout string) (string, error) {
	return render("question_rows", struct {
		Questions  []models.Question
		DateLayout string
	}{questions, layoutOrDefault(dateLayout)})
}

func RenderQuestionDetail(q models.Question, dateLayout string) (string, error) {
	return render("question_detail", struct {
		Question   models.Question
		DateLayout string
	}{q, layoutOrDefault(dateLayout)})
}

func RenderUserTable(profiles []models.Profile, dateLayout string) (string, error) {
	return render("user_table", struct {
		Profiles   []models.Profile
		DateLayout string
	}{profiles, layoutOrDefault(dateLayout)})
}

func RenderResultTable(results []models.Result, dateLayout string) (string, error) {
	return render("result_table", struct {
		Results    []models.Result
		DateLayout string
	}{results, layoutOrDefault(dateLayout)})
}

type ReportData struct {
	Title       string
	GeneratedAt time.Time
	Results     []models.Result
	DateLayout  string
}

func RenderResultsReport(data ReportData) (string, error) {
	data.DateLayout = layoutOrDefault(data.DateLayout)
	return render("results_report", data)
}

// FormOption is one editable option row as the admin typed it.
type FormOption struct {
	Text   string
	Scores [4]string
}

type FormData struct {
	TestType     models.TestType
	QuestionText string
	Options      []FormOption
}

func RenderQuestionForm(form FormData) (string, error) {
	return render("question_form", form)
}

type Stats struct {
	TotalUsers     int64 `json:"total_users"`
	TotalTests     int64 `json:"total_tests"`
	TodayTests     int64 `json:"today_tests"`
	TotalQuestions int64 `json:"total_questions"`
}

type PageData struct {
	AppName       string
	ActiveSection string
	Sections      []Section
	TestTypes     []models.TestType
	Stats         Stats
	// Notice is shown above the content, e.g. when the backend is not configured.
	Notice string
}

func RenderDashboardPage(data PageData) (string, error) {
	if data.Sections == nil {
		data.Sections = Sections
	}
	if data.TestTypes == nil {
		data.TestTypes = models.TestTypes
	}
	if !ValidSection(data.ActiveSection) {
		data.ActiveSection = "dashboard"
	}
	return render("dashboard_page", data)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func layoutOrDefault(layout string) string {
	if layout == "" {
		return DefaultDateLayout
	}
	return layout
}

func formatDate(t time.Time, layout string) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(layout)
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func payload(j datatypes.JSON) string {
	if len(j) == 0 || string(j) == "null" {
		return "-"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, j); err != nil {
		return string(j)
	}
	return buf.String()
}

func testTypeLabel(t models.TestType) string {
	switch t {
	case models.TestTypeDisc:
		return "DiSC"
	case models.TestTypeMBTI:
		return "MBTI"
	case models.TestTypeStress:
		return "Stress"
	}
	return string(t)
}

func RenderLoginPage(appName, notice string) (string, error) {
	return render("login_page", struct {
		AppName string
		Notice  string
	}{appName, notice})
}
