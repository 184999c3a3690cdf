package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anjiri1684/psych_admin/backend"
	"github.com/anjiri1684/psych_admin/backend/memstore"
	"github.com/anjiri1684/psych_admin/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pickOne() []models.OptionDraft {
	return []models.OptionDraft{
		{Text: "A", Scores: [4]int{5, 0, 0, 0}},
		{Text: "B", Scores: [4]int{0, 5, 0, 0}},
	}
}

func allOptions(t *testing.T, store *memstore.Store) []models.Option {
	t.Helper()
	var options []models.Option
	require.NoError(t, store.Select(context.Background(), backend.Query{Table: backend.TableOptions}, &options))
	return options
}

func allQuestions(t *testing.T, store *memstore.Store) []models.Question {
	t.Helper()
	var questions []models.Question
	require.NoError(t, store.Select(context.Background(), backend.Query{Table: backend.TableQuestions}, &questions))
	return questions
}

func TestCreateQuestionWithOptions(t *testing.T) {
	store := memstore.New()
	svc := NewQuestionService(store, OrderAppend)

	q, err := svc.CreateQuestionWithOptions(context.Background(), models.TestTypeDisc, "  Pick one  ", pickOne())
	require.NoError(t, err)

	assert.NotZero(t, q.ID)
	assert.Equal(t, "Pick one", q.QuestionText)
	assert.Equal(t, 1, q.QuestionOrder)

	questions := allQuestions(t, store)
	require.Len(t, questions, 1)
	assert.Equal(t, models.TestTypeDisc, questions[0].TestType)

	options := allOptions(t, store)
	require.Len(t, options, 2)
	for _, o := range options {
		assert.Equal(t, q.ID, o.QuestionID)
	}
	assert.Equal(t, "A", options[0].OptionText)
	assert.Equal(t, [4]int{5, 0, 0, 0}, [4]int{options[0].DiscD, options[0].DiscI, options[0].DiscS, options[0].DiscC})
	assert.Equal(t, "B", options[1].OptionText)
	assert.Equal(t, [4]int{0, 5, 0, 0}, [4]int{options[1].DiscD, options[1].DiscI, options[1].DiscS, options[1].DiscC})
}

func TestQuestionOrderModes(t *testing.T) {
	ctx := context.Background()

	t.Run("append", func(t *testing.T) {
		svc := NewQuestionService(memstore.New(), OrderAppend)
		first, err := svc.CreateQuestionWithOptions(ctx, models.TestTypeDisc, "One", pickOne())
		require.NoError(t, err)
		other, err := svc.CreateQuestionWithOptions(ctx, models.TestTypeMBTI, "Other", pickOne())
		require.NoError(t, err)
		second, err := svc.CreateQuestionWithOptions(ctx, models.TestTypeDisc, "Two", pickOne())
		require.NoError(t, err)

		assert.Equal(t, 1, first.QuestionOrder)
		assert.Equal(t, 1, other.QuestionOrder)
		assert.Equal(t, 2, second.QuestionOrder)
	})

	t.Run("fixed", func(t *testing.T) {
		svc := NewQuestionService(memstore.New(), OrderFixed)
		for _, text := range []string{"One", "Two"} {
			q, err := svc.CreateQuestionWithOptions(ctx, models.TestTypeDisc, text, pickOne())
			require.NoError(t, err)
			assert.Equal(t, 1, q.QuestionOrder)
		}
	})
}

func TestCreateClampsScores(t *testing.T) {
	store := memstore.New()
	svc := NewQuestionService(store, OrderAppend)

	_, err := svc.CreateQuestionWithOptions(context.Background(), models.TestTypeDisc, "Q", []models.OptionDraft{
		{Text: "A", Scores: [4]int{-3, 11, 10, 0}},
		{Text: "B"},
	})
	require.NoError(t, err)

	options := allOptions(t, store)
	assert.Equal(t, 0, options[0].DiscD)
	assert.Equal(t, 10, options[0].DiscI)
	assert.Equal(t, 10, options[0].DiscS)
}

func TestCreateRejectedBeforeAnyNetworkCall(t *testing.T) {
	cases := []struct {
		name        string
		testType    models.TestType
		text        string
		options     []models.OptionDraft
		field       string
		optionIndex int
	}{
		{"single option", models.TestTypeDisc, "Q", []models.OptionDraft{{Text: "A"}}, "options", -1},
		{"blank text", models.TestTypeDisc, "   ", pickOne(), "question_text", -1},
		{"blank option", models.TestTypeDisc, "Q", []models.OptionDraft{{Text: "A"}, {Text: "  "}}, "option_text", 1},
		{"unknown test type", models.TestType("iq"), "Q", pickOne(), "test_type", -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memstore.New()
			svc := NewQuestionService(store, OrderAppend)

			q, err := svc.CreateQuestionWithOptions(context.Background(), tc.testType, tc.text, tc.options)

			assert.Nil(t, q)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, tc.optionIndex, verr.OptionIndex)
			assert.Empty(t, store.Calls())
		})
	}
}

func TestCreateQuestionInsertFailure(t *testing.T) {
	store := memstore.New()
	store.FailNext("insert", backend.TableQuestions, &backend.Error{Status: 401, Message: "JWT expired"})
	svc := NewQuestionService(store, OrderAppend)

	_, err := svc.CreateQuestionWithOptions(context.Background(), models.TestTypeDisc, "Q", pickOne())

	var writeErr *BackendWriteError
	require.ErrorAs(t, err, &writeErr)
	var partial *PartialWriteError
	assert.False(t, errors.As(err, &partial))
	assert.Empty(t, allOptions(t, store))
	assert.Empty(t, allQuestions(t, store))
}

func TestCreateCompensatesFailedOptions(t *testing.T) {
	store := memstore.New()
	store.FailNext("insert", backend.TableOptions, &backend.Error{Status: 500, Message: "options table unavailable"})
	svc := NewQuestionService(store, OrderAppend)

	q, err := svc.CreateQuestionWithOptions(context.Background(), models.TestTypeDisc, "Q", pickOne())

	assert.Nil(t, q)
	var partial *PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.True(t, partial.Compensated)
	assert.NotZero(t, partial.QuestionID)
	assert.Empty(t, allQuestions(t, store))

	// Callers that only know the write error still get one.
	var writeErr *BackendWriteError
	require.ErrorAs(t, err, &writeErr)
	var apiErr *backend.Error
	require.ErrorAs(t, writeErr, &apiErr)
	assert.Equal(t, "options table unavailable", apiErr.Message)
}

func TestCreateReportsFailedCompensation(t *testing.T) {
	store := memstore.New()
	store.FailNext("insert", backend.TableOptions, errors.New("options down"))
	store.FailNext("delete", backend.TableQuestions, errors.New("questions down"))
	svc := NewQuestionService(store, OrderAppend)

	_, err := svc.CreateQuestionWithOptions(context.Background(), models.TestTypeDisc, "Q", pickOne())

	var partial *PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.False(t, partial.Compensated)
	assert.EqualError(t, partial.CompensateErr, "questions down")

	questions := allQuestions(t, store)
	require.Len(t, questions, 1)
	assert.Equal(t, partial.QuestionID, questions[0].ID)
}

// cancelOnInsert cancels the request context the moment table is written to,
// the way a client disconnect would.
type cancelOnInsert struct {
	*memstore.Store
	table  string
	cancel context.CancelFunc
}

func (c cancelOnInsert) Insert(ctx context.Context, table string, rows any) error {
	if table == c.table {
		c.cancel()
		return ctx.Err()
	}
	return c.Store.Insert(ctx, table, rows)
}

func TestCompensationSurvivesCancelledRequest(t *testing.T) {
	store := memstore.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewQuestionService(cancelOnInsert{Store: store, table: backend.TableOptions, cancel: cancel}, OrderAppend)

	_, err := svc.CreateQuestionWithOptions(ctx, models.TestTypeDisc, "Q", pickOne())

	var partial *PartialWriteError
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, partial.Compensated)
	assert.Empty(t, allQuestions(t, store))
}

type txStore struct {
	*memstore.Store
	began, committed, rolledBack int
}

func (s *txStore) Transaction(ctx context.Context, fn func(tx backend.Client) error) error {
	s.began++
	if err := fn(s.Store); err != nil {
		s.rolledBack++
		return err
	}
	s.committed++
	return nil
}

func TestCreateUsesTransactionWhenAvailable(t *testing.T) {
	store := &txStore{Store: memstore.New()}
	svc := NewQuestionService(store, OrderAppend)

	_, err := svc.CreateQuestionWithOptions(context.Background(), models.TestTypeDisc, "Q", pickOne())
	require.NoError(t, err)
	assert.Equal(t, 1, store.began)
	assert.Equal(t, 1, store.committed)

	store.FailNext("insert", backend.TableOptions, errors.New("options down"))
	_, err = svc.CreateQuestionWithOptions(context.Background(), models.TestTypeDisc, "Q2", pickOne())

	var writeErr *BackendWriteError
	require.ErrorAs(t, err, &writeErr)
	var partial *PartialWriteError
	assert.False(t, errors.As(err, &partial))
	assert.Equal(t, 1, store.rolledBack)
	for _, call := range store.Calls() {
		assert.NotEqual(t, "delete", call.Op, "a transaction must not be compensated by hand")
	}
}

func TestDeleteQuestionCascade(t *testing.T) {
	store := memstore.New()
	svc := NewQuestionService(store, OrderAppend)
	ctx := context.Background()
	q, err := svc.CreateQuestionWithOptions(ctx, models.TestTypeDisc, "Three", []models.OptionDraft{{Text: "A"}, {Text: "B"}, {Text: "C"}})
	require.NoError(t, err)
	keep, err := svc.CreateQuestionWithOptions(ctx, models.TestTypeDisc, "Keep", pickOne())
	require.NoError(t, err)
	store.ResetCalls()

	require.NoError(t, svc.DeleteQuestionCascade(ctx, q.ID))

	assert.Equal(t, []memstore.Call{
		{Op: "delete", Table: backend.TableOptions},
		{Op: "delete", Table: backend.TableQuestions},
	}, store.Calls())
	for _, o := range allOptions(t, store) {
		assert.NotEqual(t, q.ID, o.QuestionID)
	}
	assert.Len(t, allOptions(t, store), 2)

	list, err := svc.ListQuestions(ctx, models.TestTypeDisc)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)
}

func TestDeleteCascadeStopsWhenOptionsFail(t *testing.T) {
	store := memstore.New()
	svc := NewQuestionService(store, OrderAppend)
	ctx := context.Background()
	q, err := svc.CreateQuestionWithOptions(ctx, models.TestTypeDisc, "Q", pickOne())
	require.NoError(t, err)
	store.FailNext("delete", backend.TableOptions, errors.New("options down"))

	err = svc.DeleteQuestionCascade(ctx, q.ID)

	var writeErr *BackendWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "delete question options", writeErr.Op)
	assert.Len(t, allQuestions(t, store), 1)
	assert.Len(t, allOptions(t, store), 2)
}

func TestListQuestionsOnlyReturnsTestType(t *testing.T) {
	store := memstore.New()
	svc := NewQuestionService(store, OrderAppend)
	ctx := context.Background()
	for _, tt := range []models.TestType{models.TestTypeDisc, models.TestTypeStress, models.TestTypeDisc} {
		_, err := svc.CreateQuestionWithOptions(ctx, tt, "Q "+string(tt), pickOne())
		require.NoError(t, err)
	}

	list, err := svc.ListQuestions(ctx, models.TestTypeDisc)
	require.NoError(t, err)

	require.Len(t, list, 2)
	for i, q := range list {
		assert.Equal(t, models.TestTypeDisc, q.TestType)
		assert.Equal(t, i+1, q.QuestionOrder)
		assert.Len(t, q.Options, 2)
	}
}

func TestListQuestionsReadError(t *testing.T) {
	store := memstore.New()
	store.FailNext("select", backend.TableQuestions, errors.New("timeout"))
	svc := NewQuestionService(store, OrderAppend)

	_, err := svc.ListQuestions(context.Background(), models.TestTypeDisc)

	var readErr *BackendReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, "questions", readErr.Op)
}

func TestGetQuestionNotFound(t *testing.T) {
	svc := NewQuestionService(memstore.New(), OrderAppend)
	_, err := svc.GetQuestion(context.Background(), 99)
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestFindOrphans(t *testing.T) {
	store := memstore.New()
	svc := NewQuestionService(store, OrderAppend)
	ctx := context.Background()
	old := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return old }

	_, err := svc.CreateQuestionWithOptions(ctx, models.TestTypeDisc, "Complete", pickOne())
	require.NoError(t, err)
	orphan := &models.Question{TestType: models.TestTypeDisc, QuestionText: "Orphan", QuestionOrder: 2}
	require.NoError(t, store.Insert(ctx, backend.TableQuestions, orphan))
	store.Now = func() time.Time { return old.Add(time.Hour) }
	fresh := &models.Question{TestType: models.TestTypeDisc, QuestionText: "In flight", QuestionOrder: 3}
	require.NoError(t, store.Insert(ctx, backend.TableQuestions, fresh))

	orphans, err := svc.FindOrphans(ctx, old.Add(30*time.Minute))
	require.NoError(t, err)

	require.Len(t, orphans, 1)
	assert.Equal(t, orphan.ID, orphans[0].ID)
}

func TestParseOrderMode(t *testing.T) {
	mode, err := ParseOrderMode("")
	require.NoError(t, err)
	assert.Equal(t, OrderAppend, mode)

	mode, err = ParseOrderMode(" Fixed ")
	require.NoError(t, err)
	assert.Equal(t, OrderFixed, mode)

	_, err = ParseOrderMode("random")
	assert.Error(t, err)
}
