package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anjiri1684/psych_admin/backend"
	"github.com/anjiri1684/psych_admin/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedQuestion(t *testing.T, s *Store, tt models.TestType, text string, order int) *models.Question {
	t.Helper()
	q := &models.Question{TestType: tt, QuestionText: text, QuestionOrder: order}
	require.NoError(t, s.Insert(context.Background(), backend.TableQuestions, q))
	return q
}

func TestInsertAssignsIDsAndTimestamps(t *testing.T) {
	s := New()
	fixed := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	s.Now = func() time.Time { return fixed }

	first := seedQuestion(t, s, models.TestTypeDisc, "First", 1)
	second := seedQuestion(t, s, models.TestTypeDisc, "Second", 2)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.True(t, first.CreatedAt.Equal(fixed))

	options := []models.Option{
		{QuestionID: first.ID, OptionText: "A"},
		{QuestionID: first.ID, OptionText: "B"},
	}
	require.NoError(t, s.Insert(context.Background(), backend.TableOptions, &options))
	assert.Equal(t, int64(1), options[0].ID)
	assert.Equal(t, int64(2), options[1].ID)

	profile := &models.Profile{Name: "Ann", Email: "ann@example.com"}
	require.NoError(t, s.Insert(context.Background(), backend.TableProfiles, profile))
	assert.NotEqual(t, uuid.Nil, profile.ID)
}

func TestInsertRejectsUnknownQuestion(t *testing.T) {
	s := New()
	options := []models.Option{{QuestionID: 42, OptionText: "A"}}

	err := s.Insert(context.Background(), backend.TableOptions, &options)

	var apiErr *backend.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "23503", apiErr.Code)
	count, err := s.Count(context.Background(), backend.Query{Table: backend.TableOptions})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSelectFiltersOrdersAndEmbeds(t *testing.T) {
	s := New()
	ctx := context.Background()
	late := seedQuestion(t, s, models.TestTypeDisc, "Late", 2)
	seedQuestion(t, s, models.TestTypeMBTI, "Other type", 1)
	early := seedQuestion(t, s, models.TestTypeDisc, "Early", 1)
	options := []models.Option{{QuestionID: early.ID, OptionText: "A", DiscD: 5}}
	require.NoError(t, s.Insert(ctx, backend.TableOptions, &options))

	var got []models.Question
	err := s.Select(ctx, backend.Query{
		Table:   backend.TableQuestions,
		Embeds:  []backend.Embed{{Relation: backend.TableOptions}},
		Filters: []backend.Filter{backend.Eq("test_type", models.TestTypeDisc)},
		Order:   &backend.Order{Column: "question_order", Ascending: true},
	}, &got)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, early.ID, got[0].ID)
	assert.Equal(t, late.ID, got[1].ID)
	require.Len(t, got[0].Options, 1)
	assert.Equal(t, 5, got[0].Options[0].DiscD)
	assert.Empty(t, got[1].Options)
}

func TestSelectEmbedsSingleRelation(t *testing.T) {
	s := New()
	ctx := context.Background()
	profile := &models.Profile{Name: "Ann", Email: "ann@example.com", Organization: "Acme"}
	require.NoError(t, s.Insert(ctx, backend.TableProfiles, profile))
	result := &models.Result{ProfileID: profile.ID, TestType: models.TestTypeStress}
	require.NoError(t, s.Insert(ctx, backend.TableResults, result))

	var got []models.Result
	err := s.Select(ctx, backend.Query{
		Table:  backend.TableResults,
		Embeds: []backend.Embed{{Relation: backend.TableProfiles, Columns: []string{"name", "email"}}},
	}, &got)
	require.NoError(t, err)

	require.Len(t, got, 1)
	require.NotNil(t, got[0].Profile)
	assert.Equal(t, "Ann", got[0].Profile.Name)
	assert.Empty(t, got[0].Profile.Organization)
}

func TestCountWithGteOnTimestamps(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Now = func() time.Time { return time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC) }
	require.NoError(t, s.Insert(ctx, backend.TableResults, &models.Result{TestType: models.TestTypeDisc}))
	s.Now = func() time.Time { return time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC) }
	require.NoError(t, s.Insert(ctx, backend.TableResults, &models.Result{TestType: models.TestTypeDisc}))

	n, err := s.Count(ctx, backend.Query{
		Table:   backend.TableResults,
		Filters: []backend.Filter{backend.Gte("created_at", "2024-05-02")},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDeleteOnlyMatchingRows(t *testing.T) {
	s := New()
	ctx := context.Background()
	keep := seedQuestion(t, s, models.TestTypeDisc, "Keep", 1)
	drop := seedQuestion(t, s, models.TestTypeDisc, "Drop", 2)

	require.NoError(t, s.Delete(ctx, backend.TableQuestions, backend.Eq("id", drop.ID)))

	var got []models.Question
	require.NoError(t, s.Select(ctx, backend.Query{Table: backend.TableQuestions}, &got))
	require.Len(t, got, 1)
	assert.Equal(t, keep.ID, got[0].ID)
}

func TestDeleteRequiresFilter(t *testing.T) {
	s := New()
	seedQuestion(t, s, models.TestTypeDisc, "Keep", 1)

	err := s.Delete(context.Background(), backend.TableQuestions)

	assert.ErrorIs(t, err, backend.ErrMissingFilter)
	n, _ := s.Count(context.Background(), backend.Query{Table: backend.TableQuestions})
	assert.Equal(t, int64(1), n)
}

func TestFailNextAndCalls(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	s.FailNext("insert", backend.TableOptions, boom)
	q := seedQuestion(t, s, models.TestTypeDisc, "Q", 1)

	options := []models.Option{{QuestionID: q.ID, OptionText: "A"}}
	err := s.Insert(context.Background(), backend.TableOptions, &options)
	assert.ErrorIs(t, err, boom)

	// The fault is consumed by the first matching call.
	require.NoError(t, s.Insert(context.Background(), backend.TableOptions, &options))
	assert.Equal(t, []Call{
		{Op: "insert", Table: backend.TableQuestions},
		{Op: "insert", Table: backend.TableOptions},
		{Op: "insert", Table: backend.TableOptions},
	}, s.Calls())

	s.ResetCalls()
	assert.Empty(t, s.Calls())
}

func TestRejectsUnknownRelation(t *testing.T) {
	s := New()
	var got []models.Question
	err := s.Select(context.Background(), backend.Query{
		Table:  backend.TableQuestions,
		Embeds: []backend.Embed{{Relation: backend.TableProfiles}},
	}, &got)
	assert.Error(t, err)
	assert.Empty(t, s.Calls())
}
