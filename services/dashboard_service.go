package services

import (
	"context"
	"time"

	"github.com/anjiri1684/psych_admin/backend"
	"github.com/anjiri1684/psych_admin/models"
	"github.com/anjiri1684/psych_admin/views"
)

// DashboardService loads the counters and the read-only tables.
type DashboardService struct {
	client backend.Client
	now    func() time.Time
}

func NewDashboardService(client backend.Client) *DashboardService {
	return &DashboardService{client: client, now: time.Now}
}

func (s *DashboardService) Stats(ctx context.Context) (views.Stats, error) {
	var stats views.Stats
	today := s.now().UTC().Format(time.DateOnly)

	counts := []struct {
		dest *int64
		q    backend.Query
	}{
		{&stats.TotalUsers, backend.Query{Table: backend.TableProfiles}},
		{&stats.TotalTests, backend.Query{Table: backend.TableResults}},
		{&stats.TodayTests, backend.Query{Table: backend.TableResults, Filters: []backend.Filter{backend.Gte("created_at", today)}}},
		{&stats.TotalQuestions, backend.Query{Table: backend.TableQuestions}},
	}
	for _, c := range counts {
		n, err := s.client.Count(ctx, c.q)
		if err != nil {
			return views.Stats{}, &BackendReadError{Op: "dashboard counters", Err: err}
		}
		*c.dest = n
	}
	return stats, nil
}

func (s *DashboardService) Profiles(ctx context.Context) ([]models.Profile, error) {
	var profiles []models.Profile
	err := s.client.Select(ctx, backend.Query{
		Table: backend.TableProfiles,
		Order: &backend.Order{Column: "created_at", Ascending: false},
	}, &profiles)
	if err != nil {
		return nil, &BackendReadError{Op: "users", Err: err}
	}
	return profiles, nil
}

func (s *DashboardService) Results(ctx context.Context) ([]models.Result, error) {
	var results []models.Result
	err := s.client.Select(ctx, backend.Query{
		Table:  backend.TableResults,
		Embeds: []backend.Embed{{Relation: backend.TableProfiles, Columns: []string{"name", "email"}}},
		Order:  &backend.Order{Column: "created_at", Ascending: false},
	}, &results)
	if err != nil {
		return nil, &BackendReadError{Op: "results", Err: err}
	}
	return results, nil
}
