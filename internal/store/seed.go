package store

import (
	"context"
	"errors"

	"github.com/EdgeAdaptics/triage/internal/model"
)

// TeamWriter is a team directory that can look up and store members.
type TeamWriter interface {
	Member(ctx context.Context, email string) (model.TeamMember, error)
	Upsert(ctx context.Context, m model.TeamMember) (model.TeamMember, error)
}

// DemoIssues returns the sample issues the board starts with when seeding is enabled.
func DemoIssues() []model.Issue {
	return []model.Issue{
		{
			ID:           "1",
			Title:        "Database Connection Timeout in Production",
			Description:  "Users are experiencing intermittent database connection timeouts during peak hours. Affecting approximately 15% of requests.",
			Priority:     model.PriorityCritical,
			Status:       model.StatusInProgress,
			Assignee:     "alice@example.com",
			ErrorDetails: "Error: Connection timeout\n  at pg.connect (pg.js:123)\n  at Database.query (database.js:45)",
			AlertSource:  "Datadog",
			TicketID:     "JIRA-1234",
			CreatedAt:    mustTimestamp("2024-01-20 09:30:00"),
			UpdatedAt:    mustTimestamp("2024-01-20 10:15:00"),
			SLADeadline:  mustTimestamp("2024-01-20 11:30:00"),
			SLAStatus:    model.SLAAtRisk,
		},
		{
			ID:           "2",
			Title:        "API Rate Limit Errors on /users Endpoint",
			Description:  "Multiple clients reporting 429 errors. Current rate limit may be too restrictive for legitimate use cases.",
			Priority:     model.PriorityHigh,
			Status:       model.StatusNew,
			Assignee:     "bob@example.com",
			ErrorDetails: "HTTP 429: Rate limit exceeded (100 requests per minute)",
			AlertSource:  "New Relic",
			TicketID:     "JIRA-1235",
			CreatedAt:    mustTimestamp("2024-01-20 08:00:00"),
			UpdatedAt:    mustTimestamp("2024-01-20 08:00:00"),
			SLADeadline:  mustTimestamp("2024-01-20 16:00:00"),
			SLAStatus:    model.SLAOnTrack,
		},
		{
			ID:           "3",
			Title:        "Memory Leak in Image Processing Service",
			Description:  "Gradual memory increase over 24 hours leading to OOM crashes. Service needs restart every 12 hours.",
			Priority:     model.PriorityHigh,
			Status:       model.StatusReview,
			Assignee:     "alice@example.com",
			ErrorDetails: "Memory usage: 8GB → 14GB over 12 hours\nOOM Killed at 16GB",
			AlertSource:  "Prometheus",
			TicketID:     "GH-567",
			CreatedAt:    mustTimestamp("2024-01-19 14:00:00"),
			UpdatedAt:    mustTimestamp("2024-01-20 09:00:00"),
			SLADeadline:  mustTimestamp("2024-01-19 22:00:00"),
			SLAStatus:    model.SLABreached,
		},
		{
			ID:          "4",
			Title:       "Deprecated API Warning in Logs",
			Description: "Using deprecated authentication method. Should migrate to OAuth 2.0 before EOL.",
			Priority:    model.PriorityMedium,
			Status:      model.StatusNew,
			AlertSource: "Application Logs",
			CreatedAt:   mustTimestamp("2024-01-19 10:00:00"),
			UpdatedAt:   mustTimestamp("2024-01-19 10:00:00"),
			SLADeadline: mustTimestamp("2024-01-20 10:00:00"),
			SLAStatus:   model.SLAOnTrack,
		},
		{
			ID:           "5",
			Title:        "Slow Query Performance on Dashboard",
			Description:  "Dashboard load time increased from 2s to 15s. Database query needs optimization.",
			Priority:     model.PriorityMedium,
			Status:       model.StatusResolved,
			Assignee:     "bob@example.com",
			ErrorDetails: "Query execution time: 12.5s\nFull table scan on 10M rows",
			AlertSource:  "APM",
			TicketID:     "JIRA-1230",
			CreatedAt:    mustTimestamp("2024-01-18 11:00:00"),
			UpdatedAt:    mustTimestamp("2024-01-19 16:00:00"),
			SLADeadline:  mustTimestamp("2024-01-19 11:00:00"),
			SLAStatus:    model.SLAOnTrack,
		},
	}
}

// DemoTeam returns the sample team used when no database is configured.
func DemoTeam() []model.TeamMember {
	return []model.TeamMember{
		{ID: "1", Name: "Alice Johnson", Email: "alice@example.com", Role: "Senior Developer", Capacity: 8},
		{ID: "2", Name: "Bob Smith", Email: "bob@example.com", Role: "Backend Developer", Capacity: 6},
		{ID: "3", Name: "Carol Williams", Email: "carol@example.com", Role: "Frontend Developer", Capacity: 5},
	}
}

// Seed loads the demo issues into m.
func Seed(m *Memory) {
	for _, issue := range DemoIssues() {
		m.PutIssue(issue)
	}
}

// SeedTeam stores every member whose email is not yet in w and returns how
// many were added. Existing members are left as they are.
func SeedTeam(ctx context.Context, w TeamWriter, members ...model.TeamMember) (int, error) {
	added := 0
	for _, m := range members {
		_, err := w.Member(ctx, m.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return added, err
		}
		if _, err := w.Upsert(ctx, m); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func mustTimestamp(s string) model.Timestamp {
	ts, err := model.ParseTimestamp(s)
	if err != nil {
		panic(err)
	}
	return ts
}
