package triage

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/EdgeAdaptics/triage/internal/model"
)

const trendDays = 7

// Filters narrows a search. Empty fields and "all" match everything;
// Assignee "unassigned" matches issues without an assignee.
type Filters struct {
	Priority  string
	Status    string
	Assignee  string
	SLAStatus string
}

// Issues returns every issue in creation order.
func (s *Service) Issues(context.Context) []model.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Issues()
}

// SearchIssues matches query case-insensitively against title, description
// and error details, then applies filters.
func (s *Service) SearchIssues(_ context.Context, query string, f Filters) []model.Issue {
	s.mu.RLock()
	issues := s.store.Issues()
	s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Issue, 0, len(issues))
	for _, issue := range issues {
		if term != "" && !matchesText(issue, term) {
			continue
		}
		if !f.matches(issue) {
			continue
		}
		out = append(out, issue)
	}
	return out
}

func matchesText(issue model.Issue, term string) bool {
	return strings.Contains(strings.ToLower(issue.Title), term) ||
		strings.Contains(strings.ToLower(issue.Description), term) ||
		strings.Contains(strings.ToLower(issue.ErrorDetails), term)
}

func (f Filters) matches(issue model.Issue) bool {
	if active(f.Priority) && string(issue.Priority) != f.Priority {
		return false
	}
	if active(f.Status) && string(issue.Status) != f.Status {
		return false
	}
	if active(f.Assignee) {
		unassigned := f.Assignee == "unassigned" && issue.Assignee == ""
		if !unassigned && issue.Assignee != f.Assignee {
			return false
		}
	}
	if active(f.SLAStatus) && string(issue.SLAStatus) != f.SLAStatus {
		return false
	}
	return true
}

func active(filter string) bool {
	return filter != "" && filter != "all"
}

// Comments returns the comment thread of an issue.
func (s *Service) Comments(_ context.Context, issueID string) ([]model.Comment, error) {
	if issueID == "" {
		return nil, invalidInput("Issue ID is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Comments(issueID), nil
}

// Activity returns the activity log of an issue.
func (s *Service) Activity(_ context.Context, issueID string) ([]model.Activity, error) {
	if issueID == "" {
		return nil, invalidInput("Issue ID is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Activity(issueID), nil
}

// TeamMembers lists the team with AssignedCount computed from current issues.
func (s *Service) TeamMembers(ctx context.Context) ([]model.TeamMember, error) {
	members, err := s.team.Members(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	issues := s.store.Issues()
	s.mu.RUnlock()

	counts := make(map[string]int)
	for _, issue := range issues {
		if issue.Assignee != "" {
			counts[issue.Assignee]++
		}
	}
	for i := range members {
		members[i].AssignedCount = counts[members[i].Email]
	}
	return members, nil
}

// Analytics aggregates the board.
func (s *Service) Analytics(context.Context) model.Analytics {
	s.mu.RLock()
	issues := s.store.Issues()
	s.mu.RUnlock()

	a := model.Analytics{
		Total:      len(issues),
		ByPriority: make(map[model.Priority]int, len(model.Priorities)),
		ByStatus:   make(map[model.Status]int, len(model.Statuses)),
		BySLA:      make(map[model.SLAStatus]int, len(model.SLAStatuses)),
	}
	for _, p := range model.Priorities {
		a.ByPriority[p] = 0
	}
	for _, st := range model.Statuses {
		a.ByStatus[st] = 0
	}
	for _, st := range model.SLAStatuses {
		a.BySLA[st] = 0
	}

	for _, issue := range issues {
		if issue.Priority.Valid() {
			a.ByPriority[issue.Priority]++
		}
		if issue.Status.Valid() {
			a.ByStatus[issue.Status]++
		}
		if issue.SLAStatus.Valid() {
			a.BySLA[issue.SLAStatus]++
		}
	}

	a.AvgResolutionTime = averageResolutionHours(issues)
	a.TrendData = trend(issues)
	return a
}

// averageResolutionHours treats UpdatedAt of a resolved issue as its resolution time.
func averageResolutionHours(issues []model.Issue) int {
	var total time.Duration
	resolved := 0
	for _, issue := range issues {
		if issue.Status != model.StatusResolved {
			continue
		}
		total += issue.UpdatedAt.Sub(issue.CreatedAt.Time)
		resolved++
	}
	if resolved == 0 {
		return 0
	}
	return int(math.Round(float64(total) / float64(resolved) / float64(time.Hour)))
}

// trend counts issues created and resolved per day over the latest trendDays
// days that saw any activity. A resolved point is counted only for issues whose
// status is resolved, dated by their last update; an open issue edited on a
// later day adds nothing.
func trend(issues []model.Issue) []model.TrendPoint {
	byDate := make(map[string]*model.TrendPoint)
	point := func(date string) *model.TrendPoint {
		p, ok := byDate[date]
		if !ok {
			p = &model.TrendPoint{Date: date}
			byDate[date] = p
		}
		return p
	}

	for _, issue := range issues {
		created := issue.CreatedAt.Date()
		point(created).Created++

		if issue.Status == model.StatusResolved {
			if resolved := issue.UpdatedAt.Date(); resolved != created {
				point(resolved).Resolved++
			}
		}
	}

	out := make([]model.TrendPoint, 0, len(byDate))
	for _, p := range byDate {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if len(out) > trendDays {
		out = out[len(out)-trendDays:]
	}
	return out
}
