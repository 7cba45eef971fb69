// Package triage implements the issue triage board: mutations over the issue
// store, the events they emit, and the read-side queries.
package triage

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/EdgeAdaptics/triage/internal/events"
	"github.com/EdgeAdaptics/triage/internal/model"
	"github.com/EdgeAdaptics/triage/internal/sla"
)

// IssueStore is the state the service mutates.
type IssueStore interface {
	Issue(id string) (model.Issue, bool)
	Issues() []model.Issue
	PutIssue(issue model.Issue)
	DeleteIssue(id string) (model.Issue, bool)
	AddComment(c model.Comment)
	Comments(issueID string) []model.Comment
	AddActivity(a model.Activity)
	Activity(issueID string) []model.Activity
}

// TeamDirectory lists the people issues can be assigned to.
type TeamDirectory interface {
	Members(ctx context.Context) ([]model.TeamMember, error)
}

// BudgetPolicy supplies and updates SLA hour budgets.
type BudgetPolicy interface {
	Budgets() sla.Budgets
	SetBudget(p model.Priority, hours int) (sla.Budgets, error)
}

// IDSource mints record identifiers.
type IDSource interface {
	IssueID() string
	CommentID() string
	ActivityID() string
}

const systemUser = "System"

// Service applies board mutations. Each mutation holds mu from its first read
// to its last published event, so concurrent requests never interleave
// mid-update and every subscriber sees one order of events.
type Service struct {
	log     *slog.Logger
	store   IssueStore
	events  events.Publisher
	team    TeamDirectory
	budgets BudgetPolicy
	ids     IDSource
	now     func() time.Time

	mu sync.RWMutex
}

// Option mutates the Service during construction.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs the Service.
func New(log *slog.Logger, st IssueStore, pub events.Publisher, team TeamDirectory, budgets BudgetPolicy, ids IDSource, opts ...Option) *Service {
	s := &Service{
		log:     log,
		store:   st,
		events:  pub,
		team:    team,
		budgets: budgets,
		ids:     ids,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateIssueInput captures data for a new issue.
type CreateIssueInput struct {
	Title        string
	Description  string
	Priority     model.Priority
	Assignee     string
	ErrorDetails string
	AlertSource  string
	TicketID     string
	Tags         []string
	Components   []string
	Version      string
}

// IssueUpdate is a partial update; nil fields are left untouched. An empty
// Assignee unassigns the issue.
type IssueUpdate struct {
	Priority *model.Priority
	Status   *model.Status
	Assignee *string
}

func (u IssueUpdate) validate() error {
	if u.Priority != nil && !u.Priority.Valid() {
		return invalidInput("Invalid priority %q", *u.Priority)
	}
	if u.Status != nil && !u.Status.Valid() {
		return invalidInput("Invalid status %q", *u.Status)
	}
	return nil
}

// CreateIssue stores a new issue with status new and a freshly derived SLA.
func (s *Service) CreateIssue(ctx context.Context, in CreateIssueInput) (model.Issue, error) {
	if in.Title == "" || in.Description == "" {
		return model.Issue{}, invalidInput("Title and description are required")
	}
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return model.Issue{}, invalidInput("Invalid priority %q", priority)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := model.NewTimestamp(s.now())
	result := sla.Evaluate(s.budgets.Budgets(), priority, createdAt, s.now())

	issue := model.Issue{
		ID:           s.ids.IssueID(),
		Title:        in.Title,
		Description:  in.Description,
		Priority:     priority,
		Status:       model.StatusNew,
		Assignee:     in.Assignee,
		ErrorDetails: in.ErrorDetails,
		AlertSource:  in.AlertSource,
		TicketID:     in.TicketID,
		Tags:         in.Tags,
		Components:   in.Components,
		Version:      in.Version,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
		SLADeadline:  result.Deadline,
		SLAStatus:    result.Status,
	}
	s.store.PutIssue(issue)

	s.publish(events.IssueCreate, IssuePayload{Issue: issue.Clone(), Action: "create"})

	user := in.Assignee
	if user == "" {
		user = systemUser
	}
	s.recordActivity(issue.ID, user, "create", "Created issue: "+issue.Title)

	s.log.InfoContext(ctx, "issue created", slog.String("issue_id", issue.ID), slog.String("priority", string(priority)))
	return issue, nil
}

// UpdateIssue applies upd to an existing issue. A priority change re-derives
// the SLA from the original creation time and raises an sla_alert when the
// issue newly becomes breached.
func (s *Service) UpdateIssue(ctx context.Context, issueID string, upd IssueUpdate) (model.Issue, error) {
	if issueID == "" {
		return model.Issue{}, invalidInput("Issue ID is required")
	}
	if err := upd.validate(); err != nil {
		return model.Issue{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.store.Issue(issueID)
	if !ok {
		return model.Issue{}, ErrNotFound
	}

	changes, breached := s.applyUpdate(&issue, upd)
	s.store.PutIssue(issue)

	if breached {
		s.publish(events.SLAAlert, IssuePayload{Issue: issue.Clone()})
	}
	if len(changes) > 0 {
		s.recordActivity(issueID, systemUser, "update", "Updated "+strings.Join(changes, ", "))
	}
	s.publish(events.IssueUpdate, IssuePayload{Issue: issue.Clone(), Action: "update"})

	s.log.DebugContext(ctx, "issue updated", slog.String("issue_id", issueID), slog.Int("changes", len(changes)))
	return issue, nil
}

// DeleteIssue removes an issue if it exists. Deleting an unknown id is not an error.
func (s *Service) DeleteIssue(ctx context.Context, issueID string) error {
	if issueID == "" {
		return invalidInput("Issue ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, ok := s.store.DeleteIssue(issueID)
	if !ok {
		return nil
	}
	s.recordActivity(issueID, systemUser, "delete", "Deleted issue: "+deleted.Title)
	s.publish(events.IssueDelete, IssuePayload{Issue: deleted, Action: "delete"})

	s.log.InfoContext(ctx, "issue deleted", slog.String("issue_id", issueID))
	return nil
}

// BulkUpdate applies upd to every existing issue in issueIDs; unknown ids are
// skipped. The per-issue issue_update events follow all activity entries, in
// request order.
func (s *Service) BulkUpdate(ctx context.Context, issueIDs []string, upd IssueUpdate) ([]model.Issue, error) {
	if issueIDs == nil {
		return nil, invalidInput("Issue IDs array and updates object are required")
	}
	if err := upd.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make([]model.Issue, 0, len(issueIDs))
	for _, issueID := range issueIDs {
		issue, ok := s.store.Issue(issueID)
		if !ok {
			continue
		}

		changes, breached := s.applyUpdate(&issue, upd)
		if breached {
			s.publish(events.SLAAlert, IssuePayload{Issue: issue.Clone()})
		}
		s.store.PutIssue(issue)
		updated = append(updated, issue)

		if len(changes) > 0 {
			s.recordActivity(issueID, systemUser, "bulk_update", "Bulk updated "+strings.Join(changes, ", "))
		}
	}

	ids := make([]string, 0, len(updated))
	for _, issue := range updated {
		s.publish(events.IssueUpdate, IssuePayload{Issue: issue.Clone(), Action: "update"})
		ids = append(ids, issue.ID)
	}
	s.publish(events.BulkUpdate, BulkPayload{Action: "update", IssueIDs: ids, Count: len(updated)})

	s.log.InfoContext(ctx, "bulk update applied", slog.Int("requested", len(issueIDs)), slog.Int("updated", len(updated)))
	return updated, nil
}

// BulkDelete removes every existing issue in issueIDs and returns how many
// were removed. Comments and activity of removed issues are kept.
func (s *Service) BulkDelete(ctx context.Context, issueIDs []string) (int, error) {
	if issueIDs == nil {
		return 0, invalidInput("Issue IDs array is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted []model.Issue
	for _, issueID := range issueIDs {
		issue, ok := s.store.DeleteIssue(issueID)
		if !ok {
			continue
		}
		deleted = append(deleted, issue)
		s.recordActivity(issueID, systemUser, "bulk_delete", "Deleted issue: "+issue.Title)
	}

	ids := make([]string, 0, len(deleted))
	for _, issue := range deleted {
		s.publish(events.IssueDelete, IssuePayload{Issue: issue, Action: "delete"})
		ids = append(ids, issue.ID)
	}
	s.publish(events.BulkUpdate, BulkPayload{Action: "delete", IssueIDs: ids, Count: len(deleted)})

	s.log.InfoContext(ctx, "bulk delete applied", slog.Int("requested", len(issueIDs)), slog.Int("deleted", len(deleted)))
	return len(deleted), nil
}

// ImportedIssue is one entry of an import batch. Any status supplied by the
// source is ignored: imported issues always start as new.
type ImportedIssue struct {
	Title        string
	Description  string
	Priority     model.Priority
	Assignee     string
	ErrorDetails string
	AlertSource  string
	TicketID     string
	Tags         []string
	Components   []string
	Version      string
}

// ImportIssues creates one issue per entry, all sharing one creation time,
// and returns the full issue list.
func (s *Service) ImportIssues(ctx context.Context, batch []ImportedIssue) ([]model.Issue, error) {
	if batch == nil {
		return nil, invalidInput("Issues must be an array")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := model.NewTimestamp(s.now())
	budgets := s.budgets.Budgets()

	ids := make([]string, 0, len(batch))
	for _, in := range batch {
		priority := model.PriorityOrDefault(in.Priority)
		title := in.Title
		if title == "" {
			title = "Untitled Issue"
		}
		result := sla.Evaluate(budgets, priority, createdAt, s.now())

		issue := model.Issue{
			ID:           s.ids.IssueID(),
			Title:        title,
			Description:  in.Description,
			Priority:     priority,
			Status:       model.StatusNew,
			Assignee:     in.Assignee,
			ErrorDetails: in.ErrorDetails,
			AlertSource:  in.AlertSource,
			TicketID:     in.TicketID,
			Tags:         in.Tags,
			Components:   in.Components,
			Version:      in.Version,
			CreatedAt:    createdAt,
			UpdatedAt:    createdAt,
			SLADeadline:  result.Deadline,
			SLAStatus:    result.Status,
		}
		s.store.PutIssue(issue)
		ids = append(ids, issue.ID)
	}
	s.publish(events.BulkUpdate, BulkPayload{Action: "import", IssueIDs: ids, Count: len(ids)})

	s.log.InfoContext(ctx, "issues imported", slog.Int("count", len(ids)))
	return s.store.Issues(), nil
}

// AddComment appends a comment to an issue's thread. The issue is not
// required to exist.
func (s *Service) AddComment(ctx context.Context, issueID, author, content string) (model.Comment, error) {
	if issueID == "" || content == "" {
		return model.Comment{}, invalidInput("Issue ID and content are required")
	}
	if author == "" {
		author = "Anonymous"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	comment := model.Comment{
		ID:        s.ids.CommentID(),
		IssueID:   issueID,
		Author:    author,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.store.AddComment(comment)
	s.publish(events.CommentAdd, CommentPayload{Comment: comment})

	s.log.DebugContext(ctx, "comment added", slog.String("issue_id", issueID))
	return comment, nil
}

// SLABudgets returns the hour budget per priority.
func (s *Service) SLABudgets() sla.Budgets {
	return s.budgets.Budgets()
}

// SetSLABudget changes one priority's budget. Existing issues keep their
// deadline until their priority changes or the sweeper re-evaluates them.
func (s *Service) SetSLABudget(ctx context.Context, p model.Priority, hours int) (sla.Budgets, error) {
	if !p.Valid() {
		return nil, invalidInput("Invalid priority %q", p)
	}
	if hours <= 0 {
		return nil, invalidInput("Hours must be a positive number")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.budgets.SetBudget(p, hours)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "sla budget changed", slog.String("priority", string(p)), slog.Int("hours", hours))
	return b, nil
}

// RefreshSLA re-evaluates the SLA standing of every unresolved issue against
// the current time. Issues whose standing changed get an issue_update, and
// those that newly breached get an sla_alert first. It returns the number of
// issues that changed.
func (s *Service) RefreshSLA(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	budgets := s.budgets.Budgets()

	changed := 0
	for _, issue := range s.store.Issues() {
		if issue.Status == model.StatusResolved {
			continue
		}
		result := sla.Evaluate(budgets, issue.Priority, issue.CreatedAt, now)
		if result.Status == issue.SLAStatus && result.Deadline.Equal(issue.SLADeadline.Time) {
			continue
		}

		previous := issue.SLAStatus
		issue.SLADeadline = result.Deadline
		issue.SLAStatus = result.Status
		s.store.PutIssue(issue)
		changed++

		if result.Status == model.SLABreached && previous != model.SLABreached {
			s.publish(events.SLAAlert, IssuePayload{Issue: issue.Clone()})
		}
		s.publish(events.IssueUpdate, IssuePayload{Issue: issue.Clone(), Action: "update"})
	}

	if changed > 0 {
		s.log.InfoContext(ctx, "sla standings refreshed", slog.Int("changed", changed))
	}
	return changed
}

// applyUpdate mutates issue in place and returns the human readable list of
// changes and whether a priority change moved it into breach.
func (s *Service) applyUpdate(issue *model.Issue, upd IssueUpdate) ([]string, bool) {
	now := s.now()
	previous := issue.SLAStatus

	var changes []string
	if upd.Priority != nil {
		issue.Priority = *upd.Priority
		result := sla.Evaluate(s.budgets.Budgets(), issue.Priority, issue.CreatedAt, now)
		issue.SLADeadline = result.Deadline
		issue.SLAStatus = result.Status
		changes = append(changes, "priority to "+string(*upd.Priority))
	}
	if upd.Status != nil {
		issue.Status = *upd.Status
		changes = append(changes, "status to "+string(*upd.Status))
	}
	if upd.Assignee != nil {
		issue.Assignee = *upd.Assignee
		who := *upd.Assignee
		if who == "" {
			who = "unassigned"
		}
		changes = append(changes, "assignee to "+who)
	}
	issue.UpdatedAt = model.NewTimestamp(now)

	breached := upd.Priority != nil && issue.SLAStatus == model.SLABreached && previous != model.SLABreached
	return changes, breached
}

func (s *Service) recordActivity(issueID, user, action, details string) model.Activity {
	activity := model.Activity{
		ID:        s.ids.ActivityID(),
		IssueID:   issueID,
		User:      user,
		Action:    action,
		Details:   details,
		Timestamp: s.now().UTC(),
	}
	s.store.AddActivity(activity)
	s.publish(events.ActivityAdd, ActivityPayload{Activity: activity})
	return activity
}

func (s *Service) publish(t events.Type, payload any) {
	s.events.Publish(events.Event{Type: t, Payload: payload})
}
