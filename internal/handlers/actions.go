package handlers

import (
	"context"
	"encoding/json"

	"github.com/EdgeAdaptics/triage/internal/model"
	"github.com/EdgeAdaptics/triage/internal/sla"
	"github.com/EdgeAdaptics/triage/internal/triage"
)

// actionFunc runs one board action against the raw request body.
type actionFunc func(ctx context.Context, body []byte) (any, error)

// command binds a typed request to its handler. The body is decoded into Req
// before fn runs.
func command[Req any](fn func(ctx context.Context, req Req) (any, error)) actionFunc {
	return func(ctx context.Context, body []byte) (any, error) {
		var req Req
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, &triage.InputError{Message: "Invalid request body"}
		}
		return fn(ctx, req)
	}
}

func (a *API) actionTable() map[string]actionFunc {
	return map[string]actionFunc{
		"getIssues":       command(a.getIssues),
		"createIssue":     command(a.createIssue),
		"updateIssue":     command(a.updateIssue),
		"deleteIssue":     command(a.deleteIssue),
		"bulkUpdate":      command(a.bulkUpdate),
		"bulkDelete":      command(a.bulkDelete),
		"importIssues":    command(a.importIssues),
		"searchIssues":    command(a.searchIssues),
		"getAnalytics":    command(a.getAnalytics),
		"addComment":      command(a.addComment),
		"getComments":     command(a.getComments),
		"getActivity":     command(a.getActivity),
		"getTeamMembers":  command(a.getTeamMembers),
		"getSLAConfig":    command(a.getSLAConfig),
		"updateSLAConfig": command(a.updateSLAConfig),
	}
}

type noParams struct{}

type issueRef struct {
	IssueID string `json:"issueId"`
}

type createIssueRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Priority     string   `json:"priority"`
	Assignee     string   `json:"assignee"`
	ErrorDetails string   `json:"errorDetails"`
	AlertSource  string   `json:"alertSource"`
	TicketID     string   `json:"ticketId"`
	Tags         []string `json:"tags"`
	Components   []string `json:"components"`
	Version      string   `json:"version"`
}

// updateFields mirrors the board client: empty priority or status means
// "unchanged", while an explicit empty assignee unassigns.
type updateFields struct {
	Priority string  `json:"priority"`
	Status   string  `json:"status"`
	Assignee *string `json:"assignee"`
}

func (u updateFields) toUpdate() triage.IssueUpdate {
	var upd triage.IssueUpdate
	if u.Priority != "" {
		p := model.Priority(u.Priority)
		upd.Priority = &p
	}
	if u.Status != "" {
		s := model.Status(u.Status)
		upd.Status = &s
	}
	upd.Assignee = u.Assignee
	return upd
}

type updateIssueRequest struct {
	IssueID string `json:"issueId"`
	updateFields
}

type bulkUpdateRequest struct {
	IssueIDs []string      `json:"issueIds"`
	Updates  *updateFields `json:"updates"`
}

type bulkDeleteRequest struct {
	IssueIDs []string `json:"issueIds"`
}

type importedIssue struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Priority     string   `json:"priority"`
	Assignee     string   `json:"assignee"`
	ErrorDetails string   `json:"errorDetails"`
	AlertSource  string   `json:"alertSource"`
	TicketID     string   `json:"ticketId"`
	Tags         []string `json:"tags"`
	Components   []string `json:"components"`
	Version      string   `json:"version"`
}

type importIssuesRequest struct {
	Issues []importedIssue `json:"issues"`
}

type searchRequest struct {
	Query   string `json:"query"`
	Filters *struct {
		Priority  string `json:"priority"`
		Status    string `json:"status"`
		Assignee  string `json:"assignee"`
		SLAStatus string `json:"slaStatus"`
	} `json:"filters"`
}

type addCommentRequest struct {
	IssueID string `json:"issueId"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

type updateSLAConfigRequest struct {
	Priority string `json:"priority"`
	Hours    int    `json:"hours"`
}

type issuesResponse struct {
	Issues []model.Issue `json:"issues"`
}

type issueResponse struct {
	Issue model.Issue `json:"issue"`
}

type bulkIssuesResponse struct {
	Issues []model.Issue `json:"issues"`
	Count  int           `json:"count"`
}

type successResponse struct {
	Success bool `json:"success"`
	Count   *int `json:"count,omitempty"`
}

type analyticsResponse struct {
	Analytics model.Analytics `json:"analytics"`
}

type commentResponse struct {
	Comment model.Comment `json:"comment"`
}

type commentsResponse struct {
	Comments []model.Comment `json:"comments"`
}

type activityResponse struct {
	Activity []model.Activity `json:"activity"`
}

type teamResponse struct {
	TeamMembers []model.TeamMember `json:"teamMembers"`
}

type slaConfigResponse struct {
	Budgets sla.Budgets `json:"budgets"`
}

func (a *API) getIssues(ctx context.Context, _ noParams) (any, error) {
	return issuesResponse{Issues: a.board.Issues(ctx)}, nil
}

func (a *API) createIssue(ctx context.Context, req createIssueRequest) (any, error) {
	issue, err := a.board.CreateIssue(ctx, triage.CreateIssueInput{
		Title:        req.Title,
		Description:  req.Description,
		Priority:     model.Priority(req.Priority),
		Assignee:     req.Assignee,
		ErrorDetails: req.ErrorDetails,
		AlertSource:  req.AlertSource,
		TicketID:     req.TicketID,
		Tags:         req.Tags,
		Components:   req.Components,
		Version:      req.Version,
	})
	if err != nil {
		return nil, err
	}
	return issueResponse{Issue: issue}, nil
}

func (a *API) updateIssue(ctx context.Context, req updateIssueRequest) (any, error) {
	issue, err := a.board.UpdateIssue(ctx, req.IssueID, req.toUpdate())
	if err != nil {
		return nil, err
	}
	return issueResponse{Issue: issue}, nil
}

func (a *API) deleteIssue(ctx context.Context, req issueRef) (any, error) {
	if err := a.board.DeleteIssue(ctx, req.IssueID); err != nil {
		return nil, err
	}
	return successResponse{Success: true}, nil
}

func (a *API) bulkUpdate(ctx context.Context, req bulkUpdateRequest) (any, error) {
	if req.IssueIDs == nil || req.Updates == nil {
		return nil, &triage.InputError{Message: "Issue IDs array and updates object are required"}
	}
	issues, err := a.board.BulkUpdate(ctx, req.IssueIDs, req.Updates.toUpdate())
	if err != nil {
		return nil, err
	}
	return bulkIssuesResponse{Issues: issues, Count: len(issues)}, nil
}

func (a *API) bulkDelete(ctx context.Context, req bulkDeleteRequest) (any, error) {
	count, err := a.board.BulkDelete(ctx, req.IssueIDs)
	if err != nil {
		return nil, err
	}
	return successResponse{Success: true, Count: &count}, nil
}

func (a *API) importIssues(ctx context.Context, req importIssuesRequest) (any, error) {
	var batch []triage.ImportedIssue
	if req.Issues != nil {
		batch = make([]triage.ImportedIssue, 0, len(req.Issues))
	}
	for _, in := range req.Issues {
		batch = append(batch, triage.ImportedIssue{
			Title:        in.Title,
			Description:  in.Description,
			Priority:     model.Priority(in.Priority),
			Assignee:     in.Assignee,
			ErrorDetails: in.ErrorDetails,
			AlertSource:  in.AlertSource,
			TicketID:     in.TicketID,
			Tags:         in.Tags,
			Components:   in.Components,
			Version:      in.Version,
		})
	}

	issues, err := a.board.ImportIssues(ctx, batch)
	if err != nil {
		return nil, err
	}
	return issuesResponse{Issues: issues}, nil
}

func (a *API) searchIssues(ctx context.Context, req searchRequest) (any, error) {
	var f triage.Filters
	if req.Filters != nil {
		f = triage.Filters{
			Priority:  req.Filters.Priority,
			Status:    req.Filters.Status,
			Assignee:  req.Filters.Assignee,
			SLAStatus: req.Filters.SLAStatus,
		}
	}
	return issuesResponse{Issues: a.board.SearchIssues(ctx, req.Query, f)}, nil
}

func (a *API) getAnalytics(ctx context.Context, _ noParams) (any, error) {
	return analyticsResponse{Analytics: a.board.Analytics(ctx)}, nil
}

func (a *API) addComment(ctx context.Context, req addCommentRequest) (any, error) {
	comment, err := a.board.AddComment(ctx, req.IssueID, req.Author, req.Content)
	if err != nil {
		return nil, err
	}
	return commentResponse{Comment: comment}, nil
}

func (a *API) getComments(ctx context.Context, req issueRef) (any, error) {
	comments, err := a.board.Comments(ctx, req.IssueID)
	if err != nil {
		return nil, err
	}
	return commentsResponse{Comments: comments}, nil
}

func (a *API) getActivity(ctx context.Context, req issueRef) (any, error) {
	activity, err := a.board.Activity(ctx, req.IssueID)
	if err != nil {
		return nil, err
	}
	return activityResponse{Activity: activity}, nil
}

func (a *API) getTeamMembers(ctx context.Context, _ noParams) (any, error) {
	members, err := a.board.TeamMembers(ctx)
	if err != nil {
		return nil, err
	}
	return teamResponse{TeamMembers: members}, nil
}

func (a *API) getSLAConfig(_ context.Context, _ noParams) (any, error) {
	return slaConfigResponse{Budgets: a.board.SLABudgets()}, nil
}

func (a *API) updateSLAConfig(ctx context.Context, req updateSLAConfigRequest) (any, error) {
	budgets, err := a.board.SetSLABudget(ctx, model.Priority(req.Priority), req.Hours)
	if err != nil {
		return nil, err
	}
	return slaConfigResponse{Budgets: budgets}, nil
}
