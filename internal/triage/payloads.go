package triage

import "github.com/EdgeAdaptics/triage/internal/model"

// IssuePayload is carried by issue_create, issue_update, issue_delete and sla_alert events.
type IssuePayload struct {
	Issue  model.Issue `json:"issue"`
	Action string      `json:"action,omitempty"`
}

type CommentPayload struct {
	Comment model.Comment `json:"comment"`
}

type ActivityPayload struct {
	Activity model.Activity `json:"activity"`
}

// BulkPayload summarises a bulk operation after its per-issue events.
type BulkPayload struct {
	Action   string   `json:"action"`
	IssueIDs []string `json:"issueIds"`
	Count    int      `json:"count"`
}
