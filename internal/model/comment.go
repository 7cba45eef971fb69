package model

import "time"

type Comment struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issueId"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Activity is one entry of an issue's audit log.
type Activity struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issueId"`
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}
