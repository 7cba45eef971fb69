package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the wall-clock format issue timestamps are exchanged in.
const TimeLayout = "2006-01-02 15:04:05"

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// PriorityOrDefault returns p, or medium when p is empty or unknown.
func PriorityOrDefault(p Priority) Priority {
	if p.Valid() {
		return p
	}
	return PriorityMedium
}

type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusResolved   Status = "resolved"
)

var Statuses = []Status{StatusNew, StatusInProgress, StatusReview, StatusResolved}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusReview, StatusResolved:
		return true
	}
	return false
}

type SLAStatus string

const (
	SLAOnTrack  SLAStatus = "on-track"
	SLAAtRisk   SLAStatus = "at-risk"
	SLABreached SLAStatus = "breached"
)

var SLAStatuses = []SLAStatus{SLAOnTrack, SLAAtRisk, SLABreached}

func (s SLAStatus) Valid() bool {
	switch s {
	case SLAOnTrack, SLAAtRisk, SLABreached:
		return true
	}
	return false
}

// Timestamp is a UTC instant with second precision, encoded as TimeLayout.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to the second and normalises it to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// ParseTimestamp accepts TimeLayout as well as RFC 3339.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	if t, err := time.ParseInLocation(TimeLayout, s, time.UTC); err == nil {
		return NewTimestamp(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return NewTimestamp(t), nil
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// Date returns the YYYY-MM-DD part of the timestamp.
func (t Timestamp) Date() string {
	return t.UTC().Format(time.DateOnly)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Issue is a triage board entry. SLADeadline and SLAStatus are derived from
// Priority and CreatedAt.
type Issue struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Priority     Priority  `json:"priority"`
	Status       Status    `json:"status"`
	Assignee     string    `json:"assignee"`
	ErrorDetails string    `json:"errorDetails,omitempty"`
	AlertSource  string    `json:"alertSource,omitempty"`
	TicketID     string    `json:"ticketId,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Components   []string  `json:"components,omitempty"`
	Version      string    `json:"version,omitempty"`
	CreatedAt    Timestamp `json:"createdAt"`
	UpdatedAt    Timestamp `json:"updatedAt"`
	SLADeadline  Timestamp `json:"slaDeadline"`
	SLAStatus    SLAStatus `json:"slaStatus"`
}

// Clone returns a copy that shares no slices with i.
func (i Issue) Clone() Issue {
	out := i
	if i.Tags != nil {
		out.Tags = append([]string(nil), i.Tags...)
	}
	if i.Components != nil {
		out.Components = append([]string(nil), i.Components...)
	}
	return out
}
