// Package store holds triage state. Issues, comments and activity live in
// process memory only and are gone after a restart; every process owns an
// independent copy.
package store

import (
	"sync"

	"github.com/EdgeAdaptics/triage/internal/model"
)

// Memory is the in-process issue store. Reads return copies.
type Memory struct {
	mu       sync.RWMutex
	issues   map[string]model.Issue
	order    []string
	comments map[string][]model.Comment
	activity map[string][]model.Activity
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		issues:   make(map[string]model.Issue),
		comments: make(map[string][]model.Comment),
		activity: make(map[string][]model.Activity),
	}
}

// Issue looks up an issue by id.
func (m *Memory) Issue(id string) (model.Issue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	issue, ok := m.issues[id]
	if !ok {
		return model.Issue{}, false
	}
	return issue.Clone(), true
}

// Issues returns every issue in insertion order.
func (m *Memory) Issues() []model.Issue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Issue, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.issues[id].Clone())
	}
	return out
}

// PutIssue inserts a new issue at the end or replaces an existing one in place.
func (m *Memory) PutIssue(issue model.Issue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.issues[issue.ID]; !ok {
		m.order = append(m.order, issue.ID)
	}
	m.issues[issue.ID] = issue.Clone()
}

// DeleteIssue removes an issue and reports what was removed. Comments and
// activity recorded for it are kept.
func (m *Memory) DeleteIssue(id string) (model.Issue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	issue, ok := m.issues[id]
	if !ok {
		return model.Issue{}, false
	}
	delete(m.issues, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return issue, true
}

// Len returns the number of issues.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.issues)
}

// AddComment appends to the issue's comment list. The issue need not exist.
func (m *Memory) AddComment(c model.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[c.IssueID] = append(m.comments[c.IssueID], c)
}

func (m *Memory) Comments(issueID string) []model.Comment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Comment{}, m.comments[issueID]...)
}

// AddActivity appends to the issue's activity log. The issue need not exist.
func (m *Memory) AddActivity(a model.Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity[a.IssueID] = append(m.activity[a.IssueID], a)
}

func (m *Memory) Activity(issueID string) []model.Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Activity{}, m.activity[issueID]...)
}
