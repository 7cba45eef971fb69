// Package policy manages the SLA budget overlay applied on top of the default budgets.
package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/EdgeAdaptics/triage/internal/model"
	"github.com/EdgeAdaptics/triage/internal/sla"
)

var ErrInvalidBudget = errors.New("invalid sla budget")

type overlay struct {
	Budgets map[model.Priority]int `json:"budgets"`
}

// Manager holds SLA budgets and persists overrides to an optional overlay file.
type Manager struct {
	overlayPath string
	versionPath string

	mu      sync.RWMutex
	budgets sla.Budgets
}

// NewManager loads the overlay at overlayPath on top of the default budgets.
// An empty path keeps overrides in memory only.
func NewManager(overlayPath string) (*Manager, error) {
	m := &Manager{overlayPath: overlayPath, budgets: sla.DefaultBudgets()}
	if overlayPath == "" {
		return m, nil
	}
	m.versionPath = filepath.Join(filepath.Dir(overlayPath), "version")

	data, err := os.ReadFile(overlayPath)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sla overlay: %w", err)
	}

	var payload overlay
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode sla overlay: %w", err)
	}
	for p, hours := range payload.Budgets {
		if p.Valid() && hours > 0 {
			m.budgets[p] = hours
		}
	}
	return m, nil
}

// Budgets returns a snapshot of the current budgets.
func (m *Manager) Budgets() sla.Budgets {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.budgets.Clone()
}

// SetBudget changes the hour budget for one priority and bumps the version file.
func (m *Manager) SetBudget(p model.Priority, hours int) (sla.Budgets, error) {
	if !p.Valid() || hours <= 0 {
		return nil, fmt.Errorf("%w: %s=%d", ErrInvalidBudget, p, hours)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.budgets.Clone()
	next[p] = hours

	if m.overlayPath != "" {
		if err := m.persistLocked(next); err != nil {
			return nil, err
		}
	}

	m.budgets = next
	return next.Clone(), nil
}

func (m *Manager) persistLocked(b sla.Budgets) error {
	data, err := json.MarshalIndent(overlay{Budgets: b}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.overlayPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(m.overlayPath, data, 0o644); err != nil {
		return err
	}

	stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	return os.WriteFile(m.versionPath, stamp, 0o644)
}
