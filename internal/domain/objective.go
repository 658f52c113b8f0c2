package domain

import (
	"fmt"
	"strings"
	"time"
)

// ObjectiveStatus is the lifecycle status of an objective.
type ObjectiveStatus string

const (
	ObjectiveActive    ObjectiveStatus = "active"
	ObjectivePaused    ObjectiveStatus = "paused"
	ObjectiveCompleted ObjectiveStatus = "completed"
	ObjectiveAbandoned ObjectiveStatus = "abandoned"
)

const (
	maxObjectiveTitleLen       = 200
	maxObjectiveDescriptionLen = 2000
)

// Objective is an operator-declared goal the engine works toward.
// Objectives are created and mutated by the operator; the core never
// deletes them.
type Objective struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	Weight             float64         `json:"weight"`
	Status             ObjectiveStatus `json:"status"`
	AcceptanceCriteria []string        `json:"acceptanceCriteria,omitempty"`
	Tags               []string        `json:"tags,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// NewObjective creates an active objective with a clamped weight.
// The title must be 1-200 characters after trimming; the description is
// capped at 2000 characters.
func NewObjective(title, description string, weight float64) (*Objective, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("objective title is required")
	}
	if len(title) > maxObjectiveTitleLen {
		return nil, fmt.Errorf("objective title exceeds %d characters", maxObjectiveTitleLen)
	}
	if len(description) > maxObjectiveDescriptionLen {
		description = description[:maxObjectiveDescriptionLen]
	}
	now := Now()
	return &Objective{
		ID:          NewID(),
		Title:       title,
		Description: description,
		Weight:      Clamp01(weight),
		Status:      ObjectiveActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// SetWeight clamps and stores a new weight.
func (o *Objective) SetWeight(w float64) {
	o.Weight = Clamp01(w)
	o.UpdatedAt = Now()
}

// IsActive reports whether the objective participates in SCAN.
func (o *Objective) IsActive() bool {
	return o.Status == ObjectiveActive
}

// ActiveObjectives filters a roster down to active objectives.
func ActiveObjectives(objectives []*Objective) []*Objective {
	var active []*Objective
	for _, o := range objectives {
		if o.IsActive() {
			active = append(active, o)
		}
	}
	return active
}
