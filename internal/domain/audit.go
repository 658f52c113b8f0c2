package domain

import "time"

// DecisionLogEntry is an append-only audit record of a decision made by
// the operator or the engine (approvals, rejections, policy changes).
type DecisionLogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Subject   string    `json:"subject"`
	Decision  string    `json:"decision"`
	Reason    string    `json:"reason,omitempty"`
}

// NewDecision creates a timestamped decision entry.
func NewDecision(actor, subject, decision, reason string) DecisionLogEntry {
	return DecisionLogEntry{
		ID:        NewID(),
		Timestamp: Now(),
		Actor:     actor,
		Subject:   subject,
		Decision:  decision,
		Reason:    reason,
	}
}

// ExperimentLogEntry is an append-only record of an experiment the engine
// ran or proposed, carrying a truth label for later verification.
type ExperimentLogEntry struct {
	ID         string     `json:"id"`
	Timestamp  time.Time  `json:"timestamp"`
	Name       string     `json:"name"`
	Hypothesis string     `json:"hypothesis,omitempty"`
	Result     string     `json:"result,omitempty"`
	Truth      TruthLabel `json:"truth"`
}
