// Package domain defines the entities shared across the autoloop engine:
// objectives, tasks, cycles, phase records, cost records and engine state.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current time in UTC, truncated to millisecond precision.
// All entity timestamps go through this so persisted values round-trip
// cleanly through JSON.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// TruthStatus classifies how much trust a knowledge-bearing record has earned.
type TruthStatus string

const (
	TruthVerified    TruthStatus = "verified"
	TruthHypothesis  TruthStatus = "hypothesis"
	TruthSpeculative TruthStatus = "speculative"
	TruthImplemented TruthStatus = "implemented"
	TruthFailed      TruthStatus = "failed"
	TruthArchived    TruthStatus = "archived"
)

// Confidence is the second half of a truth label.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// TruthLabel annotates knowledge-bearing entities with a status and a
// confidence level.
type TruthLabel struct {
	Status     TruthStatus `json:"truthStatus"`
	Confidence Confidence  `json:"confidence"`
}

// CoerceTruthStatus returns s if it is a known status, otherwise fallback.
func CoerceTruthStatus(s string, fallback TruthStatus) TruthStatus {
	switch TruthStatus(s) {
	case TruthVerified, TruthHypothesis, TruthSpeculative, TruthImplemented, TruthFailed, TruthArchived:
		return TruthStatus(s)
	}
	return fallback
}

// CoerceConfidence returns c if it is a known confidence, otherwise fallback.
func CoerceConfidence(c string, fallback Confidence) Confidence {
	switch Confidence(c) {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return Confidence(c)
	}
	return fallback
}

// ArtifactType enumerates the artifact kinds a worker may report.
type ArtifactType string

const (
	ArtifactBranch ArtifactType = "branch"
	ArtifactPR     ArtifactType = "pr"
	ArtifactFile   ArtifactType = "file"
	ArtifactURL    ArtifactType = "url"
	ArtifactLog    ArtifactType = "log"
)

// CoerceArtifactType returns t if it is a known artifact type, otherwise
// ArtifactLog.
func CoerceArtifactType(t string) ArtifactType {
	switch ArtifactType(t) {
	case ArtifactBranch, ArtifactPR, ArtifactFile, ArtifactURL, ArtifactLog:
		return ArtifactType(t)
	}
	return ArtifactLog
}

// Artifact is a pointer to something a task produced.
type Artifact struct {
	Type ArtifactType `json:"type"`
	Ref  string       `json:"ref"`
	Note string       `json:"note,omitempty"`
}

// Clamp01 clamps v into [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Phase names the five pipeline phases.
type Phase string

const (
	PhaseScan      Phase = "scan"
	PhasePlan      Phase = "plan"
	PhaseBuild     Phase = "build"
	PhaseShipCheck Phase = "ship_check"
	PhaseEval      Phase = "eval"
)

// Phases is the fixed execution order of a cycle.
var Phases = []Phase{PhaseScan, PhasePlan, PhaseBuild, PhaseShipCheck, PhaseEval}
