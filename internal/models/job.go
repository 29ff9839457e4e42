package models

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Status is the lifecycle state of an evaluation job.
type Status string

const (
	StatusCreated            Status = "created"
	StatusInProgress         Status = "in_progress"
	StatusComplete           Status = "complete"
	StatusRequiresManualData Status = "requires_manual_data"
	StatusOnHold             Status = "on_hold"
	StatusCancelled          Status = "cancelled"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("models: invalid status transition")

// allowedTransitions lists every legal edge of the job state machine. Complete and
// Cancelled have no outgoing edges.
var allowedTransitions = map[Status][]Status{
	StatusCreated:            {StatusInProgress, StatusOnHold, StatusCancelled},
	StatusInProgress:         {StatusComplete, StatusRequiresManualData, StatusOnHold, StatusCancelled},
	StatusRequiresManualData: {StatusInProgress, StatusOnHold, StatusCancelled},
	StatusOnHold:             {StatusInProgress, StatusCancelled},
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusCancelled
}

// CanTransitionTo reports whether the edge s -> next exists.
func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(allowedTransitions[s], next)
}

// Severity grades a DataGap.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// DataGap records a missing or partial data point.
type DataGap struct {
	Section  string   `json:"section"`
	Field    string   `json:"field"`
	Reason   string   `json:"reason"`
	Severity Severity `json:"severity"`
}

// Purpose tags why an evaluation was requested; it decides which categories are
// required.
type Purpose string

const (
	PurposeResidentialBuild Purpose = "residential-build"
	PurposeSubdivision      Purpose = "subdivision"
	PurposePurchase         Purpose = "purchase"
	PurposeFeasibility      Purpose = "feasibility"
)

var requiredCategories = map[Purpose][]Category{
	PurposeResidentialBuild: {CategoryZoning, CategoryHazard, CategoryGeotech},
	PurposeSubdivision:      {CategoryZoning, CategoryLand, CategoryInfrastructure},
	PurposePurchase:         {CategoryLand, CategoryHazard},
}

// ParsePurpose validates a purpose tag. An empty string means feasibility.
func ParsePurpose(s string) (Purpose, error) {
	switch p := Purpose(s); p {
	case "":
		return PurposeFeasibility, nil
	case PurposeResidentialBuild, PurposeSubdivision, PurposePurchase, PurposeFeasibility:
		return p, nil
	}
	return "", fmt.Errorf("models: unknown purpose %q", s)
}

// Requires reports whether the category is mandatory for the purpose.
func (p Purpose) Requires(c Category) bool {
	return slices.Contains(requiredCategories[p], c)
}

// SectionStatus classifies one category of a Location.
type SectionStatus string

const (
	SectionMissing  SectionStatus = "missing"
	SectionPartial  SectionStatus = "partial"
	SectionComplete SectionStatus = "complete"
)

// DataSectionStatus is the per-category view kept on a job.
type DataSectionStatus struct {
	Status        SectionStatus `json:"status"`
	EvidenceField string        `json:"evidence_field"`
	CachedAt      *time.Time    `json:"cached_at,omitempty"`
}

// CompletenessReport scores how much of a Location is populated.
type CompletenessReport struct {
	Sections      map[Category]DataSectionStatus `json:"sections"`
	CompleteCount int                            `json:"complete_count"`
	PartialCount  int                            `json:"partial_count"`
	MissingCount  int                            `json:"missing_count"`
	Percentage    float64                        `json:"percentage"`
}

// EvaluationJob is one evaluation request against a shared Location.
type EvaluationJob struct {
	ID              string                         `json:"id"`
	LocationID      string                         `json:"location_id"`
	Requester       string                         `json:"requester"`
	Customer        string                         `json:"customer,omitempty"`
	Purpose         Purpose                        `json:"purpose"`
	Status          Status                         `json:"status"`
	Sections        map[Category]DataSectionStatus `json:"sections"`
	CompletenessPct float64                        `json:"completeness_pct"`
	Gaps            []DataGap                      `json:"gaps"`
	CreatedAt       time.Time                      `json:"created_at"`
	UpdatedAt       time.Time                      `json:"updated_at"`
	CompletedAt     *time.Time                     `json:"completed_at,omitempty"`
}

// TransitionTo moves the job to next if the state machine allows it. Moving to the
// current status is a no-op.
func (j *EvaluationJob) TransitionTo(next Status, now time.Time) error {
	if j.Status == next {
		return nil
	}
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	j.UpdatedAt = now
	if next.IsTerminal() {
		at := now
		j.CompletedAt = &at
	}
	return nil
}

// HasCriticalGap reports whether any recorded gap blocks completion.
func (j *EvaluationJob) HasCriticalGap() bool {
	return HasCriticalGap(j.Gaps)
}

// HasCriticalGap reports whether any gap in the list is Critical.
func HasCriticalGap(gaps []DataGap) bool {
	for _, g := range gaps {
		if g.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
