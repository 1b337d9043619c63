package model

import "time"

// OutcomeKind classifies what happened to one candidate.
type OutcomeKind string

const (
	OutcomePlanned  OutcomeKind = "planned"
	OutcomeCreated  OutcomeKind = "created"
	OutcomeUpdated  OutcomeKind = "updated"
	OutcomeLinked   OutcomeKind = "linked"
	OutcomeConflict OutcomeKind = "conflict"
	OutcomeNotFound OutcomeKind = "notFound"
	OutcomeInvalid  OutcomeKind = "invalid"
	OutcomeError    OutcomeKind = "error"
)

// OutcomeKinds lists every kind in reporting order.
var OutcomeKinds = []OutcomeKind{
	OutcomePlanned,
	OutcomeCreated,
	OutcomeUpdated,
	OutcomeLinked,
	OutcomeConflict,
	OutcomeNotFound,
	OutcomeInvalid,
	OutcomeError,
}

// Failed reports whether the kind is a per-item failure.
func (k OutcomeKind) Failed() bool {
	switch k {
	case OutcomeConflict, OutcomeNotFound, OutcomeInvalid, OutcomeError:
		return true
	default:
		return false
	}
}

// Outcome is the per-candidate result of a reconciliation.
type Outcome struct {
	ID     string      `json:"uid" yaml:"uid"`
	Phone  string      `json:"phone" yaml:"phone"`
	Email  string      `json:"email,omitempty" yaml:"email,omitempty"`
	Kind   OutcomeKind `json:"action" yaml:"action"`
	Detail string      `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// BatchResult aggregates the outcomes of one batch run. Items follow
// candidate order.
type BatchResult struct {
	RunID     string        `json:"runId" yaml:"runId"`
	DryRun    bool          `json:"dryRun" yaml:"dryRun"`
	Processed int           `json:"processed" yaml:"processed"`
	Planned   int           `json:"planned" yaml:"planned"`
	Created   int           `json:"created" yaml:"created"`
	Updated   int           `json:"updated" yaml:"updated"`
	Linked    int           `json:"linked" yaml:"linked"`
	Conflicts int           `json:"conflicts" yaml:"conflicts"`
	NotFound  int           `json:"notFound" yaml:"notFound"`
	Invalid   int           `json:"invalid" yaml:"invalid"`
	Errors    int           `json:"errors" yaml:"errors"`
	Items     []Outcome     `json:"items" yaml:"items"`
	StartedAt time.Time     `json:"startedAt" yaml:"startedAt"`
	Duration  time.Duration `json:"durationNs" yaml:"duration"`
}

// Add appends o and bumps its counter.
func (r *BatchResult) Add(o Outcome) {
	r.Items = append(r.Items, o)
	r.Processed++
	switch o.Kind {
	case OutcomePlanned:
		r.Planned++
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeLinked:
		r.Linked++
	case OutcomeConflict:
		r.Conflicts++
	case OutcomeNotFound:
		r.NotFound++
	case OutcomeInvalid:
		r.Invalid++
	default:
		r.Errors++
	}
}

// Count returns the counter for kind.
func (r *BatchResult) Count(kind OutcomeKind) int {
	switch kind {
	case OutcomePlanned:
		return r.Planned
	case OutcomeCreated:
		return r.Created
	case OutcomeUpdated:
		return r.Updated
	case OutcomeLinked:
		return r.Linked
	case OutcomeConflict:
		return r.Conflicts
	case OutcomeNotFound:
		return r.NotFound
	case OutcomeInvalid:
		return r.Invalid
	case OutcomeError:
		return r.Errors
	default:
		return 0
	}
}

// Failures returns the number of failed items.
func (r *BatchResult) Failures() int {
	return r.Conflicts + r.NotFound + r.Invalid + r.Errors
}
