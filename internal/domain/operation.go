package domain

import "time"

// OperationType identifies a long-running backend job.
type OperationType string

const (
	OperationExtractLeads OperationType = "extract_leads"
	OperationEnrichLeads  OperationType = "enrich_leads"
	OperationFullPipeline OperationType = "full_pipeline"
)

// OperationTypes lists the supported operation types in display order.
var OperationTypes = []OperationType{OperationExtractLeads, OperationEnrichLeads, OperationFullPipeline}

// Label returns a human-readable name.
func (t OperationType) Label() string {
	switch t {
	case OperationExtractLeads:
		return "Lead extraction"
	case OperationEnrichLeads:
		return "Lead enrichment"
	case OperationFullPipeline:
		return "Full pipeline"
	default:
		return string(t)
	}
}

// Valid reports whether t is a known operation type.
func (t OperationType) Valid() bool {
	for _, known := range OperationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// OperationStatus is the lifecycle state of an Operation.
type OperationStatus string

const (
	StatusStarting  OperationStatus = "starting"
	StatusRunning   OperationStatus = "running"
	StatusCompleted OperationStatus = "completed"
	StatusFailed    OperationStatus = "failed"
)

// rank orders statuses along the forward-only lifecycle.
// Both terminal states share the highest rank.
func (s OperationStatus) rank() int {
	switch s {
	case StatusStarting:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether s is completed or failed.
func (s OperationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s OperationStatus) Valid() bool {
	return s.rank() >= 0
}

// CanAdvanceTo reports whether moving from s to next is a forward transition.
// A terminal status never advances.
func (s OperationStatus) CanAdvanceTo(next OperationStatus) bool {
	if !next.Valid() || s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// Operation is the client-side view of a long-running backend job.
type Operation struct {
	ID             string          `json:"id"`
	Type           OperationType   `json:"type"`
	Status         OperationStatus `json:"status"`
	Progress       int             `json:"progress"`
	CurrentStep    string          `json:"current_step"`
	LeadsProcessed int             `json:"leads_processed"`
	TotalLeads     int             `json:"total_leads"`
	Errors         []string        `json:"errors"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at,omitempty"`
}

// Clone returns a copy that shares no slices with o.
func (o Operation) Clone() Operation {
	if o.Errors != nil {
		o.Errors = append([]string(nil), o.Errors...)
	}
	return o
}

// ClampProgress bounds p to [0,100].
func ClampProgress(p float64) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return int(p)
	}
}

// OperationEvent is a progress notification for one operation, as delivered by
// the push channel or read back from the status endpoint.
type OperationEvent struct {
	OperationID    string
	Status         OperationStatus
	Progress       *float64
	CurrentStep    string
	LeadsProcessed *int
	TotalLeads     *int
	Errors         []string
}
