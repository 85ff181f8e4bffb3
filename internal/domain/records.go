package domain

import "time"

// LeadCounts summarises the CRM lead pool.
type LeadCounts struct {
	Total      int `json:"total"`
	Enriched   int `json:"enriched"`
	Unenriched int `json:"unenriched"`
	Assigned   int `json:"assigned"`
}

// FollowupStatus tracks a proposal follow-up through the queue.
type FollowupStatus string

const (
	FollowupPending   FollowupStatus = "pending"
	FollowupDrafted   FollowupStatus = "drafted"
	FollowupSent      FollowupStatus = "sent"
	FollowupCompleted FollowupStatus = "completed"
)

// Followup is a proposal that has gone unanswered and needs a nudge.
type Followup struct {
	ID             string         `json:"id"`
	LeadName       string         `json:"lead_name"`
	PartnerEmail   string         `json:"partner_email"`
	ProposalSentAt time.Time      `json:"proposal_sent_at"`
	DaysSince      int            `json:"days_since"`
	Status         FollowupStatus `json:"status"`
	Draft          string         `json:"draft,omitempty"`
}

// FollowupFilter narrows the follow-up queue.
type FollowupFilter struct {
	DaysBack int
	Status   FollowupStatus
}

// Draft is an AI-generated follow-up email.
type Draft struct {
	FollowupID string `json:"followup_id"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// NDAStatus tracks contract analysis.
type NDAStatus string

const (
	NDAUploaded  NDAStatus = "uploaded"
	NDAAnalyzing NDAStatus = "analyzing"
	NDAAnalyzed  NDAStatus = "analyzed"
	NDAFailed    NDAStatus = "failed"
)

// NDADocument is an uploaded NDA or contract and its analysis.
type NDADocument struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Status     NDAStatus `json:"status"`
	RiskLevel  string    `json:"risk_level,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Findings   []string  `json:"findings,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// KnowledgeDocument is a PDF in the AI knowledge base.
type KnowledgeDocument struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Pages      int       `json:"pages"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// AssignmentStatus tracks a lead hand-off between sales reps.
type AssignmentStatus string

const (
	AssignmentPending  AssignmentStatus = "pending"
	AssignmentAccepted AssignmentStatus = "accepted"
	AssignmentRejected AssignmentStatus = "rejected"
)

// LeadAssignment is a request to hand a lead to another user.
type LeadAssignment struct {
	ID         string           `json:"id"`
	LeadID     string           `json:"lead_id"`
	LeadName   string           `json:"lead_name"`
	AssignedTo string           `json:"assigned_to"`
	AssignedBy string           `json:"assigned_by"`
	Status     AssignmentStatus `json:"status"`
	Note       string           `json:"note,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// SavedReport is a previously generated server-side aggregate report.
type SavedReport struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Period    string    `json:"period"`
	RowCount  int       `json:"row_count"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportRequest describes a report to generate.
type ReportRequest struct {
	Name     string `json:"name"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

// Blob is a binary export with the filename the server suggested.
type Blob struct {
	Filename    string
	ContentType string
	Data        []byte
}
