package backend

// Wire shapes as the backend emits them. Optional fields are pointers so the
// mapper can tell "absent" from "zero"; nothing here reaches callers directly.

// LoginResponse is returned by /auth/login and /auth/refresh
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// StartOperationResponse is returned when an operation is accepted
type StartOperationResponse struct {
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// OperationStatusDTO is both the push payload and the status endpoint body
type OperationStatusDTO struct {
	OperationID    string   `json:"operation_id"`
	ID             string   `json:"id"`
	Status         string   `json:"status"`
	Progress       *float64 `json:"progress"`
	CurrentStep    string   `json:"current_step"`
	LeadsProcessed *int     `json:"leads_processed"`
	TotalLeads     *int     `json:"total_leads"`
	Errors         []string `json:"errors"`
}

// LeadCountsDTO is the lead pool summary
type LeadCountsDTO struct {
	Total      *int `json:"total"`
	Enriched   *int `json:"enriched"`
	Unenriched *int `json:"unenriched"`
	Assigned   *int `json:"assigned"`
}

// AuthorizeDTO is the OAuth redirect target
type AuthorizeDTO struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// AuthStatusDTO is the Outlook authorization state
type AuthStatusDTO struct {
	Authorized  bool    `json:"authorized"`
	UserEmail   *string `json:"user_email"`
	UserName    *string `json:"user_name"`
	ExpiresSoon *bool   `json:"expires_soon"`
}

// FollowupDTO is one proposal follow-up
type FollowupDTO struct {
	ID             any     `json:"id"`
	LeadName       string  `json:"lead_name"`
	PartnerEmail   string  `json:"partner_email"`
	ProposalSentAt string  `json:"proposal_sent_at"`
	DaysSince      *int    `json:"days_since"`
	Status         string  `json:"status"`
	Draft          *string `json:"draft"`
}

// FollowupListDTO wraps the follow-up queue
type FollowupListDTO struct {
	Followups []FollowupDTO `json:"followups"`
}

// DraftDTO is an AI-generated follow-up email
type DraftDTO struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NDADocumentDTO is one uploaded NDA
type NDADocumentDTO struct {
	ID         any      `json:"id"`
	Filename   string   `json:"filename"`
	Status     string   `json:"status"`
	RiskLevel  *string  `json:"risk_level"`
	Summary    *string  `json:"summary"`
	Findings   []string `json:"findings"`
	UploadedAt string   `json:"uploaded_at"`
}

// KnowledgeDocumentDTO is one knowledge-base PDF
type KnowledgeDocumentDTO struct {
	ID         any    `json:"id"`
	Filename   string `json:"filename"`
	Pages      *int   `json:"pages"`
	UploadedAt string `json:"uploaded_at"`
}

// AssignmentDTO is one lead assignment request
type AssignmentDTO struct {
	ID         any     `json:"id"`
	LeadID     any     `json:"lead_id"`
	LeadName   string  `json:"lead_name"`
	AssignedTo string  `json:"assigned_to"`
	AssignedBy string  `json:"assigned_by"`
	Status     string  `json:"status"`
	Note       *string `json:"note"`
	CreatedAt  string  `json:"created_at"`
}

// SavedReportDTO is one saved report
type SavedReportDTO struct {
	ID        any    `json:"id"`
	Name      string `json:"name"`
	Period    string `json:"period"`
	RowCount  *int   `json:"row_count"`
	CreatedAt string `json:"created_at"`
}
