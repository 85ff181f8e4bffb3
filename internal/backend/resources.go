package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

// decodeList accepts either a bare JSON array or an object wrapping the array
// under key, since list endpoints use both shapes.
func decodeList[T any](raw json.RawMessage, key string) ([]T, error) {
	var items []T
	if len(raw) == 0 || string(raw) == "null" {
		return items, nil
	}
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("failed to parse %s list: %w", key, err)
		}
		return items, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse %s list: %w", key, err)
	}
	inner, ok := wrapped[key]
	if !ok || string(inner) == "null" {
		return items, nil
	}
	if err := json.Unmarshal(inner, &items); err != nil {
		return nil, fmt.Errorf("failed to parse %s list: %w", key, err)
	}
	return items, nil
}

func (c *Client) logQuarantine(q Quarantine) {
	if q.Count > 0 {
		c.logger.Warn("quarantined malformed records", "kind", q.Kind, "count", q.Count, "reasons", q.Reasons)
	}
}

// === Session ===

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp LoginResponse
	if err := c.Post(ctx, "/auth/login", map[string]string{"email": email, "password": password}, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("login response without access token")
	}
	return resp.AccessToken, nil
}

// RefreshToken exchanges the current token for a fresh one
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	var resp LoginResponse
	if err := c.Post(ctx, "/auth/refresh", nil, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("refresh response without access token")
	}
	return resp.AccessToken, nil
}

// === Operations ===

var operationPaths = map[domain.OperationType]string{
	domain.OperationExtractLeads: "/api/operations/extract-leads",
	domain.OperationEnrichLeads:  "/api/operations/enrich-leads",
	domain.OperationFullPipeline: "/api/operations/full-pipeline",
}

// StartOperation asks the backend to begin a long-running job and returns its id
func (c *Client) StartOperation(ctx context.Context, opType domain.OperationType) (string, error) {
	path, ok := operationPaths[opType]
	if !ok {
		return "", domain.Invalid("type", fmt.Sprintf("unknown operation type %q", opType))
	}
	var resp StartOperationResponse
	if err := c.Post(ctx, path, map[string]any{}, &resp); err != nil {
		return "", err
	}
	if resp.OperationID == "" {
		return "", fmt.Errorf("start %s: response without operation_id", opType)
	}
	return resp.OperationID, nil
}

// OperationStatus reads the current state of an operation
func (c *Client) OperationStatus(ctx context.Context, id string) (domain.OperationEvent, error) {
	var dto OperationStatusDTO
	if err := c.Get(ctx, "/api/operations/"+url.PathEscape(id), nil, &dto); err != nil {
		return domain.OperationEvent{}, err
	}
	if dto.OperationID == "" && dto.ID == "" {
		dto.OperationID = id
	}
	return MapOperationEvent(dto)
}

// LeadCounts returns the lead pool summary
func (c *Client) LeadCounts(ctx context.Context) (domain.LeadCounts, error) {
	var dto LeadCountsDTO
	if err := c.Get(ctx, "/api/leads/counts", nil, &dto); err != nil {
		return domain.LeadCounts{}, err
	}
	return MapLeadCounts(dto)
}

// === Outlook ===

// AuthorizationURL requests the Outlook consent URL and its state token
func (c *Client) AuthorizationURL(ctx context.Context) (domain.AuthorizationRequest, error) {
	var dto AuthorizeDTO
	if err := c.Get(ctx, "/auth/outlook/authorize", nil, &dto); err != nil {
		return domain.AuthorizationRequest{}, err
	}
	if dto.AuthURL == "" || dto.State == "" {
		return domain.AuthorizationRequest{}, fmt.Errorf("authorize response missing auth_url or state")
	}
	return domain.AuthorizationRequest{URL: dto.AuthURL, State: dto.State}, nil
}

// AuthorizationStatus returns the Outlook authorization state
func (c *Client) AuthorizationStatus(ctx context.Context) (domain.AuthorizationStatus, error) {
	var dto AuthStatusDTO
	if err := c.Get(ctx, "/auth/outlook/status", nil, &dto); err != nil {
		return domain.AuthorizationStatus{}, err
	}
	return MapAuthStatus(dto), nil
}

// RevokeAuthorization disconnects the Outlook account
func (c *Client) RevokeAuthorization(ctx context.Context) error {
	return c.Delete(ctx, "/auth/outlook/revoke", nil)
}

// === Proposal follow-ups ===

// Followups returns the follow-up queue
func (c *Client) Followups(ctx context.Context, filter domain.FollowupFilter) ([]domain.Followup, error) {
	query := url.Values{}
	if filter.DaysBack > 0 {
		query.Set("days_back", strconv.Itoa(filter.DaysBack))
	}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	var raw json.RawMessage
	if err := c.Get(ctx, "/proposal-followups/", query, &raw); err != nil {
		return nil, err
	}
	dtos, err := decodeList[FollowupDTO](raw, "followups")
	if err != nil {
		return nil, err
	}
	items, q := MapFollowups(dtos)
	c.logQuarantine(q)
	return items, nil
}

// GenerateDraft asks the AI service for a follow-up email
func (c *Client) GenerateDraft(ctx context.Context, followupID string) (domain.Draft, error) {
	var dto DraftDTO
	if err := c.Long().Post(ctx, "/proposal-followups/"+url.PathEscape(followupID)+"/draft", map[string]any{}, &dto); err != nil {
		return domain.Draft{}, err
	}
	return domain.Draft{FollowupID: followupID, Subject: dto.Subject, Body: dto.Body}, nil
}

// SendFollowup sends a follow-up email through Outlook
func (c *Client) SendFollowup(ctx context.Context, d domain.Draft) error {
	body := map[string]string{"subject": d.Subject, "body": d.Body}
	return c.Post(ctx, "/proposal-followups/"+url.PathEscape(d.FollowupID)+"/send", body, nil)
}

// CompleteFollowup marks a follow-up as handled
func (c *Client) CompleteFollowup(ctx context.Context, followupID string) error {
	return c.Post(ctx, "/proposal-followups/"+url.PathEscape(followupID)+"/complete", map[string]any{}, nil)
}

// === NDA analysis ===

// UploadNDA uploads a contract for analysis
func (c *Client) UploadNDA(ctx context.Context, filename string, content io.Reader) (domain.NDADocument, error) {
	var dto NDADocumentDTO
	if err := c.PostMultipart(ctx, "/nda/upload", Upload{Filename: filename, Content: content}, &dto); err != nil {
		return domain.NDADocument{}, err
	}
	return MapNDADocument(dto)
}

// NDADocuments lists uploaded contracts
func (c *Client) NDADocuments(ctx context.Context) ([]domain.NDADocument, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, "/nda/documents", nil, &raw); err != nil {
		return nil, err
	}
	dtos, err := decodeList[NDADocumentDTO](raw, "documents")
	if err != nil {
		return nil, err
	}
	docs, q := MapNDADocuments(dtos)
	c.logQuarantine(q)
	return docs, nil
}

// NDADocument returns one contract with its analysis
func (c *Client) NDADocument(ctx context.Context, id string) (domain.NDADocument, error) {
	var dto NDADocumentDTO
	if err := c.Get(ctx, "/nda/documents/"+url.PathEscape(id), nil, &dto); err != nil {
		return domain.NDADocument{}, err
	}
	return MapNDADocument(dto)
}

// AnalyzeNDA runs the AI analysis on a contract
func (c *Client) AnalyzeNDA(ctx context.Context, id string) (domain.NDADocument, error) {
	var dto NDADocumentDTO
	if err := c.Long().Post(ctx, "/nda/documents/"+url.PathEscape(id)+"/analyze", map[string]any{}, &dto); err != nil {
		return domain.NDADocument{}, err
	}
	return MapNDADocument(dto)
}

// DeleteNDA removes a contract
func (c *Client) DeleteNDA(ctx context.Context, id string) error {
	return c.Delete(ctx, "/nda/documents/"+url.PathEscape(id), nil)
}

// === Knowledge base ===

// UploadKnowledgeDocument uploads a PDF to the knowledge base
func (c *Client) UploadKnowledgeDocument(ctx context.Context, filename string, content io.Reader) (domain.KnowledgeDocument, error) {
	var dto KnowledgeDocumentDTO
	if err := c.PostMultipart(ctx, "/knowledge-base/upload", Upload{Filename: filename, Content: content}, &dto); err != nil {
		return domain.KnowledgeDocument{}, err
	}
	docs, q := MapKnowledgeDocuments([]KnowledgeDocumentDTO{dto})
	if len(docs) == 0 {
		return domain.KnowledgeDocument{}, fmt.Errorf("upload response rejected: %v", q.Reasons)
	}
	return docs[0], nil
}

// KnowledgeDocuments lists the knowledge base
func (c *Client) KnowledgeDocuments(ctx context.Context) ([]domain.KnowledgeDocument, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, "/knowledge-base/documents", nil, &raw); err != nil {
		return nil, err
	}
	dtos, err := decodeList[KnowledgeDocumentDTO](raw, "documents")
	if err != nil {
		return nil, err
	}
	docs, q := MapKnowledgeDocuments(dtos)
	c.logQuarantine(q)
	return docs, nil
}

// DeleteKnowledgeDocument removes a PDF from the knowledge base
func (c *Client) DeleteKnowledgeDocument(ctx context.Context, id string) error {
	return c.Delete(ctx, "/knowledge-base/documents/"+url.PathEscape(id), nil)
}

// === Lead assignments ===

// Assignments lists lead assignment requests, optionally by status
func (c *Client) Assignments(ctx context.Context, status domain.AssignmentStatus) ([]domain.LeadAssignment, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", string(status))
	}
	var raw json.RawMessage
	if err := c.Get(ctx, "/lead-assignments/", query, &raw); err != nil {
		return nil, err
	}
	dtos, err := decodeList[AssignmentDTO](raw, "assignments")
	if err != nil {
		return nil, err
	}
	items, q := MapAssignments(dtos)
	c.logQuarantine(q)
	return items, nil
}

// AssignLead creates an assignment request
func (c *Client) AssignLead(ctx context.Context, leadID, assignee, note string) error {
	body := map[string]string{"lead_id": leadID, "assigned_to": assignee, "note": note}
	return c.Post(ctx, "/lead-assignments/", body, nil)
}

// RespondAssignment accepts or rejects an assignment
func (c *Client) RespondAssignment(ctx context.Context, id string, accept bool) error {
	action := "reject"
	if accept {
		action = "accept"
	}
	return c.Post(ctx, "/lead-assignments/"+url.PathEscape(id)+"/respond", map[string]string{"action": action}, nil)
}

// === Reports ===

// SavedReports lists previously generated reports
func (c *Client) SavedReports(ctx context.Context) ([]domain.SavedReport, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, "/reports/saved", nil, &raw); err != nil {
		return nil, err
	}
	dtos, err := decodeList[SavedReportDTO](raw, "reports")
	if err != nil {
		return nil, err
	}
	items, q := MapSavedReports(dtos)
	c.logQuarantine(q)
	return items, nil
}

// GenerateReport builds a report server-side. It may run for minutes.
func (c *Client) GenerateReport(ctx context.Context, req domain.ReportRequest) (domain.SavedReport, error) {
	var dto SavedReportDTO
	if err := c.Long().Post(ctx, "/reports/generate", req, &dto); err != nil {
		return domain.SavedReport{}, err
	}
	items, q := MapSavedReports([]SavedReportDTO{dto})
	if len(items) == 0 {
		return domain.SavedReport{}, fmt.Errorf("generate response rejected: %v", q.Reasons)
	}
	return items[0], nil
}

// ExportReport downloads a report as a file
func (c *Client) ExportReport(ctx context.Context, id, format string) (*domain.Blob, error) {
	query := url.Values{}
	if format != "" {
		query.Set("format", format)
	}
	return c.Long().Download(ctx, "/reports/"+url.PathEscape(id)+"/export", query)
}
