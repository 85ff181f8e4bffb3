package backend

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

// Mapping validates payloads at the boundary. A list entry that fails
// validation is quarantined: dropped and counted, never passed through.

// Quarantine records entries dropped while mapping a list.
type Quarantine struct {
	Kind    string
	Count   int
	Reasons []string
}

func (q *Quarantine) add(reason string) {
	q.Count++
	q.Reasons = append(q.Reasons, reason)
}

// idString normalises Odoo-style numeric ids and string ids
func idString(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		id = strings.TrimSpace(id)
		return id, id != ""
	case float64:
		if id != math.Trunc(id) || id < 0 {
			return "", false
		}
		return strconv.FormatInt(int64(id), 10), true
	default:
		return "", false
	}
}

// parseTime accepts RFC 3339 and the naive ISO timestamps Odoo emits.
// An empty or unparseable value maps to the zero time.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// MapOperationEvent converts a status payload into a tracker event
func MapOperationEvent(dto OperationStatusDTO) (domain.OperationEvent, error) {
	id := dto.OperationID
	if id == "" {
		id = dto.ID
	}
	if id == "" {
		return domain.OperationEvent{}, fmt.Errorf("operation event without id")
	}
	status := domain.OperationStatus(strings.ToLower(dto.Status))
	if !status.Valid() {
		return domain.OperationEvent{}, fmt.Errorf("operation %s: unknown status %q", id, dto.Status)
	}
	if dto.LeadsProcessed != nil && *dto.LeadsProcessed < 0 {
		return domain.OperationEvent{}, fmt.Errorf("operation %s: negative leads_processed", id)
	}
	if dto.TotalLeads != nil && *dto.TotalLeads < 0 {
		return domain.OperationEvent{}, fmt.Errorf("operation %s: negative total_leads", id)
	}
	return domain.OperationEvent{
		OperationID:    id,
		Status:         status,
		Progress:       dto.Progress,
		CurrentStep:    dto.CurrentStep,
		LeadsProcessed: dto.LeadsProcessed,
		TotalLeads:     dto.TotalLeads,
		Errors:         dto.Errors,
	}, nil
}

// MapLeadCounts rejects payloads with missing totals or negative counts
func MapLeadCounts(dto LeadCountsDTO) (domain.LeadCounts, error) {
	if dto.Total == nil {
		return domain.LeadCounts{}, fmt.Errorf("lead counts: missing total")
	}
	counts := domain.LeadCounts{
		Total:      *dto.Total,
		Enriched:   deref(dto.Enriched),
		Unenriched: deref(dto.Unenriched),
		Assigned:   deref(dto.Assigned),
	}
	if counts.Total < 0 || counts.Enriched < 0 || counts.Unenriched < 0 || counts.Assigned < 0 {
		return domain.LeadCounts{}, fmt.Errorf("lead counts: negative value")
	}
	return counts, nil
}

// MapAuthStatus converts the Outlook status payload
func MapAuthStatus(dto AuthStatusDTO) domain.AuthorizationStatus {
	return domain.AuthorizationStatus{
		Authorized:  dto.Authorized,
		UserEmail:   deref(dto.UserEmail),
		UserName:    deref(dto.UserName),
		ExpiresSoon: deref(dto.ExpiresSoon),
	}
}

// MapFollowups converts the follow-up queue
func MapFollowups(dtos []FollowupDTO) ([]domain.Followup, Quarantine) {
	q := Quarantine{Kind: "followup"}
	out := make([]domain.Followup, 0, len(dtos))
	for i, d := range dtos {
		id, ok := idString(d.ID)
		if !ok {
			q.add(fmt.Sprintf("entry %d: missing id", i))
			continue
		}
		status := domain.FollowupStatus(strings.ToLower(d.Status))
		switch status {
		case "":
			status = domain.FollowupPending
		case domain.FollowupPending, domain.FollowupDrafted, domain.FollowupSent, domain.FollowupCompleted:
		default:
			q.add(fmt.Sprintf("followup %s: unknown status %q", id, d.Status))
			continue
		}
		days := deref(d.DaysSince)
		if days < 0 {
			q.add(fmt.Sprintf("followup %s: negative days_since", id))
			continue
		}
		out = append(out, domain.Followup{
			ID:             id,
			LeadName:       d.LeadName,
			PartnerEmail:   d.PartnerEmail,
			ProposalSentAt: parseTime(d.ProposalSentAt),
			DaysSince:      days,
			Status:         status,
			Draft:          deref(d.Draft),
		})
	}
	return out, q
}

// MapNDADocument converts a single NDA record
func MapNDADocument(d NDADocumentDTO) (domain.NDADocument, error) {
	id, ok := idString(d.ID)
	if !ok {
		return domain.NDADocument{}, fmt.Errorf("nda document: missing id")
	}
	status := domain.NDAStatus(strings.ToLower(d.Status))
	switch status {
	case "":
		status = domain.NDAUploaded
	case domain.NDAUploaded, domain.NDAAnalyzing, domain.NDAAnalyzed, domain.NDAFailed:
	default:
		return domain.NDADocument{}, fmt.Errorf("nda document %s: unknown status %q", id, d.Status)
	}
	return domain.NDADocument{
		ID:         id,
		Filename:   d.Filename,
		Status:     status,
		RiskLevel:  deref(d.RiskLevel),
		Summary:    deref(d.Summary),
		Findings:   d.Findings,
		UploadedAt: parseTime(d.UploadedAt),
	}, nil
}

// MapNDADocuments converts the NDA list
func MapNDADocuments(dtos []NDADocumentDTO) ([]domain.NDADocument, Quarantine) {
	q := Quarantine{Kind: "nda_document"}
	out := make([]domain.NDADocument, 0, len(dtos))
	for _, d := range dtos {
		doc, err := MapNDADocument(d)
		if err != nil {
			q.add(err.Error())
			continue
		}
		out = append(out, doc)
	}
	return out, q
}

// MapKnowledgeDocuments converts the knowledge-base list
func MapKnowledgeDocuments(dtos []KnowledgeDocumentDTO) ([]domain.KnowledgeDocument, Quarantine) {
	q := Quarantine{Kind: "knowledge_document"}
	out := make([]domain.KnowledgeDocument, 0, len(dtos))
	for i, d := range dtos {
		id, ok := idString(d.ID)
		if !ok {
			q.add(fmt.Sprintf("entry %d: missing id", i))
			continue
		}
		if d.Filename == "" {
			q.add(fmt.Sprintf("document %s: missing filename", id))
			continue
		}
		out = append(out, domain.KnowledgeDocument{
			ID:         id,
			Filename:   d.Filename,
			Pages:      deref(d.Pages),
			UploadedAt: parseTime(d.UploadedAt),
		})
	}
	return out, q
}

// MapAssignments converts the lead assignment list
func MapAssignments(dtos []AssignmentDTO) ([]domain.LeadAssignment, Quarantine) {
	q := Quarantine{Kind: "lead_assignment"}
	out := make([]domain.LeadAssignment, 0, len(dtos))
	for i, d := range dtos {
		id, ok := idString(d.ID)
		if !ok {
			q.add(fmt.Sprintf("entry %d: missing id", i))
			continue
		}
		leadID, ok := idString(d.LeadID)
		if !ok {
			q.add(fmt.Sprintf("assignment %s: missing lead_id", id))
			continue
		}
		status := domain.AssignmentStatus(strings.ToLower(d.Status))
		switch status {
		case "":
			status = domain.AssignmentPending
		case domain.AssignmentPending, domain.AssignmentAccepted, domain.AssignmentRejected:
		default:
			q.add(fmt.Sprintf("assignment %s: unknown status %q", id, d.Status))
			continue
		}
		out = append(out, domain.LeadAssignment{
			ID:         id,
			LeadID:     leadID,
			LeadName:   d.LeadName,
			AssignedTo: d.AssignedTo,
			AssignedBy: d.AssignedBy,
			Status:     status,
			Note:       deref(d.Note),
			CreatedAt:  parseTime(d.CreatedAt),
		})
	}
	return out, q
}

// MapSavedReports converts the saved report list
func MapSavedReports(dtos []SavedReportDTO) ([]domain.SavedReport, Quarantine) {
	q := Quarantine{Kind: "saved_report"}
	out := make([]domain.SavedReport, 0, len(dtos))
	for i, d := range dtos {
		id, ok := idString(d.ID)
		if !ok {
			q.add(fmt.Sprintf("entry %d: missing id", i))
			continue
		}
		out = append(out, domain.SavedReport{
			ID:        id,
			Name:      d.Name,
			Period:    d.Period,
			RowCount:  deref(d.RowCount),
			CreatedAt: parseTime(d.CreatedAt),
		})
	}
	return out, q
}
