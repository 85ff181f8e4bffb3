package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/querycache"
)

// AssignmentsAPI is the backend surface for lead hand-offs
type AssignmentsAPI interface {
	Assignments(ctx context.Context, status domain.AssignmentStatus) ([]domain.LeadAssignment, error)
	AssignLead(ctx context.Context, leadID, assignee, note string) error
	RespondAssignment(ctx context.Context, id string, accept bool) error
}

// AssignmentService manages lead assignment requests
type AssignmentService struct {
	api    AssignmentsAPI
	cache  *querycache.Cache
	opts   querycache.Options
	logger *slog.Logger
}

// NewAssignmentService creates an AssignmentService
func NewAssignmentService(api AssignmentsAPI, cache *querycache.Cache, interval time.Duration, logger *slog.Logger) *AssignmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentService{api: api, cache: cache, opts: querycache.Options{Interval: interval}, logger: logger}
}

// List returns assignments, optionally filtered by status
func (s *AssignmentService) List(ctx context.Context, status domain.AssignmentStatus) ([]domain.LeadAssignment, error) {
	switch status {
	case "", domain.AssignmentPending, domain.AssignmentAccepted, domain.AssignmentRejected:
	default:
		return nil, domain.Invalid("status", "Unknown assignment status "+string(status))
	}
	return querycache.Fetch(ctx, s.cache, assignmentKey(status), s.opts, s.fetch(status))
}

// Refresh refetches assignments with status
func (s *AssignmentService) Refresh(ctx context.Context, status domain.AssignmentStatus) ([]domain.LeadAssignment, error) {
	return querycache.Refresh(ctx, s.cache, assignmentKey(status), s.opts, s.fetch(status))
}

func assignmentKey(status domain.AssignmentStatus) querycache.Key {
	return key(PrefixAssignments, "status", string(status))
}

func (s *AssignmentService) fetch(status domain.AssignmentStatus) func(ctx context.Context) ([]domain.LeadAssignment, error) {
	return func(ctx context.Context) ([]domain.LeadAssignment, error) {
		return s.api.Assignments(ctx, status)
	}
}

// Assign asks another user to take over a lead. Both a lead and a user must be selected.
func (s *AssignmentService) Assign(ctx context.Context, leadID, assignee, note string) error {
	if strings.TrimSpace(leadID) == "" {
		return domain.Invalid("lead", "Please select a lead")
	}
	if strings.TrimSpace(assignee) == "" {
		return domain.Invalid("user", "Please select a user to assign to")
	}
	if err := s.api.AssignLead(ctx, leadID, assignee, strings.TrimSpace(note)); err != nil {
		return err
	}
	s.logger.Info("lead assigned", "lead_id", leadID, "assignee", assignee)
	s.cache.InvalidatePrefix(PrefixAssignments)
	return nil
}

// Respond accepts or rejects an assignment
func (s *AssignmentService) Respond(ctx context.Context, id string, accept bool) error {
	if strings.TrimSpace(id) == "" {
		return domain.Invalid("assignment", "Select an assignment first")
	}
	if err := s.api.RespondAssignment(ctx, id, accept); err != nil {
		return err
	}
	s.cache.InvalidatePrefix(PrefixAssignments)
	// Accepting moves the lead between owners
	if accept {
		s.cache.Invalidate(key(PrefixLeadCounts))
	}
	return nil
}
