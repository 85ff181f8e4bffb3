package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

// Dashboard is everything the overview shows. A section whose fetch failed
// keeps its zero value and records the error.
type Dashboard struct {
	Counts      domain.LeadCounts
	Outlook     domain.AuthorizationStatus
	Followups   []domain.Followup
	NDAs        []domain.NDADocument
	Knowledge   []domain.KnowledgeDocument
	Assignments []domain.LeadAssignment
	Reports     []domain.SavedReport
	Errors      map[string]error
}

// DashboardService loads every dashboard section in parallel
type DashboardService struct {
	Leads       *LeadService
	Outlook     *OutlookService
	Followups   *FollowupService
	NDA         *NDAService
	Knowledge   *KnowledgeService
	Assignments *AssignmentService
	Reports     *ReportService
	logger      *slog.Logger
}

// NewDashboardService creates a DashboardService
func NewDashboardService(leads *LeadService, outlook *OutlookService, followups *FollowupService,
	nda *NDAService, knowledge *KnowledgeService, assignments *AssignmentService, reports *ReportService,
	logger *slog.Logger) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{
		Leads: leads, Outlook: outlook, Followups: followups, NDA: nda,
		Knowledge: knowledge, Assignments: assignments, Reports: reports, logger: logger,
	}
}

// Load fetches all sections. Sections fail independently; Load only returns
// an error when ctx is done.
func (s *DashboardService) Load(ctx context.Context, filter domain.FollowupFilter) (*Dashboard, error) {
	d := &Dashboard{Errors: make(map[string]error)}
	errs := make(chan sectionError, 7)

	g, gctx := errgroup.WithContext(ctx)
	section := func(name string, fn func(ctx context.Context) error) {
		g.Go(func() error {
			if err := fn(gctx); err != nil {
				errs <- sectionError{name, err}
			}
			return nil
		})
	}

	section("counts", func(ctx context.Context) (err error) { d.Counts, err = s.Leads.Counts(ctx); return })
	section("outlook", func(ctx context.Context) (err error) { d.Outlook, err = s.Outlook.Status(ctx); return })
	section("followups", func(ctx context.Context) (err error) { d.Followups, err = s.Followups.List(ctx, filter); return })
	section("nda", func(ctx context.Context) (err error) { d.NDAs, err = s.NDA.List(ctx); return })
	section("knowledge", func(ctx context.Context) (err error) { d.Knowledge, err = s.Knowledge.List(ctx); return })
	section("assignments", func(ctx context.Context) (err error) {
		d.Assignments, err = s.Assignments.List(ctx, domain.AssignmentPending)
		return
	})
	section("reports", func(ctx context.Context) (err error) { d.Reports, err = s.Reports.Saved(ctx); return })

	_ = g.Wait()
	close(errs)
	for e := range errs {
		s.logger.Warn("dashboard section failed", "section", e.name, "error", e.err)
		d.Errors[e.name] = e.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload invalidates every polled section and loads again
func (s *DashboardService) Reload(ctx context.Context, filter domain.FollowupFilter) (*Dashboard, error) {
	for _, prefix := range DashboardPrefixes() {
		s.Leads.cache.InvalidatePrefix(prefix)
	}
	return s.Load(ctx, filter)
}

type sectionError struct {
	name string
	err  error
}
