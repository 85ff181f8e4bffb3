package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/querycache"
)

// ReportsAPI is the backend surface for aggregate reports
type ReportsAPI interface {
	SavedReports(ctx context.Context) ([]domain.SavedReport, error)
	GenerateReport(ctx context.Context, req domain.ReportRequest) (domain.SavedReport, error)
	ExportReport(ctx context.Context, id, format string) (*domain.Blob, error)
}

// ReportService serves saved reports. The saved list is never refetched on a
// timer: reports are expensive to compute and only change on Generate.
type ReportService struct {
	api    ReportsAPI
	cache  *querycache.Cache
	logger *slog.Logger
}

// NewReportService creates a ReportService
func NewReportService(api ReportsAPI, cache *querycache.Cache, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{api: api, cache: cache, logger: logger}
}

var savedOpts = querycache.Options{NeverStale: true}

// Saved returns the saved reports. No reports is an empty list, not an error.
func (s *ReportService) Saved(ctx context.Context) ([]domain.SavedReport, error) {
	reports, err := querycache.Fetch(ctx, s.cache, key(PrefixSavedReports), savedOpts, s.fetchSaved)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []domain.SavedReport{}
	}
	return reports, nil
}

func (s *ReportService) fetchSaved(ctx context.Context) ([]domain.SavedReport, error) {
	reports, err := s.api.SavedReports(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.SavedReport{}, nil
	}
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []domain.SavedReport{}
	}
	return reports, nil
}

// Generate builds a report server-side. It can take minutes.
func (s *ReportService) Generate(ctx context.Context, req domain.ReportRequest) (domain.SavedReport, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.SavedReport{}, domain.Invalid("name", "Report name is required")
	}
	for field, v := range map[string]string{"date_from": req.DateFrom, "date_to": req.DateTo} {
		if v == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return domain.SavedReport{}, domain.Invalid(field, "Dates must be YYYY-MM-DD")
		}
	}
	if req.DateFrom != "" && req.DateTo != "" && req.DateFrom > req.DateTo {
		return domain.SavedReport{}, domain.Invalid("date_to", "End date must not be before start date")
	}

	start := time.Now()
	report, err := s.api.GenerateReport(ctx, req)
	if err != nil {
		return domain.SavedReport{}, err
	}
	s.logger.Info("report generated", "id", report.ID, "duration", time.Since(start))
	s.cache.Invalidate(key(PrefixSavedReports))
	return report, nil
}

// Export downloads a report in the given format (server default when empty)
func (s *ReportService) Export(ctx context.Context, id, format string) (*domain.Blob, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Invalid("report", "Select a report first")
	}
	return s.api.ExportReport(ctx, id, format)
}
