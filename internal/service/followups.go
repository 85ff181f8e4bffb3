package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/querycache"
)

// FollowupsAPI is the backend surface for proposal follow-ups
type FollowupsAPI interface {
	Followups(ctx context.Context, filter domain.FollowupFilter) ([]domain.Followup, error)
	GenerateDraft(ctx context.Context, followupID string) (domain.Draft, error)
	SendFollowup(ctx context.Context, d domain.Draft) error
	CompleteFollowup(ctx context.Context, followupID string) error
}

// FollowupService manages the proposal follow-up queue
type FollowupService struct {
	api    FollowupsAPI
	cache  *querycache.Cache
	opts   querycache.Options
	logger *slog.Logger
}

// NewFollowupService creates a FollowupService
func NewFollowupService(api FollowupsAPI, cache *querycache.Cache, interval time.Duration, logger *slog.Logger) *FollowupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FollowupService{api: api, cache: cache, opts: querycache.Options{Interval: interval}, logger: logger}
}

func followupKey(filter domain.FollowupFilter) querycache.Key {
	days := ""
	if filter.DaysBack > 0 {
		days = strconv.Itoa(filter.DaysBack)
	}
	return key(PrefixFollowups, "days_back", days, "status", string(filter.Status))
}

// List returns the follow-up queue for filter
func (s *FollowupService) List(ctx context.Context, filter domain.FollowupFilter) ([]domain.Followup, error) {
	if filter.DaysBack < 0 {
		return nil, domain.Invalid("days_back", "Days back must not be negative")
	}
	return querycache.Fetch(ctx, s.cache, followupKey(filter), s.opts, func(ctx context.Context) ([]domain.Followup, error) {
		return s.api.Followups(ctx, filter)
	})
}

// Refresh refetches the queue for filter
func (s *FollowupService) Refresh(ctx context.Context, filter domain.FollowupFilter) ([]domain.Followup, error) {
	return querycache.Refresh(ctx, s.cache, followupKey(filter), s.opts, func(ctx context.Context) ([]domain.Followup, error) {
		return s.api.Followups(ctx, filter)
	})
}

// GenerateDraft asks the AI service for a follow-up email
func (s *FollowupService) GenerateDraft(ctx context.Context, id string) (domain.Draft, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Draft{}, domain.Invalid("followup", "Select a follow-up first")
	}
	draft, err := s.api.GenerateDraft(ctx, id)
	if err != nil {
		return domain.Draft{}, err
	}
	s.cache.InvalidatePrefix(PrefixFollowups)
	return draft, nil
}

// Send emails the draft through Outlook
func (s *FollowupService) Send(ctx context.Context, d domain.Draft) error {
	switch {
	case strings.TrimSpace(d.FollowupID) == "":
		return domain.Invalid("followup", "Select a follow-up first")
	case strings.TrimSpace(d.Subject) == "":
		return domain.Invalid("subject", "Subject is required")
	case strings.TrimSpace(d.Body) == "":
		return domain.Invalid("body", "Email body is required")
	}
	if err := s.api.SendFollowup(ctx, d); err != nil {
		return err
	}
	s.logger.Info("follow-up sent", "followup_id", d.FollowupID)
	s.cache.InvalidatePrefix(PrefixFollowups)
	return nil
}

// MarkComplete removes a follow-up from the active queue
func (s *FollowupService) MarkComplete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.Invalid("followup", "Select a follow-up first")
	}
	if err := s.api.CompleteFollowup(ctx, id); err != nil {
		return err
	}
	s.cache.InvalidatePrefix(PrefixFollowups)
	return nil
}
