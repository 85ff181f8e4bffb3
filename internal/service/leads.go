package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/oauth"
	"github.com/SFZPL/lead-automation-system-sub000/internal/querycache"
)

// LeadsAPI is the backend surface for lead counts
type LeadsAPI interface {
	LeadCounts(ctx context.Context) (domain.LeadCounts, error)
}

// LeadService serves the lead pool summary
type LeadService struct {
	api   LeadsAPI
	cache *querycache.Cache
	opts  querycache.Options
}

// NewLeadService creates a LeadService that refetches every interval
func NewLeadService(api LeadsAPI, cache *querycache.Cache, interval time.Duration) *LeadService {
	return &LeadService{api: api, cache: cache, opts: querycache.Options{Interval: interval}}
}

// Counts returns the (possibly cached) lead counts
func (s *LeadService) Counts(ctx context.Context) (domain.LeadCounts, error) {
	return querycache.Fetch(ctx, s.cache, key(PrefixLeadCounts), s.opts, s.api.LeadCounts)
}

// Refresh refetches the lead counts
func (s *LeadService) Refresh(ctx context.Context) (domain.LeadCounts, error) {
	return querycache.Refresh(ctx, s.cache, key(PrefixLeadCounts), s.opts, s.api.LeadCounts)
}

// Invalidate marks the counts stale, e.g. after an operation finishes
func (s *LeadService) Invalidate() {
	s.cache.Invalidate(key(PrefixLeadCounts))
}

// OutlookService exposes the Outlook connection state through the cache
type OutlookService struct {
	connector *oauth.Connector
	cache     *querycache.Cache
	opts      querycache.Options
	logger    *slog.Logger
}

// NewOutlookService creates an OutlookService
func NewOutlookService(connector *oauth.Connector, cache *querycache.Cache, interval time.Duration, logger *slog.Logger) *OutlookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutlookService{connector: connector, cache: cache, opts: querycache.Options{Interval: interval}, logger: logger}
}

// Status returns the (possibly cached) authorization status
func (s *OutlookService) Status(ctx context.Context) (domain.AuthorizationStatus, error) {
	return querycache.Fetch(ctx, s.cache, key(PrefixOutlookStatus), s.opts, s.connector.Status)
}

// Refresh refetches the authorization status
func (s *OutlookService) Refresh(ctx context.Context) (domain.AuthorizationStatus, error) {
	return querycache.Refresh(ctx, s.cache, key(PrefixOutlookStatus), s.opts, s.connector.Status)
}

// Invalidate marks the status stale, e.g. after a push authorization event
func (s *OutlookService) Invalidate() {
	s.cache.Invalidate(key(PrefixOutlookStatus))
}

// Connect runs the authorization window flow
func (s *OutlookService) Connect(ctx context.Context) (domain.AuthorizationStatus, error) {
	defer s.cache.Invalidate(key(PrefixOutlookStatus))
	status, err := s.connector.Connect(ctx)
	if err != nil {
		return status, fmt.Errorf("outlook connect: %w", err)
	}
	return status, nil
}

// Revoke disconnects Outlook
func (s *OutlookService) Revoke(ctx context.Context) (domain.AuthorizationStatus, error) {
	defer s.cache.Invalidate(key(PrefixOutlookStatus))
	return s.connector.Revoke(ctx)
}
