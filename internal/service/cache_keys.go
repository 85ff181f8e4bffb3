package service

import "github.com/SFZPL/lead-automation-system-sub000/internal/querycache"

// Cache key prefixes, one per backend read endpoint. Mutations invalidate by prefix.
const (
	// PrefixLeadCounts is the lead pool summary
	PrefixLeadCounts = "/api/leads/counts"

	// PrefixOutlookStatus is the Outlook authorization state
	PrefixOutlookStatus = "/auth/outlook/status"

	// PrefixFollowups is the follow-up queue (params: days_back, status)
	PrefixFollowups = "/proposal-followups/"

	// PrefixNDA is the NDA document list and detail (/nda/documents/{id})
	PrefixNDA = "/nda/documents"

	// PrefixKnowledge is the knowledge-base document list
	PrefixKnowledge = "/knowledge-base/documents"

	// PrefixAssignments is the lead assignment list (params: status)
	PrefixAssignments = "/lead-assignments/"

	// PrefixSavedReports is the saved report list
	PrefixSavedReports = "/reports/saved"
)

// DashboardPrefixes returns the prefixes refreshed by a full dashboard reload.
// Saved reports are excluded: they only change when a report is generated.
func DashboardPrefixes() []string {
	return []string{PrefixLeadCounts, PrefixOutlookStatus, PrefixFollowups, PrefixNDA, PrefixKnowledge, PrefixAssignments}
}

func key(endpoint string, kv ...string) querycache.Key {
	return querycache.NewKey(endpoint, kv...)
}
