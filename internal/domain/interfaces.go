package domain

import "time"

// AuthorizationStatus is the Outlook authorization state reported by the backend.
// It is never mutated locally; each status query replaces it wholesale.
type AuthorizationStatus struct {
	Authorized  bool   `json:"authorized"`
	UserEmail   string `json:"user_email,omitempty"`
	UserName    string `json:"user_name,omitempty"`
	ExpiresSoon bool   `json:"expires_soon,omitempty"`
}

// AuthorizationRequest is the redirect target and anti-forgery state for an OAuth flow.
type AuthorizationRequest struct {
	URL   string
	State string
}

// TokenSource supplies the bearer token attached to backend calls.
type TokenSource interface {
	Token() (string, bool)
}

// SessionStore is the persistent settings/session store. It replaces ambient
// browser storage with explicit read/write contracts.
type SessionStore interface {
	TokenSource
	SaveToken(token string) error
	ClearToken() error

	OAuthState() (string, bool)
	SaveOAuthState(state string) error
	ClearOAuthState() error

	// Preferences are written synchronously on change. Writes to different
	// keys are not transactional.
	Preference(key string) (string, bool)
	SavePreference(key, value string) error
}

// CacheEntry is a query result as held by the query cache.
type CacheEntry struct {
	Key       string    `json:"key"`
	Payload   []byte    `json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
	Stale     bool      `json:"stale"`
}

// NotificationKind distinguishes user-facing notifications.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyInfo    NotificationKind = "info"
)

// Notification is a transient message for the user.
type Notification struct {
	Kind    NotificationKind
	Title   string
	Message string
}

// Notifier surfaces notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// NoOpNotifier discards notifications (for testing/batch operations).
type NoOpNotifier struct{}

func (NoOpNotifier) Notify(Notification) {}
