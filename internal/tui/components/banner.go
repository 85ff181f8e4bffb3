package components

import (
	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/tui/styles"
)

// Banner shows one notification at a time. Each Show bumps the sequence so a
// stale clear timer cannot hide a newer notification.
type Banner struct {
	current *domain.Notification
	seq     int
}

// Show displays n and returns its sequence number
func (b *Banner) Show(n domain.Notification) int {
	b.seq++
	b.current = &n
	return b.seq
}

// Clear hides the banner if seq is still the one on screen
func (b *Banner) Clear(seq int) {
	if seq == b.seq {
		b.current = nil
	}
}

// Seq returns the sequence of the latest Show
func (b Banner) Seq() int {
	return b.seq
}

// Visible returns whether a notification is on screen
func (b Banner) Visible() bool {
	return b.current != nil
}

// Current returns the notification on screen
func (b Banner) Current() (domain.Notification, bool) {
	if b.current == nil {
		return domain.Notification{}, false
	}
	return *b.current, true
}

// View renders the banner across width
func (b Banner) View(width int) string {
	if b.current == nil {
		return ""
	}
	text := b.current.Title
	if b.current.Message != "" {
		text += ": " + b.current.Message
	}
	text = styles.Truncate(text, width-2)

	style := styles.BannerInfoStyle
	switch b.current.Kind {
	case domain.NotifySuccess:
		style = styles.BannerSuccessStyle
	case domain.NotifyError:
		style = styles.BannerErrorStyle
	}
	return style.Width(width).Render(text)
}
