package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/operation"
	"github.com/SFZPL/lead-automation-system-sub000/internal/search"
	"github.com/SFZPL/lead-automation-system-sub000/internal/tui/styles"
)

// listRow is one line of a filterable list
type listRow struct {
	Label   string
	Detail  string
	Matched []int
}

// View renders the application
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}
	if m.ShowHelp {
		return m.renderHelp()
	}

	parts := []string{m.renderTabs()}
	if m.Banner.Visible() {
		parts = append(parts, m.Banner.View(m.Width))
	}

	var body string
	switch m.Tab {
	case TabFollowups:
		body = m.renderFollowups()
	case TabDocuments:
		body = m.renderDocuments()
	default:
		body = m.renderOverview()
	}
	parts = append(parts, body)

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)
	footer := m.renderFooter()

	// Pin the footer to the bottom line
	gap := m.Height - lipgloss.Height(content) - lipgloss.Height(footer)
	if gap > 0 {
		content += strings.Repeat("\n", gap)
	}
	return content + "\n" + footer
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, tabCount)
	for t := Tab(0); t < tabCount; t++ {
		if t == m.Tab {
			tabs = append(tabs, styles.ActiveTabStyle.Render(tabTitles[t]))
		} else {
			tabs = append(tabs, styles.InactiveTabStyle.Render(tabTitles[t]))
		}
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if m.Loading {
		row += " " + m.Spinner.View()
	}
	return row
}

// === Overview ===

func (m Model) renderOverview() string {
	width := max(m.Width-2, 20)
	panels := []string{
		m.panel("Operation", m.renderOperation(width-4), width),
		m.panel("Leads", m.renderCounts(), width),
		m.panel("Outlook", m.renderOutlook(), width),
	}
	if summary := m.renderSummary(); summary != "" {
		panels = append(panels, m.panel("Queue", summary, width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, panels...)
}

func (m Model) panel(title, body string, width int) string {
	content := styles.PanelTitleStyle.Render(title) + "\n" + body
	return styles.PanelStyle.Width(width - 2).Render(content)
}

func (m Model) renderOperation(width int) string {
	snap := m.Snapshot
	if !snap.Tracked {
		return styles.DimStyle.Render("No operation running. Press e, n or p to start one.")
	}
	op := snap.Operation

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(op.Type.Label()))
	b.WriteString("  ")
	b.WriteString(renderStatusBadge(op.Status))
	if snap.Starting || !op.Status.Terminal() {
		b.WriteString(" " + m.Spinner.View())
	}
	b.WriteString("\n")

	barWidth := max(width-6, 10)
	b.WriteString(styles.RenderProgressBar(op.Progress, barWidth))
	b.WriteString(fmt.Sprintf(" %3d%%\n", op.Progress))

	if op.CurrentStep != "" {
		b.WriteString(styles.SubtitleStyle.Render("Step: "+op.CurrentStep) + "\n")
	}
	if op.TotalLeads > 0 || op.LeadsProcessed > 0 {
		b.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("Leads: %d / %d", op.LeadsProcessed, op.TotalLeads)) + "\n")
	}

	shown, hidden := operation.CapErrors(op.Errors, m.opts.ErrorCap)
	for _, e := range shown {
		b.WriteString(styles.ErrorStyle.Render("• "+styles.Truncate(e, width-2)) + "\n")
	}
	if hidden > 0 {
		b.WriteString(styles.DimStyle.Render(fmt.Sprintf("+%d more", hidden)) + "\n")
	}

	if !snapshotAllowsStart(snap) {
		b.WriteString(styles.DimStyle.Render("Start keys are disabled until this operation finishes (x to stop tracking)."))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderStatusBadge(s domain.OperationStatus) string {
	switch s {
	case domain.StatusCompleted:
		return styles.SuccessStyle.Render(string(s))
	case domain.StatusFailed:
		return styles.ErrorStyle.Render(string(s))
	case domain.StatusRunning:
		return styles.AccentStyle.Render(string(s))
	default:
		return styles.WarningStyle.Render(string(s))
	}
}

func (m Model) sectionError(name string) (string, bool) {
	if m.Data == nil {
		return "", false
	}
	err, ok := m.Data.Errors[name]
	if !ok {
		return "", false
	}
	return styles.ErrorStyle.Render("Unavailable: " + err.Error()), true
}

func (m Model) renderCounts() string {
	if msg, ok := m.sectionError("counts"); ok {
		return msg
	}
	if m.Data == nil {
		return styles.DimStyle.Render("...")
	}
	c := m.Data.Counts
	cell := func(label string, n int) string {
		return styles.SubtitleStyle.Render(label+" ") + styles.TitleStyle.Render(fmt.Sprint(n))
	}
	return strings.Join([]string{
		cell("Total", c.Total),
		cell("Enriched", c.Enriched),
		cell("Unenriched", c.Unenriched),
		cell("Assigned", c.Assigned),
	}, "   ")
}

func (m Model) renderOutlook() string {
	if m.Connecting {
		return m.Spinner.View() + " Waiting for the browser authorization... (esc to cancel)"
	}
	if msg, ok := m.sectionError("outlook"); ok {
		return msg
	}
	if m.Data == nil {
		return styles.DimStyle.Render("...")
	}
	s := m.Data.Outlook
	if !s.Authorized {
		return styles.WarningStyle.Render("Not connected") + styles.DimStyle.Render("  (o to connect)")
	}
	who := s.UserEmail
	if s.UserName != "" {
		who = s.UserName + " <" + s.UserEmail + ">"
	}
	line := styles.SuccessStyle.Render("Connected") + " as " + who
	if s.ExpiresSoon {
		line += "  " + styles.WarningStyle.Render("expires soon, reconnect with o")
	}
	return line
}

func (m Model) renderSummary() string {
	if m.Data == nil {
		return ""
	}
	var lines []string
	if _, failed := m.Data.Errors["followups"]; !failed {
		lines = append(lines, fmt.Sprintf("Follow-ups due: %d", len(m.Data.Followups)))
	}
	if _, failed := m.Data.Errors["assignments"]; !failed {
		lines = append(lines, fmt.Sprintf("Pending assignments: %d", len(m.Data.Assignments)))
	}
	if _, failed := m.Data.Errors["reports"]; !failed {
		lines = append(lines, fmt.Sprintf("Saved reports: %d", len(m.Data.Reports)))
	}
	return styles.SubtitleStyle.Render(strings.Join(lines, "\n"))
}

// === Lists ===

func (m Model) followupRows() []listRow {
	if m.Data == nil {
		return nil
	}
	labels := make([]string, len(m.Data.Followups))
	for i, f := range m.Data.Followups {
		labels[i] = f.LeadName
	}
	matches := search.Rank(m.filters[TabFollowups], labels)
	rows := make([]listRow, len(matches))
	for i, match := range matches {
		f := m.Data.Followups[match.Index]
		rows[i] = listRow{
			Label:   f.LeadName,
			Detail:  fmt.Sprintf("%s · %dd · %s", f.PartnerEmail, f.DaysSince, f.Status),
			Matched: match.MatchedIndexes,
		}
	}
	return rows
}

func (m Model) documentRows() []listRow {
	if m.Data == nil {
		return nil
	}
	type doc struct {
		name   string
		detail string
	}
	var docs []doc
	for _, d := range m.Data.NDAs {
		detail := "NDA · " + string(d.Status)
		if d.RiskLevel != "" {
			detail += " · risk " + d.RiskLevel
		}
		docs = append(docs, doc{d.Filename, detail})
	}
	for _, d := range m.Data.Knowledge {
		docs = append(docs, doc{d.Filename, fmt.Sprintf("Knowledge base · %d pages", d.Pages)})
	}

	labels := make([]string, len(docs))
	for i, d := range docs {
		labels[i] = d.name
	}
	matches := search.Rank(m.filters[TabDocuments], labels)
	rows := make([]listRow, len(matches))
	for i, match := range matches {
		d := docs[match.Index]
		rows[i] = listRow{Label: d.name, Detail: d.detail, Matched: match.MatchedIndexes}
	}
	return rows
}

func (m Model) renderFollowups() string {
	header := styles.SubtitleStyle.Render("Proposals awaiting a reply, " + daysBackLabel(m.DaysBack) + "  (d to change)")
	var errLine string
	if msg, ok := m.sectionError("followups"); ok {
		errLine = msg
	}
	return m.renderList(header, errLine, m.followupRows(), "No follow-ups due")
}

func (m Model) renderDocuments() string {
	header := styles.SubtitleStyle.Render("Contracts and knowledge-base PDFs")
	var errs []string
	for _, name := range []string{"nda", "knowledge"} {
		if msg, ok := m.sectionError(name); ok {
			errs = append(errs, msg)
		}
	}
	return m.renderList(header, strings.Join(errs, "\n"), m.documentRows(), "No documents uploaded")
}

func (m Model) renderList(header, errLine string, rows []listRow, empty string) string {
	lines := []string{header}
	if bar := m.Filter.View(); bar != "" {
		lines = append(lines, bar)
	}
	if errLine != "" {
		lines = append(lines, errLine)
	}
	if len(rows) == 0 {
		if m.filters[m.Tab] != "" {
			empty = "No matches"
		}
		lines = append(lines, styles.DimStyle.Render(empty))
		return strings.Join(lines, "\n")
	}

	// Window the list around the cursor
	visible := max(m.Height-len(lines)-4, 1)
	cursor := m.cursor[m.Tab]
	start := 0
	if cursor >= visible {
		start = cursor - visible + 1
	}
	end := min(start+visible, len(rows))

	labelWidth := max(m.Width/3, 12)
	for i := start; i < end; i++ {
		r := rows[i]
		label := styles.Truncate(r.Label, labelWidth)
		if label == r.Label {
			label = styles.HighlightMatches(label, r.Matched)
		}
		line := styles.Pad(label, labelWidth) + "  " + styles.DimStyle.Render(r.Detail)
		if i == cursor {
			lines = append(lines, styles.SelectedItemStyle.Render(line))
		} else {
			lines = append(lines, styles.NormalItemStyle.Render(line))
		}
	}
	return strings.Join(lines, "\n")
}

// === Footer and help ===

func (m Model) renderFooter() string {
	if m.StatusMsg != "" {
		if m.StatusIsErr {
			return styles.ErrorStyle.Render(m.StatusMsg)
		}
		return styles.DimStyle.Render(m.StatusMsg)
	}
	bindings := []key.Binding{
		m.keys.Confirm,
		m.keys.StartExtract, m.keys.StartEnrich, m.keys.StartPipeline, m.keys.Cancel,
		m.keys.Refresh, m.keys.NextTab, m.keys.Help, m.keys.Quit,
	}
	return renderBindings(bindings)
}

func renderBindings(bindings []key.Binding) string {
	var parts []string
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		parts = append(parts, styles.HelpKeyStyle.Render(h.Key)+" "+styles.HelpDescStyle.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderHelp() string {
	k := m.keys
	groups := []struct {
		title    string
		bindings []key.Binding
	}{
		{"Operations", []key.Binding{Keys.StartExtract, Keys.StartEnrich, Keys.StartPipeline, Keys.Cancel}},
		{"Data", []key.Binding{k.Refresh, k.Filter, k.DaysBack, k.Connect}},
		{"Navigation", []key.Binding{k.NextTab, k.PrevTab, k.Up, k.Down, k.Escape, k.Quit}},
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Keys") + "\n\n")
	for _, g := range groups {
		b.WriteString(styles.PanelTitleStyle.Render(g.title) + "\n")
		for _, binding := range g.bindings {
			h := binding.Help()
			b.WriteString("  " + styles.Pad(styles.HelpKeyStyle.Render(h.Key), 10) + styles.HelpDescStyle.Render(h.Desc) + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(styles.DimStyle.Render("Press any key to close"))
	return styles.PanelStyle.Render(b.String())
}
