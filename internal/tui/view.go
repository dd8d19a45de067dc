package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/imkarma/crewdeck/internal/store"
)

// --- Color palette ---
var (
	clrSubtle    = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#666666"}
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrBlue      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

// --- Styles ---
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	dimStyle    = lipgloss.NewStyle().Foreground(clrDim)
	subtleStyle = lipgloss.NewStyle().Foreground(clrSubtle)

	colHeaderStyle = lipgloss.NewStyle().Bold(true)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrSubtle).
			Padding(0, 1).
			Width(24)

	cardSelectedStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(clrHighlight).
				Padding(0, 1).
				Width(24).
				Bold(true)

	pendingStyle = lipgloss.NewStyle().Foreground(clrYellow).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(clrRed).Bold(true)

	footerKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	footerDescStyle = lipgloss.NewStyle().Foreground(clrSubtle)
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.currentScreen {
	case screenDetail:
		return m.viewDetail()
	case screenSearch:
		return m.viewSearch()
	default:
		return m.viewBoard()
	}
}

func (m Model) viewBoard() string {
	var b strings.Builder

	header := titleStyle.Render("crewdeck board")
	if m.keyword != "" {
		header += dimStyle.Render(fmt.Sprintf(" — filter: %q", m.keyword))
	}
	b.WriteString(header + "\n\n")

	var cols []string
	for i := 0; i < numColumns; i++ {
		cols = append(cols, m.renderColumn(i))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	b.WriteString("\n")

	b.WriteString(m.footer(
		"←/→", "column", "↑/↓", "task", "enter", "detail", "/", "filter", "r", "refresh", "q", "quit",
	))

	if m.statusMsg != "" {
		b.WriteString("\n" + errorStyle.Render(m.statusMsg))
	}

	return b.String()
}

func (m Model) renderColumn(col int) string {
	var b strings.Builder

	label := fmt.Sprintf("%s (%d)", columnLabels[col], len(m.columns[col]))
	b.WriteString(" " + colHeaderStyle.Render(label) + "\n")

	for row, t := range m.columns[col] {
		style := cardStyle
		if col == m.cursorCol && row == m.cursorRow {
			style = cardSelectedStyle
		}
		card := fmt.Sprintf("#%d %s", t.ID, truncate(t.Title, 18))
		if t.Priority == "high" || t.Priority == "urgent" {
			card += "\n" + pendingStyle.Render("! "+t.Priority)
		}
		b.WriteString(style.Render(card) + "\n")
	}

	if len(m.columns[col]) == 0 {
		b.WriteString(dimStyle.Render("  (empty)") + "\n")
	}

	return lipgloss.NewStyle().Width(26).Render(b.String())
}

func (m Model) viewSearch() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Filter tasks") + "\n\n")
	b.WriteString(m.searchInput.View() + "\n\n")
	b.WriteString(m.footer("enter", "apply", "esc", "cancel"))
	return b.String()
}

func (m Model) viewDetail() string {
	d := m.detail
	if d == nil {
		return dimStyle.Render("loading...")
	}

	var b strings.Builder
	t := d.task

	b.WriteString(titleStyle.Render(fmt.Sprintf("#%d %s", t.ID, t.Title)) + "\n")
	b.WriteString(subtleStyle.Render(fmt.Sprintf("status: %s   priority: %s", t.Status, t.Priority)))
	if t.CompletedAt != nil {
		b.WriteString(subtleStyle.Render("   completed: " + t.CompletedAt.Format("2006-01-02 15:04")))
	}
	b.WriteString("\n\n")

	if t.Description != "" {
		b.WriteString(t.Description + "\n\n")
	}

	if len(d.stakeholders) > 0 {
		b.WriteString(colHeaderStyle.Render("Stakeholders") + "\n")
		for _, sh := range d.stakeholders {
			b.WriteString(fmt.Sprintf("  member %d (%s)\n", sh.MemberID, sh.Role))
		}
		b.WriteString("\n")
	}

	if d.pending != nil {
		b.WriteString(pendingStyle.Render("⧗ Awaiting approval") +
			subtleStyle.Render(fmt.Sprintf("  → %s", d.pending.ToStatus)) + "\n")
		for _, v := range d.votes {
			b.WriteString(fmt.Sprintf("  member %d: %s\n", v.StakeholderID, renderVote(v.Status)))
		}
		b.WriteString("\n")
	}

	b.WriteString(colHeaderStyle.Render("History") + "\n")
	for _, h := range d.history {
		from := "·"
		if h.FromStatus != nil {
			from = string(*h.FromStatus)
		}
		line := fmt.Sprintf("  %s  %s → %s", h.ChangedAt.Format("01-02 15:04"), from, h.ToStatus)
		if h.ReviewResult != store.ReviewNone {
			line += subtleStyle.Render("  [" + string(h.ReviewResult) + "]")
		}
		if h.Comment != "" {
			line += dimStyle.Render("  " + truncate(h.Comment, 40))
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n" + m.footer("esc", "back", "r", "refresh", "q", "quit"))
	return b.String()
}

func renderVote(s store.ApprovalStatus) string {
	switch s {
	case store.ApprovalApproved:
		return lipgloss.NewStyle().Foreground(clrGreen).Render("approved")
	case store.ApprovalRejected:
		return lipgloss.NewStyle().Foreground(clrRed).Render("rejected")
	default:
		return lipgloss.NewStyle().Foreground(clrBlue).Render("pending")
	}
}

// footer renders key/description pairs.
func (m Model) footer(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, footerKeyStyle.Render(pairs[i])+footerDescStyle.Render(" "+pairs[i+1]))
	}
	return strings.Join(parts, footerDescStyle.Render("  ·  "))
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}
