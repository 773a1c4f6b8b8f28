// Package ui renders tab lists and run summaries for the terminal.
package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/tabsync/tabsync/internal/turso/schema"
)

var (
	deviceStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	ownStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	idStyle     = lipgloss.NewStyle().Faint(true)
	urlStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	ageStyle    = lipgloss.NewStyle().Faint(true).Italic(true)
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// DisableColor renders every style as plain text, for --no-color and
// NO_COLOR.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// maxTitleWidth truncates long titles so one tab stays on one line.
const maxTitleWidth = 72

// RenderGroups writes tabs grouped by device. The group belonging to
// self (this machine) is highlighted.
func RenderGroups(w io.Writer, groups []schema.DeviceGroup, self string, now time.Time) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No synced tabs.")
		return
	}

	for i, group := range groups {
		if i > 0 {
			fmt.Fprintln(w)
		}

		header := fmt.Sprintf("%s (%d)", group.DeviceName, len(group.Tabs))
		if group.DeviceName == self {
			fmt.Fprintln(w, ownStyle.Render(header+" • this device"))
		} else {
			fmt.Fprintln(w, deviceStyle.Render(header))
		}

		for _, rec := range group.Tabs {
			fmt.Fprintf(w, "  %s %s %s\n",
				idStyle.Render(fmt.Sprintf("#%-4d", rec.ID)),
				truncate(rec.DisplayTitle(), maxTitleWidth),
				ageStyle.Render(Age(now, rec.LastUpdated)))
			if rec.Title != "" {
				fmt.Fprintf(w, "        %s\n", urlStyle.Render(rec.URL))
			}
		}
	}
}

// RenderCounts writes per-device record counts in device name order.
func RenderCounts(w io.Writer, counts map[string]int, self string) {
	names := make([]string, 0, len(counts))
	total := 0
	for name, n := range counts {
		names = append(names, name)
		total += n
	}
	sort.Strings(names)

	for _, name := range names {
		label := name
		if name == self {
			label = ownStyle.Render(name + " (this device)")
		}
		fmt.Fprintf(w, "  %-24s %d\n", label, counts[name])
	}
	fmt.Fprintf(w, "  %-24s %d\n", "total", total)
}

// Success formats a one-line success message.
func Success(msg string) string {
	return okStyle.Render("✓ " + msg)
}

// Failure formats a one-line error message.
func Failure(msg string) string {
	return errStyle.Render("✗ " + msg)
}

// Age renders how long ago t was, coarsely.
func Age(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}

func truncate(s string, width int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
