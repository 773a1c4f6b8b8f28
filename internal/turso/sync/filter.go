package sync

import (
	"strings"

	"github.com/tabsync/tabsync/internal/turso/schema"
)

// ParseIgnoreList splits a comma-separated ignore preference into
// trimmed, non-empty substrings.
//
// Example:
//
//	ParseIgnoreList(" ads.example.com, ,localhost") // ["ads.example.com" "localhost"]
func ParseIgnoreList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FilterTabs drops tabs with an empty URL and tabs whose URL contains any
// of the ignore substrings. It returns the kept tabs in input order and
// the number dropped. The input slice is not modified.
func FilterTabs(tabs []schema.Tab, ignore []string) ([]schema.Tab, int) {
	kept := make([]schema.Tab, 0, len(tabs))
	for _, tab := range tabs {
		if tab.URL == "" || isIgnored(tab.URL, ignore) {
			continue
		}
		kept = append(kept, tab)
	}
	return kept, len(tabs) - len(kept)
}

func isIgnored(url string, ignore []string) bool {
	for _, pattern := range ignore {
		if pattern != "" && strings.Contains(url, pattern) {
			return true
		}
	}
	return false
}
