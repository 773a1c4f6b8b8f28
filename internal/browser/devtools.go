package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/tabsync/tabsync/internal/turso/schema"
)

// DefaultDevToolsURL is where Chromium listens when started with
// --remote-debugging-port=9222.
const DefaultDevToolsURL = "http://127.0.0.1:9222"

// DevToolsSource lists the open pages of a running Chromium.
//
// URL may be the HTTP debugging endpoint or a ws:// browser URL. The
// browser is only attached to for the duration of one Tabs call.
type DevToolsSource struct {
	URL string
}

// Tabs connects to the browser and returns one Tab per open page target.
// Background pages, workers and iframes are not tabs and are left out.
func (s *DevToolsSource) Tabs(ctx context.Context) ([]schema.Tab, error) {
	u := s.URL
	if u == "" {
		u = DefaultDevToolsURL
	}

	controlURL, err := launcher.ResolveURL(u)
	if err != nil {
		return nil, fmt.Errorf("devtools: resolve %s: %w", u, err)
	}

	// b.Close would quit the user's browser. Cancelling the context only
	// detaches from it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("devtools: connect: %w", err)
	}

	res, err := proto.TargetGetTargets{}.Call(b)
	if err != nil {
		return nil, fmt.Errorf("devtools: list targets: %w", err)
	}

	return pageTabs(res.TargetInfos), nil
}

// pageTabs converts DevTools targets to snapshot tabs, keeping only pages.
func pageTabs(infos []*proto.TargetTargetInfo) []schema.Tab {
	tabs := make([]schema.Tab, 0, len(infos))
	for _, info := range infos {
		if info == nil || info.Type != proto.TargetTargetInfoTypePage || info.URL == "" {
			continue
		}
		tabs = append(tabs, schema.Tab{URL: info.URL, Title: info.Title})
	}
	return tabs
}

func (s *DevToolsSource) String() string {
	return "devtools:" + s.URL
}
