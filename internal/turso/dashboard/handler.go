package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tabsync/tabsync/internal/turso/schema"
)

// TabsResponse is the body of GET /api/tabs.
type TabsResponse struct {
	// Devices lists every device with synced tabs, regardless of filter,
	// so a client can offer a device picker.
	Devices []string             `json:"devices"`
	Self    string               `json:"self,omitempty"`
	Total   int                  `json:"total"`
	Groups  []schema.DeviceGroup `json:"groups"`
}

// handleListTabs returns tabs grouped by device, most recent first
// inside each group. ?device= restricts the result to one device.
func (s *Server) handleListTabs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		records []*schema.TabRecord
		err     error
	)
	if device := r.URL.Query().Get("device"); device != "" {
		records, err = s.store.ListByDevice(ctx, device)
	} else {
		records, err = s.store.ListAll(ctx)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	counts, err := s.store.CountByDevice(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	devices := make([]string, 0, len(counts))
	for name := range counts {
		devices = append(devices, name)
	}
	sort.Strings(devices)

	groups := schema.GroupByDevice(records)
	if groups == nil {
		groups = []schema.DeviceGroup{}
	}

	writeJSON(w, http.StatusOK, TabsResponse{
		Devices: devices,
		Self:    s.device,
		Total:   len(records),
		Groups:  groups,
	})
}

// handleDeleteTab removes one tab regardless of which device owns it.
// The owning device re-creates it on its next run if the tab is still open.
func (s *Server) handleDeleteTab(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid tab id %q", chi.URLParam(r, "id")))
		return
	}

	deleted, err := s.store.DeleteByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, errors.New("tab not found"))
		return
	}

	s.logger.Printf("Deleted tab %d", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByDevice(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusNotFound, errors.New("no daemon attached"))
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>tabsync</title>
</head>
<body>
    <h1>tabsync</h1>
    <p>Synced tabs: <a href="/api/tabs">/api/tabs</a> (filter with <code>?device=NAME</code>)</p>
    <p>Delete a tab: <code>DELETE http://%s/api/tabs/{id}</code></p>
    <p>Health check: <a href="/health">/health</a></p>
</body>
</html>`, html.EscapeString(r.Host))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
