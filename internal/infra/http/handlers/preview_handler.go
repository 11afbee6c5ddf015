package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/xavierca1/dj-funnel/internal/preview"
)

type PreviewHandler struct {
	analytics preview.Analytics
	now       func() time.Time
}

func NewPreviewHandler(analytics preview.Analytics) *PreviewHandler {
	return &PreviewHandler{analytics: analytics, now: time.Now}
}

// LimitReached handles POST /preview/limit, the beacon the browser gate
// sends when a preview stops at the free limit.
func (h *PreviewHandler) LimitReached(w http.ResponseWriter, r *http.Request) {
	var ev preview.LimitEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<10)).Decode(&ev); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON")
		return
	}

	ev.TrackID = strings.TrimSpace(ev.TrackID)
	if ev.TrackID == "" {
		writeErrorResponse(w, http.StatusBadRequest, "VALIDATION_ERROR", "track_id is required")
		return
	}
	if ev.ThresholdSeconds <= 0 {
		ev.ThresholdSeconds = preview.DefaultLimitSeconds
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = h.now().UTC()
	}

	h.analytics.PreviewLimitReached(ev)
	w.WriteHeader(http.StatusNoContent)
}
