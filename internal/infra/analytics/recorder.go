package analytics

import (
	"log"

	"github.com/xavierca1/dj-funnel/internal/infra/http/middleware"
	"github.com/xavierca1/dj-funnel/internal/preview"
)

const (
	OriginGate   = "gate"
	OriginBeacon = "beacon"
)

// Recorder turns preview_limit_reached events into a log line and a counter.
type Recorder struct {
	origin string
}

func NewRecorder(origin string) *Recorder {
	return &Recorder{origin: origin}
}

func (r *Recorder) PreviewLimitReached(ev preview.LimitEvent) {
	log.Printf("🎧 [PREVIEW] limit reached track=%s (%q) page=%s threshold=%.0fs origin=%s",
		ev.TrackID, ev.TrackTitle, ev.PagePath, ev.ThresholdSeconds, r.origin)
	middleware.RecordPreviewLimit(r.origin)
}
