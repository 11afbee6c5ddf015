package preview

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/xavierca1/dj-funnel/internal/entity"
)

const (
	DefaultLimitSeconds = 30.0
	DefaultPollInterval = 250 * time.Millisecond
)

// AudioElement is the one real player. Only the Gate drives it.
type AudioElement interface {
	Load(src string) error
	Play(ctx context.Context) error
	Pause()
	CurrentTime() float64
	SetCurrentTime(seconds float64)
}

// AccessChecker reads the local paid-access marker.
type AccessChecker interface {
	HasPaidAccess() (bool, error)
}

type AccessFunc func() (bool, error)

func (f AccessFunc) HasPaidAccess() (bool, error) { return f() }

// LimitEvent is emitted once per track activation when the preview ends.
type LimitEvent struct {
	ThresholdSeconds float64   `json:"threshold_seconds"`
	TrackID          string    `json:"track_id"`
	TrackTitle       string    `json:"track_title"`
	PagePath         string    `json:"page_path"`
	OccurredAt       time.Time `json:"occurred_at"`
}

type Analytics interface {
	PreviewLimitReached(ev LimitEvent)
}

// Session is scoped to one track. LimitReached only resets on track change.
type Session struct {
	LimitReached bool
	DialogOpen   bool
}

type GateConfig struct {
	PagePath     string
	LimitSeconds float64
	PollInterval time.Duration
}

type Gate struct {
	store     *Store
	audio     AudioElement
	access    AccessChecker
	analytics Analytics
	cfg       GateConfig

	mu           sync.Mutex
	track        *entity.Track
	unrestricted bool
	session      Session
	generation   uint64
	cancelWatch  context.CancelFunc
	unsubscribe  func()
}

// NewGate attaches a gate to the store. Call Close to detach it.
func NewGate(store *Store, audio AudioElement, access AccessChecker, analytics Analytics, cfg GateConfig) *Gate {
	if cfg.LimitSeconds <= 0 {
		cfg.LimitSeconds = DefaultLimitSeconds
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	g := &Gate{
		store:     store,
		audio:     audio,
		access:    access,
		analytics: analytics,
		cfg:       cfg,
	}
	g.unsubscribe = store.Subscribe(g.onStateChange)
	g.onStateChange(store.State())
	return g
}

func (g *Gate) Session() Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session
}

// DismissDialog hides the upgrade prompt; the limit stays in force.
func (g *Gate) DismissDialog() {
	g.mu.Lock()
	g.session.DialogOpen = false
	g.mu.Unlock()
}

func (g *Gate) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
	}
	g.mu.Lock()
	g.stopWatchLocked()
	g.generation++
	g.mu.Unlock()
}

// HandleTimeUpdate is the timeupdate callback of the audio element. Updates
// tagged with a track other than the active one are stale and ignored.
func (g *Gate) HandleTimeUpdate(trackID string, elapsed float64) {
	g.mu.Lock()
	if g.track == nil || g.track.ID != trackID {
		g.mu.Unlock()
		return
	}
	ev, fired := g.checkLimitLocked(elapsed)
	g.mu.Unlock()
	if fired {
		g.afterLimit(ev)
	}
}

// Seek moves the playhead. Without paid access a jump past the limit is
// clamped to exactly the limit and evaluated right away.
func (g *Gate) Seek(seconds float64) {
	g.mu.Lock()
	if g.track == nil {
		g.mu.Unlock()
		return
	}
	if !g.unrestricted && seconds > g.cfg.LimitSeconds {
		seconds = g.cfg.LimitSeconds
	}
	g.audio.SetCurrentTime(seconds)
	ev, fired := g.checkLimitLocked(seconds)
	g.mu.Unlock()
	if fired {
		g.afterLimit(ev)
	}
}

func (g *Gate) onStateChange(st PlaybackState) {
	g.mu.Lock()

	if trackChanged(g.track, st.CurrentTrack) {
		g.resetLocked(st.CurrentTrack)
	}
	if g.track == nil {
		g.mu.Unlock()
		return
	}

	if !st.IsPlaying {
		g.audio.Pause()
		g.stopWatchLocked()
		g.mu.Unlock()
		return
	}

	if g.session.LimitReached && !g.unrestricted {
		g.audio.Pause()
		g.session.DialogOpen = true
		g.mu.Unlock()
		g.store.PauseTrack()
		return
	}

	if err := g.audio.Play(context.Background()); err != nil {
		log.Printf("⚠️ [PREVIEW] playback blocked for track %s: %v", g.track.ID, err)
		g.stopWatchLocked()
		g.mu.Unlock()
		g.store.PauseTrack()
		return
	}

	if !g.unrestricted {
		g.startWatchLocked()
	}
	g.mu.Unlock()
}

func (g *Gate) resetLocked(next *entity.Track) {
	g.stopWatchLocked()
	g.generation++
	g.session = Session{}
	g.track = nil
	g.unrestricted = false

	if next == nil {
		g.audio.Pause()
		return
	}

	t := *next
	g.track = &t
	g.unrestricted = g.hasAccess()
	if err := g.audio.Load(t.Src); err != nil {
		log.Printf("⚠️ [PREVIEW] could not load %s: %v", t.Src, err)
	}
}

func (g *Gate) hasAccess() bool {
	if g.access == nil {
		return false
	}
	ok, err := g.access.HasPaidAccess()
	if err != nil {
		log.Printf("⚠️ [PREVIEW] access marker unreadable, applying preview limit: %v", err)
		return false
	}
	return ok
}

// checkLimitLocked is the one-shot latch. It fires at most once per track.
func (g *Gate) checkLimitLocked(elapsed float64) (LimitEvent, bool) {
	if g.track == nil || g.unrestricted || g.session.LimitReached {
		return LimitEvent{}, false
	}
	if elapsed < g.cfg.LimitSeconds {
		return LimitEvent{}, false
	}

	g.session.LimitReached = true
	g.session.DialogOpen = true
	g.audio.Pause()
	g.stopWatchLocked()

	return LimitEvent{
		ThresholdSeconds: g.cfg.LimitSeconds,
		TrackID:          g.track.ID,
		TrackTitle:       g.track.Title,
		PagePath:         g.cfg.PagePath,
		OccurredAt:       time.Now(),
	}, true
}

// afterLimit runs outside g.mu, so the store may already hold a newer track.
func (g *Gate) afterLimit(ev LimitEvent) {
	g.store.PauseTrackIfCurrent(ev.TrackID)
	if g.analytics != nil {
		g.analytics.PreviewLimitReached(ev)
	}
}

func (g *Gate) startWatchLocked() {
	if g.cancelWatch != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.cancelWatch = cancel
	go g.watch(ctx, g.generation)
}

func (g *Gate) stopWatchLocked() {
	if g.cancelWatch != nil {
		g.cancelWatch()
		g.cancelWatch = nil
	}
}

func (g *Gate) watch(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.mu.Lock()
			if gen != g.generation {
				g.mu.Unlock()
				return
			}
			ev, fired := g.checkLimitLocked(g.audio.CurrentTime())
			g.mu.Unlock()
			if fired {
				g.afterLimit(ev)
				return
			}
		}
	}
}

func trackChanged(cur, next *entity.Track) bool {
	if cur == nil || next == nil {
		return cur != next
	}
	return cur.ID != next.ID
}
