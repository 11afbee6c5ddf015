package preview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAudio struct {
	mu      sync.Mutex
	src     string
	playing bool
	pos     float64
	playErr error
	loads   []string
}

func (a *fakeAudio) Load(src string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.src = src
	a.pos = 0
	a.playing = false
	a.loads = append(a.loads, src)
	return nil
}

func (a *fakeAudio) Play(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.playErr != nil {
		return a.playErr
	}
	a.playing = true
	return nil
}

func (a *fakeAudio) Pause() {
	a.mu.Lock()
	a.playing = false
	a.mu.Unlock()
}

func (a *fakeAudio) CurrentTime() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pos
}

func (a *fakeAudio) SetCurrentTime(seconds float64) {
	a.mu.Lock()
	a.pos = seconds
	a.mu.Unlock()
}

func (a *fakeAudio) isPlaying() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

type fakeAnalytics struct {
	mu     sync.Mutex
	events []LimitEvent
}

func (f *fakeAnalytics) PreviewLimitReached(ev LimitEvent) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
}

func (f *fakeAnalytics) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

var noAccess = AccessFunc(func() (bool, error) { return false, nil })

// slow poll so the watcher never races the explicit ticks below
func newTestGate(t *testing.T, access AccessChecker) (*Store, *fakeAudio, *fakeAnalytics, *Gate) {
	t.Helper()
	store := NewStore()
	audio := &fakeAudio{}
	analytics := &fakeAnalytics{}
	gate := NewGate(store, audio, access, analytics, GateConfig{
		PagePath:     "/usb",
		PollInterval: time.Hour,
	})
	t.Cleanup(gate.Close)
	return store, audio, analytics, gate
}

func TestGateLimitFiresExactlyOnce(t *testing.T) {
	store, audio, analytics, gate := newTestGate(t, noAccess)

	store.PlayTrack(trackHouse)
	require.True(t, audio.isPlaying())

	for elapsed := 0.0; elapsed <= 45; elapsed += 0.25 {
		gate.HandleTimeUpdate(trackHouse.ID, elapsed)
	}

	require.Equal(t, 1, analytics.count())
	ev := analytics.events[0]
	assert.Equal(t, 30.0, ev.ThresholdSeconds)
	assert.Equal(t, "trk-1", ev.TrackID)
	assert.Equal(t, "Deep Cut", ev.TrackTitle)
	assert.Equal(t, "/usb", ev.PagePath)

	assert.False(t, audio.isPlaying())
	assert.False(t, store.State().IsPlaying)
	assert.Equal(t, Session{LimitReached: true, DialogOpen: true}, gate.Session())
}

func TestGateDoesNotFireBeforeThreshold(t *testing.T) {
	store, audio, analytics, gate := newTestGate(t, noAccess)

	store.PlayTrack(trackHouse)
	gate.HandleTimeUpdate(trackHouse.ID, 29.99)

	assert.Equal(t, 0, analytics.count())
	assert.True(t, audio.isPlaying())
	assert.False(t, gate.Session().LimitReached)
}

func TestGateSeekPastLimitIsClampedAndTriggers(t *testing.T) {
	store, audio, analytics, gate := newTestGate(t, noAccess)

	store.PlayTrack(trackHouse)
	gate.Seek(45)

	assert.Equal(t, 30.0, audio.CurrentTime())
	assert.Equal(t, 1, analytics.count())
	assert.True(t, gate.Session().DialogOpen)
	assert.False(t, store.State().IsPlaying)

	gate.Seek(50)
	gate.HandleTimeUpdate(trackHouse.ID, 30)
	assert.Equal(t, 1, analytics.count())
}

func TestGateSeekBelowLimitIsUntouched(t *testing.T) {
	store, audio, analytics, gate := newTestGate(t, noAccess)

	store.PlayTrack(trackHouse)
	gate.Seek(12.5)

	assert.Equal(t, 12.5, audio.CurrentTime())
	assert.Equal(t, 0, analytics.count())
}

func TestGateTrackChangeDoesNotCarryElapsedTime(t *testing.T) {
	store, audio, analytics, gate := newTestGate(t, noAccess)

	store.PlayTrack(trackHouse)
	gate.HandleTimeUpdate(trackHouse.ID, 25)

	store.PlayTrack(trackTech)
	assert.Equal(t, []string{trackHouse.Src, trackTech.Src}, audio.loads)

	gate.HandleTimeUpdate(trackTech.ID, 1)
	assert.Equal(t, 0, analytics.count())
	assert.Equal(t, Session{}, gate.Session())
	assert.True(t, audio.isPlaying())
}

func TestGateTrackChangeAfterLimitResetsSession(t *testing.T) {
	store, audio, analytics, gate := newTestGate(t, noAccess)

	store.PlayTrack(trackHouse)
	gate.HandleTimeUpdate(trackHouse.ID, 30)
	require.True(t, gate.Session().DialogOpen)

	store.PlayTrack(trackTech)
	assert.Equal(t, Session{}, gate.Session())
	assert.True(t, audio.isPlaying())

	gate.HandleTimeUpdate(trackTech.ID, 31)
	require.Equal(t, 2, analytics.count())
	assert.Equal(t, "trk-2", analytics.events[1].TrackID)
}

func TestGateResumeAfterLimitStaysGated(t *testing.T) {
	store, audio, analytics, gate := newTestGate(t, noAccess)

	store.PlayTrack(trackHouse)
	gate.HandleTimeUpdate(trackHouse.ID, 30)
	gate.DismissDialog()
	assert.Equal(t, Session{LimitReached: true}, gate.Session())

	store.ResumeTrack()

	assert.False(t, audio.isPlaying())
	assert.False(t, store.State().IsPlaying)
	assert.Equal(t, Session{LimitReached: true, DialogOpen: true}, gate.Session())
	assert.Equal(t, 1, analytics.count())
}

func TestGateClosePlayerResets(t *testing.T) {
	store, audio, analytics, gate := newTestGate(t, noAccess)

	store.PlayTrack(trackHouse)
	gate.HandleTimeUpdate(trackHouse.ID, 30)
	store.ClosePlayer()

	assert.Equal(t, Session{}, gate.Session())
	assert.False(t, audio.isPlaying())

	gate.HandleTimeUpdate(trackHouse.ID, 40)
	gate.Seek(40)
	assert.Equal(t, 1, analytics.count())
}

func TestGatePaidAccessIsUnrestricted(t *testing.T) {
	paid := AccessFunc(func() (bool, error) { return true, nil })
	store, audio, analytics, gate := newTestGate(t, paid)

	store.PlayTrack(trackHouse)
	gate.Seek(90)
	gate.HandleTimeUpdate(trackHouse.ID, 120)

	assert.Equal(t, 90.0, audio.CurrentTime())
	assert.Equal(t, 0, analytics.count())
	assert.True(t, store.State().IsPlaying)
}

func TestGateAccessErrorFailsClosed(t *testing.T) {
	broken := AccessFunc(func() (bool, error) { return true, errors.New("storage disabled") })
	store, _, analytics, gate := newTestGate(t, broken)

	store.PlayTrack(trackHouse)
	gate.HandleTimeUpdate(trackHouse.ID, 30)

	assert.Equal(t, 1, analytics.count())
}

func TestGateNilAccessCheckerFailsClosed(t *testing.T) {
	store, _, analytics, gate := newTestGate(t, nil)

	store.PlayTrack(trackHouse)
	gate.HandleTimeUpdate(trackHouse.ID, 31)

	assert.Equal(t, 1, analytics.count())
}

func TestGatePlaybackBlockedReflectsPaused(t *testing.T) {
	store := NewStore()
	audio := &fakeAudio{playErr: errors.New("NotAllowedError")}
	gate := NewGate(store, audio, noAccess, &fakeAnalytics{}, GateConfig{PollInterval: time.Hour})
	defer gate.Close()

	assert.NotPanics(t, func() { store.PlayTrack(trackHouse) })

	st := store.State()
	require.NotNil(t, st.CurrentTrack)
	assert.False(t, st.IsPlaying)
	assert.False(t, audio.isPlaying())
}

func TestGateWatcherTriggersLimit(t *testing.T) {
	store := NewStore()
	audio := &fakeAudio{}
	analytics := &fakeAnalytics{}
	gate := NewGate(store, audio, noAccess, analytics, GateConfig{PagePath: "/", PollInterval: 5 * time.Millisecond})
	defer gate.Close()

	store.PlayTrack(trackHouse)
	audio.SetCurrentTime(31)

	assert.Eventually(t, func() bool { return analytics.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, analytics.count())
	assert.False(t, store.State().IsPlaying)
}

func TestGateWatcherStopsOnTrackChange(t *testing.T) {
	store := NewStore()
	audio := &fakeAudio{}
	analytics := &fakeAnalytics{}
	gate := NewGate(store, audio, noAccess, analytics, GateConfig{PollInterval: 5 * time.Millisecond})
	defer gate.Close()

	store.PlayTrack(trackHouse)
	store.PlayTrack(trackTech)
	audio.SetCurrentTime(10)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, analytics.count())
	assert.True(t, store.State().IsPlaying)
}

func TestGateCloseDetachesFromStore(t *testing.T) {
	store, audio, _, gate := newTestGate(t, noAccess)

	gate.Close()
	store.PlayTrack(trackHouse)

	assert.Empty(t, audio.loads)
}

func TestGateIgnoresTimeUpdateFromPreviousTrack(t *testing.T) {
	store, audio, analytics, gate := newTestGate(t, noAccess)

	store.PlayTrack(trackHouse)
	gate.HandleTimeUpdate(trackHouse.ID, 29)
	store.PlayTrack(trackTech)

	gate.HandleTimeUpdate(trackHouse.ID, 31)

	assert.Equal(t, 0, analytics.count())
	assert.Equal(t, Session{}, gate.Session())
	assert.True(t, audio.isPlaying())
	assert.True(t, store.State().IsPlaying)
}

func TestGateLateLimitDoesNotPauseNextTrack(t *testing.T) {
	store, audio, analytics, gate := newTestGate(t, noAccess)

	store.PlayTrack(trackHouse)
	store.PlayTrack(trackTech)

	gate.afterLimit(LimitEvent{TrackID: trackHouse.ID, ThresholdSeconds: 30})

	assert.True(t, store.State().IsPlaying)
	assert.True(t, audio.isPlaying())
	assert.Equal(t, 1, analytics.count())
}
