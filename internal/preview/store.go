package preview

import (
	"sync"

	"github.com/xavierca1/dj-funnel/internal/entity"
)

// PlaybackState is what the player is auditioning right now.
// IsPlaying implies CurrentTrack != nil.
type PlaybackState struct {
	CurrentTrack *entity.Track
	IsPlaying    bool
}

type Listener func(PlaybackState)

// Store is the single source of truth for the active track. It never touches
// audio; the Gate mirrors it.
type Store struct {
	mu        sync.Mutex
	state     PlaybackState
	listeners map[int]Listener
	nextID    int
}

func NewStore() *Store {
	return &Store{listeners: make(map[int]Listener)}
}

func (s *Store) State() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every state change and returns the detach func.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// PlayTrack replaces the current track. Always allowed, even mid-playback.
func (s *Store) PlayTrack(track entity.Track) {
	t := track
	s.update(func(st *PlaybackState) bool {
		st.CurrentTrack = &t
		st.IsPlaying = true
		return true
	})
}

func (s *Store) PauseTrack() {
	s.update(func(st *PlaybackState) bool {
		if !st.IsPlaying {
			return false
		}
		st.IsPlaying = false
		return true
	})
}

// PauseTrackIfCurrent pauses only while trackID is still the active track.
func (s *Store) PauseTrackIfCurrent(trackID string) bool {
	paused := false
	s.update(func(st *PlaybackState) bool {
		if !st.IsPlaying || st.CurrentTrack == nil || st.CurrentTrack.ID != trackID {
			return false
		}
		st.IsPlaying = false
		paused = true
		return true
	})
	return paused
}

func (s *Store) ResumeTrack() {
	s.update(func(st *PlaybackState) bool {
		if st.CurrentTrack == nil || st.IsPlaying {
			return false
		}
		st.IsPlaying = true
		return true
	})
}

func (s *Store) ClosePlayer() {
	s.update(func(st *PlaybackState) bool {
		if st.CurrentTrack == nil && !st.IsPlaying {
			return false
		}
		st.CurrentTrack = nil
		st.IsPlaying = false
		return true
	})
}

// update applies fn and notifies listeners outside the lock so a listener
// may dispatch further transitions.
func (s *Store) update(fn func(*PlaybackState) bool) {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	snapshot := s.state
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}
