package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/xavierca1/dj-funnel/internal/entity"
	"github.com/xavierca1/dj-funnel/internal/infra/analytics"
	"github.com/xavierca1/dj-funnel/internal/preview"
)

// simulatedAudio is a player whose clock only moves when told to.
type simulatedAudio struct {
	mu      sync.Mutex
	pos     float64
	playing bool
}

func (a *simulatedAudio) Load(string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pos, a.playing = 0, false
	return nil
}

func (a *simulatedAudio) Play(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playing = true
	return nil
}

func (a *simulatedAudio) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playing = false
}

func (a *simulatedAudio) CurrentTime() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pos
}

func (a *simulatedAudio) SetCurrentTime(s float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pos = s
}

// advance moves the clock while playing and reports the new position.
func (a *simulatedAudio) advance(step float64) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.playing {
		a.pos += step
	}
	return a.pos, a.playing
}

type previewResult struct {
	TrackID      string  `json:"track_id"`
	Position     float64 `json:"position_seconds"`
	Playing      bool    `json:"playing"`
	LimitReached bool    `json:"limit_reached"`
	DialogOpen   bool    `json:"dialog_open"`
}

func newPreviewCommand() *cobra.Command {
	var (
		listen time.Duration
		seek   float64
		paid   bool
		limit  float64
	)

	cmd := &cobra.Command{
		Use:   "preview <track-id>",
		Short: "Simulate a preview session against the free listening limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := preview.NewStore()
			audio := &simulatedAudio{}
			gate := preview.NewGate(store, audio,
				preview.AccessFunc(func() (bool, error) { return paid, nil }),
				analytics.NewRecorder(analytics.OriginGate),
				preview.GateConfig{PagePath: "/cli", LimitSeconds: limit, PollInterval: time.Hour},
			)
			defer gate.Close()

			track := entity.Track{ID: args[0], Title: args[0], Src: fmt.Sprintf("/audio/%s.mp3", args[0])}
			store.PlayTrack(track)

			if seek > 0 {
				gate.Seek(seek)
			}

			for elapsed := 0.0; elapsed < listen.Seconds(); elapsed++ {
				pos, playing := audio.advance(1)
				if !playing {
					break
				}
				gate.HandleTimeUpdate(track.ID, pos)
			}

			session := gate.Session()
			return writeJSON(cmd.OutOrStdout(), previewResult{
				TrackID:      track.ID,
				Position:     audio.CurrentTime(),
				Playing:      store.State().IsPlaying,
				LimitReached: session.LimitReached,
				DialogOpen:   session.DialogOpen,
			})
		},
	}

	cmd.Flags().DurationVar(&listen, "listen", 45*time.Second, "How long to keep playing")
	cmd.Flags().Float64Var(&seek, "seek", 0, "Seek to this position (seconds) before listening")
	cmd.Flags().BoolVar(&paid, "paid", false, "Simulate a visitor with paid access")
	cmd.Flags().Float64Var(&limit, "limit", preview.DefaultLimitSeconds, "Free preview limit in seconds")

	return cmd
}
