// Package playback keeps a media player's position and a transcript's
// discrete segments in lock-step, in both directions: time advances highlight
// the active segment, and segment clicks seek the player.
package playback

import (
	"errors"
	"sync"

	"github.com/voxproof/eval-console/internal/result"
	"github.com/voxproof/eval-console/internal/transcript"
)

// ErrNoSuchSegment is returned by SeekToSegment for an out-of-range index.
var ErrNoSuchSegment = errors.New("playback: no such segment")

// PlayerControl is the command side of the media player. The event side
// (time updates, metadata, ended) is fed into the Synchronizer by whoever
// adapts the actual player.
type PlayerControl interface {
	// SetPosition moves the playback position, in seconds.
	SetPosition(seconds float64)

	// Play starts or resumes playback.
	Play()

	// Pause pauses playback.
	Pause()
}

// State is a read-only snapshot of the synchronizer.
type State struct {
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	IsPlaying   bool    `json:"is_playing"`

	// ActiveIndex is the highlighted segment; valid only when HasActive.
	ActiveIndex int  `json:"active_index"`
	HasActive   bool `json:"has_active"`
}

// Synchronizer is the single source of truth for currentTime, duration and
// isPlaying. The active segment is always a pure function of
// (segments, currentTime); no event path may set it any other way.
type Synchronizer struct {
	mu    sync.Mutex
	index *transcript.Index
	ctrl  PlayerControl

	currentTime float64
	isPlaying   bool
	activeIndex int
	hasActive   bool

	// Duration candidates by precedence: provider-reported beats the media
	// element's own metadata, which beats the result's stored estimate. Each
	// is re-consulted whenever a higher-priority source becomes available.
	providerDuration float64
	mediaDuration    float64
	storedDuration   float64
}

// New builds a synchronizer for a fetched result. The provider-reported
// duration, when the call payload carries one, is seeded here; the media
// element duration arrives later via HandleMetadataLoaded.
func New(res *result.EvaluationResult, index *transcript.Index, ctrl PlayerControl) *Synchronizer {
	s := &Synchronizer{
		index: index,
		ctrl:  ctrl,
	}
	if res != nil {
		s.storedDuration = res.DurationSeconds
		if payload, err := res.Payload(); err == nil && payload != nil {
			s.providerDuration = payload.ReportedDuration()
		}
	}
	return s
}

// Duration resolves the duration precedence: provider, then media metadata,
// then the stored estimate.
func (s *Synchronizer) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.durationLocked()
}

func (s *Synchronizer) durationLocked() float64 {
	if s.providerDuration > 0 {
		return s.providerDuration
	}
	if s.mediaDuration > 0 {
		return s.mediaDuration
	}
	return s.storedDuration
}

// HandleTimeUpdate applies a time-advance event from the player. This is the
// only path that changes which segment is highlighted.
func (s *Synchronizer) HandleTimeUpdate(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentTime = seconds
	s.recomputeActiveLocked()
}

// HandleMetadataLoaded records the media element's reported duration once
// the recording's metadata is available.
func (s *Synchronizer) HandleMetadataLoaded(duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if duration > 0 {
		s.mediaDuration = duration
	}
}

// HandleEnded resets position to the start and clears the highlight.
func (s *Synchronizer) HandleEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.isPlaying = false
	s.currentTime = 0
	s.hasActive = false
	s.activeIndex = 0
}

// Play starts playback.
func (s *Synchronizer) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playLocked()
}

func (s *Synchronizer) playLocked() {
	if s.isPlaying {
		return
	}
	s.isPlaying = true
	if s.ctrl != nil {
		s.ctrl.Play()
	}
}

// Pause pauses playback.
func (s *Synchronizer) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isPlaying {
		return
	}
	s.isPlaying = false
	if s.ctrl != nil {
		s.ctrl.Pause()
	}
}

// TogglePlay flips between playing and paused.
func (s *Synchronizer) TogglePlay() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isPlaying {
		s.isPlaying = false
		if s.ctrl != nil {
			s.ctrl.Pause()
		}
		return
	}
	s.playLocked()
}

// SeekToSegment moves playback to the exact start of segment i and starts
// playback when paused. It deliberately ignores the current highlight:
// clicking the already-active segment still seeks to its start.
func (s *Synchronizer) SeekToSegment(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, ok := s.index.StartOf(i)
	if !ok {
		return ErrNoSuchSegment
	}

	s.currentTime = start
	if s.ctrl != nil {
		s.ctrl.SetPosition(start)
	}
	s.recomputeActiveLocked()
	s.playLocked()
	return nil
}

// SeekToFraction converts a normalized progress-bar position in [0,1] to an
// absolute time, independent of segment boundaries. Out-of-range fractions
// clamp.
func (s *Synchronizer) SeekToFraction(f float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}

	target := f * s.durationLocked()
	s.currentTime = target
	if s.ctrl != nil {
		s.ctrl.SetPosition(target)
	}
	s.recomputeActiveLocked()
}

// Snapshot returns the current synchronizer state.
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		CurrentTime: s.currentTime,
		Duration:    s.durationLocked(),
		IsPlaying:   s.isPlaying,
		ActiveIndex: s.activeIndex,
		HasActive:   s.hasActive,
	}
}

func (s *Synchronizer) recomputeActiveLocked() {
	idx, ok := s.index.ActiveIndexAt(s.currentTime)
	s.activeIndex = idx
	s.hasActive = ok
}
