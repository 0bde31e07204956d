package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zurustar/stem-tutor/pkg/analysis"
	"github.com/zurustar/stem-tutor/pkg/logger"
)

// Player is the engine handle: it exclusively owns the mutable playback
// state and the stem voice graph. The UI reads snapshots and issues
// commands; it never touches voices or buffers directly.
//
// The transport clock is wall-clock anchored: while playing, the current
// logical position is positionAtAnchor + (now - anchor), independent of any
// single voice's internal state. Every transport operation updates
// positionAtAnchor and anchor together, never one without the other.
type Player struct {
	mu      sync.Mutex
	graph   *Graph
	backend Backend
	song    *analysis.SongAnalysis
	now     func() time.Time
	log     *slog.Logger

	// playing is the authoritative transport flag. It gates the tick and
	// every transport operation; UI-visible state derives from snapshots.
	playing bool
	loading bool
	closed  bool

	speed            Speed
	positionAtAnchor float64   // display seconds at the last transport event
	anchor           time.Time // wall clock captured at the last transport event
	duration         float64   // song duration at the current speed

	loopStart    float64
	hasLoopStart bool
	loopEnd      float64
	hasLoopEnd   bool

	soloSet map[string]struct{}

	onPosition func(pos float64)
}

// Option configures a Player.
type Option func(*Player)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Player) {
		p.log = log
	}
}

// WithClock sets the wall-clock source. Used by tests to drive the
// transport deterministically.
func WithClock(now func() time.Time) Option {
	return func(p *Player) {
		p.now = now
	}
}

// WithPositionListener registers the per-tick position subscriber. The
// callback runs on the tick goroutine and must not call back into the
// Player.
func WithPositionListener(fn func(pos float64)) Option {
	return func(p *Player) {
		p.onPosition = fn
	}
}

// WithInitialSpeed sets the speed the player starts at.
func WithInitialSpeed(speed Speed) Option {
	return func(p *Player) {
		p.speed = speed
	}
}

// NewPlayer builds the engine for a loaded song. Stems and their gain nodes
// are created here; buffers are decoded by Load or SetSpeed.
func NewPlayer(backend Backend, song *analysis.SongAnalysis, opts ...Option) *Player {
	p := &Player{
		backend: backend,
		song:    song,
		now:     time.Now,
		speed:   Speed100,
		soloSet: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.GetLogger()
	}
	p.graph = NewGraph(backend, song, p.log)
	p.duration = song.OriginalDuration / p.speed.Multiplier()
	return p
}

// Load decodes the stem buffers for the current speed. Per-stem failures
// leave those stems silent and are not fatal.
func (p *Player) Load(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	speed := p.speed
	p.loading = true
	p.mu.Unlock()

	err := p.graph.EnsureBuffers(ctx, speed)

	p.mu.Lock()
	p.loading = false
	p.mu.Unlock()
	return err
}

// Play starts or resumes playback at the current position. The audio
// subsystem is resumed first and awaited; stale voices are stopped before
// one voice per stem is started at the current position. No-op while
// already playing.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.playing {
		return nil
	}

	if err := p.backend.Resume(ctx); err != nil {
		// Transport state is untouched; the UI surfaces this as an error
		// state and may retry.
		return fmt.Errorf("failed to resume audio: %w", err)
	}

	p.graph.StopAllVoices()
	p.graph.ApplyMix(p.soloSet)
	started := p.graph.StartVoices(p.speed, p.positionAtAnchor)

	p.anchor = p.now()
	p.playing = true

	p.log.Debug("playback started",
		"position", p.positionAtAnchor, "speed", p.speed.Label(), "voices", started)
	return nil
}

// Pause freezes the transport at the current position. No-op while not
// playing; the position is preserved, not reset.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauseLocked()
}

func (p *Player) pauseLocked() {
	if !p.playing {
		return
	}
	p.positionAtAnchor = p.positionLocked()
	p.anchor = p.now()
	p.playing = false
	p.graph.StopAllVoices()
	p.log.Debug("playback paused", "position", p.positionAtAnchor)
}

// Stop stops playback and resets the position to zero.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	p.graph.StopAllVoices()
	p.positionAtAnchor = 0
	p.anchor = p.now()
	p.playing = false
}

// Seek moves the transport to t (display seconds), clamped to the song. If
// playback was running the voices are restarted at the new position before
// Seek returns; the restart is guaranteed, not merely scheduled.
func (p *Player) Seek(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	t = clamp(t, 0, p.duration)

	wasPlaying := p.playing
	if wasPlaying {
		p.graph.StopAllVoices()
	}
	p.positionAtAnchor = t
	p.anchor = p.now()
	if wasPlaying {
		p.graph.StartVoices(p.speed, t)
		p.anchor = p.now()
	}
	p.log.Debug("seek", "position", t, "playing", wasPlaying)
}

// Position returns the current logical playback position in display
// seconds.
func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() float64 {
	if !p.playing {
		return p.positionAtAnchor
	}
	return p.positionAtAnchor + p.now().Sub(p.anchor).Seconds()
}

// Update is the engine tick. It is driven once per frame by the cooperative
// scheduler (the game loop) and does nothing unless the transport is
// playing: loop wrap first, then end-of-song, then position publication.
func (p *Player) Update() {
	p.mu.Lock()

	if p.closed || !p.playing {
		p.mu.Unlock()
		return
	}

	pos := p.positionLocked()

	if p.hasLoopEnd && pos >= p.loopEnd {
		start := p.effectiveLoopStartLocked()
		p.restartAtLocked(start)
		p.mu.Unlock()
		// The restart tick publishes exactly the loop start; no position in
		// [loopEnd, inf) is ever published after the wrap.
		p.publish(start)
		return
	}

	if pos >= p.duration {
		p.stopLocked()
		p.mu.Unlock()
		return
	}

	p.mu.Unlock()
	p.publish(pos)
}

func (p *Player) publish(pos float64) {
	if p.onPosition != nil {
		p.onPosition(pos)
	}
}

// restartAtLocked performs a hard restart: all voices stopped and started
// again at t, position and anchor updated atomically.
func (p *Player) restartAtLocked(t float64) {
	p.graph.StopAllVoices()
	p.graph.StartVoices(p.speed, t)
	p.positionAtAnchor = t
	p.anchor = p.now()
}

// SetLoopStart captures the current position as the loop start.
func (p *Player) SetLoopStart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loopStart = p.positionLocked()
	p.hasLoopStart = true
	p.log.Debug("loop start set", "position", p.loopStart)
}

// SetLoopEnd captures the current position as the loop end. A loop end at
// or before the loop start is ignored.
func (p *Player) SetLoopEnd() {
	p.mu.Lock()
	defer p.mu.Unlock()

	end := p.positionLocked()
	if end <= p.effectiveLoopStartLocked() {
		p.log.Debug("ignoring loop end at or before loop start", "position", end)
		return
	}
	p.loopEnd = end
	p.hasLoopEnd = true
	p.log.Debug("loop end set", "position", end)
}

// ClearLoop removes both loop bounds.
func (p *Player) ClearLoop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hasLoopStart = false
	p.hasLoopEnd = false
	p.loopStart = 0
	p.loopEnd = 0
}

// Loop start defaults to the beginning of the song when only an end is set.
func (p *Player) effectiveLoopStartLocked() float64 {
	if p.hasLoopStart {
		return p.loopStart
	}
	return 0
}

// SetSpeed switches playback to the pre-rendered buffers for newSpeed,
// preserving the relative position in the song. Buffers for the new speed
// are decoded on first use and cached; re-selecting a previous speed does
// not re-fetch.
func (p *Player) SetSpeed(ctx context.Context, newSpeed Speed) error {
	p.mu.Lock()
	if p.closed || newSpeed == p.speed {
		p.mu.Unlock()
		return nil
	}

	wasPlaying := p.playing
	oldSpeed := p.speed
	pos := p.positionLocked()
	dur := p.duration
	if wasPlaying {
		p.pauseLocked()
	}

	ratio := 0.0
	if dur > 0 {
		ratio = pos / dur
	}

	p.loading = true
	p.mu.Unlock()

	err := p.graph.EnsureBuffers(ctx, newSpeed)

	p.mu.Lock()
	p.loading = false
	if err != nil {
		p.mu.Unlock()
		return err
	}

	newDuration := p.song.OriginalDuration / newSpeed.Multiplier()
	newPosition := ratio * newDuration

	p.speed = newSpeed
	p.duration = newDuration
	p.positionAtAnchor = newPosition
	p.anchor = p.now()

	// Loop bounds are display time; carry them over to the new speed so the
	// loop keeps covering the same section of the song.
	scale := oldSpeed.Multiplier() / newSpeed.Multiplier()
	if p.hasLoopStart {
		p.loopStart *= scale
	}
	if p.hasLoopEnd {
		p.loopEnd *= scale
	}

	p.log.Debug("speed switched",
		"speed", newSpeed.Label(), "position", newPosition, "duration", newDuration)
	p.mu.Unlock()

	if wasPlaying {
		return p.Play(ctx)
	}
	return nil
}

// Speed returns the current playback speed.
func (p *Player) Speed() Speed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// SetVolume sets a stem's volume slider (clamped to 0..100) and reapplies
// the mix to the live gain nodes.
func (p *Player) SetVolume(stem string, volume int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.graph.SetVolume(stem, volume) {
		p.graph.ApplyMix(p.soloSet)
	}
}

// SetMuted sets a stem's mute flag and reapplies the mix.
func (p *Player) SetMuted(stem string, muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.graph.SetMuted(stem, muted) {
		p.graph.ApplyMix(p.soloSet)
	}
}

// SetSolo adds or removes a stem from the solo set and reapplies the mix.
// Solo is inclusive: several stems may be soloed at once.
func (p *Player) SetSolo(stem string, solo bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.graph.Stem(stem); !ok {
		return
	}
	if solo {
		p.soloSet[stem] = struct{}{}
	} else {
		delete(p.soloSet, stem)
	}
	p.graph.ApplyMix(p.soloSet)
}

// ToggleSolo flips a stem's solo membership.
func (p *Player) ToggleSolo(stem string) {
	p.mu.Lock()
	_, soloed := p.soloSet[stem]
	p.mu.Unlock()
	p.SetSolo(stem, !soloed)
}

// TransportState returns the current display position, speed and playing
// flag in one consistent read. Used by streaming consumers such as the
// metronome.
func (p *Player) TransportState() (pos float64, speed Speed, playing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked(), p.speed, p.playing
}

// StemStatus is the UI view of one stem.
type StemStatus struct {
	Name   string
	Volume int
	Muted  bool
	Soloed bool
	Loaded bool // buffer present at the current speed
}

// Snapshot is the UI view of the whole engine at one instant.
type Snapshot struct {
	Position float64
	Duration float64
	Playing  bool
	Loading  bool
	Speed    Speed

	LoopStart float64
	LoopEnd   float64
	LoopSet   bool

	Stems []StemStatus
	Flash BeatFlash
}

// Snapshot returns a consistent copy of the engine state for the UI.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	pos := p.positionLocked()
	snap := Snapshot{
		Position:  pos,
		Duration:  p.duration,
		Playing:   p.playing,
		Loading:   p.loading,
		Speed:     p.speed,
		LoopStart: p.effectiveLoopStartLocked(),
		LoopEnd:   p.loopEnd,
		LoopSet:   p.hasLoopEnd,
		Flash:     FlashAt(p.song.Beats, pos, p.speed),
	}
	speed := p.speed
	soloSet := p.soloSet
	p.mu.Unlock()

	for _, stem := range p.graph.Stems() {
		_, soloed := soloSet[stem.Name]
		snap.Stems = append(snap.Stems, StemStatus{
			Name:   stem.Name,
			Volume: stem.Volume,
			Muted:  stem.Muted,
			Soloed: soloed,
			Loaded: p.graph.HasBuffer(stem.Name, speed),
		})
	}
	return snap
}

// Song returns the loaded analysis record (read-only).
func (p *Player) Song() *analysis.SongAnalysis {
	return p.song
}

// Close tears the engine down: voices stopped, buffers released. The tick
// becomes a no-op, so a frame callback firing after Close cannot mutate
// state.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.playing = false
	p.positionAtAnchor = 0
	p.graph.Release()
	p.log.Debug("player closed")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
