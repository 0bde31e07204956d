package player

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zurustar/stem-tutor/pkg/analysis"
	"github.com/zurustar/stem-tutor/pkg/logger"
)

// Graph owns the song's stems and their transient voices. Voices are an
// arena of one-shot objects: every (re)start allocates fresh voices bound to
// a buffer and offset, and the old ones are torn down first. The graph never
// attempts in-place repositioning.
type Graph struct {
	backend Backend
	log     *slog.Logger

	mu     sync.Mutex
	stems  []*Stem // sorted by name
	byName map[string]*Stem
	voices []Voice
}

// NewGraph builds the stem set for a song. Gain nodes are created here, once
// per stem, and survive until Release.
func NewGraph(backend Backend, song *analysis.SongAnalysis, log *slog.Logger) *Graph {
	if log == nil {
		log = logger.GetLogger()
	}
	g := &Graph{
		backend: backend,
		log:     log,
		byName:  make(map[string]*Stem),
	}
	for _, name := range song.StemNames() {
		stem := newStem(song.Stems[name])
		g.stems = append(g.stems, stem)
		g.byName[name] = stem
	}
	return g
}

// Stems returns the stems in their fixed (sorted) order. The slice is shared
// with the caller for reading; mutation goes through the Set* methods.
func (g *Graph) Stems() []*Stem {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Stem, len(g.stems))
	copy(out, g.stems)
	return out
}

// Stem looks a stem up by name.
func (g *Graph) Stem(name string) (*Stem, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.byName[name]
	return s, ok
}

// EnsureBuffers decodes every stem's buffer for the given speed, skipping
// stems already cached and stems with no file at that speed. Decoding runs
// per stem concurrently; a failure on one stem leaves that stem silent at
// this speed and does not abort the others. Only context cancellation is
// returned as an error.
func (g *Graph) EnsureBuffers(ctx context.Context, speed Speed) error {
	g.mu.Lock()
	type job struct {
		stem *Stem
		path string
	}
	var jobs []job
	for _, stem := range g.stems {
		if _, ok := stem.buffers[speed]; ok {
			continue
		}
		path, ok := stem.paths[speed]
		if !ok {
			g.log.Debug("stem has no file at speed", "stem", stem.Name, "speed", speed.Label())
			continue
		}
		jobs = append(jobs, job{stem: stem, path: path})
	}
	g.mu.Unlock()

	if len(jobs) == 0 {
		return ctx.Err()
	}

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			buf, err := g.backend.DecodeBuffer(ctx, j.path)
			if err != nil {
				g.log.Error("failed to decode stem buffer",
					"stem", j.stem.Name, "speed", speed.Label(), "path", j.path, "error", err)
				return
			}
			g.mu.Lock()
			j.stem.buffers[speed] = buf
			g.mu.Unlock()
			g.log.Debug("stem buffer decoded",
				"stem", j.stem.Name, "speed", speed.Label(), "duration", buf.Duration())
		}(j)
	}
	wg.Wait()

	return ctx.Err()
}

// StartVoices starts one voice per stem at the given offset into the
// current-speed buffers, wired through each stem's gain node. A stem with no
// buffer for this speed is skipped silently. Returns the number of voices
// started.
func (g *Graph) StartVoices(speed Speed, offset float64) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	started := 0
	for _, stem := range g.stems {
		buf, ok := stem.buffers[speed]
		if !ok {
			g.log.Debug("skipping stem with no buffer", "stem", stem.Name, "speed", speed.Label())
			continue
		}
		voice, err := g.backend.StartVoice(buf, offset, stem.gain.Gain())
		if err != nil {
			g.log.Error("failed to start voice", "stem", stem.Name, "error", err)
			continue
		}
		stem.gain.Attach(voice)
		g.voices = append(g.voices, voice)
		started++
	}
	return started
}

// StopAllVoices stops every active voice and detaches the gain nodes.
// Stopping an already-stopped voice is a no-op, so this is idempotent.
func (g *Graph) StopAllVoices() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, v := range g.voices {
		v.Stop()
	}
	g.voices = g.voices[:0]
	for _, stem := range g.stems {
		stem.gain.Detach()
	}
}

// ApplyMix recomputes every stem's effective gain from the mix policy and
// applies it to the live gain nodes. No voice restart is involved.
func (g *Graph) ApplyMix(soloSet map[string]struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()

	soloActive := len(soloSet) > 0
	for _, stem := range g.stems {
		_, soloed := soloSet[stem.Name]
		stem.gain.Set(EffectiveGain(stem.Volume, stem.Muted, soloed, soloActive))
	}
}

// SetVolume updates a stem's volume slider. Returns false for an unknown
// stem. The caller follows up with ApplyMix.
func (g *Graph) SetVolume(name string, volume int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	stem, ok := g.byName[name]
	if !ok {
		return false
	}
	if volume < 0 {
		volume = 0
	} else if volume > 100 {
		volume = 100
	}
	stem.Volume = volume
	return true
}

// SetMuted updates a stem's mute flag. Returns false for an unknown stem.
func (g *Graph) SetMuted(name string, muted bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	stem, ok := g.byName[name]
	if !ok {
		return false
	}
	stem.Muted = muted
	return true
}

// HasBuffer reports whether a stem's buffer for the given speed is decoded.
func (g *Graph) HasBuffer(name string, speed Speed) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	stem, ok := g.byName[name]
	if !ok {
		return false
	}
	_, ok = stem.buffers[speed]
	return ok
}

// Release stops all voices and drops every decoded buffer. Called on song
// unload; the graph must not be used afterwards.
func (g *Graph) Release() {
	g.StopAllVoices()

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, stem := range g.stems {
		stem.buffers = make(map[Speed]*Buffer)
	}
}
