package player

import (
	"sync"

	"github.com/zurustar/stem-tutor/pkg/analysis"
)

// GainNode is a stem's persistent mix point. It is created once when the
// song is loaded and never recreated; transient voices attach to it on every
// restart and inherit whatever gain the mix policy last applied. This is
// what lets mute/solo/volume changes take effect without restarting voices.
type GainNode struct {
	mu    sync.Mutex
	gain  float64
	voice Voice
}

// NewGainNode creates a gain node at unity gain with no voice attached.
func NewGainNode() *GainNode {
	return &GainNode{gain: 1}
}

// Set stores the gain and applies it to the attached voice, if any.
func (g *GainNode) Set(gain float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gain = gain
	if g.voice != nil {
		g.voice.SetGain(gain)
	}
}

// Gain returns the current gain.
func (g *GainNode) Gain() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gain
}

// Attach wires a freshly started voice to the node and applies the current
// gain to it. Any previously attached voice is simply forgotten; the graph
// stops voices before replacing them.
func (g *GainNode) Attach(v Voice) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.voice = v
	if v != nil {
		v.SetGain(g.gain)
	}
}

// Detach forgets the attached voice.
func (g *GainNode) Detach() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.voice = nil
}

// Stem is one instrument track of the loaded song: its mixer state, the
// audio file available per speed, the buffers decoded so far and the
// persistent gain node. Exactly one Stem exists per track; it lives until
// the song is unloaded.
type Stem struct {
	Name     string
	Volume   int // 0..100
	Muted    bool
	HasNotes bool
	PeakDB   float64

	paths   map[Speed]string
	buffers map[Speed]*Buffer
	gain    *GainNode
}

func newStem(info analysis.StemInfo) *Stem {
	paths := make(map[Speed]string)
	for _, s := range Speeds {
		if p, ok := info.Paths[s.Label()]; ok {
			paths[s] = p
		}
	}
	return &Stem{
		Name:     info.Name,
		Volume:   100,
		HasNotes: info.HasNotes,
		PeakDB:   info.PeakDB,
		paths:    paths,
		buffers:  make(map[Speed]*Buffer),
		gain:     NewGainNode(),
	}
}

// Buffer returns the decoded buffer for a speed, if present.
func (s *Stem) Buffer(speed Speed) (*Buffer, bool) {
	b, ok := s.buffers[speed]
	return b, ok
}

// Path returns the audio file reference for a speed, if the analysis record
// provides one.
func (s *Stem) Path(speed Speed) (string, bool) {
	p, ok := s.paths[speed]
	return p, ok
}
