package player

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/zurustar/stem-tutor/pkg/analysis"
)

// GM percussion keys used for the click (channel 10).
const (
	clickChannel     = 9
	clickKeyDownbeat = 76 // high wood block
	clickKeyBeat     = 77 // low wood block
)

// Metronome synthesizes percussion clicks on the song's beats through a
// persistent backend stream. Beat crossing is detected in reference time via
// ToRef, so the clicks follow seeks, loops and speed switches without any
// coupling to the transport internals beyond TransportState.
//
// The stream voice is created once and toggled by gain, mirroring how stem
// gain nodes work: enabling or disabling never interrupts the stream.
type Metronome struct {
	mu      sync.Mutex
	voice   Voice
	stream  *clickStream
	enabled bool
}

// NewMetronome builds the synthesizer from a soundfont and starts the
// (initially silent) click stream. state is typically Player.TransportState.
func NewMetronome(backend Backend, sf *meltysynth.SoundFont, beats []analysis.BeatEvent, state func() (pos float64, speed Speed, playing bool)) (*Metronome, error) {
	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synth, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	stream := newClickStream(synth, beats, state)
	voice, err := backend.StartStream(stream, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to start metronome stream: %w", err)
	}

	return &Metronome{voice: voice, stream: stream}, nil
}

// SetEnabled mutes or unmutes the click output.
func (m *Metronome) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
	if enabled {
		m.voice.SetGain(1)
	} else {
		m.voice.SetGain(0)
	}
}

// Enabled reports whether clicks are audible.
func (m *Metronome) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Toggle flips the enabled state and returns the new value.
func (m *Metronome) Toggle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = !m.enabled
	if m.enabled {
		m.voice.SetGain(1)
	} else {
		m.voice.SetGain(0)
	}
	return m.enabled
}

// Close stops the click stream voice.
func (m *Metronome) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voice.Stop()
}

// clickStream renders the synthesizer into the audio stream and fires a
// NoteOn for every beat the transport crossed since the previous read.
type clickStream struct {
	mu    sync.Mutex
	synth *meltysynth.Synthesizer
	state func() (pos float64, speed Speed, playing bool)

	beatTimes []float64 // reference time, ascending
	downbeats []bool

	primed  bool
	lastRef float64
}

func newClickStream(synth *meltysynth.Synthesizer, beats []analysis.BeatEvent, state func() (float64, Speed, bool)) *clickStream {
	cs := &clickStream{synth: synth, state: state}
	for _, b := range beats {
		cs.beatTimes = append(cs.beatTimes, b.Time)
		cs.downbeats = append(cs.downbeats, b.Type == analysis.BeatTypeDownbeat)
	}
	return cs
}

// Read implements io.Reader for the audio backend: stereo 16-bit PCM at
// SampleRate. Called from the audio pipeline.
func (cs *clickStream) Read(p []byte) (int, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	n := len(p) / 4 * 4
	sampleCount := n / 4

	pos, speed, playing := cs.state()
	if !playing {
		// Re-prime on the next playing read so a pause or stop never
		// replays old beats.
		cs.primed = false
	} else {
		ref := ToRef(pos, speed)
		if !cs.primed || ref < cs.lastRef {
			// First read after a transport (re)start, or a backwards jump:
			// resynchronize without clicking.
			cs.primed = true
		} else {
			cs.trigger(cs.lastRef, ref)
		}
		cs.lastRef = ref
	}

	left := make([]float32, sampleCount)
	right := make([]float32, sampleCount)
	cs.synth.Render(left, right)

	for i := 0; i < sampleCount; i++ {
		binary.LittleEndian.PutUint16(p[i*4:], uint16(int16(left[i]*32767)))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(int16(right[i]*32767)))
	}
	return n, nil
}

// trigger fires a click for every beat crossed since the previous read.
func (cs *clickStream) trigger(from, to float64) {
	for _, i := range crossedBeats(cs.beatTimes, from, to) {
		if cs.downbeats[i] {
			cs.synth.NoteOn(clickChannel, clickKeyDownbeat, 127)
		} else {
			cs.synth.NoteOn(clickChannel, clickKeyBeat, 100)
		}
	}
}

// crossedBeats returns the indexes of the beats with reference time in
// (from, to]. beatTimes must be sorted ascending.
func crossedBeats(beatTimes []float64, from, to float64) []int {
	i := sort.SearchFloat64s(beatTimes, from)
	for i < len(beatTimes) && beatTimes[i] <= from {
		i++
	}
	var out []int
	for ; i < len(beatTimes) && beatTimes[i] <= to; i++ {
		out = append(out, i)
	}
	return out
}
