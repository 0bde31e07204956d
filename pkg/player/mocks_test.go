package player

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/zurustar/stem-tutor/pkg/analysis"
)

// testSong builds an analysis record with the given stems, each carrying a
// file for every supported speed.
func testSong(durationSec float64, stems ...string) *analysis.SongAnalysis {
	m := make(map[string]analysis.StemInfo)
	for _, name := range stems {
		paths := make(map[string]string)
		for _, s := range Speeds {
			paths[s.Label()] = name + "-" + s.Label() + ".ogg"
		}
		m[name] = analysis.StemInfo{Name: name, Paths: paths}
	}
	return &analysis.SongAnalysis{
		Title:            "Test Song",
		OriginalDuration: durationSec,
		Stems:            m,
	}
}

// fakeClock is a manually advanced wall clock for deterministic transport
// tests.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{cur: time.Unix(1_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

// fakeVoice records the gain applied to it and how many times it was stopped.
type fakeVoice struct {
	mu      sync.Mutex
	gain    float64
	offset  float64
	stopped bool
	stops   int
}

func (v *fakeVoice) SetGain(gain float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.stopped {
		return
	}
	v.gain = gain
}

func (v *fakeVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopped = true
	v.stops++
}

func (v *fakeVoice) Gain() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gain
}

func (v *fakeVoice) Stopped() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopped
}

// fakeBackend is an in-memory Backend: decoding yields silence of a fixed
// length and voices only record what was done to them.
type fakeBackend struct {
	mu            sync.Mutex
	bufferSeconds float64
	resumeErr     error
	decodeErr     map[string]error
	decodeCalls   map[string]int
	voices        []*fakeVoice
	streams       []*fakeVoice
}

func newFakeBackend(bufferSeconds float64) *fakeBackend {
	return &fakeBackend{
		bufferSeconds: bufferSeconds,
		decodeErr:     make(map[string]error),
		decodeCalls:   make(map[string]int),
	}
}

func (b *fakeBackend) Resume(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resumeErr
}

func (b *fakeBackend) DecodeBuffer(ctx context.Context, path string) (*Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.decodeCalls[path]++
	if err := b.decodeErr[path]; err != nil {
		return nil, err
	}
	return NewBuffer(make([]byte, int(b.bufferSeconds*bytesPerSecond))), nil
}

func (b *fakeBackend) StartVoice(buf *Buffer, offset, gain float64) (Voice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := &fakeVoice{gain: gain, offset: offset}
	b.voices = append(b.voices, v)
	return v, nil
}

func (b *fakeBackend) StartStream(src io.Reader, gain float64) (Voice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := &fakeVoice{gain: gain}
	b.streams = append(b.streams, v)
	return v, nil
}

// activeVoices returns the voices that have not been stopped.
func (b *fakeBackend) activeVoices() []*fakeVoice {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*fakeVoice
	for _, v := range b.voices {
		if !v.Stopped() {
			out = append(out, v)
		}
	}
	return out
}

func (b *fakeBackend) allVoices() []*fakeVoice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*fakeVoice, len(b.voices))
	copy(out, b.voices)
	return out
}

func (b *fakeBackend) calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.decodeCalls[path]
}
