package player

import (
	"context"
	"errors"
	"io"
)

// SampleRate is the audio sample rate every buffer is decoded at.
// Stereo 16-bit at this rate, so one second is SampleRate*4 bytes.
const SampleRate = 44100

const bytesPerSecond = SampleRate * 4

// Backend errors.
var (
	// ErrUnsupportedFormat is returned when a stem file's extension has no
	// decoder. Recoverable per stem: the stem stays silent at that speed.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Buffer is decoded PCM audio for one stem at one speed: stereo interleaved
// 16-bit little-endian at SampleRate.
type Buffer struct {
	pcm []byte
}

// NewBuffer wraps raw PCM. The length is truncated to whole frames.
func NewBuffer(pcm []byte) *Buffer {
	return &Buffer{pcm: pcm[:len(pcm)/4*4]}
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(len(b.pcm)) / bytesPerSecond
}

// Voice is a single active playback instance of a buffer, bound to a start
// offset when created and never repositioned afterwards. Stop is idempotent.
type Voice interface {
	// SetGain sets the voice's output gain in [0, 1].
	SetGain(gain float64)
	// Stop tears the voice down. Stopping a stopped voice is a no-op.
	Stop()
}

// Backend abstracts the audio subsystem the voice graph drives. The two
// context-aware methods are the engine's only suspension points: resuming a
// suspended audio graph and fetching+decoding a stem buffer.
type Backend interface {
	// Resume makes the audio subsystem ready for playback, blocking until it
	// is. Must be awaited before voices are started.
	Resume(ctx context.Context) error

	// DecodeBuffer fetches and decodes one stem audio file.
	DecodeBuffer(ctx context.Context, path string) (*Buffer, error)

	// StartVoice creates a one-shot voice playing buf from offset seconds
	// (into the buffer) at the given gain. Starting past the end of the
	// buffer yields a voice that finishes immediately.
	StartVoice(buf *Buffer, offset, gain float64) (Voice, error)

	// StartStream creates a persistent voice fed by src (used by the
	// metronome). src must produce stereo 16-bit PCM at SampleRate.
	StartStream(src io.Reader, gain float64) (Voice, error)
}
