package player

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"

	"github.com/zurustar/stem-tutor/pkg/fileutil"
	"github.com/zurustar/stem-tutor/pkg/logger"
)

var (
	// Global audio context (Ebiten allows only one)
	globalAudioContext *audio.Context
	audioContextMutex  sync.Mutex
)

func getAudioContext() *audio.Context {
	audioContextMutex.Lock()
	defer audioContextMutex.Unlock()

	if globalAudioContext == nil {
		globalAudioContext = audio.NewContext(SampleRate)
	}
	return globalAudioContext
}

// EbitenBackend drives Ebitengine/audio. Voices are audio.Players created
// over a slice of the decoded PCM starting at the requested offset; players
// are never repositioned after starting. Stem files are resolved through
// the song directory's FileSystem.
type EbitenBackend struct {
	ctx   *audio.Context
	fsys  fileutil.FileSystem
	muted bool
	log   *slog.Logger
}

// NewEbitenBackend creates the backend for a song directory. With muted set
// (headless mode) every voice plays at volume zero.
func NewEbitenBackend(fsys fileutil.FileSystem, muted bool) *EbitenBackend {
	return &EbitenBackend{
		ctx:   getAudioContext(),
		fsys:  fsys,
		muted: muted,
		log:   logger.GetLogger(),
	}
}

// Resume blocks until the audio context is ready to produce sound. On some
// platforms (notably browsers) the context only becomes ready after a user
// gesture, so playback must await this before starting voices.
func (b *EbitenBackend) Resume(ctx context.Context) error {
	if b.ctx.IsReady() {
		return nil
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("audio context not ready: %w", ctx.Err())
		case <-ticker.C:
			if b.ctx.IsReady() {
				return nil
			}
		}
	}
}

// DecodeBuffer reads a stem audio file and decodes it to PCM at SampleRate.
// The decoder is chosen by file extension.
func (b *EbitenBackend) DecodeBuffer(ctx context.Context, p string) (*Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := b.fsys.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read stem file %s: %w", p, err)
	}

	var stream io.Reader
	switch strings.ToLower(path.Ext(p)) {
	case ".wav":
		stream, err = wav.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
	case ".ogg", ".oga":
		stream, err = vorbis.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
	case ".mp3":
		stream, err = mp3.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", p, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pcm, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", p, err)
	}
	return NewBuffer(pcm), nil
}

// StartVoice starts a one-shot player over the buffer tail beginning at
// offset seconds. Offsets past the end yield an immediately finished voice.
func (b *EbitenBackend) StartVoice(buf *Buffer, offset, gain float64) (Voice, error) {
	off := int(offset*SampleRate) * 4
	if off < 0 {
		off = 0
	}
	if off > len(buf.pcm) {
		off = len(buf.pcm)
	}

	player := b.ctx.NewPlayerFromBytes(buf.pcm[off:])
	voice := &ebitenVoice{player: player, muted: b.muted}
	voice.SetGain(gain)
	player.Play()
	return voice, nil
}

// StartStream starts a persistent player fed by src.
func (b *EbitenBackend) StartStream(src io.Reader, gain float64) (Voice, error) {
	player, err := b.ctx.NewPlayer(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream player: %w", err)
	}
	voice := &ebitenVoice{player: player, muted: b.muted}
	voice.SetGain(gain)
	player.Play()
	return voice, nil
}

// ebitenVoice wraps an audio.Player as a Voice. Stop is idempotent; a muted
// backend pins the volume at zero no matter what gain the mix applies.
type ebitenVoice struct {
	mu     sync.Mutex
	player *audio.Player
	muted  bool
	closed bool
}

func (v *ebitenVoice) SetGain(gain float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	if v.muted {
		v.player.SetVolume(0)
		return
	}
	v.player.SetVolume(clamp(gain, 0, 1))
}

func (v *ebitenVoice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.player.Close()
}
