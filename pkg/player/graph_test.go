package player

import (
	"context"
	"errors"
	"testing"

	"github.com/zurustar/stem-tutor/pkg/analysis"
)

func TestGraph_StartVoicesSkipsStemsWithoutBuffer(t *testing.T) {
	backend := newFakeBackend(240)
	song := testSong(240, "vocals", "drums")

	// bass only exists at the 1.0x reference speed.
	song.Stems["bass"] = analysis.StemInfo{
		Name:  "bass",
		Paths: map[string]string{"1.0x": "bass-1.0x.ogg"},
	}

	g := NewGraph(backend, song, nil)
	if err := g.EnsureBuffers(context.Background(), Speed050); err != nil {
		t.Fatalf("EnsureBuffers failed: %v", err)
	}

	started := g.StartVoices(Speed050, 0)
	if started != 2 {
		t.Errorf("started = %d, want 2 (bass has no 0.5x file)", started)
	}
	if g.HasBuffer("bass", Speed050) {
		t.Error("bass unexpectedly has a 0.5x buffer")
	}
}

func TestGraph_DecodeFailureLeavesStemSilent(t *testing.T) {
	backend := newFakeBackend(240)
	backend.decodeErr["vocals-1.0x.ogg"] = errors.New("corrupt file")
	g := NewGraph(backend, testSong(240, "vocals", "drums"), nil)

	// A per-stem failure is not fatal.
	if err := g.EnsureBuffers(context.Background(), Speed100); err != nil {
		t.Fatalf("EnsureBuffers returned error for per-stem failure: %v", err)
	}

	if g.HasBuffer("vocals", Speed100) {
		t.Error("vocals has a buffer despite decode failure")
	}
	if !g.HasBuffer("drums", Speed100) {
		t.Error("drums missing its buffer; one failure must not abort the rest")
	}
	if started := g.StartVoices(Speed100, 0); started != 1 {
		t.Errorf("started = %d, want 1", started)
	}
}

func TestGraph_EnsureBuffersCancelled(t *testing.T) {
	backend := newFakeBackend(240)
	g := NewGraph(backend, testSong(240, "vocals"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.EnsureBuffers(ctx, Speed100); !errors.Is(err, context.Canceled) {
		t.Errorf("EnsureBuffers = %v, want context.Canceled", err)
	}
}

func TestGraph_StopAllVoicesIdempotent(t *testing.T) {
	backend := newFakeBackend(240)
	g := NewGraph(backend, testSong(240, "vocals", "drums"), nil)
	if err := g.EnsureBuffers(context.Background(), Speed100); err != nil {
		t.Fatalf("EnsureBuffers failed: %v", err)
	}
	g.StartVoices(Speed100, 0)

	g.StopAllVoices()
	g.StopAllVoices()

	for _, v := range backend.allVoices() {
		if v.stops != 1 {
			t.Errorf("voice stopped %d times, want 1", v.stops)
		}
	}
}

func TestGraph_ApplyMixReachesAttachedVoices(t *testing.T) {
	backend := newFakeBackend(240)
	g := NewGraph(backend, testSong(240, "vocals", "drums"), nil)
	if err := g.EnsureBuffers(context.Background(), Speed100); err != nil {
		t.Fatalf("EnsureBuffers failed: %v", err)
	}
	g.StartVoices(Speed100, 0)

	g.SetVolume("vocals", 30)
	g.ApplyMix(nil)

	// Voices are started in sorted stem order: drums, vocals.
	voices := backend.allVoices()
	if len(voices) != 2 {
		t.Fatalf("voices = %d, want 2", len(voices))
	}
	if got := voices[1].Gain(); !almostEqual(got, 0.3) {
		t.Errorf("vocals gain = %v, want 0.3", got)
	}
	if got := voices[0].Gain(); !almostEqual(got, 1.0) {
		t.Errorf("drums gain = %v, want 1.0", got)
	}
}

func TestGraph_GainSurvivesVoiceRestart(t *testing.T) {
	backend := newFakeBackend(240)
	g := NewGraph(backend, testSong(240, "vocals"), nil)
	if err := g.EnsureBuffers(context.Background(), Speed100); err != nil {
		t.Fatalf("EnsureBuffers failed: %v", err)
	}

	g.SetVolume("vocals", 50)
	g.ApplyMix(nil)

	// A fresh voice attaches to the persistent gain node and inherits the
	// mix set before it existed.
	g.StartVoices(Speed100, 0)
	voices := backend.allVoices()
	if got := voices[len(voices)-1].Gain(); !almostEqual(got, 0.5) {
		t.Errorf("fresh voice gain = %v, want 0.5", got)
	}

	g.StopAllVoices()
	g.StartVoices(Speed100, 30)
	voices = backend.allVoices()
	if got := voices[len(voices)-1].Gain(); !almostEqual(got, 0.5) {
		t.Errorf("restarted voice gain = %v, want 0.5", got)
	}
}

func TestGraph_SetVolumeClampsAndRejectsUnknown(t *testing.T) {
	backend := newFakeBackend(240)
	g := NewGraph(backend, testSong(240, "vocals"), nil)

	if !g.SetVolume("vocals", 150) {
		t.Fatal("SetVolume rejected a known stem")
	}
	stem, _ := g.Stem("vocals")
	if stem.Volume != 100 {
		t.Errorf("Volume = %d, want clamped to 100", stem.Volume)
	}

	g.SetVolume("vocals", -20)
	if stem.Volume != 0 {
		t.Errorf("Volume = %d, want clamped to 0", stem.Volume)
	}

	if g.SetVolume("nope", 50) {
		t.Error("SetVolume accepted an unknown stem")
	}
	if g.SetMuted("nope", true) {
		t.Error("SetMuted accepted an unknown stem")
	}
}

func TestGraph_ReleaseDropsBuffers(t *testing.T) {
	backend := newFakeBackend(240)
	g := NewGraph(backend, testSong(240, "vocals"), nil)
	if err := g.EnsureBuffers(context.Background(), Speed100); err != nil {
		t.Fatalf("EnsureBuffers failed: %v", err)
	}
	g.StartVoices(Speed100, 0)

	g.Release()

	if g.HasBuffer("vocals", Speed100) {
		t.Error("buffer survived Release")
	}
	for _, v := range backend.allVoices() {
		if !v.Stopped() {
			t.Error("voice survived Release")
		}
	}
}
