// Package analysis defines the per-song record produced by the offline
// analysis pipeline and consumed by the playback engine. All timestamps in
// the record are at the 1.0x reference speed; display-time scaling is the
// consumer's responsibility.
package analysis

import "sort"

// BeatType distinguishes ordinary beats from downbeats.
type BeatType string

const (
	BeatTypeBeat     BeatType = "beat"
	BeatTypeDownbeat BeatType = "downbeat"
)

// BeatEvent is a beat or downbeat at a reference-speed timestamp.
// The beat list is ordered ascending by time and immutable once loaded.
type BeatEvent struct {
	Time          float64  `json:"time"`
	Type          BeatType `json:"type"`
	BeatInMeasure *int     `json:"beatInMeasure"`
}

// PitchBendPoint is a point in a note's pitch bend curve, relative to the
// note start.
type PitchBendPoint struct {
	Time  float64 `json:"time"`
	Cents float64 `json:"cents"`
}

// Note is a detected note on a stem.
type Note struct {
	Start     float64          `json:"start"`
	End       float64          `json:"end"`
	Pitch     int              `json:"pitch"`
	Velocity  float64          `json:"velocity"`
	PitchBend []PitchBendPoint `json:"pitchBend,omitempty"`
}

// DrumStrike is a detected hit on an isolated drum component.
type DrumStrike struct {
	Time     float64 `json:"time"`
	Velocity float64 `json:"velocity"`
}

// LyricWord is a single word with timing.
type LyricWord struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// LyricLine is a line of lyrics with word-level timing.
type LyricLine struct {
	Text  string      `json:"text"`
	Start float64     `json:"start"`
	End   float64     `json:"end"`
	Words []LyricWord `json:"words"`
}

// LyricsData holds word-level lyrics and how they were obtained
// (lrc, txt or transcribed).
type LyricsData struct {
	Source string      `json:"source"`
	Lines  []LyricLine `json:"lines"`
}

// LineAt returns the index of the lyric line covering the given reference
// time, or -1 if no line covers it.
func (l *LyricsData) LineAt(refTime float64) int {
	if l == nil {
		return -1
	}
	for i := range l.Lines {
		if refTime >= l.Lines[i].Start && refTime < l.Lines[i].End {
			return i
		}
	}
	return -1
}

// WordAt returns the index of the word covering the given reference time
// within a line, or -1.
func (ln *LyricLine) WordAt(refTime float64) int {
	for i := range ln.Words {
		if refTime >= ln.Words[i].Start && refTime < ln.Words[i].End {
			return i
		}
	}
	return -1
}

// StemInfo describes one separated stem: its name, a mapping from speed
// label ("0.5x", "1.0x", ...) to a relative audio file path, whether pitch
// detection was run on it, and its peak loudness for UI normalization.
type StemInfo struct {
	Name     string            `json:"name"`
	Paths    map[string]string `json:"paths"`
	HasNotes bool              `json:"hasNotes"`
	PeakDB   float64           `json:"peakDb"`
}

// SongAnalysis is the root analysis record, serialized as analysis.json
// alongside the stem audio files.
type SongAnalysis struct {
	Title            string  `json:"title"`
	Artist           string  `json:"artist"`
	Album            string  `json:"album"`
	OriginalDuration float64 `json:"originalDuration"`
	SampleRate       int     `json:"sampleRate"`
	TempoBPM         float64 `json:"tempoBpm"`
	TimeSignature    *[2]int `json:"timeSignature"`

	SourceFile       string `json:"sourceFile"`
	ProcessingDate   string `json:"processingDate"`
	ConverterVersion string `json:"converterVersion"`

	Stems map[string]StemInfo `json:"stems"`

	// Analysis data at 1.0x reference speed.
	Beats       []BeatEvent             `json:"beats"`
	Notes       map[string][]Note       `json:"notes,omitempty"`
	Lyrics      *LyricsData             `json:"lyrics,omitempty"`
	DrumStrikes map[string][]DrumStrike `json:"drumStrikes,omitempty"`
}

// StemNames returns the stem names in deterministic (sorted) order.
func (s *SongAnalysis) StemNames() []string {
	names := make([]string, 0, len(s.Stems))
	for name := range s.Stems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
