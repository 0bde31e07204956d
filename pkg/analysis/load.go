package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/zurustar/stem-tutor/pkg/fileutil"
)

// AnalysisFileName is the analysis record filename inside a song directory.
const AnalysisFileName = "analysis.json"

var (
	// ErrNotFound is returned when a song directory has no analysis record.
	ErrNotFound = errors.New("analysis record not found")

	// ErrInvalidFormat is returned when the analysis record cannot be decoded.
	ErrInvalidFormat = errors.New("invalid analysis record")
)

// Load reads and decodes the analysis record from a song directory.
//
// After decoding, the record is normalized: beats are sorted ascending by
// time (the engine's beat consumer assumes this ordering) and lyric text is
// NFC-normalized, since transcribed lyrics may carry combining marks.
func Load(fsys fileutil.FileSystem) (*SongAnalysis, error) {
	data, err := fsys.ReadFile(AnalysisFileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fsys.BasePath())
	}

	var song SongAnalysis
	if err := json.Unmarshal(data, &song); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if song.OriginalDuration <= 0 {
		return nil, fmt.Errorf("%w: non-positive duration %v", ErrInvalidFormat, song.OriginalDuration)
	}

	normalize(&song)
	return &song, nil
}

func normalize(song *SongAnalysis) {
	sort.SliceStable(song.Beats, func(i, j int) bool {
		return song.Beats[i].Time < song.Beats[j].Time
	})

	if song.Lyrics != nil {
		for i := range song.Lyrics.Lines {
			line := &song.Lyrics.Lines[i]
			line.Text = norm.NFC.String(line.Text)
			for j := range line.Words {
				line.Words[j].Text = norm.NFC.String(line.Words[j].Text)
			}
		}
	}

	// Stem names inside the map must agree with the map keys; the key wins.
	for name, info := range song.Stems {
		if info.Name != name {
			info.Name = name
			song.Stems[name] = info
		}
	}
}
