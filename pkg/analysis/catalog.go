package analysis

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/zurustar/stem-tutor/pkg/fileutil"
)

// SongSummary is the browser-level view of one processed song directory.
type SongSummary struct {
	Path      string
	Title     string
	Artist    string
	Duration  float64
	StemCount int
}

// ListSongs scans a directory for song folders containing an analysis record
// and returns their summaries sorted by path. Folders without a readable
// record are skipped; a missing root directory yields an empty list.
func ListSongs(dir string) ([]SongSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var songs []SongSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		songDir := filepath.Join(dir, entry.Name())
		song, err := Load(fileutil.NewRealFS(songDir))
		if err != nil {
			continue
		}
		songs = append(songs, SongSummary{
			Path:      songDir,
			Title:     song.Title,
			Artist:    song.Artist,
			Duration:  song.OriginalDuration,
			StemCount: len(song.Stems),
		})
	}

	sort.Slice(songs, func(i, j int) bool { return songs[i].Path < songs[j].Path })
	return songs, nil
}
