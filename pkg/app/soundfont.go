package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sinshu/go-meltysynth/meltysynth"
)

// DefaultSoundFontName is the SoundFont filename searched for when -sf2 is
// not given.
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// findSoundFont resolves the metronome SoundFont in the following order:
// 1. Explicit -sf2 path
// 2. Current directory
// 3. Song directory
//
// Returns the empty string when nothing is found; the metronome is simply
// unavailable then.
func findSoundFont(explicit, songDir string) string {
	if explicit != "" {
		return explicit
	}

	if _, err := os.Stat(DefaultSoundFontName); err == nil {
		return DefaultSoundFontName
	}

	if songDir != "" {
		p := filepath.Join(songDir, DefaultSoundFontName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// loadSoundFont parses a SoundFont file for the metronome synthesizer.
func loadSoundFont(path string) (*meltysynth.SoundFont, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open soundfont %s: %w", path, err)
	}
	defer f.Close()

	sf, err := meltysynth.NewSoundFont(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse soundfont %s: %w", path, err)
	}
	return sf, nil
}
