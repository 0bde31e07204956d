package player

import (
	"sort"

	"github.com/zurustar/stem-tutor/pkg/analysis"
)

// FlashWindow is how long a beat stays "flashing" after its display time,
// in seconds.
const FlashWindow = 0.1

// BeatFlash is the derived beat state for one instant of display time.
// Index is the most recent past beat (-1 before the first beat); the flash
// flags are set only while the position is within FlashWindow of that beat.
type BeatFlash struct {
	Index         int
	IsBeat        bool
	IsDownbeat    bool
	BeatInMeasure *int
}

// FlashAt reduces the canonical beat list to the flash state at the given
// display-time position and speed. Beat timestamps are reference time and
// are scaled with ToDisplay, identically to every other time consumer.
func FlashAt(beats []analysis.BeatEvent, displayPos float64, speed Speed) BeatFlash {
	flash := BeatFlash{Index: -1}
	if len(beats) == 0 {
		return flash
	}

	// First beat strictly after the position, in display time; the one
	// before it is the most recent past beat.
	i := sort.Search(len(beats), func(i int) bool {
		return ToDisplay(beats[i].Time, speed) > displayPos
	})
	if i == 0 {
		return flash
	}

	idx := i - 1
	flash.Index = idx

	beat := beats[idx]
	if displayPos-ToDisplay(beat.Time, speed) < FlashWindow {
		if beat.Type == analysis.BeatTypeDownbeat {
			flash.IsDownbeat = true
		} else {
			flash.IsBeat = true
		}
		flash.BeatInMeasure = beat.BeatInMeasure
	}
	return flash
}
