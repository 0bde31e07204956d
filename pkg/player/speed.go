// Package player implements the multi-stem synchronized playback engine:
// one authoritative transport clock shared by N independently buffered
// voices, with per-stem mute/solo, seeking, looping and instant switching
// between pre-rendered playback speeds.
package player

// Speed is one of the fixed playback speeds a song's stems are pre-rendered
// at. Stems carry one audio file per speed; the engine never time-stretches.
type Speed int

const (
	Speed050 Speed = iota
	Speed075
	Speed100
	Speed125
)

// Speeds lists the supported speeds in ascending order.
var Speeds = [...]Speed{Speed050, Speed075, Speed100, Speed125}

// Multiplier returns the tempo multiplier relative to the 1.0x reference.
func (s Speed) Multiplier() float64 {
	switch s {
	case Speed050:
		return 0.5
	case Speed075:
		return 0.75
	case Speed125:
		return 1.25
	default:
		return 1.0
	}
}

// Label returns the speed label used by the analysis record ("0.5x", ...).
func (s Speed) Label() string {
	switch s {
	case Speed050:
		return "0.5x"
	case Speed075:
		return "0.75x"
	case Speed125:
		return "1.25x"
	default:
		return "1.0x"
	}
}

// ParseSpeed maps a speed label to its Speed. The function is total: an
// unknown label yields the 1.0x reference speed, so no invalid-speed path is
// reachable from the UI.
func ParseSpeed(label string) Speed {
	for _, s := range Speeds {
		if s.Label() == label {
			return s
		}
	}
	return Speed100
}

// ToDisplay converts a reference-speed (1.0x) timestamp to display time at
// the given speed. At 0.5x a reference second lasts two wall-clock seconds,
// so events arrive later in display time.
//
// Every time-based consumer (beat flash, overlays, metronome) must use this
// function and its inverse; divergent rounding between consumers is a defect.
func ToDisplay(refTime float64, s Speed) float64 {
	return refTime / s.Multiplier()
}

// ToRef converts a display-time timestamp at the given speed back to
// reference time. ToRef(ToDisplay(t, s), s) == t up to floating error.
func ToRef(displayTime float64, s Speed) float64 {
	return displayTime * s.Multiplier()
}
