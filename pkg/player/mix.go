package player

// EffectiveGain computes the gain applied to a stem's voice from its volume
// slider, mute flag and the active solo set.
//
// Mute always wins. When any stem is soloed, unsoloed stems are silenced;
// solo is inclusive, so several stems may be soloed at once. Otherwise the
// gain is the volume slider mapped linearly to [0, 1].
func EffectiveGain(volume int, muted, soloed, soloActive bool) float64 {
	if muted {
		return 0
	}
	if soloActive && !soloed {
		return 0
	}
	if volume < 0 {
		volume = 0
	} else if volume > 100 {
		volume = 100
	}
	return float64(volume) / 100.0
}
