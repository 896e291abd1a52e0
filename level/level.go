// Package level derives a normalized volume and a speaking signal from
// frequency-bin energies. The signal is advisory, for visualization only;
// it never gates the silence timer.
package level

const (
	// ReferenceCeiling is the bin energy that maps to full volume.
	ReferenceCeiling = 128

	// DefaultSpeakingThreshold is the volume above which the stream
	// counts as speech.
	DefaultSpeakingThreshold = 0.15
)

// Volume reduces a frequency-bin buffer to a single value in [0,1]:
// arithmetic mean of the bins divided by the reference ceiling, clamped.
// An empty buffer reads as silence.
func Volume(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	v := float64(sum) / float64(len(bins)) / ReferenceCeiling
	if v > 1.0 {
		v = 1.0
	}
	return v
}

// Speaking reports whether the volume exceeds the threshold. The comparison
// is strict: a volume exactly at the threshold is not speech.
func Speaking(volume, threshold float64) bool {
	return volume > threshold
}
