package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

const (
	analyzerWindow = 1024 // samples, 64ms at 16kHz
	// AnalyzerBins is the number of frequency bins reported by Bins.
	AnalyzerBins = 32

	// Byte scaling maps this decibel range onto 0..255; energies below the
	// floor read as 0, energies above the ceiling saturate.
	analyzerMinDB = -100.0
	analyzerMaxDB = -30.0
)

// Analyzer keeps a sliding window of the most recent capture samples and
// reports per-bin frequency energies on demand. Write is safe to call from
// the capture callback while Bins is read from another goroutine.
type Analyzer struct {
	sampleRate int

	mu      sync.Mutex
	window  [analyzerWindow]float64
	pos     int
	filled  bool
	coeffs  [AnalyzerBins]float64
	scratch [analyzerWindow]float64
}

// NewAnalyzer creates an analyzer for a PCM16 stream at the given rate.
func NewAnalyzer(sampleRate int) *Analyzer {
	a := &Analyzer{sampleRate: sampleRate}
	nyquist := float64(sampleRate) / 2
	for k := 0; k < AnalyzerBins; k++ {
		// Bin centers spread evenly across the spectrum, skipping DC.
		freq := (float64(k) + 0.5) * nyquist / AnalyzerBins
		a.coeffs[k] = 2 * math.Cos(2*math.Pi*freq/float64(sampleRate))
	}
	return a
}

// Write appends little-endian PCM16 to the sliding window.
func (a *Analyzer) Write(pcm []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i:]))
		a.window[a.pos] = float64(s) / 32768.0
		a.pos++
		if a.pos == analyzerWindow {
			a.pos = 0
			a.filled = true
		}
	}
}

// Bins computes the current frequency-bin energies, one byte per bin,
// appending into dst (pass dst[:0] to reuse a buffer). Each bin is a
// Goertzel magnitude mapped onto 0..255 over a fixed decibel range.
func (a *Analyzer) Bins(dst []byte) []byte {
	a.mu.Lock()
	n := analyzerWindow
	if !a.filled {
		n = a.pos
	}
	// Unroll the ring into scratch, oldest first.
	if a.filled {
		copy(a.scratch[:], a.window[a.pos:])
		copy(a.scratch[analyzerWindow-a.pos:], a.window[:a.pos])
	} else {
		copy(a.scratch[:], a.window[:a.pos])
	}
	coeffs := a.coeffs
	a.mu.Unlock()

	for k := 0; k < AnalyzerBins; k++ {
		dst = append(dst, binByte(a.scratch[:n], coeffs[k]))
	}
	return dst
}

// Reset clears the window so a new session starts from silence.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	a.pos = 0
	a.filled = false
	for i := range a.window {
		a.window[i] = 0
	}
	a.mu.Unlock()
}

func binByte(samples []float64, coeff float64) byte {
	if len(samples) == 0 {
		return 0
	}
	var s1, s2 float64
	for _, x := range samples {
		s := x + coeff*s1 - s2
		s2 = s1
		s1 = s
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power <= 0 {
		return 0
	}
	mag := 2 * math.Sqrt(power) / float64(len(samples))
	db := 20 * math.Log10(mag)
	if db <= analyzerMinDB {
		return 0
	}
	if db >= analyzerMaxDB {
		return 255
	}
	return byte(255 * (db - analyzerMinDB) / (analyzerMaxDB - analyzerMinDB))
}
