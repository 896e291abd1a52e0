package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func sinePCM(freq float64, amplitude float64, samples int) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(SampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*32767)))
	}
	return pcm
}

func TestAnalyzerSilence(t *testing.T) {
	a := NewAnalyzer(SampleRate)
	a.Write(make([]byte, analyzerWindow*2))

	bins := a.Bins(nil)
	if len(bins) != AnalyzerBins {
		t.Fatalf("got %d bins, want %d", len(bins), AnalyzerBins)
	}
	for i, b := range bins {
		if b != 0 {
			t.Errorf("bin %d = %d on silence, want 0", i, b)
		}
	}
}

func TestAnalyzerEmptyWindow(t *testing.T) {
	a := NewAnalyzer(SampleRate)
	bins := a.Bins(nil)
	for i, b := range bins {
		if b != 0 {
			t.Errorf("bin %d = %d before any samples, want 0", i, b)
		}
	}
}

func TestAnalyzerSineDominantBin(t *testing.T) {
	a := NewAnalyzer(SampleRate)
	// 2kHz tone lands in bin 8 of 32 (bin width 250Hz, centers at
	// (k+0.5)*250Hz; 2kHz is nearest the bin 7/8 boundary region).
	a.Write(sinePCM(2000, 0.8, analyzerWindow))

	bins := a.Bins(nil)
	maxIdx, maxVal := 0, byte(0)
	for i, b := range bins {
		if b > maxVal {
			maxIdx, maxVal = i, b
		}
	}
	if maxVal == 0 {
		t.Fatal("loud sine produced all-zero bins")
	}
	if maxIdx < 6 || maxIdx > 9 {
		t.Errorf("dominant bin %d, want near 8 for a 2kHz tone", maxIdx)
	}
	// Bins far from the tone should carry much less energy.
	if bins[30] >= maxVal {
		t.Errorf("high bin %d not below dominant %d", bins[30], maxVal)
	}
}

func TestAnalyzerReset(t *testing.T) {
	a := NewAnalyzer(SampleRate)
	a.Write(sinePCM(1000, 0.8, analyzerWindow))
	a.Reset()
	bins := a.Bins(nil)
	for i, b := range bins {
		if b != 0 {
			t.Errorf("bin %d = %d after Reset, want 0", i, b)
		}
	}
}
