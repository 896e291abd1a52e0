//go:build darwin

package beep

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx     *malgo.AllocatedContext
	device       *malgo.Device
	startSamples []byte
	endSamples   []byte
	errorSamples []byte
	soundOnce    sync.Once

	// Cue being played, consumed by the device callback. The callback runs
	// on malgo's audio thread, so it only touches the atomics.
	cue    atomic.Pointer[[]byte]
	cuePos atomic.Uint32
	playMu sync.Mutex
)

func openDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: feedDevice})
	return err
}

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}

	startSamples = synthTone(sampleRate, startFreq, 0.03, startVolume, startDecay)
	endSamples = synthTone(sampleRate, endFreq, 0.05, endVolume, endDecay)
	errorSamples = synthDoubleTone(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)

	if err := openDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func feedDevice(pOutput, _ []byte, frameCount uint32) {
	want := frameCount * 2
	samples := cue.Load()
	if samples == nil {
		zero(pOutput[:want])
		return
	}

	pos := cuePos.Load()
	remaining := uint32(len(*samples)) - pos
	if remaining == 0 {
		cue.Store(nil)
		zero(pOutput[:want])
		return
	}

	n := want
	if n > remaining {
		n = remaining
	}
	copy(pOutput[:n], (*samples)[pos:pos+n])
	cuePos.Store(pos + n)
	zero(pOutput[n:want])
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func synthTone(sampleRate int, freq, duration, volume, decay float64) []byte {
	n := int(float64(sampleRate) * duration)
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		s := int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

func synthDoubleTone(sampleRate int, freq, toneDur, gapDur, volume, decay float64) []byte {
	tone := synthTone(sampleRate, freq, toneDur, volume, decay)
	gap := make([]byte, int(float64(sampleRate)*gapDur)*2)
	out := make([]byte, 0, len(tone)*2+len(gap))
	out = append(out, tone...)
	out = append(out, gap...)
	out = append(out, tone...)
	return out
}

func playSamples(samples []byte) {
	if malgoCtx == nil || len(samples) == 0 {
		return
	}

	playMu.Lock()
	defer playMu.Unlock()

	if device == nil {
		return
	}

	// A new cue preempts whatever is still draining.
	device.Stop()
	cuePos.Store(0)
	cue.Store(&samples)

	if err := device.Start(); err == nil {
		return
	}

	// The device handle goes stale across macOS sleep/wake; recreate and
	// retry once.
	device.Uninit()
	if err := openDevice(); err != nil {
		cue.Store(nil)
		return
	}
	if err := device.Start(); err != nil {
		cue.Store(nil)
	}
}

func Init() {
	soundOnce.Do(initSound)
}

func PlayStart() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	playSamples(startSamples)
}

func PlayEnd() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	playSamples(endSamples)
}

func PlayError() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	playSamples(errorSamples)
}
