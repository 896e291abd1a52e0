// Package audio acquires the live microphone stream and derives the raw
// signals the capture session consumes: PCM16 callbacks, frequency-bin
// energies for the level monitor, and fixed-cadence chunks for the
// recording sink.
package audio

import "strings"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
)

// BytesPerSecond is the raw PCM throughput of the capture stream.
const BytesPerSecond = SampleRate * Channels * BitsPerSample / 8

// DataCallback receives raw little-endian PCM16 from the capture device.
type DataCallback func(data []byte, frameCount uint32)

// Constraints describe how the stream should be acquired. The processing
// flags are requests; a backend without the corresponding DSP ignores them.
type Constraints struct {
	SampleRate       uint32
	Channels         uint32
	EchoCancellation bool
	NoiseSuppression bool
	AutoGain         bool
}

// DefaultConstraints returns the fixed acquisition constraints used by the
// capture session: mono PCM16 with all input processing enabled.
func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:       SampleRate,
		Channels:         Channels,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGain:         true,
	}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Context enumerates capture devices and opens capture streams.
type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, constraints Constraints) (CaptureDevice, error)
	Close()
}

// CaptureDevice is an open microphone stream. SetCallback may be called
// before Start; ClearCallback must silence the callback immediately.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// Sink receives raw capture chunks at a fixed cadence. It must not block;
// chunk contents are owned by the sink after the call.
type Sink interface {
	Write(chunk []byte)
}

// Discard is a Sink that drops everything.
type Discard struct{}

func (Discard) Write([]byte) {}

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name whether a microphone is a
// bluetooth headset, which typically captures at reduced quality.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
