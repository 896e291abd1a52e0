// Package doctor runs interactive diagnostics for the capture pipeline:
// microphone input, streaming recognition, and clipboard access.
package doctor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	atotto "github.com/atotto/clipboard"

	"parley/audio"
	"parley/level"
	"parley/stt"
)

const recordFor = 3 * time.Second

// Run executes the checks in order and returns an exit code
// (0=all pass, 1=any fail). Later checks reuse the audio captured by the
// microphone check, so they are skipped once one fails.
func Run() int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("parley doctor - interactive system diagnostics")
	fmt.Println("==============================================")

	allPass := true

	pcm, ok := checkMicrophone()
	if !ok {
		allPass = false
	}
	if allPass && !checkRecognition(pcm) {
		allPass = false
	}
	if !checkClipboard() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkMicrophone() ([]byte, bool) {
	fmt.Println()
	fmt.Println("[1/3] Microphone")

	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return nil, false
	}
	defer actx.Close()

	devices, err := actx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return nil, false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return nil, false
	}

	device := pickDevice(devices)
	if device == nil {
		fmt.Println("  FAIL: invalid choice")
		return nil, false
	}
	fmt.Printf("Using device: %s\n", device.Name)
	if audio.IsBluetooth(device.Name) {
		fmt.Println("  Note: Bluetooth microphones often capture at reduced quality")
	}

	fmt.Printf("Press Enter and speak for %v...", recordFor)
	bufio.NewReader(os.Stdin).ReadString('\n')

	pcm, peak, err := recordSample(actx, device)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return nil, false
	}
	if len(pcm) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return nil, false
	}

	fmt.Printf("  Captured %.1f KB, peak level %.2f\n", float64(len(pcm))/1024, peak)
	if peak < 0.02 {
		fmt.Println("  FAIL: microphone is silent (check mute switch and input gain)")
		return pcm, false
	}
	fmt.Println("  PASS: microphone captures audio")
	return pcm, true
}

func pickDevice(devices []audio.DeviceInfo) *audio.DeviceInfo {
	if len(devices) == 1 {
		return &devices[0]
	}
	fmt.Println()
	fmt.Println("Select input device:")
	for i, d := range devices {
		fmt.Printf("  %d. %s\n", i+1, d.Name)
	}
	fmt.Printf("Choice [1-%d]: ", len(devices))

	choice, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	choice = strings.TrimSpace(choice)
	idx := 0
	if choice != "" {
		fmt.Sscanf(choice, "%d", &idx)
		idx--
	}
	if idx < 0 || idx >= len(devices) {
		return nil
	}
	return &devices[idx]
}

// recordSample captures PCM for recordFor and tracks the peak amplitude
// through the same analyzer path the live session uses.
func recordSample(actx audio.Context, device *audio.DeviceInfo) ([]byte, float64, error) {
	capture, err := actx.NewCapture(device, audio.DefaultConstraints())
	if err != nil {
		return nil, 0, err
	}
	defer capture.Close()

	analyzer := audio.NewAnalyzer(audio.SampleRate)
	var mu sync.Mutex
	var pcm []byte
	var peak float64
	var bins []byte

	capture.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		pcm = append(pcm, data...)
		analyzer.Write(data)
		bins = analyzer.Bins(bins[:0])
		if v := level.Volume(bins); v > peak {
			peak = v
		}
		mu.Unlock()
	})
	defer capture.ClearCallback()

	if err := capture.Start(); err != nil {
		return nil, 0, err
	}

	fmt.Print("  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	deadline := time.After(recordFor)
loop:
	for {
		select {
		case <-ticker.C:
			fmt.Print(".")
		case <-deadline:
			break loop
		}
	}
	ticker.Stop()
	capture.Stop()
	fmt.Println(" done")

	mu.Lock()
	defer mu.Unlock()
	return pcm, peak, nil
}

// checkRecognition replays the captured audio through a live Deepgram feed
// and shows what came back.
func checkRecognition(pcm []byte) bool {
	fmt.Println()
	fmt.Println("[2/3] Streaming recognition")

	apiKey := os.Getenv("DEEPGRAM_API_KEY")
	if apiKey == "" {
		fmt.Println("  FAIL: DEEPGRAM_API_KEY not set")
		return false
	}

	feed := stt.NewDeepgram(stt.Options{
		APIKey:     apiKey,
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	})
	if err := feed.Start(context.Background()); err != nil {
		fmt.Printf("  FAIL: cannot connect: %v\n", err)
		return false
	}

	fmt.Printf("  Sending %.1fs of audio...\n", float64(len(pcm))/float64(audio.BytesPerSecond))
	// Replay at chunk cadence so the provider sees a realistic stream.
	chunkBytes := audio.BytesPerSecond / 10
	for off := 0; off < len(pcm); off += chunkBytes {
		end := off + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := feed.Send(pcm[off:end]); err != nil {
			fmt.Printf("  FAIL: send error: %v\n", err)
			feed.Stop()
			return false
		}
		time.Sleep(audio.DefaultChunkInterval)
	}

	var committed string
	deadline := time.After(10 * time.Second)
drain:
	for {
		select {
		case ev, ok := <-feed.Events():
			if !ok {
				break drain
			}
			switch {
			case ev.Batch != nil:
				if text, final := stt.Fold(*ev.Batch); final {
					committed += text
				}
			case ev.Err != nil:
				if errors.Is(ev.Err, stt.ErrNoInput) {
					break drain
				}
				fmt.Printf("  FAIL: recognition error: %v\n", ev.Err)
				feed.Stop()
				return false
			case ev.Ended:
				break drain
			}
		case <-deadline:
			break drain
		}
	}
	feed.Stop()

	committed = strings.TrimSpace(committed)
	if committed == "" {
		fmt.Println("  FAIL: no transcript (was anything said during the recording?)")
		return false
	}
	fmt.Printf("\n  Transcribed text: %s\n\n", committed)

	confirm := ask("Is this correct? [y/n]: ")
	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: transcription verified by user")
		return true
	}
	fmt.Println("  FAIL: transcription not confirmed")
	return false
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[3/3] Clipboard")

	sentinel := fmt.Sprintf("parley-doctor-%d", time.Now().Unix())
	if err := atotto.WriteAll(sentinel); err != nil {
		fmt.Printf("  FAIL: clipboard write: %v\n", err)
		return false
	}
	got, err := atotto.ReadAll()
	if err != nil {
		fmt.Printf("  FAIL: clipboard read: %v\n", err)
		return false
	}
	if got != sentinel {
		fmt.Printf("  FAIL: clipboard round-trip mismatch (got %q)\n", got)
		return false
	}
	fmt.Println("  PASS: clipboard round-trip verified")
	return true
}

func ask(prompt string) string {
	resetTerminal()
	fmt.Print(prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(strings.ToLower(answer))
}
