package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"parley/audio"
	"parley/beep"
	"parley/chat"
	"parley/config"
	"parley/doctor"
	"parley/log"
	"parley/metrics"
	"parley/session"
	"parley/shutdown"
	"parley/stt"
)

var version = "dev"

var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func main() {
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	nocopyFlag := flag.Bool("nocopy", false, "Do not copy finished utterances to the clipboard")
	muteFlag := flag.Bool("mute", false, "Disable start/stop sound cues")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("parley %s\n", version)
		os.Exit(0)
	}

	if *doctorFlag {
		os.Exit(doctor.Run())
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if cfg.MetricsAddr != "" {
		go func() {
			log.Infof("metrics listening on %s", cfg.MetricsAddr)
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := actx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using system default\n", *deviceFlag)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\n", err)
			selectedDevice = nil
		}
	}

	var assistant *chat.Client
	if cfg.OpenAIAPIKey != "" {
		assistant = chat.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	}

	tuiMu.Lock()
	tuiProgram = NewTUIProgram()
	tuiMu.Unlock()
	go func() {
		if _, err := tuiProgram.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
			os.Exit(1)
		}
		gracefulShutdown()
	}()
	<-tuiReady

	tuiSend(DeviceLineMsg{Text: deviceLineText(selectedDevice)})

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown()
	}()

	if *muteFlag {
		beep.Disable()
	}
	go beep.Init()

	sessionCfg := session.Config{
		SilenceTimeout:    cfg.SilenceTimeout(),
		MaxDuration:       cfg.MaxDuration(),
		SpeakingThreshold: cfg.SpeakingThreshold,
	}

	copyToClipboard := !*nocopyFlag

	var active *session.Session
	for range recordToggleChan {
		if active != nil && active.State() == session.Recording {
			active.Stop()
			continue
		}

		feed := stt.NewDeepgram(stt.Options{
			APIKey:     cfg.DeepgramAPIKey,
			Model:      cfg.DeepgramModel,
			Language:   cfg.Language,
			SampleRate: audio.SampleRate,
			Channels:   audio.Channels,
		})
		sess := session.New(actx, selectedDevice, feed, sessionCfg, session.Callbacks{
			OnPreview: func(text string) {
				tuiSend(PreviewMsg{Text: text})
			},
			OnLevel: func(volume float64, speaking bool) {
				tuiSend(LevelMsg{Volume: volume, Speaking: speaking})
			},
			OnComplete: func(text string) {
				handleUtterance(text, assistant, copyToClipboard)
			},
		})

		if err := sess.Start(context.Background()); err != nil {
			log.Errorf("session start: %v", err)
			tuiSend(StatusMsg{Text: fmt.Sprintf("could not start: %v", err)})
			go beep.PlayError()
			continue
		}
		active = sess
		tuiSend(RecordingStartMsg{})
		go beep.PlayStart()

		go func(s *session.Session) {
			<-s.Done()
			tuiSend(RecordingStopMsg{})
			go beep.PlayEnd()
		}(sess)
	}
}

// handleUtterance runs on the session goroutine; the generative round-trip
// is pushed to its own goroutine so teardown never waits on the network.
func handleUtterance(text string, assistant *chat.Client, copyText bool) {
	copied := false
	if copyText {
		if err := clipboard.WriteAll(text); err != nil {
			log.Warnf("clipboard copy: %v", err)
		} else {
			copied = true
		}
	}
	tuiSend(ExchangeMsg{Role: "you", Text: text, Copied: copied})

	if assistant == nil {
		return
	}
	tuiSend(ThinkingMsg{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		reply, err := assistant.Generate(ctx, text)
		if err != nil {
			log.Errorf("generate: %v", err)
			tuiSend(StatusMsg{Text: fmt.Sprintf("assistant error: %v", err)})
			return
		}
		tuiSend(ExchangeMsg{Role: "ai", Text: reply})
	}()
}
