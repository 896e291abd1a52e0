// Package log provides file-backed diagnostic logging. Before Init, events
// fall through to a console writer on stderr; after Init they go to
// diagnostics and transcript logs under the configured directory. The TUI
// owns stdout, so nothing here writes there.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logMu    sync.Mutex
	diagLog  zerolog.Logger
	diagFile *os.File
	textFile *os.File
	ready    bool
	dir      string
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	diagLog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
}

// ResolveDir picks the log directory: explicit flag path, then the
// PARLEY_LOG_PATH environment variable, then an OS-default location.
func ResolveDir(flagPath string) (string, error) {
	pick := flagPath
	if pick == "" {
		pick = os.Getenv("PARLEY_LOG_PATH")
	}
	if pick != "" {
		if !filepath.IsAbs(pick) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, pick), nil
		}
		return pick, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "parley"), nil
}

// SetDir sets the directory used by Init.
func SetDir(d string) {
	logMu.Lock()
	dir = d
	logMu.Unlock()
}

// Dir returns the configured log directory.
func Dir() string {
	logMu.Lock()
	defer logMu.Unlock()
	return dir
}

// Init opens the diagnostics and transcript log files. Calling it again is
// a no-op.
func Init(level string) error {
	logMu.Lock()
	defer logMu.Unlock()

	if ready {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	f, err := os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	textPath := filepath.Join(dir, "transcript_log.txt")
	tf, err := os.OpenFile(textPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		f.Close()
		return err
	}

	diagFile = f
	textFile = tf
	diagLog = zerolog.New(diagFile).Level(lvl).With().Timestamp().Int("pid", os.Getpid()).Logger()
	ready = true
	return nil
}

// Close flushes and closes the log files.
func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if textFile != nil {
		textFile.Close()
		textFile = nil
	}
	ready = false
}

func logger() *zerolog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	l := diagLog
	return &l
}

func Info(msg string)                { logger().Info().Msg(msg) }
func Infof(format string, a ...any)  { logger().Info().Msgf(format, a...) }
func Warn(msg string)                { logger().Warn().Msg(msg) }
func Warnf(format string, a ...any)  { logger().Warn().Msgf(format, a...) }
func Errorf(format string, a ...any) { logger().Error().Msgf(format, a...) }

// SessionStart records the beginning of a capture session.
func SessionStart(id, device string) {
	logger().Info().Str("session", id).Str("device", device).Msg("session_start")
}

// SessionEnd records how a capture session ended.
func SessionEnd(id, cause string, elapsed time.Duration, updates int) {
	logger().Info().
		Str("session", id).
		Str("cause", cause).
		Dur("elapsed", elapsed).
		Int("updates", updates).
		Msg("session_end")
}

// TranscriptionText appends a finalized utterance to the transcript log.
// Transcripts stay out of the diagnostics stream.
func TranscriptionText(text string) {
	logMu.Lock()
	defer logMu.Unlock()
	if textFile == nil {
		return
	}
	fmt.Fprintf(textFile, "[%s] %s\n", time.Now().Format("2006-01-02 15:04:05"), text)
}
