// Package session coordinates one voice capture: the microphone stream, the
// streaming recognizer, the level monitor, and the lifecycle timers. All
// session state is owned by a single run goroutine; external inputs (stop
// requests, timer fires, feed events, level ticks) are folded in as events,
// so no locks guard the transcript or the state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"parley/audio"
	"parley/level"
	"parley/log"
	"parley/metrics"
	"parley/stt"
)

// State is the session lifecycle tag. The only walk is
// Idle → Recording → Stopping → Idle.
type State int32

const (
	Idle State = iota
	Recording
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// End causes, used for logs and metrics labels.
const (
	causeStop     = "stop"
	causeSilence  = "silence"
	causeCap      = "duration_cap"
	causeNoInput  = "no_input"
	causeFeedLost = "feed_lost"
)

// ErrActive is returned by Start on a session that already ran or is
// running. Sessions are single-use; create a new one per capture.
var ErrActive = errors.New("session already started")

// AcquisitionError reports a failure while acquiring session resources.
// The session is left in Idle with nothing held.
type AcquisitionError struct {
	Step string
	Err  error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Step, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Callbacks are the caller's view of the session. They are invoked from the
// session's run goroutine and must not block.
type Callbacks struct {
	// OnPreview receives the current best transcript on every update.
	OnPreview func(text string)
	// OnComplete receives the finalized utterance exactly once at
	// teardown, and only if it is non-empty after trimming.
	OnComplete func(text string)
	// OnLevel receives the amplitude signal at level-sampling cadence.
	OnLevel func(volume float64, speaking bool)
}

// Config carries session tuning. Zero values fall back to the defaults
// from the capture design: 2 s silence, 60 s cap, 0.15 speaking threshold.
type Config struct {
	SilenceTimeout    time.Duration
	MaxDuration       time.Duration
	SpeakingThreshold float64
	LevelInterval     time.Duration // level sampling cadence, display-refresh territory
	ChunkInterval     time.Duration // recording sink cadence
	Sink              audio.Sink
	Constraints       audio.Constraints
}

func (c Config) withDefaults() Config {
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = 2000 * time.Millisecond
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = 60000 * time.Millisecond
	}
	if c.SpeakingThreshold <= 0 {
		c.SpeakingThreshold = level.DefaultSpeakingThreshold
	}
	if c.LevelInterval <= 0 {
		c.LevelInterval = 16 * time.Millisecond
	}
	if c.ChunkInterval <= 0 {
		c.ChunkInterval = audio.DefaultChunkInterval
	}
	if c.Sink == nil {
		c.Sink = audio.Discard{}
	}
	if c.Constraints == (audio.Constraints{}) {
		c.Constraints = audio.DefaultConstraints()
	}
	return c
}

// Session owns its capture device, analyzer, and recognition feed
// exclusively for its lifetime.
type Session struct {
	id     string
	cfg    Config
	cb     Callbacks
	actx   audio.Context
	device *audio.DeviceInfo
	feed   stt.Stream

	state     atomic.Int32
	began     atomic.Bool
	startNano atomic.Int64

	capture  audio.CaptureDevice
	analyzer *audio.Analyzer
	chunker  *audio.Chunker

	// Loop-owned; never touched outside the run goroutine once started.
	committed  string
	transcript string
	updates    int
	binBuf     []byte

	stopCh chan struct{}
	done   chan struct{}
}

// New prepares an idle session. Nothing is acquired until Start.
func New(actx audio.Context, device *audio.DeviceInfo, feed stt.Stream, cfg Config, cb Callbacks) *Session {
	return &Session{
		id:     uuid.NewString()[:8],
		cfg:    cfg.withDefaults(),
		cb:     cb,
		actx:   actx,
		device: device,
		feed:   feed,
		stopCh: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// State reports the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Done closes when teardown has completed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Elapsed is the time since Start, or zero outside Recording.
func (s *Session) Elapsed() time.Duration {
	start := s.startNano.Load()
	if start == 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() - start)
}

// Start acquires the capture stream, starts the recognition feed, attaches
// the level analyzer, arms the duration cap, and transitions to Recording.
// On any failure every resource acquired so far is released, an
// AcquisitionError is returned, and the session stays Idle.
func (s *Session) Start(ctx context.Context) error {
	if !s.began.CompareAndSwap(false, true) {
		return ErrActive
	}

	capture, err := s.actx.NewCapture(s.device, s.cfg.Constraints)
	if err != nil {
		s.fail()
		return &AcquisitionError{Step: "media stream", Err: err}
	}

	if err := s.feed.Start(ctx); err != nil {
		capture.Close()
		s.fail()
		return &AcquisitionError{Step: "transcription feed", Err: err}
	}

	s.capture = capture
	s.analyzer = audio.NewAnalyzer(int(s.cfg.Constraints.SampleRate))
	s.chunker = audio.NewChunker(s.cfg.Sink, s.cfg.ChunkInterval)

	capture.SetCallback(s.onCapture)
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		s.feed.Stop()
		s.fail()
		return &AcquisitionError{Step: "media stream", Err: err}
	}

	s.state.Store(int32(Recording))
	s.startNano.Store(time.Now().UnixNano())
	metrics.SessionStarted()
	log.SessionStart(s.id, capture.DeviceName())

	go s.run(ctx)
	return nil
}

func (s *Session) fail() {
	metrics.AcquisitionFailed()
	close(s.done)
}

// Stop requests teardown. Valid only while Recording; otherwise a no-op.
// Safe to call from any goroutine, any number of times.
func (s *Session) Stop() {
	if s.State() != Recording {
		return
	}
	select {
	case s.stopCh <- struct{}{}:
	default:
	}
}

// onCapture runs on the audio thread. It fans the raw stream out to the
// recognizer, the analyzer, and the sink chunker. Late callbacks from a
// torn-down session are dropped on the state check.
func (s *Session) onCapture(data []byte, _ uint32) {
	if s.State() != Recording || len(data) == 0 {
		return
	}
	pcm := make([]byte, len(data))
	copy(pcm, data)
	if err := s.feed.Send(pcm); err != nil {
		log.Warnf("feed send: %v", err)
	}
	s.analyzer.Write(data)
	s.chunker.Write(data)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	// The silence timer is created disarmed; it arms on the first
	// transcript update and re-arms on every one after.
	silence := time.NewTimer(s.cfg.SilenceTimeout)
	stopTimer(silence)
	capTimer := time.NewTimer(s.cfg.MaxDuration)
	levels := time.NewTicker(s.cfg.LevelInterval)

	cause := s.loop(ctx, silence, capTimer, levels)
	s.teardown(cause, silence, capTimer, levels)
}

func (s *Session) loop(ctx context.Context, silence, capTimer *time.Timer, levels *time.Ticker) string {
	for {
		// A pending stop outranks whatever else is ready.
		select {
		case <-s.stopCh:
			return causeStop
		default:
		}

		select {
		case <-s.stopCh:
			return causeStop

		case <-silence.C:
			return causeSilence

		case <-capTimer.C:
			return causeCap

		case <-levels.C:
			s.binBuf = s.analyzer.Bins(s.binBuf[:0])
			v := level.Volume(s.binBuf)
			if s.cb.OnLevel != nil {
				s.cb.OnLevel(v, level.Speaking(v, s.cfg.SpeakingThreshold))
			}

		case ev, ok := <-s.feed.Events():
			if !ok {
				log.Warnf("session %s: feed channel closed while recording", s.id)
				return causeFeedLost
			}
			if cause := s.onFeedEvent(ctx, ev, silence); cause != "" {
				return cause
			}
		}
	}
}

// onFeedEvent handles one feed occurrence; a non-empty return ends the
// session with that cause.
func (s *Session) onFeedEvent(ctx context.Context, ev stt.Event, silence *time.Timer) string {
	switch {
	case ev.Batch != nil:
		s.applyBatch(*ev.Batch, silence)

	case ev.Err != nil:
		if errors.Is(ev.Err, stt.ErrNoInput) {
			// The provider heard nothing: same exit as the silence timer.
			metrics.FeedError("no_input")
			return causeNoInput
		}
		// Transient; the engine may recover on its own.
		metrics.FeedError("recognition")
		log.Warnf("session %s: recognition error: %v", s.id, ev.Err)

	case ev.Ended:
		// Provider-side hangup mid-session: restart the feed rather than
		// ending capture. Teardown suppresses this path by exiting the
		// loop before the event is read.
		if err := s.feed.Start(ctx); err != nil {
			metrics.FeedError("restart")
			log.Errorf("session %s: feed restart failed: %v", s.id, err)
			return causeFeedLost
		}
		metrics.FeedRestarted()
		log.Infof("session %s: feed restarted after provider end", s.id)
	}
	return ""
}

// applyBatch folds a fragment batch into the transcript with
// final-over-interim precedence: final text appends to the committed
// transcript for good; interim text only rides on top of it.
func (s *Session) applyBatch(b stt.Batch, silence *time.Timer) {
	text, final := stt.Fold(b)
	metrics.FragmentBatch(final)
	if final {
		s.committed += text
		s.transcript = s.committed
	} else {
		s.transcript = s.committed + text
	}
	s.updates++
	if s.cb.OnPreview != nil {
		s.cb.OnPreview(s.transcript)
	}
	// Quiet interval measured from this update, not from session start.
	stopTimer(silence)
	silence.Reset(s.cfg.SilenceTimeout)
}

// teardown releases everything exactly once; each step tolerates a
// resource that is already closed. It runs only from the run goroutine,
// after the loop has returned, so a second trigger cannot reach it.
func (s *Session) teardown(cause string, silence, capTimer *time.Timer, levels *time.Ticker) {
	s.state.Store(int32(Stopping))

	s.feed.Stop()
	stopTimer(silence)
	levels.Stop()
	stopTimer(capTimer)
	s.capture.Stop()
	s.capture.ClearCallback()
	s.capture.Close()
	s.chunker.Flush()
	s.analyzer.Reset()

	elapsed := s.Elapsed()
	s.startNano.Store(0)

	final := strings.TrimSpace(s.transcript)

	s.state.Store(int32(Idle))
	log.SessionEnd(s.id, cause, elapsed, s.updates)
	metrics.SessionEnded(cause, elapsed)

	if final != "" {
		log.TranscriptionText(final)
		if s.cb.OnComplete != nil {
			s.cb.OnComplete(final)
		}
	}
	s.transcript = ""
	s.committed = ""
}

// stopTimer stops t and drains a pending fire so a later Reset starts clean.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
