package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"parley/audio"
	"parley/stt"
)

// recorder collects callback invocations for assertions.
type recorder struct {
	mu        sync.Mutex
	previews  []string
	completes []string
	levels    int
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnPreview: func(text string) {
			r.mu.Lock()
			r.previews = append(r.previews, text)
			r.mu.Unlock()
		},
		OnComplete: func(text string) {
			r.mu.Lock()
			r.completes = append(r.completes, text)
			r.mu.Unlock()
		},
		OnLevel: func(float64, bool) {
			r.mu.Lock()
			r.levels++
			r.mu.Unlock()
		},
	}
}

func (r *recorder) lastPreview() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.previews) == 0 {
		return ""
	}
	return r.previews[len(r.previews)-1]
}

func (r *recorder) completeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.completes)
}

func (r *recorder) firstComplete() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.completes) == 0 {
		return ""
	}
	return r.completes[0]
}

func (r *recorder) levelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.levels
}

func startSession(t *testing.T, cfg Config) (*Session, *stt.Fake, *audio.FakeContext, *recorder) {
	t.Helper()
	feed := stt.NewFake()
	actx := audio.NewFakeContext()
	rec := &recorder{}
	s := New(actx, nil, feed, cfg, rec.callbacks())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		s.Stop()
		select {
		case <-s.Done():
		case <-time.After(2 * time.Second):
		}
	})
	return s, feed, actx, rec
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
}

// settle waits for the session loop to process everything already emitted.
func settle() { time.Sleep(30 * time.Millisecond) }

func TestFinalFragmentsAccumulate(t *testing.T) {
	s, feed, _, rec := startSession(t, Config{})

	feed.EmitFinal("one ")
	feed.EmitInterim("tw")
	feed.EmitFinal("two ")
	feed.EmitFinal("three")
	settle()

	if got := rec.lastPreview(); got != "one two three" {
		t.Errorf("transcript = %q, want %q", got, "one two three")
	}

	s.Stop()
	waitDone(t, s)
	if got := rec.firstComplete(); got != "one two three" {
		t.Errorf("completed transcript = %q, want %q", got, "one two three")
	}
}

func TestInterimRidesOnCommitted(t *testing.T) {
	s, feed, _, rec := startSession(t, Config{})

	feed.EmitFinal("hello ")
	feed.EmitInterim("wor")
	settle()
	if got := rec.lastPreview(); got != "hello wor" {
		t.Errorf("transcript = %q, want %q", got, "hello wor")
	}

	// A batch with final text supersedes its own interim entirely.
	feed.EmitBatch(
		stt.Fragment{Text: "wirld"},
		stt.Fragment{Text: "world", IsFinal: true},
	)
	settle()
	if got := rec.lastPreview(); got != "hello world" {
		t.Errorf("transcript = %q, want %q", got, "hello world")
	}
	_ = s
}

func TestSilenceTimerResetsOnUpdate(t *testing.T) {
	s, feed, _, _ := startSession(t, Config{SilenceTimeout: 150 * time.Millisecond})

	feed.EmitFinal("a")
	time.Sleep(80 * time.Millisecond)
	feed.EmitFinal("b")
	time.Sleep(90 * time.Millisecond)
	// 170ms after the first update but only 90ms after the second: the
	// reset must have kept the session alive.
	if got := s.State(); got != Recording {
		t.Fatalf("state = %v after reset, want recording", got)
	}

	waitDone(t, s)
	if got := s.State(); got != Idle {
		t.Errorf("state = %v after silence, want idle", got)
	}
}

func TestSilenceNotArmedBeforeFirstUpdate(t *testing.T) {
	s, _, _, _ := startSession(t, Config{
		SilenceTimeout: 50 * time.Millisecond,
		MaxDuration:    400 * time.Millisecond,
	})

	time.Sleep(150 * time.Millisecond)
	if got := s.State(); got != Recording {
		t.Errorf("state = %v with no updates, want recording until cap", got)
	}
	waitDone(t, s)
}

func TestDurationCapIgnoresResets(t *testing.T) {
	s, feed, _, rec := startSession(t, Config{
		SilenceTimeout: 200 * time.Millisecond,
		MaxDuration:    350 * time.Millisecond,
	})

	stop := make(chan struct{})
	go func() {
		i := 0
		for {
			select {
			case <-stop:
				return
			case <-time.After(50 * time.Millisecond):
				feed.EmitFinal(fmt.Sprintf("w%d ", i))
				i++
			}
		}
	}()

	waitDone(t, s)
	close(stop)

	if got := rec.completeCount(); got != 1 {
		t.Errorf("completions = %d, want 1", got)
	}
	if got := s.State(); got != Idle {
		t.Errorf("state = %v, want idle", got)
	}
}

func TestStopIdempotent(t *testing.T) {
	s, feed, actx, rec := startSession(t, Config{})

	feed.EmitFinal("payload")
	settle()

	s.Stop()
	s.Stop()
	waitDone(t, s)
	s.Stop() // post-teardown stop is a no-op

	if got := rec.completeCount(); got != 1 {
		t.Errorf("completions = %d, want exactly 1", got)
	}
	captures := actx.Captures()
	if len(captures) != 1 {
		t.Fatalf("captures = %d, want 1", len(captures))
	}
	if got := captures[0].Closes(); got != 1 {
		t.Errorf("capture closes = %d, want 1", got)
	}
	if got := feed.Stops(); got != 1 {
		t.Errorf("feed stops = %d, want 1", got)
	}
	if captures[0].CallbackSet() {
		t.Error("capture callback still set after teardown")
	}
}

func TestEmptyTranscriptNoCompletion(t *testing.T) {
	s, _, _, rec := startSession(t, Config{})

	s.Stop()
	waitDone(t, s)

	if got := rec.completeCount(); got != 0 {
		t.Errorf("completions = %d, want 0 for empty transcript", got)
	}
}

func TestWhitespaceOnlyTranscriptNoCompletion(t *testing.T) {
	s, feed, _, rec := startSession(t, Config{})

	feed.EmitInterim("   ")
	settle()
	s.Stop()
	waitDone(t, s)

	if got := rec.completeCount(); got != 0 {
		t.Errorf("completions = %d, want 0 for whitespace transcript", got)
	}
}

func TestFeedEndRestartsWhileRecording(t *testing.T) {
	s, feed, _, rec := startSession(t, Config{})

	feed.EmitFinal("still here ")
	feed.EmitEnd()
	settle()

	if got := feed.Starts(); got != 2 {
		t.Errorf("feed starts = %d, want 2 after provider end", got)
	}
	if got := s.State(); got != Recording {
		t.Errorf("state = %v after restart, want recording", got)
	}
	if got := rec.completeCount(); got != 0 {
		t.Errorf("completions = %d during restart, want 0", got)
	}

	// The restarted feed keeps extending the same transcript.
	feed.EmitFinal("and after")
	settle()
	if got := rec.lastPreview(); got != "still here and after" {
		t.Errorf("transcript = %q after restart", got)
	}
}

func TestNoInputErrorEndsSession(t *testing.T) {
	s, feed, _, rec := startSession(t, Config{})

	feed.EmitFinal("brief")
	feed.EmitError(fmt.Errorf("%w: provider timeout", stt.ErrNoInput))
	waitDone(t, s)

	if got := s.State(); got != Idle {
		t.Errorf("state = %v, want idle", got)
	}
	if got := rec.firstComplete(); got != "brief" {
		t.Errorf("completed transcript = %q, want %q", got, "brief")
	}
}

func TestTransientErrorKeepsRecording(t *testing.T) {
	s, feed, _, _ := startSession(t, Config{})

	feed.EmitError(errors.New("network blip"))
	settle()

	if got := s.State(); got != Recording {
		t.Errorf("state = %v after transient error, want recording", got)
	}
	if got := feed.Starts(); got != 1 {
		t.Errorf("feed starts = %d, want 1 (no restart on plain errors)", got)
	}
	_ = s
}

func TestAcquisitionFailureLeavesIdle(t *testing.T) {
	feed := stt.NewFake()
	actx := audio.NewFakeContext()
	actx.AcquireErr = errors.New("permission denied")

	s := New(actx, nil, feed, Config{}, Callbacks{})
	err := s.Start(context.Background())
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("Start err = %v, want AcquisitionError", err)
	}
	if got := s.State(); got != Idle {
		t.Errorf("state = %v after failed start, want idle", got)
	}
	if got := feed.Starts(); got != 0 {
		t.Errorf("feed starts = %d, want 0 when device acquisition fails", got)
	}
}

func TestFeedStartFailureReleasesCapture(t *testing.T) {
	feed := stt.NewFake()
	feed.StartErr = errors.New("unauthorized")
	actx := audio.NewFakeContext()

	s := New(actx, nil, feed, Config{}, Callbacks{})
	err := s.Start(context.Background())
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("Start err = %v, want AcquisitionError", err)
	}

	captures := actx.Captures()
	if len(captures) != 1 {
		t.Fatalf("captures = %d, want 1", len(captures))
	}
	if got := captures[0].Closes(); got != 1 {
		t.Errorf("capture closes = %d, want 1 (no partial resources left)", got)
	}
}

func TestStartWhileActiveRejected(t *testing.T) {
	s, _, _, _ := startSession(t, Config{})

	if err := s.Start(context.Background()); !errors.Is(err, ErrActive) {
		t.Errorf("second Start err = %v, want ErrActive", err)
	}
	if got := s.State(); got != Recording {
		t.Errorf("state = %v after rejected start, want recording", got)
	}
}

func TestLevelSamplingStopsAtTeardown(t *testing.T) {
	s, _, actx, rec := startSession(t, Config{LevelInterval: 5 * time.Millisecond})

	// Push loud audio so the analyzer has something to report.
	loud := make([]byte, 2048)
	for i := 0; i < len(loud); i += 2 {
		loud[i] = 0x00
		loud[i+1] = 0x40 // ~0.5 amplitude
	}
	actx.Captures()[0].Push(loud)
	time.Sleep(50 * time.Millisecond)

	if rec.levelCount() == 0 {
		t.Fatal("no level callbacks while recording")
	}

	s.Stop()
	waitDone(t, s)
	after := rec.levelCount()
	time.Sleep(50 * time.Millisecond)
	if got := rec.levelCount(); got != after {
		t.Errorf("level callbacks after teardown: %d -> %d", after, got)
	}
}

func TestElapsedResetsAtTeardown(t *testing.T) {
	s, _, _, _ := startSession(t, Config{})

	time.Sleep(20 * time.Millisecond)
	if s.Elapsed() <= 0 {
		t.Error("Elapsed() not advancing while recording")
	}

	s.Stop()
	waitDone(t, s)
	if got := s.Elapsed(); got != 0 {
		t.Errorf("Elapsed() = %v after teardown, want 0", got)
	}
}
