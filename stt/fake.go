package stt

import (
	"context"
	"sync"
)

// Fake is a scripted Stream for tests. Tests emit events directly and
// inspect lifecycle calls.
type Fake struct {
	StartErr error

	mu        sync.Mutex
	events    chan Event
	starts    int
	stops     int
	sentBytes int
}

func NewFake() *Fake {
	return &Fake{events: make(chan Event, 32)}
}

func (f *Fake) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.starts++
	return nil
}

func (f *Fake) Send(pcm []byte) error {
	f.mu.Lock()
	f.sentBytes += len(pcm)
	f.mu.Unlock()
	return nil
}

func (f *Fake) Stop() error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	return nil
}

func (f *Fake) Events() <-chan Event { return f.events }

// EmitBatch delivers a fragment batch as the provider would.
func (f *Fake) EmitBatch(frags ...Fragment) {
	f.events <- Event{Batch: &Batch{Fragments: frags}}
}

// EmitInterim delivers a single interim fragment.
func (f *Fake) EmitInterim(text string) {
	f.EmitBatch(Fragment{Text: text})
}

// EmitFinal delivers a single final fragment.
func (f *Fake) EmitFinal(text string) {
	f.EmitBatch(Fragment{Text: text, IsFinal: true})
}

// EmitError delivers a recognition error.
func (f *Fake) EmitError(err error) {
	f.events <- Event{Err: err}
}

// EmitEnd delivers a provider-side end-of-stream.
func (f *Fake) EmitEnd() {
	f.events <- Event{Ended: true}
}

// Starts reports how many times Start succeeded.
func (f *Fake) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// Stops reports how many times Stop was called.
func (f *Fake) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// SentBytes reports the total PCM bytes fed to the stream.
func (f *Fake) SentBytes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sentBytes
}
