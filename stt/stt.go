// Package stt adapts an external streaming speech-to-text provider into the
// narrow event contract the capture session consumes: batches of transcript
// fragments, recognition errors, and end-of-stream signals.
package stt

import (
	"context"
	"errors"
	"strings"
)

// ErrNoInput marks recognition errors meaning the provider heard nothing.
// The session treats it as a silence timeout.
var ErrNoInput = errors.New("no input detected")

// Fragment is one piece of recognizer output. Interim fragments are
// revisions in flight; final fragments are settled text.
type Fragment struct {
	Text    string
	IsFinal bool
}

// Batch is one recognizer result event. Fragments are ordered as emitted.
type Batch struct {
	Fragments []Fragment
}

// Event is a single occurrence on the feed. Exactly one of Batch, Err, or
// Ended is set.
type Event struct {
	Batch *Batch
	Err   error
	Ended bool
}

// Stream is a continuous, interim-enabled recognition feed. Start is
// callable again after an end-of-stream; the Events channel spans restarts
// and is closed only when the stream is stopped for good.
type Stream interface {
	Start(ctx context.Context) error
	Send(pcm []byte) error
	Stop() error
	Events() <-chan Event
}

// Fold reduces a batch to its best text under final-over-interim precedence:
// if the batch carries any final text, the concatenation of its final
// fragments wins outright; otherwise the interim concatenation stands.
func Fold(b Batch) (text string, final bool) {
	var finals, interims strings.Builder
	for _, f := range b.Fragments {
		if f.IsFinal {
			finals.WriteString(f.Text)
		} else {
			interims.WriteString(f.Text)
		}
	}
	if finals.Len() > 0 {
		return finals.String(), true
	}
	return interims.String(), false
}
