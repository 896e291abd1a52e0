package stt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"parley/log"
)

// Options configure the Deepgram feed. Language is the fixed recognition
// locale for the whole stream.
type Options struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	Channels   int
}

// Deepgram streams PCM16 to Deepgram's live API and surfaces results as
// fragment batches. One Deepgram value survives provider-side hangups: each
// Start opens a fresh connection onto the same Events channel.
type Deepgram struct {
	opts Options

	mu      sync.Mutex
	client  *listenClient.WSCallback
	cancel  context.CancelFunc
	active  bool
	stopped bool

	events chan Event
}

func NewDeepgram(opts Options) *Deepgram {
	if opts.Model == "" {
		opts.Model = "nova-3"
	}
	return &Deepgram{
		opts:   opts,
		events: make(chan Event, 32),
	}
}

// deepgramCallback embeds the SDK default handler and overrides only the
// events the session cares about.
type deepgramCallback struct {
	*websocketv1api.DefaultCallbackHandler
	onMessage func(*msginterfaces.MessageResponse)
	onError   func(*msginterfaces.ErrorResponse)
	onClose   func()
}

func (c *deepgramCallback) Message(mr *msginterfaces.MessageResponse) error {
	c.onMessage(mr)
	return nil
}

func (c *deepgramCallback) Error(er *msginterfaces.ErrorResponse) error {
	c.onError(er)
	return nil
}

func (c *deepgramCallback) Close(cr *msginterfaces.CloseResponse) error {
	c.onClose()
	return c.DefaultCallbackHandler.Close(cr)
}

// Start opens a live connection with continuous mode and interim results on.
func (d *Deepgram) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return fmt.Errorf("deepgram feed already active")
	}
	if d.stopped {
		return fmt.Errorf("deepgram feed stopped")
	}

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.opts.Model,
		Language:       d.opts.Language,
		Punctuate:      true,
		InterimResults: true,
		Encoding:       "linear16",
		Channels:       d.opts.Channels,
		SampleRate:     d.opts.SampleRate,
	}

	connCtx, cancel := context.WithCancel(ctx)

	callback := &deepgramCallback{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		onMessage:              d.handleMessage,
		onError:                d.handleError,
		onClose:                d.handleClose,
	}

	client, err := listenClient.NewWSUsingCallback(connCtx, d.opts.APIKey, nil, tOptions, callback)
	if err != nil {
		cancel()
		return fmt.Errorf("deepgram connect: %w", err)
	}

	d.client = client
	d.cancel = cancel
	d.active = true
	log.Infof("deepgram feed started (model=%s lang=%s)", d.opts.Model, d.opts.Language)
	return nil
}

func (d *Deepgram) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil || len(msg.Channel.Alternatives) == 0 {
		return
	}
	var frags []Fragment
	for _, alt := range msg.Channel.Alternatives {
		if alt.Transcript == "" {
			continue
		}
		frags = append(frags, Fragment{
			Text:    alt.Transcript,
			IsFinal: msg.IsFinal || msg.SpeechFinal,
		})
		// Only the best alternative carries the batch; the rest are
		// competing hypotheses, not additional speech.
		break
	}
	if len(frags) == 0 {
		return
	}
	d.emit(Event{Batch: &Batch{Fragments: frags}})
}

func (d *Deepgram) handleError(er *msginterfaces.ErrorResponse) {
	if er == nil {
		return
	}
	err := fmt.Errorf("deepgram: %s: %s", er.ErrCode, er.ErrMsg)
	if isNoInput(er) {
		err = fmt.Errorf("%w: %s", ErrNoInput, er.ErrMsg)
	}
	d.emit(Event{Err: err})
}

func (d *Deepgram) handleClose() {
	d.mu.Lock()
	wasActive := d.active
	stopped := d.stopped
	d.active = false
	d.mu.Unlock()

	// A close we initiated is not an end-of-stream signal.
	if wasActive && !stopped {
		d.emit(Event{Ended: true})
	}
}

// isNoInput classifies provider errors that mean no audio was heard.
// Deepgram hangs up with NET-0001 when it receives no audio within its
// timeout window.
func isNoInput(er *msginterfaces.ErrorResponse) bool {
	if strings.EqualFold(er.ErrCode, "NET-0001") {
		return true
	}
	desc := strings.ToLower(er.ErrMsg + " " + er.Description)
	return strings.Contains(desc, "did not receive audio")
}

// emit delivers an event unless the feed has been stopped. The SDK keeps
// invoking callbacks for a while after Finish; those must be dropped, not
// sent into the closed channel.
func (d *Deepgram) emit(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	select {
	case d.events <- ev:
	default:
		log.Warnf("deepgram event channel full, dropping event")
	}
}

// Send forwards a PCM chunk to the live connection.
func (d *Deepgram) Send(pcm []byte) error {
	d.mu.Lock()
	client := d.client
	active := d.active
	d.mu.Unlock()

	if !active || client == nil {
		return fmt.Errorf("deepgram feed not active")
	}
	if _, err := client.Write(pcm); err != nil {
		return fmt.Errorf("deepgram send: %w", err)
	}
	return nil
}

// Stop finishes the current connection and retires the feed. Safe to call
// more than once; the Events channel is closed on the first call.
func (d *Deepgram) Stop() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	client := d.client
	cancel := d.cancel
	d.client = nil
	d.active = false
	d.mu.Unlock()

	if client != nil {
		client.Finish()
	}
	if cancel != nil {
		cancel()
	}
	close(d.events)
	log.Infof("deepgram feed stopped")
	return nil
}

func (d *Deepgram) Events() <-chan Event { return d.events }
