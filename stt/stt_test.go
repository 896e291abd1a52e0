package stt

import (
	"context"
	"errors"
	"testing"
)

func TestFold(t *testing.T) {
	for _, tt := range []struct {
		name      string
		frags     []Fragment
		wantText  string
		wantFinal bool
	}{
		{"empty batch", nil, "", false},
		{"interim only", []Fragment{{Text: "hel"}, {Text: "lo"}}, "hello", false},
		{"final only", []Fragment{{Text: "hello ", IsFinal: true}, {Text: "world", IsFinal: true}}, "hello world", true},
		{
			"final supersedes interim",
			[]Fragment{{Text: "helo"}, {Text: "hello", IsFinal: true}, {Text: " wor"}},
			"hello", true,
		},
		{
			"mixed finals concatenate in order",
			[]Fragment{{Text: "one ", IsFinal: true}, {Text: "junk"}, {Text: "two", IsFinal: true}},
			"one two", true,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			text, final := Fold(Batch{Fragments: tt.frags})
			if text != tt.wantText || final != tt.wantFinal {
				t.Errorf("Fold() = (%q, %v), want (%q, %v)", text, final, tt.wantText, tt.wantFinal)
			}
		})
	}
}

func TestFakeLifecycle(t *testing.T) {
	f := NewFake()
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.Send(make([]byte, 320))
	f.EmitInterim("hel")
	f.EmitFinal("hello")
	f.EmitEnd()
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	f.Stop()

	if f.Starts() != 2 {
		t.Errorf("Starts() = %d, want 2", f.Starts())
	}
	if f.Stops() != 1 {
		t.Errorf("Stops() = %d, want 1", f.Stops())
	}
	if f.SentBytes() != 320 {
		t.Errorf("SentBytes() = %d, want 320", f.SentBytes())
	}

	ev := <-f.Events()
	if ev.Batch == nil || ev.Batch.Fragments[0].Text != "hel" {
		t.Fatalf("unexpected first event: %+v", ev)
	}
	ev = <-f.Events()
	if ev.Batch == nil || !ev.Batch.Fragments[0].IsFinal {
		t.Fatalf("unexpected second event: %+v", ev)
	}
	ev = <-f.Events()
	if !ev.Ended {
		t.Fatalf("unexpected third event: %+v", ev)
	}
}

func TestErrNoInputWrapping(t *testing.T) {
	err := errors.Join(ErrNoInput)
	if !errors.Is(err, ErrNoInput) {
		t.Error("wrapped ErrNoInput should satisfy errors.Is")
	}
}
