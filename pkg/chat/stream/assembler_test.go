package stream

import (
	"strings"
	"testing"
)

func TestAssemblerForwardsFragments(t *testing.T) {
	var got []string
	a := NewAssembler(func(text string) { got = append(got, text) })

	a.OnFragment("Hello")
	a.OnFragment(", ")
	a.OnFragment("world")

	if a.Text() != "Hello, world" {
		t.Errorf("Text = %q, want accumulated fragments", a.Text())
	}
	if len(got) != 3 {
		t.Errorf("Sink received %d fragments, want 3", len(got))
	}
	if !a.Forwarded() {
		t.Error("Forwarded = false after fragments went out")
	}
}

func TestAssemblerFinalizeBufferedReply(t *testing.T) {
	// No fragments at all: the full reply must reach the sink exactly once.
	var got []string
	a := NewAssembler(func(text string) { got = append(got, text) })

	full := a.Finalize("complete reply")
	if full != "complete reply" {
		t.Errorf("Finalize = %q", full)
	}
	if len(got) != 1 || got[0] != "complete reply" {
		t.Errorf("Sink received %v, want the whole reply once", got)
	}
}

func TestAssemblerFinalizeForwardsMissingTail(t *testing.T) {
	var got strings.Builder
	a := NewAssembler(func(text string) { got.WriteString(text) })

	a.OnFragment("Hello, ")
	a.Finalize("Hello, world")

	if got.String() != "Hello, world" {
		t.Errorf("Sink saw %q, want the tail appended", got.String())
	}
}

func TestAssemblerFinalizeIdempotent(t *testing.T) {
	calls := 0
	a := NewAssembler(func(text string) { calls++ })

	a.Finalize("reply")
	a.Finalize("reply")
	a.OnFragment("late fragment after finalize")

	if calls != 1 {
		t.Errorf("Sink called %d times, want exactly once", calls)
	}
	if a.Text() != "reply" {
		t.Errorf("Text = %q, want the finalized reply", a.Text())
	}
}

func TestAssemblerExactStreamNeedsNoTail(t *testing.T) {
	calls := 0
	a := NewAssembler(func(text string) { calls++ })

	a.OnFragment("all ")
	a.OnFragment("of it")
	a.Finalize("all of it")

	if calls != 2 {
		t.Errorf("Sink called %d times, want only the two fragments", calls)
	}
}

func TestAssemblerNilSink(t *testing.T) {
	a := NewAssembler(nil)
	a.OnFragment("text")
	if got := a.Finalize("text and more"); got != "text and more" {
		t.Errorf("Finalize = %q", got)
	}
}
