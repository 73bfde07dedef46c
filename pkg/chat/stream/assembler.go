package stream

import (
	"strings"
	"sync"
)

// Assembler reconstructs one complete reply from backend output, whether it
// arrives as one buffer or as many incremental fragments. Fragments are
// forwarded to the sink as they come in and accumulated; Finalize guarantees
// the sink has received the full reply exactly once by the time it returns.
type Assembler struct {
	sink func(text string)

	mu        sync.Mutex
	buf       strings.Builder
	finalized bool
}

// NewAssembler creates an assembler forwarding fragments to sink. A nil sink
// is allowed for callers that only want the accumulated text.
func NewAssembler(sink func(text string)) *Assembler {
	return &Assembler{sink: sink}
}

// OnFragment accumulates one decoded fragment and forwards it to the sink.
// Safe for use as an llm.FragmentFunc.
func (a *Assembler) OnFragment(text string) {
	if text == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return
	}
	a.buf.WriteString(text)
	if a.sink != nil {
		a.sink(text)
	}
}

// Forwarded reports whether any fragment has reached the sink yet.
func (a *Assembler) Forwarded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Len() > 0
}

// Finalize reconciles the accumulated fragments against the full reply the
// winning backend returned. If the backend never streamed, the whole reply
// goes out as a single terminal fragment; if the stream stopped short of the
// final text, only the missing tail is forwarded. Returns the full reply.
func (a *Assembler) Finalize(full string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return full
	}
	a.finalized = true

	got := a.buf.String()
	if got == full {
		return full
	}

	if a.sink != nil {
		if strings.HasPrefix(full, got) {
			a.sink(full[len(got):])
		} else if got == "" {
			a.sink(full)
		}
		// A diverging prefix means the fragments already sent cannot be
		// reconciled; the accumulated text stands as what the caller saw.
	}
	a.buf.Reset()
	a.buf.WriteString(full)
	return full
}

// Text returns the text assembled so far.
func (a *Assembler) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}
