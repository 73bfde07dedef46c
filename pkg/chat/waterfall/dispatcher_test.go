package waterfall

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"persona-chat-be/pkg/llm"
)

// stubProvider is a scriptable backend for dispatcher tests.
type stubProvider struct {
	mu        sync.Mutex
	calls     int
	text      string
	err       error
	delay     time.Duration
	fragments []string
}

func (p *stubProvider) recordCall() {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *stubProvider) wait(ctx context.Context) error {
	if p.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(p.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *stubProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	p.recordCall()
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.text, p.err
}

func (p *stubProvider) ChatStream(ctx context.Context, history []llm.Message, onFragment llm.FragmentFunc, options ...llm.Option) (string, error) {
	p.recordCall()
	for _, f := range p.fragments {
		onFragment(f)
	}
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.text, p.err
}

var _ llm.Provider = &stubProvider{}

func tier(label string, p llm.Provider, timeout time.Duration) Tier {
	return Tier{Label: label, Provider: p, Timeout: timeout}
}

func history() []llm.Message {
	return []llm.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hello"},
	}
}

func TestDispatchFirstTierWins(t *testing.T) {
	primary := &stubProvider{text: "from primary"}
	fallback := &stubProvider{text: "from fallback"}
	d := NewDispatcher([]Tier{
		tier("primary", primary, time.Second),
		tier("fallback", fallback, time.Second),
	}, nil)

	result, err := d.Dispatch(context.Background(), history(), nil)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Text != "from primary" || result.TierLabel != "primary" {
		t.Errorf("Result = %q via %q, want primary reply", result.Text, result.TierLabel)
	}
	if fallback.callCount() != 0 {
		t.Errorf("Fallback called %d times, want 0", fallback.callCount())
	}
}

func TestDispatchFallsThroughOnFailure(t *testing.T) {
	tests := []struct {
		name       string
		primaryErr error
		primary    *stubProvider
	}{
		{name: "transport error", primary: &stubProvider{err: errors.New("connection refused")}},
		{name: "backend rejected", primary: &stubProvider{err: &llm.BackendError{Provider: "stub", Status: 429}}},
		{name: "empty response", primary: &stubProvider{err: llm.ErrEmptyResponse}},
		{name: "empty text without error", primary: &stubProvider{text: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallback := &stubProvider{text: "from fallback"}
			d := NewDispatcher([]Tier{
				tier("primary", tt.primary, time.Second),
				tier("fallback", fallback, time.Second),
			}, nil)

			result, err := d.Dispatch(context.Background(), history(), nil)
			if err != nil {
				t.Fatalf("Dispatch failed: %v", err)
			}
			if result.TierLabel != "fallback" {
				t.Errorf("TierLabel = %q, want fallback", result.TierLabel)
			}
			if tt.primary.callCount() != 1 {
				t.Errorf("Primary called %d times, want exactly 1", tt.primary.callCount())
			}
		})
	}
}

func TestDispatchStalledTierNeverContributes(t *testing.T) {
	stalled := &stubProvider{text: "too late", delay: 500 * time.Millisecond}
	fallback := &stubProvider{text: "from fallback"}
	d := NewDispatcher([]Tier{
		tier("stalled", stalled, 30*time.Millisecond),
		tier("fallback", fallback, time.Second),
	}, nil)

	result, err := d.Dispatch(context.Background(), history(), nil)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.Text != "from fallback" {
		t.Errorf("Text = %q, the stalled tier's reply must be discarded", result.Text)
	}
}

func TestDispatchAllTiersExhausted(t *testing.T) {
	a := &stubProvider{err: errors.New("down")}
	b := &stubProvider{err: llm.ErrEmptyResponse}
	d := NewDispatcher([]Tier{
		tier("a", a, time.Second),
		tier("b", b, time.Second),
	}, nil)

	_, err := d.Dispatch(context.Background(), history(), nil)
	if !errors.Is(err, ErrAllTiersExhausted) {
		t.Fatalf("err = %v, want ErrAllTiersExhausted", err)
	}
	if a.callCount() != 1 || b.callCount() != 1 {
		t.Errorf("Each tier must be tried exactly once, got a=%d b=%d", a.callCount(), b.callCount())
	}
}

func TestDispatchNoTiers(t *testing.T) {
	d := NewDispatcher(nil, nil)
	_, err := d.Dispatch(context.Background(), history(), nil)
	if !errors.Is(err, ErrAllTiersExhausted) {
		t.Fatalf("err = %v, want ErrAllTiersExhausted", err)
	}
}

func TestDispatchStreamInterruptedAfterFragments(t *testing.T) {
	// The tier emits a fragment, then fails. The caller has already seen
	// partial text, so no fallback may run.
	leaky := &stubProvider{fragments: []string{"partial "}, err: errors.New("connection reset")}
	fallback := &stubProvider{text: "from fallback"}
	d := NewDispatcher([]Tier{
		tier("leaky", leaky, time.Second),
		tier("fallback", fallback, time.Second),
	}, nil)

	var got []string
	_, err := d.Dispatch(context.Background(), history(), func(text string) {
		got = append(got, text)
	})
	if !errors.Is(err, ErrStreamInterrupted) {
		t.Fatalf("err = %v, want ErrStreamInterrupted", err)
	}
	if fallback.callCount() != 0 {
		t.Errorf("Fallback ran after fragments were forwarded")
	}
	if len(got) != 1 || got[0] != "partial " {
		t.Errorf("Fragments = %v, want the single partial fragment", got)
	}
}

func TestDispatchPreFragmentFailureStillFallsThrough(t *testing.T) {
	// Streaming requested but the primary dies before emitting anything;
	// the waterfall must continue normally.
	silent := &stubProvider{err: errors.New("tls handshake failed")}
	fallback := &stubProvider{text: "from fallback", fragments: []string{"from fallback"}}
	d := NewDispatcher([]Tier{
		tier("silent", silent, time.Second),
		tier("fallback", fallback, time.Second),
	}, nil)

	var got []string
	result, err := d.Dispatch(context.Background(), history(), func(text string) {
		got = append(got, text)
	})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if result.TierLabel != "fallback" {
		t.Errorf("TierLabel = %q, want fallback", result.TierLabel)
	}
	if len(got) != 1 {
		t.Errorf("Fragments = %v, want exactly the fallback's fragment", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureReason
	}{
		{"deadline", context.DeadlineExceeded, FailureTimeout},
		{"wrapped deadline", errors.Join(errors.New("attempt"), context.DeadlineExceeded), FailureTimeout},
		{"empty", llm.ErrEmptyResponse, FailureEmptyResponse},
		{"rejected", &llm.BackendError{Provider: "stub", Status: 500}, FailureBackendRejected},
		{"transport", errors.New("connection refused"), FailureTransportError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
