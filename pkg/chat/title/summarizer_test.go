package title

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"persona-chat-be/internal/constant"
	"persona-chat-be/internal/entity"
	"persona-chat-be/internal/repository/contract"
	"persona-chat-be/internal/repository/specification"
	"persona-chat-be/internal/repository/unitofwork"
	"persona-chat-be/pkg/llm"

	"github.com/google/uuid"
)

type fakeThreadRepo struct {
	mu      sync.Mutex
	threads map[uuid.UUID]*entity.Thread
}

func (r *fakeThreadRepo) Create(ctx context.Context, thread *entity.Thread) error { return nil }
func (r *fakeThreadRepo) Update(ctx context.Context, thread *entity.Thread) error { return nil }
func (r *fakeThreadRepo) Delete(ctx context.Context, id uuid.UUID) error          { return nil }

func (r *fakeThreadRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, spec := range specs {
		if byId, ok := spec.(specification.ByID); ok {
			if found, exists := r.threads[byId.ID]; exists {
				copied := *found
				return &copied, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeThreadRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []*entity.Thread
	for _, th := range r.threads {
		if !th.TitleFinalized {
			copied := *th
			pending = append(pending, &copied)
		}
	}
	return pending, nil
}

func (r *fakeThreadRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return 0, nil
}

// FinalizeTitle mirrors the conditional UPDATE: only the first caller wins.
func (r *fakeThreadRepo) FinalizeTitle(ctx context.Context, id uuid.UUID, title string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.threads[id]
	if !ok || target.TitleFinalized {
		return false, nil
	}
	target.Title = title
	target.TitleFinalized = true
	return true, nil
}

type fakeTurnRepo struct {
	turns []*entity.Turn
}

func (r *fakeTurnRepo) Create(ctx context.Context, turn *entity.Turn) error            { return nil }
func (r *fakeTurnRepo) DeleteByThreadId(ctx context.Context, threadId uuid.UUID) error { return nil }
func (r *fakeTurnRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Turn, error) {
	return nil, nil
}
func (r *fakeTurnRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Turn, error) {
	return r.turns, nil
}
func (r *fakeTurnRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.turns)), nil
}

type fakeUow struct {
	threads contract.ThreadRepository
	turns   contract.TurnRepository
}

func (u *fakeUow) Begin(ctx context.Context) error             { return nil }
func (u *fakeUow) Commit() error                               { return nil }
func (u *fakeUow) Rollback() error                             { return nil }
func (u *fakeUow) UserRepository() contract.UserRepository     { return nil }
func (u *fakeUow) ThreadRepository() contract.ThreadRepository { return u.threads }
func (u *fakeUow) TurnRepository() contract.TurnRepository     { return u.turns }

type fakeFactory struct {
	uow unitofwork.UnitOfWork
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork { return f.uow }

type stubProvider struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (p *stubProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.text, p.err
}

func (p *stubProvider) ChatStream(ctx context.Context, history []llm.Message, onFragment llm.FragmentFunc, options ...llm.Option) (string, error) {
	return p.Chat(ctx, history)
}

func setup(provider llm.Provider, onTitled TitledFunc) (*Summarizer, *fakeThreadRepo, uuid.UUID) {
	threadId := uuid.New()
	threadRepo := &fakeThreadRepo{threads: map[uuid.UUID]*entity.Thread{
		threadId: {
			Id:     threadId,
			UserId: uuid.New(),
			Title:  constant.ThreadPlaceholderTitle,
		},
	}}
	turnRepo := &fakeTurnRepo{turns: []*entity.Turn{
		{Role: "user", Chat: "How do goroutines work?"},
		{Role: "assistant", Chat: "They are lightweight threads."},
	}}
	factory := &fakeFactory{uow: &fakeUow{threads: threadRepo, turns: turnRepo}}
	s := NewSummarizer(factory, provider, nil, Config{SweepInterval: time.Minute, BatchSize: 5}, onTitled)
	return s, threadRepo, threadId
}

func TestMaybeSummarizeSetsTitle(t *testing.T) {
	var notified []string
	s, repo, threadId := setup(
		&stubProvider{text: "Goroutine Basics"},
		func(id, owner uuid.UUID, title string) { notified = append(notified, title) },
	)

	s.MaybeSummarize(context.Background(), threadId)

	target := repo.threads[threadId]
	if target.Title != "Goroutine Basics" || !target.TitleFinalized {
		t.Errorf("Thread = %q finalized=%v, want summarized title", target.Title, target.TitleFinalized)
	}
	if len(notified) != 1 {
		t.Errorf("onTitled called %d times, want 1", len(notified))
	}
}

func TestMaybeSummarizeFailureIsSilent(t *testing.T) {
	s, repo, threadId := setup(&stubProvider{err: errors.New("backend busy")}, nil)

	s.MaybeSummarize(context.Background(), threadId)

	target := repo.threads[threadId]
	if target.TitleFinalized {
		t.Error("Failed summarization must leave the thread untitled")
	}
	if target.Title != constant.ThreadPlaceholderTitle {
		t.Errorf("Title = %q, placeholder must survive", target.Title)
	}
}

func TestMaybeSummarizeConcurrentCallsNotifyOnce(t *testing.T) {
	var mu sync.Mutex
	notifications := 0
	s, repo, threadId := setup(
		&stubProvider{text: "Winner Title"},
		func(id, owner uuid.UUID, title string) {
			mu.Lock()
			notifications++
			mu.Unlock()
		},
	)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.MaybeSummarize(context.Background(), threadId)
		}()
	}
	wg.Wait()

	if notifications != 1 {
		t.Errorf("onTitled fired %d times, the transition must happen once", notifications)
	}
	if !repo.threads[threadId].TitleFinalized {
		t.Error("Thread left untitled")
	}
}

func TestMaybeSummarizeSkipsFinalizedThread(t *testing.T) {
	provider := &stubProvider{text: "Should Not Run"}
	s, repo, threadId := setup(provider, nil)
	repo.threads[threadId].Title = "Existing Title"
	repo.threads[threadId].TitleFinalized = true

	s.MaybeSummarize(context.Background(), threadId)

	if repo.threads[threadId].Title != "Existing Title" {
		t.Error("Finalized title was overwritten")
	}
	if provider.calls != 0 {
		t.Errorf("Backend called %d times for a finalized thread", provider.calls)
	}
}

// blockingProvider hangs until its context is cancelled, like a backend that
// accepts the connection and never answers.
type blockingProvider struct{}

func (p *blockingProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (p *blockingProvider) ChatStream(ctx context.Context, history []llm.Message, onFragment llm.FragmentFunc, options ...llm.Option) (string, error) {
	return p.Chat(ctx, history)
}

func TestMaybeSummarizeTimeBoundReleasesSlots(t *testing.T) {
	threadId := uuid.New()
	threadRepo := &fakeThreadRepo{threads: map[uuid.UUID]*entity.Thread{
		threadId: {Id: threadId, UserId: uuid.New(), Title: constant.ThreadPlaceholderTitle},
	}}
	turnRepo := &fakeTurnRepo{turns: []*entity.Turn{{Role: "user", Chat: "hello"}}}
	factory := &fakeFactory{uow: &fakeUow{threads: threadRepo, turns: turnRepo}}
	s := NewSummarizer(factory, &blockingProvider{}, nil, Config{CallTimeout: 25 * time.Millisecond}, nil)

	// Three concurrent calls against a hung backend: with only two worker
	// slots, the third has to wait for a slot and must still return.
	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.MaybeSummarize(context.Background(), threadId)
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("MaybeSummarize never returned; a hung backend call is holding a worker slot")
	}
	if threadRepo.threads[threadId].TitleFinalized {
		t.Error("A timed-out summarization must leave the thread untitled for the sweep")
	}
}

func TestNewSummarizerConfig(t *testing.T) {
	factory := &fakeFactory{uow: &fakeUow{}}

	s := NewSummarizer(factory, &stubProvider{}, nil, Config{
		CallTimeout:   10 * time.Second,
		SweepInterval: time.Minute,
		BatchSize:     3,
		ItemDelay:     5 * time.Second,
	}, nil)
	if s.callTimeout != 10*time.Second || s.itemDelay != 5*time.Second || s.batchSize != 3 {
		t.Errorf("Config not honored: timeout=%s delay=%s batch=%d", s.callTimeout, s.itemDelay, s.batchSize)
	}

	defaults := NewSummarizer(factory, &stubProvider{}, nil, Config{}, nil)
	if defaults.callTimeout <= 0 || defaults.sweepInterval <= 0 || defaults.batchSize <= 0 || defaults.itemDelay <= 0 {
		t.Errorf("Zero config must fall back to defaults: %+v", defaults)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"quotes stripped", `"Budget Planning"`, "Budget Planning"},
		{"first line only", "Title Here\nExplanation below", "Title Here"},
		{"whitespace trimmed", "  Padded Title  ", "Padded Title"},
		{"long output capped", longTitle(120), longTitle(constant.ThreadTitleMaxLength)},
		// "€" is 3 bytes; the byte cap falls mid-rune and must back up to
		// the previous rune boundary instead of storing invalid UTF-8.
		{"multibyte cap on rune boundary", strings.Repeat("€", 30), strings.Repeat("€", 26)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitize(tt.in); got != tt.want {
				t.Errorf("sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func longTitle(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = 'a'
	}
	return string(out)
}
