package title

import (
	"context"
	"log"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"persona-chat-be/internal/constant"
	"persona-chat-be/internal/repository/specification"
	"persona-chat-be/internal/repository/unitofwork"
	"persona-chat-be/pkg/chat/prompt"
	"persona-chat-be/pkg/llm"

	"github.com/google/uuid"
)

const summaryInstruction = `Produce a very short label for the conversation below. ` +
	`At most six words, no quotes, no trailing punctuation, same language as the conversation. ` +
	`Reply with the label only.`

// TitledFunc is notified after a thread's title is finalized.
type TitledFunc func(threadId, ownerId uuid.UUID, title string)

// Config tunes the summarizer's bounds and pacing. Zero values fall back to
// conservative defaults.
type Config struct {
	// CallTimeout bounds one summarization end to end, backend call included.
	CallTimeout   time.Duration
	SweepInterval time.Duration
	BatchSize     int
	ItemDelay     time.Duration
}

// Summarizer labels threads in the background. It only ever talks to the
// cheapest configured tier and tolerates every failure silently: an untitled
// thread is simply picked up again by the next sweep.
type Summarizer struct {
	uowFactory unitofwork.RepositoryFactory
	provider   llm.Provider
	logger     *log.Logger
	onTitled   TitledFunc

	callTimeout   time.Duration
	sweepInterval time.Duration
	batchSize     int
	itemDelay     time.Duration

	// Caps concurrent summarizations so triggered work and the sweep never
	// compete with live traffic for backend capacity.
	slots chan struct{}
}

func NewSummarizer(
	uowFactory unitofwork.RepositoryFactory,
	provider llm.Provider,
	logger *log.Logger,
	cfg Config,
	onTitled TitledFunc,
) *Summarizer {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 2 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.ItemDelay <= 0 {
		cfg.ItemDelay = 2 * time.Second
	}
	return &Summarizer{
		uowFactory:    uowFactory,
		provider:      provider,
		logger:        logger,
		onTitled:      onTitled,
		callTimeout:   cfg.CallTimeout,
		sweepInterval: cfg.SweepInterval,
		batchSize:     cfg.BatchSize,
		itemDelay:     cfg.ItemDelay,
		slots:         make(chan struct{}, 2),
	}
}

// MaybeSummarize attempts one summarization for threadId. Fire-and-forget:
// it never blocks the request path beyond acquiring a worker slot, and all
// failures leave the thread untitled for the next sweep.
func (s *Summarizer) MaybeSummarize(ctx context.Context, threadId uuid.UUID) {
	// Bounded end to end, slot wait included. A backend call that hangs must
	// release its worker slot; two stuck calls would otherwise block the
	// consumer and the sweep forever.
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		return
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	target, err := uow.ThreadRepository().FindOne(ctx, specification.ByID{ID: threadId})
	if err != nil || target == nil {
		s.logf("[TITLE] Thread %s lookup failed: %v", threadId, err)
		return
	}
	if target.TitleFinalized {
		return
	}

	turns, err := uow.TurnRepository().FindAll(ctx,
		specification.ByThreadID{ThreadID: threadId},
		specification.OrderBy{Field: "created_at", Desc: false},
		specification.Pagination{Limit: 4, Offset: 0},
	)
	if err != nil || len(turns) == 0 {
		return
	}

	excerpt := make([]llm.Message, 0, len(turns))
	for _, turn := range turns {
		excerpt = append(excerpt, llm.Message{Role: turn.Role, Content: turn.Chat})
	}

	generated, err := s.provider.Chat(ctx, []llm.Message{
		{Role: constant.ChatMessageRoleSystem, Content: summaryInstruction},
		{Role: constant.ChatMessageRoleUser, Content: prompt.Flatten(excerpt)},
	}, llm.WithMaxTokens(30))
	if err != nil {
		s.logf("[TITLE] Summarization failed for thread %s: %v", threadId, err)
		return
	}

	label := sanitize(generated)
	if label == "" {
		return
	}

	won, err := uow.ThreadRepository().FinalizeTitle(ctx, threadId, label)
	if err != nil {
		s.logf("[TITLE] Finalize failed for thread %s: %v", threadId, err)
		return
	}
	if !won {
		// A concurrent attempt got there first; nothing left to do.
		return
	}

	s.logf("[TITLE] Thread %s titled %q", threadId, label)
	if s.onTitled != nil {
		s.onTitled(threadId, target.UserId, label)
	}
}

// RunSweep periodically re-attempts threads that are still untitled, covering
// the case where the immediate trigger failed (e.g. every backend was busy).
// Small batches with a delay between items keep it out of live traffic's way.
func (s *Summarizer) RunSweep(ctx context.Context) {
	for {
		jitter := time.Duration(rand.Int63n(int64(s.sweepInterval) / 4))
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.sweepInterval + jitter):
		}

		s.sweepOnce(ctx)
	}
}

func (s *Summarizer) sweepOnce(ctx context.Context) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	pending, err := uow.ThreadRepository().FindAll(ctx,
		specification.TitlePending{},
		specification.OrderBy{Field: "created_at", Desc: false},
		specification.Pagination{Limit: s.batchSize, Offset: 0},
	)
	if err != nil {
		s.logf("[TITLE] Sweep scan failed: %v", err)
		return
	}

	for _, target := range pending {
		count, err := uow.TurnRepository().Count(ctx, specification.ByThreadID{ThreadID: target.Id})
		if err != nil || count == 0 {
			continue
		}
		s.MaybeSummarize(ctx, target.Id)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.itemDelay):
		}
	}
}

func sanitize(generated string) string {
	label := strings.TrimSpace(generated)
	label = strings.Trim(label, `"'`)
	if idx := strings.IndexByte(label, '\n'); idx >= 0 {
		label = label[:idx]
	}
	if len(label) > constant.ThreadTitleMaxLength {
		// Titles may be non-ASCII; never cut a rune in half.
		cut := constant.ThreadTitleMaxLength
		for cut > 0 && !utf8.RuneStart(label[cut]) {
			cut--
		}
		label = label[:cut]
	}
	return strings.TrimSpace(label)
}

func (s *Summarizer) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
