package history

import (
	"context"
	"errors"
	"testing"

	"persona-chat-be/internal/dto"
	"persona-chat-be/internal/entity"
	"persona-chat-be/internal/repository/contract"
	"persona-chat-be/internal/repository/specification"
	"persona-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type fakeTurnRepo struct {
	turns     []*entity.Turn
	err       error
	seenSpecs []specification.Specification
}

func (r *fakeTurnRepo) Create(ctx context.Context, turn *entity.Turn) error { return nil }
func (r *fakeTurnRepo) DeleteByThreadId(ctx context.Context, threadId uuid.UUID) error {
	return nil
}
func (r *fakeTurnRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Turn, error) {
	return nil, nil
}
func (r *fakeTurnRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Turn, error) {
	r.seenSpecs = specs
	if r.err != nil {
		return nil, r.err
	}
	return r.turns, nil
}
func (r *fakeTurnRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return int64(len(r.turns)), nil
}

type fakeUow struct {
	turns contract.TurnRepository
}

func (u *fakeUow) Begin(ctx context.Context) error               { return nil }
func (u *fakeUow) Commit() error                                 { return nil }
func (u *fakeUow) Rollback() error                               { return nil }
func (u *fakeUow) UserRepository() contract.UserRepository       { return nil }
func (u *fakeUow) ThreadRepository() contract.ThreadRepository   { return nil }
func (u *fakeUow) TurnRepository() contract.TurnRepository       { return u.turns }

type fakeFactory struct {
	uow unitofwork.UnitOfWork
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork { return f.uow }

func TestBuildWindowShape(t *testing.T) {
	// Repository hands back newest-first, as the loader requests it.
	repo := &fakeTurnRepo{turns: []*entity.Turn{
		{Role: "assistant", Chat: "Hello Ada"},
		{Role: "user", Chat: "My name is Ada"},
	}}
	loader := NewLoader(&fakeFactory{uow: &fakeUow{turns: repo}}, 10, nil)

	window := loader.Build(context.Background(), uuid.New(), "be kind", "what is my name?")

	wantRoles := []string{"system", "user", "assistant", "user"}
	wantTexts := []string{"be kind", "My name is Ada", "Hello Ada", "what is my name?"}
	if len(window) != len(wantRoles) {
		t.Fatalf("Window has %d messages, want %d", len(window), len(wantRoles))
	}
	for i := range window {
		if window[i].Role != wantRoles[i] || window[i].Content != wantTexts[i] {
			t.Errorf("Message %d = %s/%q, want %s/%q", i, window[i].Role, window[i].Content, wantRoles[i], wantTexts[i])
		}
	}
}

func TestBuildRequestsBoundedNewestFirst(t *testing.T) {
	repo := &fakeTurnRepo{}
	loader := NewLoader(&fakeFactory{uow: &fakeUow{turns: repo}}, 7, nil)

	loader.Build(context.Background(), uuid.New(), "p", "u")

	var sawOrder, sawLimit bool
	for _, spec := range repo.seenSpecs {
		switch s := spec.(type) {
		case specification.OrderBy:
			sawOrder = s.Field == "created_at" && s.Desc
		case specification.Pagination:
			sawLimit = s.Limit == 7
		}
	}
	if !sawOrder {
		t.Error("Loader must fetch newest turns first")
	}
	if !sawLimit {
		t.Error("Loader must bound the fetch to the window size")
	}
}

func TestBuildDegradesOnStorageFailure(t *testing.T) {
	repo := &fakeTurnRepo{err: errors.New("connection lost")}
	loader := NewLoader(&fakeFactory{uow: &fakeUow{turns: repo}}, 10, nil)

	window := loader.Build(context.Background(), uuid.New(), "persona text", "user text")

	if len(window) != 2 {
		t.Fatalf("Degraded window has %d messages, want persona + user only", len(window))
	}
	if window[0].Role != "system" || window[1].Content != "user text" {
		t.Errorf("Degraded window malformed: %+v", window)
	}
}

func TestBuildFromTranscript(t *testing.T) {
	loader := NewLoader(&fakeFactory{uow: &fakeUow{turns: &fakeTurnRepo{}}}, 10, nil)

	window, err := loader.BuildFromTranscript([]dto.TranscriptEntry{
		{Role: "user", Text: "hi"},
		{Role: "model", Text: "hello"}, // unknown role
	}, "persona", "next question")
	if err != nil {
		t.Fatalf("BuildFromTranscript failed: %v", err)
	}

	if len(window) != 4 {
		t.Fatalf("Window has %d messages, want 4", len(window))
	}
	if window[2].Role != "assistant" {
		t.Errorf("Unknown role normalized to %q, want assistant", window[2].Role)
	}
}

func TestBuildFromTranscriptRejectsEmptyText(t *testing.T) {
	loader := NewLoader(&fakeFactory{uow: &fakeUow{turns: &fakeTurnRepo{}}}, 10, nil)

	_, err := loader.BuildFromTranscript([]dto.TranscriptEntry{
		{Role: "user", Text: ""},
	}, "persona", "question")
	if err == nil {
		t.Error("Empty transcript text must be a validation error")
	}
}

func TestBuildFromTranscriptHonorsBound(t *testing.T) {
	loader := NewLoader(&fakeFactory{uow: &fakeUow{turns: &fakeTurnRepo{}}}, 2, nil)

	transcript := []dto.TranscriptEntry{
		{Role: "user", Text: "one"},
		{Role: "assistant", Text: "two"},
		{Role: "user", Text: "three"},
		{Role: "assistant", Text: "four"},
	}
	window, err := loader.BuildFromTranscript(transcript, "persona", "question")
	if err != nil {
		t.Fatalf("BuildFromTranscript failed: %v", err)
	}

	// persona + 2 most recent entries + new user text
	if len(window) != 4 {
		t.Fatalf("Window has %d messages, want 4", len(window))
	}
	if window[1].Content != "three" {
		t.Errorf("Oldest kept entry = %q, want the most recent two", window[1].Content)
	}
}
