package thread

import (
	"context"
	"errors"
	"sync"
	"testing"

	"persona-chat-be/internal/constant"
	"persona-chat-be/internal/entity"
	"persona-chat-be/internal/repository/contract"
	"persona-chat-be/internal/repository/specification"
	"persona-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type fakeThreadRepo struct {
	mu      sync.Mutex
	threads map[uuid.UUID]*entity.Thread
	created int
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{threads: make(map[uuid.UUID]*entity.Thread)}
}

func (r *fakeThreadRepo) Create(ctx context.Context, thread *entity.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads[thread.Id] = thread
	r.created++
	return nil
}

func (r *fakeThreadRepo) Update(ctx context.Context, thread *entity.Thread) error { return nil }
func (r *fakeThreadRepo) Delete(ctx context.Context, id uuid.UUID) error          { return nil }

func (r *fakeThreadRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, spec := range specs {
		if byId, ok := spec.(specification.ByID); ok {
			if found, exists := r.threads[byId.ID]; exists {
				return found, nil
			}
		}
	}
	return nil, nil
}

func (r *fakeThreadRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Thread, error) {
	return nil, nil
}
func (r *fakeThreadRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	return 0, nil
}
func (r *fakeThreadRepo) FinalizeTitle(ctx context.Context, id uuid.UUID, title string) (bool, error) {
	return false, nil
}

type fakeUow struct {
	threads contract.ThreadRepository
}

func (u *fakeUow) Begin(ctx context.Context) error             { return nil }
func (u *fakeUow) Commit() error                               { return nil }
func (u *fakeUow) Rollback() error                             { return nil }
func (u *fakeUow) UserRepository() contract.UserRepository     { return nil }
func (u *fakeUow) ThreadRepository() contract.ThreadRepository { return u.threads }
func (u *fakeUow) TurnRepository() contract.TurnRepository     { return nil }

type fakeFactory struct {
	uow unitofwork.UnitOfWork
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork { return f.uow }

func newResolverWithRepo(repo *fakeThreadRepo) *Resolver {
	return NewResolver(&fakeFactory{uow: &fakeUow{threads: repo}})
}

func TestResolveCreatesThreadWithoutRef(t *testing.T) {
	repo := newFakeThreadRepo()
	r := newResolverWithRepo(repo)
	caller := uuid.New()

	res, err := r.Resolve(context.Background(), caller, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !res.IsNewThread {
		t.Error("IsNewThread = false for a fresh thread")
	}
	if res.Thread.UserId != caller {
		t.Errorf("Owner = %s, want caller", res.Thread.UserId)
	}
	if res.Thread.Title != constant.ThreadPlaceholderTitle {
		t.Errorf("Title = %q, want placeholder", res.Thread.Title)
	}
	if res.Thread.TitleFinalized {
		t.Error("New thread must start with title_finalized = false")
	}
}

func TestResolveResumesOwnedThread(t *testing.T) {
	repo := newFakeThreadRepo()
	r := newResolverWithRepo(repo)
	caller := uuid.New()

	first, err := r.Resolve(context.Background(), caller, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	second, err := r.Resolve(context.Background(), caller, &first.Thread.Id)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if second.IsNewThread {
		t.Error("IsNewThread = true when resuming")
	}
	if second.Thread.Id != first.Thread.Id {
		t.Errorf("Resumed thread %s, want %s", second.Thread.Id, first.Thread.Id)
	}
	if repo.created != 1 {
		t.Errorf("Created %d threads, want 1", repo.created)
	}
}

func TestResolveRejectsForeignThread(t *testing.T) {
	repo := newFakeThreadRepo()
	r := newResolverWithRepo(repo)
	owner := uuid.New()
	intruder := uuid.New()

	owned, err := r.Resolve(context.Background(), owner, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	_, err = r.Resolve(context.Background(), intruder, &owned.Thread.Id)
	if !errors.Is(err, ErrOwnership) {
		t.Fatalf("err = %v, want ErrOwnership", err)
	}
	if repo.created != 1 {
		t.Errorf("Foreign ref must not create a thread, created = %d", repo.created)
	}
}

func TestResolveUnknownThread(t *testing.T) {
	r := newResolverWithRepo(newFakeThreadRepo())
	missing := uuid.New()

	_, err := r.Resolve(context.Background(), uuid.New(), &missing)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveGuestAlwaysGetsFreshThread(t *testing.T) {
	// The guest identity is shared; honoring a ref would let one anonymous
	// caller read another's conversation.
	repo := newFakeThreadRepo()
	r := newResolverWithRepo(repo)

	first, err := r.Resolve(context.Background(), constant.GuestUserId, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	second, err := r.Resolve(context.Background(), constant.GuestUserId, &first.Thread.Id)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !second.IsNewThread {
		t.Error("Guest ref must be ignored in favor of a fresh thread")
	}
	if second.Thread.Id == first.Thread.Id {
		t.Error("Guest resumed an existing thread")
	}
}

func TestCheckAccess(t *testing.T) {
	repo := newFakeThreadRepo()
	r := newResolverWithRepo(repo)
	owner := uuid.New()

	owned, err := r.Resolve(context.Background(), owner, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	tests := []struct {
		name     string
		caller   uuid.UUID
		threadId uuid.UUID
		want     error
	}{
		{"owner passes", owner, owned.Thread.Id, nil},
		{"foreign caller rejected", uuid.New(), owned.Thread.Id, ErrOwnership},
		{"unknown thread", owner, uuid.New(), ErrNotFound},
		{"guest ref ignored", constant.GuestUserId, owned.Thread.Id, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.CheckAccess(context.Background(), tt.caller, tt.threadId)
			if !errors.Is(err, tt.want) {
				t.Errorf("CheckAccess = %v, want %v", err, tt.want)
			}
		})
	}

	if repo.created != 1 {
		t.Errorf("CheckAccess must never create threads, created = %d", repo.created)
	}
}

func TestIsGuest(t *testing.T) {
	if !IsGuest(constant.GuestUserId) {
		t.Error("IsGuest(guest) = false")
	}
	if IsGuest(uuid.New()) {
		t.Error("IsGuest(random) = true")
	}
}
