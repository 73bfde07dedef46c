package thread

import (
	"context"
	"errors"
	"time"

	"persona-chat-be/internal/constant"
	"persona-chat-be/internal/entity"
	"persona-chat-be/internal/repository/specification"
	"persona-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ErrOwnership is returned when a caller references a thread owned by a
// different identity. This is an access-control boundary: the reference is
// rejected, never silently reassigned.
var ErrOwnership = errors.New("thread access denied")

// ErrNotFound is returned when a referenced thread does not exist.
var ErrNotFound = errors.New("thread not found")

// Resolution is the outcome of resolving a caller against a thread reference.
type Resolution struct {
	Thread      *entity.Thread
	IsNewThread bool
}

// Resolver decides, per request, which thread a caller speaks on and whether
// one must be lazily created first. Ownership lookups are cached briefly so
// the streaming endpoint does not re-read the thread row it just resolved.
type Resolver struct {
	uowFactory unitofwork.RepositoryFactory
	owners     *cache.Cache
}

func NewResolver(uowFactory unitofwork.RepositoryFactory) *Resolver {
	return &Resolver{
		uowFactory: uowFactory,
		owners:     cache.New(5*time.Minute, 10*time.Minute),
	}
}

// IsGuest reports whether the caller identity is the reserved guest identity.
func IsGuest(callerId uuid.UUID) bool {
	return callerId == constant.GuestUserId
}

// Resolve maps (caller, optional thread ref) onto a concrete thread.
//   - Registered caller with an owned thread ref: used as-is.
//   - Registered caller without a ref, or any anonymous caller: a new thread
//     is created with a placeholder title.
//   - A ref owned by another identity fails with ErrOwnership before any
//     generation work happens.
func (r *Resolver) Resolve(ctx context.Context, callerId uuid.UUID, threadRef *uuid.UUID) (*Resolution, error) {
	// Anonymous callers never resume server-side threads; the guest identity
	// is shared, so honoring a ref would leak conversations between guests.
	if threadRef == nil || IsGuest(callerId) {
		created, err := r.create(ctx, callerId)
		if err != nil {
			return nil, err
		}
		return &Resolution{Thread: created, IsNewThread: true}, nil
	}

	existing, err := r.lookupOwned(ctx, callerId, *threadRef)
	if err != nil {
		return nil, err
	}
	return &Resolution{Thread: existing, IsNewThread: false}, nil
}

// CheckAccess verifies that callerId may use threadId, without resolving or
// creating anything. Guest refs pass: they are ignored at resolve time in
// favor of a fresh thread, not rejected.
func (r *Resolver) CheckAccess(ctx context.Context, callerId uuid.UUID, threadId uuid.UUID) error {
	if IsGuest(callerId) {
		return nil
	}
	_, err := r.lookupOwned(ctx, callerId, threadId)
	return err
}

func (r *Resolver) lookupOwned(ctx context.Context, callerId uuid.UUID, threadId uuid.UUID) (*entity.Thread, error) {
	if ownerId, found := r.owners.Get(threadId.String()); found {
		if ownerId.(uuid.UUID) != callerId {
			return nil, ErrOwnership
		}
	}

	uow := r.uowFactory.NewUnitOfWork(ctx)
	existing, err := uow.ThreadRepository().FindOne(ctx, specification.ByID{ID: threadId})
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	if existing.UserId != callerId {
		return nil, ErrOwnership
	}

	r.owners.Set(existing.Id.String(), existing.UserId, cache.DefaultExpiration)
	return existing, nil
}

func (r *Resolver) create(ctx context.Context, callerId uuid.UUID) (*entity.Thread, error) {
	uow := r.uowFactory.NewUnitOfWork(ctx)

	created := &entity.Thread{
		Id:             uuid.New(),
		UserId:         callerId,
		Title:          constant.ThreadPlaceholderTitle,
		TitleFinalized: false,
		CreatedAt:      time.Now(),
	}
	if err := uow.ThreadRepository().Create(ctx, created); err != nil {
		return nil, err
	}

	r.owners.Set(created.Id.String(), created.UserId, cache.DefaultExpiration)
	return created, nil
}
