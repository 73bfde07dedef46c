package entity

import (
	"time"

	"github.com/google/uuid"
)

// Thread is one durable conversation. Owned by the identity that created it;
// the owner may be the reserved guest identity.
type Thread struct {
	Id             uuid.UUID
	UserId         uuid.UUID
	Title          string
	TitleFinalized bool
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
