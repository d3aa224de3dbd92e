package users

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ContextKey string

const IdentityKey ContextKey = "identity"

type User struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Username  string    `db:"username" json:"username"`
	Role      Role      `db:"role" json:"role"`
	Elo       int       `db:"elo" json:"elo"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Identity is the acting user as resolved from a bearer credential.
type Identity struct {
	ID   uuid.UUID
	Role Role
}

func (i Identity) Can(c Capability) bool {
	return i.Role.Can(c)
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(Identity)
	return id, ok
}
