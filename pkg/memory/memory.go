// Package memory keeps the conversation history for the life of the process.
package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role is who spoke a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the conversation history.
type Turn struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTurn stamps a turn with a fresh ID and the current time.
func NewTurn(role Role, content string) Turn {
	return Turn{ID: uuid.New(), Role: role, Content: content, CreatedAt: time.Now()}
}

// Memory is an append-only history store.
type Memory interface {
	// Append adds turns in order.
	Append(ctx context.Context, turns ...Turn) error
	// Turns returns every turn, oldest first.
	Turns(ctx context.Context) ([]Turn, error)
	// Recent returns at most n of the newest turns, oldest first.
	Recent(ctx context.Context, n int) ([]Turn, error)
}
