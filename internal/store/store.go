// Package store defines the persistence contracts of the messaging core.
package store

import (
	"context"
	"errors"

	"social-backend/internal/models"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a conversation already exists for the participant pair.
	ErrConflict = errors.New("store: conflict")
)

// ConversationUpdate is a field-level update. Nil pointers leave fields untouched;
// LastMessage is applied only when SetLastMessage is true (nil clears it).
// UpdatedAt is always bumped.
type ConversationUpdate struct {
	SetLastMessage       bool
	LastMessage          *models.LastMessage
	Gated                *bool
	AwaitingFirstContact *bool
	PendingFirstMessage  *bool
}

type ConversationStore interface {
	// FindByParticipants matches the unordered pair {a, b}.
	FindByParticipants(ctx context.Context, a, b string) (*models.Conversation, error)
	FindByID(ctx context.Context, id string) (*models.Conversation, error)
	// ListByParticipant returns the user's conversations, most recently updated first.
	ListByParticipant(ctx context.Context, userID string) ([]models.Conversation, error)
	Insert(ctx context.Context, conv *models.Conversation) error
	Update(ctx context.Context, id string, upd ConversationUpdate) (*models.Conversation, error)
	Delete(ctx context.Context, id string) error
}

type MessageStore interface {
	Insert(ctx context.Context, msg *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	// ListByConversation returns messages oldest first.
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	// Latest returns the newest message of the conversation or ErrNotFound.
	Latest(ctx context.Context, conversationID string) (*models.Message, error)
	Delete(ctx context.Context, id string) error
	DeleteByConversation(ctx context.Context, conversationID string) (int64, error)
}

// Stores bundles both stores of one backend.
type Stores struct {
	Conversations ConversationStore
	Messages      MessageStore
	// Close releases the backend, may be nil.
	Close func(ctx context.Context) error
}

// BoolPtr is a helper for ConversationUpdate fields.
func BoolPtr(v bool) *bool { return &v }
