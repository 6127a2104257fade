// Package memory keeps conversations and messages in process memory.
// It backs STORE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"social-backend/internal/models"
	"social-backend/internal/store"
)

type ConversationStore struct {
	mu     sync.RWMutex
	byID   map[string]*models.Conversation
	byPair map[string]string
	now    func() time.Time
	last   time.Time
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		byID:   make(map[string]*models.Conversation),
		byPair: make(map[string]string),
		now:    time.Now,
	}
}

var _ store.ConversationStore = (*ConversationStore)(nil)

func (s *ConversationStore) FindByParticipants(_ context.Context, a, b string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPair[models.PairKey(a, b)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneConversation(s.byID[id]), nil
}

func (s *ConversationStore) FindByID(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (s *ConversationStore) ListByParticipant(_ context.Context, userID string) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Conversation, 0)
	for _, conv := range s.byID {
		if conv.HasParticipant(userID) {
			out = append(out, *cloneConversation(conv))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *ConversationStore) Insert(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := conv.PairKey()
	if _, exists := s.byPair[key]; exists {
		return store.ErrConflict
	}
	if _, exists := s.byID[conv.ID]; exists {
		return store.ErrConflict
	}
	s.byID[conv.ID] = cloneConversation(conv)
	s.byPair[key] = conv.ID
	if conv.UpdatedAt.After(s.last) {
		s.last = conv.UpdatedAt
	}
	return nil
}

func (s *ConversationStore) Update(_ context.Context, id string, upd store.ConversationUpdate) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if upd.SetLastMessage {
		if upd.LastMessage == nil {
			conv.LastMessage = nil
		} else {
			lm := *upd.LastMessage
			conv.LastMessage = &lm
		}
	}
	if upd.Gated != nil {
		conv.Gated = *upd.Gated
	}
	if upd.AwaitingFirstContact != nil {
		conv.AwaitingFirstContact = *upd.AwaitingFirstContact
	}
	if upd.PendingFirstMessage != nil {
		conv.PendingFirstMessage = *upd.PendingFirstMessage
	}
	conv.UpdatedAt = s.tick()
	return cloneConversation(conv), nil
}

func (s *ConversationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.byPair, conv.PairKey())
	delete(s.byID, id)
	return nil
}

// tick keeps UpdatedAt strictly increasing across the store so recency
// ordering is stable even when the clock does not advance between writes.
// Callers hold s.mu.
func (s *ConversationStore) tick() time.Time {
	now := s.now()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

type MessageStore struct {
	mu     sync.RWMutex
	byID   map[string]*models.Message
	byConv map[string][]string // conversationID -> message ids in insertion order
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		byID:   make(map[string]*models.Message),
		byConv: make(map[string][]string),
	}
}

var _ store.MessageStore = (*MessageStore)(nil)

func (s *MessageStore) Insert(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[msg.ID]; exists {
		return store.ErrConflict
	}
	cp := *msg
	s.byID[msg.ID] = &cp
	s.byConv[msg.ConversationID] = append(s.byConv[msg.ConversationID], msg.ID)
	return nil
}

func (s *MessageStore) FindByID(_ context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (s *MessageStore) ListByConversation(_ context.Context, conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byConv[conversationID]
	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.byID[id])
	}
	return out, nil
}

func (s *MessageStore) Latest(_ context.Context, conversationID string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byConv[conversationID]
	if len(ids) == 0 {
		return nil, store.ErrNotFound
	}
	cp := *s.byID[ids[len(ids)-1]]
	return &cp, nil
}

func (s *MessageStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	ids := s.byConv[msg.ConversationID]
	for i, mid := range ids {
		if mid == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.byConv, msg.ConversationID)
	} else {
		s.byConv[msg.ConversationID] = ids
	}
	delete(s.byID, id)
	return nil
}

func (s *MessageStore) DeleteByConversation(_ context.Context, conversationID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byConv[conversationID]
	for _, id := range ids {
		delete(s.byID, id)
	}
	delete(s.byConv, conversationID)
	return int64(len(ids)), nil
}

// New returns both in-memory stores as a store.Stores bundle.
func New() store.Stores {
	return store.Stores{
		Conversations: NewConversationStore(),
		Messages:      NewMessageStore(),
	}
}

func cloneConversation(c *models.Conversation) *models.Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	return &cp
}
