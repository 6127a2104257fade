package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"social-backend/internal/identity"
	"social-backend/internal/models"
	"social-backend/internal/store"
	"social-backend/internal/utils"
)

// Notifier pushes events to a user's live connection, if any.
// It is satisfied by *presence.Registry.
type Notifier interface {
	EmitTo(userID, event string, payload interface{}) bool
}

// ChatService owns conversation gating, message persistence, the
// last-message summary and realtime fan-out.
//
// Writes are sequential and not transactional: a crash between inserting a
// message and updating the conversation summary leaves a stale summary until
// the next send or delete in that conversation.
type ChatService struct {
	conversations store.ConversationStore
	messages      store.MessageStore
	directory     identity.Directory
	notifier      Notifier

	now   func() time.Time
	newID func() string
}

func NewChatService(stores store.Stores, directory identity.Directory, notifier Notifier) *ChatService {
	return &ChatService{
		conversations: stores.Conversations,
		messages:      stores.Messages,
		directory:     directory,
		notifier:      notifier,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         newOrderedID,
	}
}

// newOrderedID returns a time-ordered UUIDv7 so ids sort like creation
// order, which the stores use to break created_at ties.
func newOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func validatePair(userID, otherID string) error {
	if strings.TrimSpace(otherID) == "" {
		return invalidArgument("Receiver is required")
	}
	if userID == otherID {
		return invalidArgument("You can't start a conversation with yourself")
	}
	return nil
}

// SendMessage delivers text from sender to receiver, creating the
// conversation on first contact.
func (s *ChatService) SendMessage(ctx context.Context, senderID, receiverID, text string) (*models.SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalidArgument("Message is required")
	}
	if err := validatePair(senderID, receiverID); err != nil {
		return nil, err
	}

	conv, err := s.conversations.FindByParticipants(ctx, senderID, receiverID)
	if errors.Is(err, store.ErrNotFound) {
		return s.startConversation(ctx, senderID, receiverID, text)
	}
	if err != nil {
		return nil, errors.Wrap(err, "resolve conversation")
	}
	return s.sendInConversation(ctx, conv, senderID, receiverID, text)
}

func (s *ChatService) newConversation(initiatorID, recipientID string) *models.Conversation {
	now := s.now()
	return &models.Conversation{
		ID:                   s.newID(),
		Participants:         []string{initiatorID, recipientID},
		Gated:                true,
		AwaitingFirstContact: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func (s *ChatService) startConversation(ctx context.Context, senderID, receiverID, text string) (*models.SendResult, error) {
	conv := s.newConversation(senderID, receiverID)
	if err := s.conversations.Insert(ctx, conv); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return nil, errors.Wrap(err, "create conversation")
		}
		// a concurrent request created the pair first
		existing, err := s.conversations.FindByParticipants(ctx, senderID, receiverID)
		if err != nil {
			return nil, errors.Wrap(err, "resolve conversation")
		}
		return s.sendInConversation(ctx, existing, senderID, receiverID, text)
	}

	return s.deliver(ctx, conv, senderID, receiverID, text, store.ConversationUpdate{}, true)
}

func (s *ChatService) sendInConversation(ctx context.Context, conv *models.Conversation, senderID, receiverID, text string) (*models.SendResult, error) {
	var upd store.ConversationUpdate
	firstContact := false

	if conv.Gated && senderID != conv.Initiator() {
		return nil, forbidden("This user hasn't allowed you to send messages yet")
	}
	if conv.PendingFirstMessage {
		// opened through get-or-create, this is the first message
		upd.PendingFirstMessage = store.BoolPtr(false)
		firstContact = conv.Gated && conv.AwaitingFirstContact
	} else if conv.Gated && conv.AwaitingFirstContact {
		upd.AwaitingFirstContact = store.BoolPtr(false)
	}

	return s.deliver(ctx, conv, senderID, receiverID, text, upd, firstContact)
}

// deliver persists the message, refreshes the summary and notifies the receiver.
func (s *ChatService) deliver(ctx context.Context, conv *models.Conversation, senderID, receiverID, text string,
	upd store.ConversationUpdate, firstContact bool) (*models.SendResult, error) {
	msg := &models.Message{
		ID:             s.newID(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      s.now(),
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, errors.Wrap(err, "persist message")
	}

	upd.SetLastMessage = true
	upd.LastMessage = &models.LastMessage{Text: text, SenderID: senderID}
	updated, err := s.conversations.Update(ctx, conv.ID, upd)
	if err != nil {
		return nil, errors.Wrap(err, "update conversation summary")
	}

	if firstContact {
		s.notifier.EmitTo(receiverID, models.EventNewConversation, models.NewConversationPayload{
			Conversation: updated,
			Message:      msg,
			Sender:       s.displayInfo(ctx, senderID),
		})
	} else {
		s.notifier.EmitTo(receiverID, models.EventNewMessage, msg)
	}

	log.Debug().
		Str("conversation", updated.ID).
		Str("sender", senderID).
		Bool("gated", updated.Gated).
		Bool("awaiting", updated.AwaitingFirstContact).
		Msg("message sent")

	return &models.SendResult{Message: msg, Conversation: updated, Allowed: !updated.Gated}, nil
}

// participantConversation loads a conversation the caller takes part in.
// Missing and foreign conversations are both reported as not found.
func (s *ChatService) participantConversation(ctx context.Context, conversationID, callerID string) (*models.Conversation, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Conversation not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load conversation")
	}
	if !conv.HasParticipant(callerID) {
		return nil, notFound("Conversation not found")
	}
	return conv, nil
}

// AllowChat lifts the gate. Allowing an open conversation is a no-op.
func (s *ChatService) AllowChat(ctx context.Context, conversationID, callerID string) (*models.Conversation, error) {
	conv, err := s.participantConversation(ctx, conversationID, callerID)
	if err != nil {
		return nil, err
	}
	if !conv.Gated {
		return conv, nil
	}

	updated, err := s.conversations.Update(ctx, conv.ID, store.ConversationUpdate{
		Gated:                store.BoolPtr(false),
		AwaitingFirstContact: store.BoolPtr(false),
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Conversation not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "allow conversation")
	}

	payload := models.ConversationPayload{ConversationID: updated.ID, By: callerID}
	for _, p := range updated.Participants {
		s.notifier.EmitTo(p, models.EventConversationAllowed, payload)
	}
	return updated, nil
}

// CanAllow reports whether the caller is the participant whose consent lifts the gate.
func (s *ChatService) CanAllow(ctx context.Context, conversationID, callerID string) (bool, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return false, notFound("Conversation not found")
	}
	if err != nil {
		return false, errors.Wrap(err, "load conversation")
	}
	return conv.HasParticipant(callerID) && conv.ConsentGiver() == callerID, nil
}

// DeleteMessage removes one of the caller's own messages and recomputes the
// conversation summary from what remains.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, callerID string) (*models.MessageDeletedPayload, error) {
	msg, err := s.messages.FindByID(ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Message not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load message")
	}
	if msg.SenderID != callerID {
		return nil, forbidden("You can't delete other users' messages")
	}

	if err := s.messages.Delete(ctx, msg.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("Message not found")
		}
		return nil, errors.Wrap(err, "delete message")
	}

	var summary *models.LastMessage
	latest, err := s.messages.Latest(ctx, msg.ConversationID)
	switch {
	case err == nil:
		summary = &models.LastMessage{Text: latest.Text, SenderID: latest.SenderID}
	case !errors.Is(err, store.ErrNotFound):
		return nil, errors.Wrap(err, "recompute summary")
	}

	payload := &models.MessageDeletedPayload{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		LastMessage:    summary,
	}

	conv, err := s.conversations.Update(ctx, msg.ConversationID, store.ConversationUpdate{
		SetLastMessage: true,
		LastMessage:    summary,
	})
	if errors.Is(err, store.ErrNotFound) {
		// orphaned message of a conversation deleted earlier
		return payload, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "update conversation summary")
	}

	for _, p := range conv.Participants {
		s.notifier.EmitTo(p, models.EventMessageDeleted, payload)
	}
	return payload, nil
}

// DeleteConversation removes the conversation and its messages.
func (s *ChatService) DeleteConversation(ctx context.Context, conversationID, callerID string) error {
	conv, err := s.participantConversation(ctx, conversationID, callerID)
	if err != nil {
		return err
	}

	if err := s.conversations.Delete(ctx, conv.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("Conversation not found")
		}
		return errors.Wrap(err, "delete conversation")
	}

	n, err := s.messages.DeleteByConversation(ctx, conv.ID)
	utils.LogError(err, "DeleteConversation messages")
	log.Debug().Str("conversation", conv.ID).Int64("messages", n).Msg("conversation deleted")

	s.notifier.EmitTo(conv.Other(callerID), models.EventConversationDeleted, models.ConversationPayload{
		ConversationID: conv.ID,
		By:             callerID,
	})
	return nil
}

// GetOrCreateConversation returns the pair's conversation, creating it gated
// with userA as initiator when none exists. The bool reports creation.
func (s *ChatService) GetOrCreateConversation(ctx context.Context, userA, userB string) (*models.Conversation, bool, error) {
	if err := validatePair(userA, userB); err != nil {
		return nil, false, err
	}

	conv, err := s.conversations.FindByParticipants(ctx, userA, userB)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, errors.Wrap(err, "resolve conversation")
	}

	conv = s.newConversation(userA, userB)
	conv.PendingFirstMessage = true
	if err := s.conversations.Insert(ctx, conv); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return nil, false, errors.Wrap(err, "create conversation")
		}
		existing, err := s.conversations.FindByParticipants(ctx, userA, userB)
		if err != nil {
			return nil, false, errors.Wrap(err, "resolve conversation")
		}
		return existing, false, nil
	}
	return conv, true, nil
}

// ListConversations returns the user's conversations, most recent first,
// each with the other participant's display info when available.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]models.ConversationItem, error) {
	convs, err := s.conversations.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}

	items := make([]models.ConversationItem, 0, len(convs))
	for _, conv := range convs {
		items = append(items, models.ConversationItem{
			Conversation: conv,
			OtherUser:    s.displayInfo(ctx, conv.Other(userID)),
		})
	}
	return items, nil
}

// ListMessages returns the conversation's messages, oldest first.
func (s *ChatService) ListMessages(ctx context.Context, conversationID, callerID string) (*models.MessageList, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Conversation not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load conversation")
	}
	if !conv.HasParticipant(callerID) {
		return nil, forbidden("You are not authorized to view these messages")
	}

	messages, err := s.messages.ListByConversation(ctx, conv.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}

	return &models.MessageList{
		ConversationID:       conv.ID,
		Messages:             messages,
		OtherUser:            s.displayInfo(ctx, conv.Other(callerID)),
		Gated:                conv.Gated,
		AwaitingFirstContact: conv.AwaitingFirstContact,
	}, nil
}

// displayInfo never fails; enrichment is best effort.
func (s *ChatService) displayInfo(ctx context.Context, userID string) *models.DisplayInfo {
	if s.directory == nil || userID == "" {
		return nil
	}
	info, err := s.directory.DisplayInfo(ctx, userID)
	if err != nil {
		if !errors.Is(err, identity.ErrUnknownUser) {
			utils.LogError(err, "DisplayInfo")
		}
		return nil
	}
	return info
}
