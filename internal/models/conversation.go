package models

import (
	"time"
)

// LastMessage is the denormalized summary of the newest message in a conversation.
type LastMessage struct {
	Text     string `json:"text" bson:"text"`
	SenderID string `json:"sender" bson:"sender_id"`
}

// Conversation is a two-party thread. Participants[0] started it,
// Participants[1] is the one whose consent lifts the gate.
type Conversation struct {
	ID                   string       `json:"_id"`
	Participants         []string     `json:"participants"`
	LastMessage          *LastMessage `json:"lastMessage,omitempty"`
	Gated                bool         `json:"gated"`
	AwaitingFirstContact bool         `json:"awaitingFirstContact"`
	// PendingFirstMessage is set on conversations opened without a message
	// and cleared by the first send.
	PendingFirstMessage bool      `json:"pendingFirstMessage"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// PairKey identifies the unordered participant pair {a, b}.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// PairKey of the conversation's participants.
func (c *Conversation) PairKey() string {
	if len(c.Participants) != 2 {
		return ""
	}
	return PairKey(c.Participants[0], c.Participants[1])
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Initiator is the participant who opened the conversation.
func (c *Conversation) Initiator() string {
	if len(c.Participants) == 0 {
		return ""
	}
	return c.Participants[0]
}

// ConsentGiver is the participant allowed to lift the gate.
func (c *Conversation) ConsentGiver() string {
	if len(c.Participants) < 2 {
		return ""
	}
	return c.Participants[1]
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// ConversationItem is one row of GET /api/chat/get/conversations
type ConversationItem struct {
	Conversation
	OtherUser *DisplayInfo `json:"otherUser,omitempty"`
}

// ConversationResponse is returned by get-or-create.
type ConversationResponse struct {
	ConversationID string `json:"conversationId"`
	IsNew          bool   `json:"isNew"`
}
