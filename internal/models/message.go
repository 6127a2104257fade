package models

import "time"

type Message struct {
	ID             string    `json:"_id" bson:"_id"`
	ConversationID string    `json:"conversation" bson:"conversation_id"`
	SenderID       string    `json:"sender" bson:"sender_id"`
	Text           string    `json:"text" bson:"text"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
}

// SendMessageRequest is the body of POST /api/chat/send/:id
type SendMessageRequest struct {
	Message string `json:"message" form:"message"`
}

// SendResult is returned by a successful send.
// Allowed reports whether the conversation is open after the send.
type SendResult struct {
	Message      *Message      `json:"message"`
	Conversation *Conversation `json:"conversation"`
	Allowed      bool          `json:"allowed"`
}

// SentMessage is the data of a successful send: the persisted message with
// allowed telling the sender whether the receiver can answer yet.
type SentMessage struct {
	Message
	Allowed bool `json:"allowed"`
}

// MessageList is the response of GET /api/chat/get/messages/:id
type MessageList struct {
	ConversationID       string       `json:"conversationId"`
	Messages             []Message    `json:"messages"`
	OtherUser            *DisplayInfo `json:"otherUser,omitempty"`
	Gated                bool         `json:"gated"`
	AwaitingFirstContact bool         `json:"awaitingFirstContact"`
}
