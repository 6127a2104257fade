package models

// Realtime event names.
const (
	EventNewConversation     = "newConversation"
	EventNewMessage          = "newMessage"
	EventMessageDeleted      = "messageDeleted"
	EventConversationDeleted = "conversationDeleted"
	EventConversationAllowed = "conversationAllowed"
	EventGetOnlineUsers      = "getOnlineUsers"
)

// WSEvent is the frame pushed over the websocket, and the shape of inbound frames.
type WSEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type NewConversationPayload struct {
	Conversation *Conversation `json:"conversation"`
	Message      *Message      `json:"message"`
	Sender       *DisplayInfo  `json:"sender,omitempty"`
}

type MessageDeletedPayload struct {
	MessageID      string       `json:"messageId"`
	ConversationID string       `json:"conversationId"`
	LastMessage    *LastMessage `json:"lastMessage"`
}

type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
	By             string `json:"by"`
}
