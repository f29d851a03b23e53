package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/goldvault/support-messaging/internal/domain"
)

// Envelope type identifiers. Inbound and outbound frames share one tagged
// JSON shape; unknown fields are ignored so clients can evolve ahead of the
// server.
const (
	TypeAuthenticate  = "authenticate"
	TypeAuthenticated = "authenticated"
	TypeChatMessage   = "chat_message"
	TypeSubscribe     = "subscribe"
	TypeSubscribed    = "subscribed"
	TypeUnsubscribe   = "unsubscribe"
	TypeUnsubscribed  = "unsubscribed"
	TypeTyping        = "typing"
	TypeError         = "error"
)

// Envelope is the inbound frame. Fields beyond Type are populated per type.
type Envelope struct {
	Type      string  `json:"type"`
	Token     string  `json:"token,omitempty"`
	UserID    *string `json:"userId,omitempty"`
	IsAdmin   bool    `json:"isAdmin,omitempty"`
	Message   string  `json:"message,omitempty"`
	SessionID string  `json:"sessionId,omitempty"`
}

type authenticatedFrame struct {
	Type    string  `json:"type"`
	UserID  *string `json:"userId,omitempty"`
	IsAdmin bool    `json:"isAdmin"`
}

type ackFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
}

type typingFrame struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	IsCustomer bool   `json:"isCustomer"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MessageFrame is the outbound transcript entry frame.
type MessageFrame struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	Message    string    `json:"message"`
	IsCustomer bool      `json:"isCustomer"`
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"sessionId"`
}

func encodeAuthenticated(userID *string, isAdmin bool) []byte {
	payload, _ := json.Marshal(authenticatedFrame{Type: TypeAuthenticated, UserID: userID, IsAdmin: isAdmin})
	return payload
}

func encodeAck(frameType, sessionID string) []byte {
	payload, _ := json.Marshal(ackFrame{Type: frameType, SessionID: sessionID})
	return payload
}

func encodeTyping(sessionID string, isCustomer bool) []byte {
	payload, _ := json.Marshal(typingFrame{Type: TypeTyping, SessionID: sessionID, IsCustomer: isCustomer})
	return payload
}

func encodeError(message string) []byte {
	payload, _ := json.Marshal(errorFrame{Type: TypeError, Message: message})
	return payload
}

// encodeGreeting synthesizes a courtesy message frame. It is never
// persisted, so the id is minted here and no sessionId is attached.
func encodeGreeting(text string) []byte {
	payload, _ := json.Marshal(MessageFrame{
		Type:      TypeChatMessage,
		ID:        uuid.NewString(),
		Message:   text,
		Timestamp: time.Now(),
	})
	return payload
}

// EncodeMessage renders a persisted message as the wire frame. SessionID
// carries the conversation id the subscriber used, so ticket-only
// conversations echo the ticket id there.
func EncodeMessage(msg *domain.Message, conversationID string) []byte {
	payload, _ := json.Marshal(MessageFrame{
		Type:       TypeChatMessage,
		ID:         msg.ID,
		Message:    msg.Body,
		IsCustomer: msg.IsCustomer,
		Timestamp:  msg.CreatedAt,
		SessionID:  conversationID,
	})
	return payload
}
