package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

// Server to client notifications.
const (
	TypeCredentialCreated MessageType = "credential_created"
	TypeCredentialUpdated MessageType = "credential_updated"
	TypeCredentialDeleted MessageType = "credential_deleted"
	TypeVaultPurged       MessageType = "vault_purged"
	TypeLoginTokenBound   MessageType = "login_token_bound"
	TypeAck               MessageType = "ack"
	TypePong              MessageType = "pong"
)

// Client to server requests.
const (
	TypePing           MessageType = "ping"
	TypeBindLoginToken MessageType = "bind_login_token"
)

type Message struct {
	ID        string          `json:"id,omitempty"`
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// CredentialPayload carries only identifiers; devices refetch the encrypted
// record themselves.
type CredentialPayload struct {
	CredentialID string    `json:"credential_id"`
	Category     string    `json:"category,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type VaultPurgedPayload struct {
	Deleted int    `json:"deleted"`
	Reason  string `json:"reason"`
}

type LoginTokenBoundPayload struct {
	Partner string    `json:"partner"`
	BoundAt time.Time `json:"bound_at"`
}

type BindLoginTokenPayload struct {
	LoginToken string `json:"login_token"`
}

type AckPayload struct {
	MessageID string `json:"message_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
