package relay

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Inbound frame types.
const (
	TypeJoin         = "join"
	TypeMessage      = "message"
	TypeTyping       = "typing"
	TypeAgentStatus  = "agent-status"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
)

// Outbound frame types.
const (
	TypeJoined            = "joined"
	TypeNewVisitor        = "new-visitor"
	TypeNewMessage        = "new-message"
	TypeAgentStatusUpdate = "agent-status-update"
	TypeError             = "error"
)

// Frame is the envelope of every inbound message. Data stays raw; each
// handler decodes the part it needs.
type Frame struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId,omitempty"`
	CompanyID      string          `json:"companyId,omitempty"`
	AgentID        string          `json:"agentId,omitempty"`
	VisitorID      string          `json:"visitorId,omitempty"`
	Message        string          `json:"message,omitempty"`
	SenderType     string          `json:"senderType,omitempty"`
	SenderName     string          `json:"senderName,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`

	raw []byte
}

// ParseFrame decodes an envelope and keeps the original bytes so direct
// signaling frames can be relayed verbatim.
func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrap(err, "unmarshal frame")
	}
	if f.Type == "" {
		return nil, errors.New("frame without type")
	}
	f.raw = raw
	return f, nil
}

// Raw returns the frame exactly as it arrived on the wire.
func (f *Frame) Raw() []byte { return f.raw }

// Per-frame data payloads.

type JoinData struct {
	VisitorName  string `json:"visitorName,omitempty"`
	VisitorEmail string `json:"visitorEmail,omitempty"`
}

type StatusData struct {
	Status string `json:"status,omitempty"`
}

type SignalData struct {
	TargetID string `json:"targetId"`
}

// ---- server-built frames ----

type JoinedFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
	ClientID       string `json:"clientId"`
}

type MessageFrame struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversationId"`
	Message        string    `json:"message"`
	SenderName     string    `json:"senderName"`
	SenderType     string    `json:"senderType"`
	MessageID      string    `json:"messageId"`
	Timestamp      time.Time `json:"timestamp"`
}

type TypingFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	SenderName     string `json:"senderName"`
	SenderType     string `json:"senderType"`
}

type NewVisitorFrame struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversationId"`
	VisitorName    string    `json:"visitorName,omitempty"`
	VisitorEmail   string    `json:"visitorEmail,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type NewMessageFrame struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversationId"`
	Message        string    `json:"message"`
	SenderName     string    `json:"senderName"`
	Timestamp      time.Time `json:"timestamp"`
}

type AgentStatusUpdateFrame struct {
	Type      string    `json:"type"`
	AgentID   string    `json:"agentId"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func BuildJoined(conversationID, clientID string) []byte {
	return mustJSON(JoinedFrame{Type: TypeJoined, ConversationID: conversationID, ClientID: clientID})
}

func BuildMessage(conversationID, body, senderName, senderType, messageID string, ts time.Time) []byte {
	return mustJSON(MessageFrame{
		Type:           TypeMessage,
		ConversationID: conversationID,
		Message:        body,
		SenderName:     senderName,
		SenderType:     senderType,
		MessageID:      messageID,
		Timestamp:      ts,
	})
}

func BuildTyping(conversationID, senderName, senderType string) []byte {
	return mustJSON(TypingFrame{
		Type:           TypeTyping,
		ConversationID: conversationID,
		SenderName:     senderName,
		SenderType:     senderType,
	})
}

func BuildNewVisitor(conversationID, visitorName, visitorEmail string, ts time.Time) []byte {
	return mustJSON(NewVisitorFrame{
		Type:           TypeNewVisitor,
		ConversationID: conversationID,
		VisitorName:    visitorName,
		VisitorEmail:   visitorEmail,
		Timestamp:      ts,
	})
}

func BuildNewMessage(conversationID, body, senderName string, ts time.Time) []byte {
	return mustJSON(NewMessageFrame{
		Type:           TypeNewMessage,
		ConversationID: conversationID,
		Message:        body,
		SenderName:     senderName,
		Timestamp:      ts,
	})
}

func BuildAgentStatusUpdate(agentID, status string, ts time.Time) []byte {
	return mustJSON(AgentStatusUpdateFrame{
		Type:      TypeAgentStatusUpdate,
		AgentID:   agentID,
		Status:    status,
		Timestamp: ts,
	})
}

func BuildError(msg string) []byte {
	return mustJSON(ErrorFrame{Type: TypeError, Message: msg})
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// server-built frames are plain structs; this cannot fail at runtime
		panic(err)
	}
	return b
}
