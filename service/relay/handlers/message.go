package handlers

import (
	"strings"
	"time"

	"chatrelay/service/relay"
	"chatrelay/service/storage"
	"chatrelay/tools/errs"
	"chatrelay/tools/ids"
)

// MessageHandler fans a chat message out to the other conversation members,
// queues the durable write and, for visitor messages, pokes the tenant's
// agents. Live delivery is queued before persistence is attempted and never
// waits on it.
type MessageHandler struct{}

func NewMessageHandler() relay.Handler { return &MessageHandler{} }

func (h *MessageHandler) Type() string { return relay.TypeMessage }

func (h *MessageHandler) Handle(ctx *relay.Context, f *relay.Frame, c *relay.Client) error {
	s := ctx.S
	conv := c.ConversationID
	if conv == "" {
		return errs.ErrNoConversation
	}
	body := f.Message
	if strings.TrimSpace(body) == "" {
		return errs.ErrEmptyMessage
	}

	senderType := f.SenderType
	if senderType == "" {
		senderType = c.Role.String()
	}
	senderName := f.SenderName
	if senderName == "" {
		senderName = c.Name
	}
	senderID := c.ID
	if senderType == "agent" && f.AgentID != "" {
		senderID = f.AgentID
	}

	msgID := ids.GenerateString()
	ts := time.Now().UTC()

	others := make([]string, 0)
	for _, id := range s.Rooms().Members(conv) {
		if id != c.ID {
			others = append(others, id)
		}
	}
	s.Fanout().Broadcast(s.Clients(others),
		relay.BuildMessage(conv, body, senderName, senderType, msgID, ts))

	s.Bridge().PersistAsync(&storage.MessageRecord{
		MessageID:      msgID,
		ConversationID: conv,
		SenderType:     senderType,
		SenderID:       senderID,
		SenderName:     senderName,
		Message:        body,
		MessageType:    "text",
		CreatedAt:      ts,
	})

	if senderType == "visitor" && c.CompanyID != "" {
		agents := s.Clients(s.Agents().AgentsOf(c.CompanyID))
		s.Fanout().Broadcast(agents, relay.BuildNewMessage(conv, body, senderName, ts))
	}
	return nil
}
