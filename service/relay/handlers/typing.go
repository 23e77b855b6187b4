package handlers

import (
	"chatrelay/service/relay"
	"chatrelay/tools/errs"
)

// TypingHandler relays a typing indicator to the other conversation members.
// Indicators are never persisted.
type TypingHandler struct{}

func NewTypingHandler() relay.Handler { return &TypingHandler{} }

func (h *TypingHandler) Type() string { return relay.TypeTyping }

func (h *TypingHandler) Handle(ctx *relay.Context, f *relay.Frame, c *relay.Client) error {
	s := ctx.S
	conv := c.ConversationID
	if conv == "" {
		return errs.ErrNoConversation
	}

	senderType := f.SenderType
	if senderType == "" {
		senderType = c.Role.String()
	}
	senderName := f.SenderName
	if senderName == "" {
		senderName = c.Name
	}

	others := make([]string, 0)
	for _, id := range s.Rooms().Members(conv) {
		if id != c.ID {
			others = append(others, id)
		}
	}
	s.Fanout().Broadcast(s.Clients(others), relay.BuildTyping(conv, senderName, senderType))
	return nil
}
