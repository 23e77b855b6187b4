package handlers

import (
	"time"

	"github.com/google/uuid"

	"chatrelay/logger"
	"chatrelay/service/relay"
	"chatrelay/tools/decode"
	"chatrelay/tools/errs"
)

// JoinHandler binds an identity to the socket and registers it in the
// connection registry, the conversation membership table and, for agents, the
// tenant directory. Role is decided here once: an agentId means agent,
// anything else is a visitor.
type JoinHandler struct{}

func NewJoinHandler() relay.Handler { return &JoinHandler{} }

func (h *JoinHandler) Type() string { return relay.TypeJoin }

func (h *JoinHandler) Handle(ctx *relay.Context, f *relay.Frame, c *relay.Client) error {
	s := ctx.S
	if c.Joined() {
		return errs.ErrAlreadyJoined
	}

	data, err := decode.JSON[relay.JoinData](f.Data)
	if err != nil {
		return errs.ErrBadPayload.WithDetail(err.Error())
	}

	id := f.AgentID
	role := relay.RoleAgent
	if id == "" {
		role = relay.RoleVisitor
		id = f.VisitorID
	}
	if id == "" {
		// visitor with no declared identity gets a synthesized one
		id = "visitor-" + uuid.NewString()
	}

	c.ID = id
	c.Role = role
	c.CompanyID = f.CompanyID
	c.ConversationID = f.ConversationID
	if data.VisitorName != "" {
		c.Name = data.VisitorName
	}
	if !c.MarkJoined() {
		return nil // socket died while we were here
	}

	// Reused identity: the previous socket is told and closed, never kept
	// alongside the new one.
	if prev := s.Registry().Register(id, c); prev != nil {
		prev.Enqueue(relay.BuildError(errs.ErrReplaced.Msg))
		// Teardown stops prev's writer, which flushes the error frame and
		// closes the socket on its way out.
		s.Teardown(prev)
	}

	if f.ConversationID != "" {
		s.Rooms().Join(f.ConversationID, id)
	}

	switch role {
	case relay.RoleAgent:
		if f.CompanyID != "" {
			s.Agents().Add(f.CompanyID, id)
			mirrorOnline(s, f.CompanyID, id, "online")
		}
	case relay.RoleVisitor:
		if f.ConversationID != "" && f.CompanyID != "" {
			agents := s.Clients(s.Agents().AgentsOf(f.CompanyID))
			s.Fanout().Broadcast(agents,
				relay.BuildNewVisitor(f.ConversationID, data.VisitorName, data.VisitorEmail, time.Now().UTC()))
		}
	}

	c.Enqueue(relay.BuildJoined(f.ConversationID, id))
	logger.Infof("[relay] joined id=%s role=%s company=%s conv=%s",
		id, role, f.CompanyID, f.ConversationID)
	return nil
}
