package handlers

import (
	"context"
	"time"

	"chatrelay/logger"
	"chatrelay/service/relay"
	"chatrelay/tools/decode"
	"chatrelay/tools/errs"
	"chatrelay/tools/safe"
)

// AgentStatusHandler broadcasts a presence heartbeat to every agent of the
// tenant, sender included, and refreshes the redis presence mirror.
type AgentStatusHandler struct{}

func NewAgentStatusHandler() relay.Handler { return &AgentStatusHandler{} }

func (h *AgentStatusHandler) Type() string { return relay.TypeAgentStatus }

func (h *AgentStatusHandler) Handle(ctx *relay.Context, f *relay.Frame, c *relay.Client) error {
	s := ctx.S
	if c.Role != relay.RoleAgent {
		return errs.ErrNotAgent
	}

	data, err := decode.JSON[relay.StatusData](f.Data)
	if err != nil {
		return errs.ErrBadPayload.WithDetail(err.Error())
	}
	status := data.Status
	if status == "" {
		status = "online"
	}

	agents := s.Clients(s.Agents().AgentsOf(c.CompanyID))
	s.Fanout().Broadcast(agents, relay.BuildAgentStatusUpdate(c.ID, status, time.Now().UTC()))

	mirrorOnline(s, c.CompanyID, c.ID, status)
	return nil
}

// mirrorOnline refreshes the presence mirror off the hot path.
func mirrorOnline(s *relay.Server, companyID, agentID, status string) {
	p := s.Presence()
	if p == nil || companyID == "" {
		return
	}
	safe.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := p.MarkOnline(ctx, companyID, agentID, status); err != nil {
			logger.Debugf("[relay] presence online %s/%s: %v", companyID, agentID, err)
		}
	})
}
