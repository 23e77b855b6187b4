package relay

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatrelay/logger"
)

// AgentPresence is one row of the presence endpoint: live means the agent has
// a socket on this node, status comes from the redis mirror when available.
type AgentPresence struct {
	AgentID string `json:"agentId"`
	Status  string `json:"status"`
	Live    bool   `json:"live"`
}

// HandlePresence reports the currently-online agents of a tenant. This is a
// read-only view for the CRM UI; fan-out never goes through it.
func (s *Server) HandlePresence(c *gin.Context) {
	companyID := c.Param("companyId")

	mirrored := map[string]string{}
	if s.presence != nil {
		m, err := s.presence.AgentsOf(c.Request.Context(), companyID)
		if err != nil {
			logger.Warnf("[relay] presence lookup company=%s: %v", companyID, err)
		} else {
			mirrored = m
		}
	}

	out := make([]AgentPresence, 0)
	seen := make(map[string]struct{})
	for _, id := range s.agents.AgentsOf(companyID) {
		status := mirrored[id]
		if status == "" {
			status = "online"
		}
		out = append(out, AgentPresence{AgentID: id, Status: status, Live: true})
		seen[id] = struct{}{}
	}
	// keys still in the mirror but without a local socket (TTL not yet hit)
	for id, status := range mirrored {
		if _, ok := seen[id]; !ok {
			out = append(out, AgentPresence{AgentID: id, Status: status})
		}
	}

	c.JSON(http.StatusOK, gin.H{"companyId": companyID, "agents": out})
}
