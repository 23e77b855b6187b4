package relay

import (
	"context"
	"time"

	"chatrelay/logger"
	"chatrelay/service/storage"
	"chatrelay/tools/safe"
)

// Options tunes one relay node. Zero values fall back to sane defaults.
type Options struct {
	SendQueueSize int
	ReadLimit     int64
	WriteWait     time.Duration
	PongWait      time.Duration
	PingPeriod    time.Duration

	JoinTimeout  time.Duration
	MessageRate  float64
	MessageBurst int

	FanoutWorkers int
	FanoutQueue   int
}

func (o *Options) norm() {
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 256
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32 * 1024
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = 30 * time.Second
	}
	if o.MessageRate <= 0 {
		o.MessageRate = 10
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 20
	}
}

// Server owns all relay state: the connection registry, the conversation
// membership table, the tenant agent directory, the fan-out pool and the
// persistence bridge. Nothing lives at package level; tests construct as many
// servers as they like.
type Server struct {
	opts Options

	reg    *Registry
	rooms  *Rooms
	agents *Directory
	fanout *Fanout
	disp   *Dispatcher

	bridge   *storage.Bridge
	presence *storage.Presence
}

func NewServer(opts Options, bridge *storage.Bridge, presence *storage.Presence) *Server {
	opts.norm()
	return &Server{
		opts:     opts,
		reg:      NewRegistry(),
		rooms:    NewRooms(),
		agents:   NewDirectory(),
		fanout:   NewFanout(opts.FanoutWorkers, opts.FanoutQueue),
		disp:     NewDispatcher(),
		bridge:   bridge,
		presence: presence,
	}
}

func (s *Server) Registry() *Registry         { return s.reg }
func (s *Server) Rooms() *Rooms               { return s.rooms }
func (s *Server) Agents() *Directory          { return s.agents }
func (s *Server) Fanout() *Fanout             { return s.fanout }
func (s *Server) Disp() *Dispatcher           { return s.disp }
func (s *Server) Bridge() *storage.Bridge     { return s.bridge }
func (s *Server) Presence() *storage.Presence { return s.presence }

// Clients resolves identities to live connections, skipping any that are
// gone. Closed-but-not-yet-torn-down sockets are skipped at enqueue time.
func (s *Server) Clients(ids []string) []*Client {
	if len(ids) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(ids))
	for _, id := range ids {
		if c := s.reg.Get(id); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Teardown removes the client from every table it may occupy. It is
// unconditional and idempotent: it runs for sockets that never joined, and a
// second call is a no-op.
func (s *Server) Teardown(c *Client) {
	if !c.markClosed() {
		return
	}
	if c.ID == "" {
		return // closed before join ever completed
	}
	s.reg.Unregister(c.ID, c)
	if c.ConversationID != "" {
		s.rooms.Leave(c.ConversationID, c.ID)
	}
	if c.Role == RoleAgent && c.CompanyID != "" {
		s.agents.Remove(c.CompanyID, c.ID)
		if s.presence != nil {
			companyID, agentID := c.CompanyID, c.ID
			safe.Go(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := s.presence.MarkOffline(ctx, companyID, agentID); err != nil {
					logger.Debugf("[relay] presence offline %s/%s: %v", companyID, agentID, err)
				}
			})
		}
	}
}
