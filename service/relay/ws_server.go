package relay

import (
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"chatrelay/logger"
	"chatrelay/tools/errs"
	"chatrelay/tools/ids"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and runs the session until the socket dies.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade error: %v", err)
		return
	}

	client := NewClient(ids.GenerateString(), ws, s.opts.SendQueueSize)
	client.Limiter = rate.NewLimiter(rate.Limit(s.opts.MessageRate), s.opts.MessageBurst)
	client.joinTimer = time.AfterFunc(s.opts.JoinTimeout, func() {
		// the writer drains the queue and sends the close frame; closing
		// the socket here directly would race the error frame out
		if client.expire(BuildError("join timeout")) {
			logger.Debugf("[ws] join timeout conn=%s", client.ConnID)
		}
	})

	go s.writePump(client)
	s.readPump(client)
}

func (s *Server) readPump(c *Client) {
	defer s.Teardown(c)
	defer c.CloseWS()

	c.WS.SetReadLimit(s.opts.ReadLimit)
	_ = c.WS.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	c.WS.SetPongHandler(func(string) error {
		return c.WS.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		mt, data, err := c.WS.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Debugf("[ws] peer closed conn=%s err=%v", c.ConnID, err)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s err=%v", c.ConnID, err)
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", c.ConnID, err)
			}
			break
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.handleFrame(c, data)
	}
}

// handleFrame parses and dispatches one inbound frame. Every failure is scoped
// to this frame: the client gets an error frame and the connection stays open.
func (s *Server) handleFrame(c *Client, data []byte) {
	f, err := ParseFrame(data)
	if err != nil {
		sample := data
		if len(sample) > 256 {
			sample = sample[:256]
		}
		logger.Infof("[ws] bad frame conn=%s err=%v sample=%q", c.ConnID, err, sample)
		c.Enqueue(BuildError("malformed message"))
		return
	}

	if f.Type != TypeJoin && !c.Joined() {
		c.Enqueue(BuildError(errs.ErrNotJoined.Msg))
		return
	}
	if f.Type == TypeMessage && c.Limiter != nil && !c.Limiter.Allow() {
		c.Enqueue(BuildError(errs.ErrRateLimited.Msg))
		return
	}

	if err := s.disp.Dispatch(&Context{S: s}, f, c); err != nil {
		logger.Infof("[ws] handle %s conn=%s: %v", f.Type, c.ConnID, err)
		c.Enqueue(BuildError(clientMessage(err)))
	}
}

// clientMessage keeps internal detail out of error frames.
func clientMessage(err error) string {
	var ce *errs.CodeError
	if stderrors.As(err, &ce) {
		return ce.Msg
	}
	return "internal error"
}

func (s *Server) writePump(c *Client) {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer ticker.Stop()
	defer c.CloseWS()

	for {
		select {
		case payload := <-c.Send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.WS.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := c.WS.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			// flush whatever is already queued, then say goodbye
			for {
				select {
				case payload := <-c.Send:
					_ = c.WS.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
					if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
						return
					}
				default:
					_ = c.WS.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}
