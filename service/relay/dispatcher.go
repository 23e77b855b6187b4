package relay

import (
	"chatrelay/tools/errs"
)

// Handler processes one inbound frame type.
type Handler interface {
	Type() string
	Handle(ctx *Context, f *Frame, c *Client) error
}

// Context hands the relay state to handlers.
type Context struct {
	S *Server
}

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Type()] = h }

// RegisterAs binds a handler under an extra type tag; used by the signaling
// handler which serves offer, answer and ice-candidate alike.
func (d *Dispatcher) RegisterAs(t string, h Handler) { d.handlers[t] = h }

func (d *Dispatcher) Dispatch(ctx *Context, f *Frame, c *Client) error {
	h, ok := d.handlers[f.Type]
	if !ok {
		return errs.ErrUnknownType.WithDetail(f.Type)
	}
	return h.Handle(ctx, f, c)
}
