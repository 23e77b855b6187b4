package handlers

import (
	"chatrelay/logger"
	"chatrelay/service/relay"
	"chatrelay/tools/decode"
	"chatrelay/tools/errs"
)

// SignalHandler relays offer/answer/ice-candidate frames verbatim to a single
// named target. An unreachable target is dropped silently; the sender gets
// neither an error nor an ack.
type SignalHandler struct{}

func NewSignalHandler() relay.Handler { return &SignalHandler{} }

func (h *SignalHandler) Type() string { return relay.TypeOffer }

func (h *SignalHandler) Handle(ctx *relay.Context, f *relay.Frame, c *relay.Client) error {
	data, err := decode.JSON[relay.SignalData](f.Data)
	if err != nil {
		return errs.ErrBadPayload.WithDetail(err.Error())
	}
	if data.TargetID == "" {
		return errs.ErrBadPayload.WithDetail("data.targetId required")
	}

	target := ctx.S.Registry().Get(data.TargetID)
	if target == nil {
		logger.Debugf("[relay] signal %s from=%s target=%s offline, dropped",
			f.Type, c.ID, data.TargetID)
		return nil
	}
	target.Enqueue(f.Raw())
	return nil
}
