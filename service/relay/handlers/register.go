package handlers

import (
	"chatrelay/service/relay"
)

// RegisterAll wires every frame handler into the server's dispatcher.
func RegisterAll(s *relay.Server) {
	d := s.Disp()
	d.Register(NewJoinHandler())
	d.Register(NewMessageHandler())
	d.Register(NewTypingHandler())
	d.Register(NewAgentStatusHandler())

	sig := NewSignalHandler()
	d.Register(sig)
	d.RegisterAs(relay.TypeAnswer, sig)
	d.RegisterAs(relay.TypeICECandidate, sig)
}
