package session

import "github.com/rs/zerolog"

// ZerologPublisher emits session lifecycle events as structured log lines.
// The daemon installs one; libraries and tests use the no-op or in-memory
// publishers instead.
type ZerologPublisher struct {
	log zerolog.Logger
}

func NewZerologPublisher(log zerolog.Logger) *ZerologPublisher {
	return &ZerologPublisher{log: log}
}

func (p *ZerologPublisher) Publish(e Event) {
	ev := p.log.Info().Str("event", e.Name).Int("slot", e.Slot)
	if e.Network != "" {
		ev = ev.Str("network", e.Network)
	}
	for k, v := range e.Fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(e.Name)
}
