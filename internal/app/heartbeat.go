package app

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Heartbeat periodically re-broadcasts the authoritative state of
// every room that has members and selected media. Clients that
// drifted or missed an event converge on the next tick; there is no
// other repair mechanism in the protocol.
type Heartbeat struct {
	Orch     *Orchestrator
	Interval time.Duration
	Clock    clockwork.Clock
}

// Run blocks until ctx is cancelled. Started once at process startup.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := h.Clock.NewTicker(h.Interval)
	defer ticker.Stop()

	log.Info().Str("module", "app.heartbeat").Dur("interval", h.Interval).Msg("heartbeat started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.heartbeat").Msg("heartbeat stopped")
			return
		case <-ticker.Chan():
			h.tick()
		}
	}
}

func (h *Heartbeat) tick() {
	for _, info := range h.Orch.Registry.Rooms() {
		if info.MemberCount == 0 || info.Path == "" {
			continue
		}
		h.Orch.BroadcastState(info.ID, ByHeartbeat)
	}
}
