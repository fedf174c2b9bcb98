package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dpetrov/couchsync/internal/avatar"
	"github.com/dpetrov/couchsync/internal/core"
	"github.com/dpetrov/couchsync/internal/domain"
)

// Originator tags for state_sync events not caused by a client.
const (
	ByHeartbeat   = "heartbeat"
	ByServer      = "server"
	ByServerAdmin = "server-admin"
)

// Orchestrator is the protocol state machine: it owns the mapping
// from inbound client events to playback-state mutations and
// rebroadcasts, plus the join/leave choreography. Transport adapters
// call into it; it never touches websockets directly.
type Orchestrator struct {
	Registry   *core.Registry
	Avatars    *AvatarCache
	Processor  avatar.Processor // nil = capability unavailable
	Fetcher    avatar.Fetcher
	Store      *avatar.Store // nil = persistence disabled
	Clock      clockwork.Clock
	ServerName string
}

// Join registers an admitted session, announces it to the room, and
// bootstraps the joiner: server info, one client_joined per existing
// member (with their avatars), and the current playback state when
// media is selected.
func (o *Orchestrator) Join(s *core.Session) {
	existing := o.Registry.Members(s.Room())
	o.Registry.Join(s)

	o.send(s, domain.NewServerInfo(o.ServerName))

	for _, m := range existing {
		o.send(s, domain.NewClientJoined(m.ClientID(), o.resolveAvatar(m)))
	}

	if st, ok := o.Registry.State(s.Room()); ok && st.Path != "" {
		o.send(s, o.stateSync(st, ByServer))
	}

	o.broadcast(s.Room(), domain.NewClientJoined(s.ClientID(), o.resolveAvatar(s)), s)
}

// Leave removes the session and tells the rest of the room, once.
// Safe to call from racing close and error paths.
func (o *Orchestrator) Leave(s *core.Session) {
	if !o.Registry.Leave(s) {
		return
	}
	o.broadcast(s.Room(), domain.NewClientLeft(s.ClientID()), nil)
}

// HandleText routes one inbound text frame.
func (o *Orchestrator) HandleText(s *core.Session, data []byte) {
	msg := domain.DecodeInbound(data)

	if msg.Room != "" && msg.Room != s.Room() {
		o.sendError(s, "room mismatch")
		return
	}
	msg.ClientID = s.ClientID()

	switch msg.Type {
	case domain.TypeNavigate:
		o.Navigate(s.Room(), msg.Path, msg.ClientID)

	case domain.TypePlaystate:
		o.playstate(s.Room(), msg.Href, msg.ClientID)

	case domain.TypeSeek:
		o.Seek(s.Room(), float64(msg.Position), msg.ClientID)

	case domain.TypeTimeline:
		if !msg.Seek {
			// Plain timeline updates are opaque to the server.
			o.Registry.Broadcast(s.Room(), data, s)
			return
		}
		o.Seek(s.Room(), float64(msg.Value), msg.ClientID)

	case domain.TypeAvatarURL:
		o.avatarFromURL(s, msg.URL)

	default:
		// Unknown types are relayed verbatim to the rest of the room.
		o.Registry.Broadcast(s.Room(), data, s)
	}
}

// HandleBinary treats the frame as a raw avatar image upload.
func (o *Orchestrator) HandleBinary(s *core.Session, data []byte) {
	o.applyAvatar(s, data)
}

// Navigate selects new media: position resets to zero and playback
// auto-starts. Shared with the admin console.
func (o *Orchestrator) Navigate(roomID, path, by string) {
	now := o.Clock.Now()
	st := o.Registry.UpdateState(roomID, func(st *domain.PlaybackState) {
		st.SnapshotAt(now)
		st.Path = path
		st.Position = 0
		st.PositionSetAt = now
		st.Playing = true
	})
	log.Info().Str("module", "app.orchestrator").Str("room", roomID).
		Str("path", path).Str("by", by).Msg("navigate")
	o.broadcast(roomID, o.stateSync(st, by), nil)
}

// Seek sets an absolute position. No snapshot: the new value is
// itself the fresh extrapolation base.
func (o *Orchestrator) Seek(roomID string, position float64, by string) {
	now := o.Clock.Now()
	st := o.Registry.UpdateState(roomID, func(st *domain.PlaybackState) {
		st.Position = position
		st.PositionSetAt = now
	})
	o.broadcast(roomID, o.stateSync(st, by), nil)
}

// playstate interprets the legacy href toggle: an href containing
// "pause" means the client's button shows pause, i.e. media plays.
func (o *Orchestrator) playstate(roomID, href, by string) {
	playing := strings.Contains(strings.ToLower(href), "pause")
	now := o.Clock.Now()
	st := o.Registry.UpdateState(roomID, func(st *domain.PlaybackState) {
		if st.Playing == playing {
			return
		}
		st.SnapshotAt(now)
		st.Playing = playing
	})
	o.broadcast(roomID, o.stateSync(st, by), nil)
}

// BroadcastState pushes the room's current authoritative state to all
// members. Used by the heartbeat.
func (o *Orchestrator) BroadcastState(roomID, by string) {
	st, ok := o.Registry.State(roomID)
	if !ok {
		return
	}
	o.broadcast(roomID, o.stateSync(st, by), nil)
}

func (o *Orchestrator) avatarFromURL(s *core.Session, url string) {
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		o.sendError(s, "avatar url must be http(s)")
		return
	}
	if o.Fetcher == nil {
		o.sendError(s, "avatar fetch unavailable")
		return
	}
	data, err := o.Fetcher.Fetch(context.Background(), url)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orchestrator").
			Str("client", s.ClientID()).Msg("avatar fetch failed")
		o.sendError(s, "avatar fetch failed")
		return
	}
	o.applyAvatar(s, data)
}

func (o *Orchestrator) applyAvatar(s *core.Session, data []byte) {
	if o.Processor == nil {
		o.sendError(s, "avatar processing unavailable")
		return
	}
	processed, err := o.Processor.Process(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orchestrator").
			Str("client", s.ClientID()).Msg("avatar processing failed")
		o.sendError(s, "avatar processing failed")
		return
	}

	s.SetAvatar(processed)
	o.Avatars.Put(s.Room(), s.ClientID(), processed)

	if o.Store != nil {
		// Fire-and-forget: disk trouble never reaches the client.
		go func(room, clientID string, data []byte) {
			if err := o.Store.Put(room, clientID, data); err != nil {
				log.Warn().Err(err).Str("module", "app.orchestrator").
					Str("room", room).Str("client", clientID).Msg("avatar persist failed")
			}
		}(s.Room(), s.ClientID(), processed)
	}

	encoded := base64.StdEncoding.EncodeToString(processed)
	o.broadcast(s.Room(), domain.NewAvatarEvent(s.ClientID(), encoded), nil)
}

// resolveAvatar looks up a member's avatar: the session's own upload
// first, then the room cache, then the disk store.
func (o *Orchestrator) resolveAvatar(s *core.Session) string {
	data := s.Avatar()
	if data == nil {
		data = o.Avatars.Get(s.Room(), s.ClientID())
	}
	if data == nil && o.Store != nil {
		if stored, err := o.Store.Get(s.Room(), s.ClientID()); err == nil {
			data = stored
		}
	}
	if data == nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

func (o *Orchestrator) stateSync(st domain.PlaybackState, by string) domain.StateSync {
	now := o.Clock.Now()
	return domain.StateSync{
		Type:       domain.TypeStateSync,
		Path:       st.Path,
		Playing:    st.Playing,
		Position:   st.EffectivePosition(now),
		ServerTime: now.UnixMilli(),
		By:         by,
	}
}

// broadcast serializes the event once and fans it out.
func (o *Orchestrator) broadcast(roomID string, event any, exclude *core.Session) int {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orchestrator").Msg("encode event")
		return 0
	}
	return o.Registry.Broadcast(roomID, data, exclude)
}

func (o *Orchestrator) send(s *core.Session, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orchestrator").Msg("encode event")
		return
	}
	if err := s.Conn().TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "app.orchestrator").
			Str("client", s.ClientID()).Msg("direct send failed")
	}
}

func (o *Orchestrator) sendError(s *core.Session, message string) {
	o.send(s, domain.NewErrorEvent(message))
}
