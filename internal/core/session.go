package core

import "sync"

// SessionID identifies one live connection. Distinct from the
// client-facing clientId, which is client-supplied and may collide
// across reconnects.
type SessionID string

// Session binds one connection to its room for the connection's
// lifetime. Room and identifiers are immutable after admission; the
// avatar is the only mutable field.
type Session struct {
	id       SessionID
	clientID string
	room     string
	conn     SignalConnection

	mu     sync.RWMutex
	avatar []byte
}

func NewSession(id SessionID, clientID, room string, conn SignalConnection) *Session {
	return &Session{id: id, clientID: clientID, room: room, conn: conn}
}

func (s *Session) ID() SessionID          { return s.id }
func (s *Session) ClientID() string       { return s.clientID }
func (s *Session) Room() string           { return s.room }
func (s *Session) Conn() SignalConnection { return s.conn }

// Avatar returns the last processed avatar for this connection, nil
// if none was uploaded.
func (s *Session) Avatar() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.avatar
}

func (s *Session) SetAvatar(data []byte) {
	s.mu.Lock()
	s.avatar = data
	s.mu.Unlock()
}
