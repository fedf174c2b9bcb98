package domain

import (
	"encoding/json"
	"strconv"
)

// Message type discriminators of the sync wire protocol.
const (
	TypeServerInfo   = "server_info"
	TypeClientJoined = "client_joined"
	TypeClientLeft   = "client_left"
	TypeAvatar       = "avatar"
	TypeStateSync    = "state_sync"
	TypeError        = "error"

	TypeNavigate  = "navigate"
	TypePlaystate = "playstate"
	TypeSeek      = "seek"
	TypeTimeline  = "timeline"
	TypeAvatarURL = "avatar_url"
)

// Float is a float64 that tolerates sloppy clients: JSON numbers,
// numeric strings, and anything unparsable (which decodes to 0).
type Float float64

func (f *Float) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = Float(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			*f = Float(n)
			return nil
		}
	}
	*f = 0
	return nil
}

// Inbound is the decoded form of a client text frame. One struct with
// per-type optional fields; Type selects the variant.
type Inbound struct {
	Type     string `json:"type"`
	Room     string `json:"room,omitempty"`
	ClientID string `json:"clientId,omitempty"`
	Path     string `json:"path,omitempty"`
	Href     string `json:"href,omitempty"`
	Position Float  `json:"position,omitempty"`
	Value    Float  `json:"value,omitempty"`
	Seek     bool   `json:"seek,omitempty"`
	URL      string `json:"url,omitempty"`
}

// DecodeInbound parses a text frame. Payloads that are not a JSON
// object (or carry no type) fall back to a synthesized navigate with
// the whole payload as media path, so minimal clients can just send
// a bare path.
func DecodeInbound(data []byte) Inbound {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err == nil && msg.Type != "" {
		return msg
	}
	var path string
	if err := json.Unmarshal(data, &path); err != nil {
		path = string(data)
	}
	return Inbound{Type: TypeNavigate, Path: path}
}

// Outbound event shapes. Each carries its own Type tag so a single
// json.Marshal produces the complete wire form.

type ServerInfo struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func NewServerInfo(name string) ServerInfo {
	return ServerInfo{Type: TypeServerInfo, Name: name}
}

type ClientJoined struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	Avatar   string `json:"avatar,omitempty"`
}

func NewClientJoined(clientID, avatar string) ClientJoined {
	return ClientJoined{Type: TypeClientJoined, ClientID: clientID, Avatar: avatar}
}

type ClientLeft struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
}

func NewClientLeft(clientID string) ClientLeft {
	return ClientLeft{Type: TypeClientLeft, ClientID: clientID}
}

type AvatarEvent struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	Data     string `json:"data"`
}

func NewAvatarEvent(clientID, data string) AvatarEvent {
	return AvatarEvent{Type: TypeAvatar, ClientID: clientID, Data: data}
}

type StateSync struct {
	Type       string  `json:"type"`
	Path       string  `json:"path"`
	Playing    bool    `json:"playing"`
	Position   float64 `json:"position"`
	ServerTime int64   `json:"serverTime"`
	By         string  `json:"by"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message}
}
