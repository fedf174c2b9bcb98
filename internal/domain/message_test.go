package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Inbound
	}{
		{
			name: "navigate",
			data: `{"type":"navigate","path":"track1.mp3"}`,
			want: Inbound{Type: TypeNavigate, Path: "track1.mp3"},
		},
		{
			name: "seek with numeric position",
			data: `{"type":"seek","position":42.5}`,
			want: Inbound{Type: TypeSeek, Position: 42.5},
		},
		{
			name: "seek with string position",
			data: `{"type":"seek","position":"12.25"}`,
			want: Inbound{Type: TypeSeek, Position: 12.25},
		},
		{
			name: "seek with unparsable position defaults to zero",
			data: `{"type":"seek","position":"banana"}`,
			want: Inbound{Type: TypeSeek, Position: 0},
		},
		{
			name: "timeline with seek flag",
			data: `{"type":"timeline","seek":true,"value":9}`,
			want: Inbound{Type: TypeTimeline, Seek: true, Value: 9},
		},
		{
			name: "room and client pass through",
			data: `{"type":"playstate","room":"x","clientId":"alice","href":"img/pause.svg"}`,
			want: Inbound{Type: TypePlaystate, Room: "x", ClientID: "alice", Href: "img/pause.svg"},
		},
		{
			name: "bare path falls back to navigate",
			data: `movies/night.mkv`,
			want: Inbound{Type: TypeNavigate, Path: "movies/night.mkv"},
		},
		{
			name: "quoted json string falls back to navigate",
			data: `"movies/night.mkv"`,
			want: Inbound{Type: TypeNavigate, Path: "movies/night.mkv"},
		},
		{
			name: "object without type falls back to navigate",
			data: `{"path":"x.mp3"}`,
			want: Inbound{Type: TypeNavigate, Path: `{"path":"x.mp3"}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeInbound([]byte(tt.data)))
		})
	}
}

func TestOutboundShapes(t *testing.T) {
	data, err := json.Marshal(NewClientJoined("alice", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"client_joined","clientId":"alice"}`, string(data))

	data, err = json.Marshal(NewClientJoined("bob", "aGk="))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"client_joined","clientId":"bob","avatar":"aGk="}`, string(data))

	data, err = json.Marshal(StateSync{Type: TypeStateSync, Path: "a.mp3", Playing: true, Position: 1.5, ServerTime: 777, By: "alice"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"state_sync","path":"a.mp3","playing":true,"position":1.5,"serverTime":777,"by":"alice"}`, string(data))
}
