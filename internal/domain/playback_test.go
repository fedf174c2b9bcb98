package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectivePosition(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state PlaybackState
		at    time.Time
		want  float64
	}{
		{
			name:  "playing extrapolates elapsed time",
			state: PlaybackState{Playing: true, Position: 10, PositionSetAt: base},
			at:    base.Add(5 * time.Second),
			want:  15,
		},
		{
			name:  "paused returns snapshot exactly",
			state: PlaybackState{Playing: false, Position: 42.5, PositionSetAt: base},
			at:    base.Add(time.Hour),
			want:  42.5,
		},
		{
			name:  "no elapsed time",
			state: PlaybackState{Playing: true, Position: 7, PositionSetAt: base},
			at:    base,
			want:  7,
		},
		{
			name:  "sub-second precision",
			state: PlaybackState{Playing: true, Position: 0, PositionSetAt: base},
			at:    base.Add(1500 * time.Millisecond),
			want:  1.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.state.EffectivePosition(tt.at), 1e-9)
		})
	}
}

func TestEffectivePosition_Linear(t *testing.T) {
	base := time.Now()
	st := PlaybackState{Playing: true, Position: 100, PositionSetAt: base}

	t1 := base.Add(3 * time.Second)
	t2 := base.Add(11 * time.Second)

	diff := st.EffectivePosition(t2) - st.EffectivePosition(t1)
	assert.InDelta(t, t2.Sub(t1).Seconds(), diff, 1e-9)
}

func TestSnapshotAt(t *testing.T) {
	base := time.Now()
	st := PlaybackState{Playing: true, Position: 10, PositionSetAt: base}

	now := base.Add(4 * time.Second)
	st.SnapshotAt(now)
	assert.InDelta(t, 14, st.Position, 1e-9)
	assert.Equal(t, now, st.PositionSetAt)

	// Repeated snapshots with no elapsed time must not move the position.
	st.SnapshotAt(now)
	st.SnapshotAt(now)
	assert.InDelta(t, 14, st.Position, 1e-9)
}
