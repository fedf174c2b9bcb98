package domain

import "time"

// PlaybackState is the authoritative per-room playback record.
// Position is a snapshot taken at PositionSetAt; the live position is
// obtained via EffectivePosition. No locking here, the registry owns
// the lock scope.
type PlaybackState struct {
	Path          string
	Playing       bool
	Position      float64
	PositionSetAt time.Time
	Duration      float64
}

// EffectivePosition extrapolates the snapshot forward by the elapsed
// wall-clock time while playing. Paused state returns the snapshot as is.
func (s *PlaybackState) EffectivePosition(now time.Time) float64 {
	if !s.Playing {
		return s.Position
	}
	return s.Position + now.Sub(s.PositionSetAt).Seconds()
}

// SnapshotAt collapses the effective position into Position and resets
// the reference timestamp. Must be called before flipping Playing or
// seeking, so the extrapolation base stays continuous.
func (s *PlaybackState) SnapshotAt(now time.Time) {
	s.Position = s.EffectivePosition(now)
	s.PositionSetAt = now
}
