package queue

import (
	"math"
	"time"

	"github.com/samber/lo"
)

// Predict estimates the playback position in milliseconds at now (epoch
// seconds) from the timestamps carried by s. Clocks are trusted as-is: no
// skew correction is attempted between devices.
func Predict(s State, now float64) int64 {
	if s.Pause {
		return int64(math.Round(s.StartPosition * 1000))
	}
	return int64(math.Round((now - (s.StartTime - s.StartPosition)) * 1000))
}

// ClampPosition limits ms to [0, durationMs]. A non-positive duration means
// the length is unknown and only the lower bound applies.
func ClampPosition(ms, durationMs int64) int64 {
	if durationMs <= 0 {
		return max(ms, 0)
	}
	return lo.Clamp(ms, 0, durationMs)
}

// EpochSeconds converts t to fractional seconds since the Unix epoch.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
