// Package format provides human-readable formatting utilities.
package format

import (
	"fmt"
	"time"
)

// Timecode formats a number of seconds as hh:mm:ss.
// Example: Timecode(3725) => "01:02:05"
func Timecode(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// TimecodeDuration formats a duration as hh:mm:ss, truncating sub-second
// precision.
func TimecodeDuration(d time.Duration) string {
	return Timecode(int(d.Seconds()))
}
