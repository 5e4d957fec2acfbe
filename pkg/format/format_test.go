package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimecode(t *testing.T) {
	assert.Equal(t, "00:00:00", Timecode(0))
	assert.Equal(t, "00:00:16", Timecode(16))
	assert.Equal(t, "00:02:05", Timecode(125))
	assert.Equal(t, "01:02:05", Timecode(3725))
	assert.Equal(t, "00:00:00", Timecode(-5))
}

func TestTimecodeDuration(t *testing.T) {
	assert.Equal(t, "00:01:30", TimecodeDuration(90*time.Second))
}
