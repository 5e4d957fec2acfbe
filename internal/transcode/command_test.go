package transcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectMode(t *testing.T) {
	tests := []struct {
		name       string
		fileName   string
		videoCodec string
		want       Mode
	}{
		{"mp4 container", "movie.mp4", "", ModeCopyMux},
		{"mp4 uppercase", "MOVIE.MP4", "", ModeCopyMux},
		{"mkv with h264", "movie.mkv", "h264", ModeCopyMux},
		{"mkv with hevc", "movie.mkv", "hevc", ModeBaselineEncode},
		{"webm no probe", "movie.webm", "", ModeBaselineEncode},
		{"avi vp9", "movie.avi", "vp9", ModeBaselineEncode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectMode(tt.fileName, tt.videoCodec))
		})
	}
}

func TestCommandBuilder_CopyMux(t *testing.T) {
	args := NewCommandBuilder("/usr/bin/ffmpeg").
		Stdin().
		CopyMux().
		Threads(2).
		HLS(4, "/tmp/abcd1234").
		Args()

	joined := ""
	for _, a := range args {
		joined += a + " "
	}

	assert.Contains(t, joined, "-i pipe:0")
	assert.Contains(t, joined, "-c:v copy")
	assert.Contains(t, joined, "-bsf:v h264_mp4toannexb")
	assert.Contains(t, joined, "-hls_time 4")
	assert.Contains(t, joined, "-hls_list_size 0")
	assert.Contains(t, joined, "-start_number 0")
	assert.Contains(t, joined, "-threads 2")
	assert.Contains(t, joined, "/tmp/abcd1234/segment_%03d.ts")
	assert.Equal(t, "/tmp/abcd1234/playlist.m3u8", args[len(args)-1])
}

func TestCommandBuilder_BaselineEncode(t *testing.T) {
	args := NewCommandBuilder("ffmpeg").
		NoBuffer().
		InputFile("/tmp/x/movie.webm").
		BaselineEncode().
		HLS(10, "/tmp/x").
		Args()

	joined := ""
	for _, a := range args {
		joined += a + " "
	}

	assert.Contains(t, joined, "-fflags +nobuffer")
	assert.Contains(t, joined, "-i /tmp/x/movie.webm")
	assert.Contains(t, joined, "-c:v libx264")
	assert.Contains(t, joined, "-profile:v baseline")
	assert.Contains(t, joined, "-level 3.0")
	assert.Contains(t, joined, "-preset veryfast")
	assert.Contains(t, joined, "-hls_time 10")
}

func TestCommandBuilder_ThreadsZeroOmitted(t *testing.T) {
	args := NewCommandBuilder("ffmpeg").Stdin().CopyMux().Threads(0).HLS(4, "/tmp/y").Args()
	assert.NotContains(t, args, "-threads")
}
