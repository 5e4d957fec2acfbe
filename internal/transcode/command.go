package transcode

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Mode selects how a session's stream is turned into HLS segments.
type Mode int

const (
	// ModeCopyMux repackages existing H.264 frames without re-encoding.
	ModeCopyMux Mode = iota
	// ModeBaselineEncode re-encodes to H.264 baseline for broad client
	// compatibility.
	ModeBaselineEncode
)

func (m Mode) String() string {
	if m == ModeCopyMux {
		return "copy-mux"
	}
	return "baseline-encode"
}

// SelectMode picks copy-mux when the container is MP4 or the probed video
// codec is already H.264; everything else is re-encoded.
func SelectMode(fileName, videoCodec string) Mode {
	if strings.EqualFold(filepath.Ext(fileName), ".mp4") {
		return ModeCopyMux
	}
	if strings.Contains(strings.ToLower(videoCodec), "h264") {
		return ModeCopyMux
	}
	return ModeBaselineEncode
}

// CommandBuilder builds ffmpeg invocations with a fluent API.
type CommandBuilder struct {
	binary     string
	logLevel   string
	inputArgs  []string
	input      string
	outputArgs []string
	outputDir  string
}

// NewCommandBuilder creates a builder for the given ffmpeg binary.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{
		binary:   ffmpegPath,
		logLevel: "error",
	}
}

// LogLevel sets the ffmpeg log level.
func (b *CommandBuilder) LogLevel(level string) *CommandBuilder {
	b.logLevel = level
	return b
}

// Stdin reads the input stream from stdin.
func (b *CommandBuilder) Stdin() *CommandBuilder {
	b.input = "pipe:0"
	return b
}

// InputFile reads the input from a file on disk.
func (b *CommandBuilder) InputFile(path string) *CommandBuilder {
	b.input = path
	return b
}

// NoBuffer minimizes input buffering to cut startup latency.
func (b *CommandBuilder) NoBuffer() *CommandBuilder {
	b.inputArgs = append(b.inputArgs, "-fflags", "+nobuffer")
	return b
}

// Threads caps the encoder thread count.
func (b *CommandBuilder) Threads(n int) *CommandBuilder {
	if n > 0 {
		b.outputArgs = append(b.outputArgs, "-threads", strconv.Itoa(n))
	}
	return b
}

// CopyMux passes video and audio through untouched, converting the H.264
// bitstream to Annex B as the TS container requires.
func (b *CommandBuilder) CopyMux() *CommandBuilder {
	b.outputArgs = append(b.outputArgs,
		"-c:v", "copy",
		"-c:a", "copy",
		"-bsf:v", "h264_mp4toannexb",
	)
	return b
}

// BaselineEncode re-encodes to H.264 baseline 3.0 with a latency-friendly
// preset.
func (b *CommandBuilder) BaselineEncode() *CommandBuilder {
	b.outputArgs = append(b.outputArgs,
		"-c:v", "libx264",
		"-profile:v", "baseline",
		"-level", "3.0",
		"-preset", "veryfast",
		"-c:a", "aac",
	)
	return b
}

// HLS emits a full-history playlist plus numbered TS segments into dir.
func (b *CommandBuilder) HLS(segmentSeconds int, dir string) *CommandBuilder {
	b.outputDir = dir
	b.outputArgs = append(b.outputArgs,
		"-f", "hls",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_list_size", "0",
		"-start_number", "0",
		"-hls_segment_filename", filepath.Join(dir, "segment_%03d.ts"),
	)
	return b
}

// Args assembles the final argument vector (excluding the binary itself).
func (b *CommandBuilder) Args() []string {
	args := []string{"-hide_banner", "-loglevel", b.logLevel, "-y"}
	args = append(args, b.inputArgs...)
	args = append(args, "-i", b.input)
	args = append(args, b.outputArgs...)
	args = append(args, filepath.Join(b.outputDir, "playlist.m3u8"))
	return args
}

// Binary returns the ffmpeg binary path.
func (b *CommandBuilder) Binary() string {
	return b.binary
}
