// Package transcode supervises the bounded pool of ffmpeg subprocesses that
// turn session byte-streams into HLS output.
package transcode

import (
	"os/exec"
)

// Binaries records the external tools the gateway shells out to and whether
// they were found at startup.
type Binaries struct {
	FFmpeg     string `json:"ffmpeg"`
	FFprobe    string `json:"ffprobe"`
	Downloader string `json:"downloader"`

	FFmpegFound     bool `json:"ffmpeg_found"`
	FFprobeFound    bool `json:"ffprobe_found"`
	DownloaderFound bool `json:"downloader_found"`
}

// DetectBinaries resolves tool paths, preferring explicit configuration over
// PATH lookup. A missing tool is recorded rather than fatal: sessions that
// need it fail individually and /health reports the gap.
func DetectBinaries(ffmpegPath, ffprobePath, downloaderPath string) Binaries {
	b := Binaries{}
	b.FFmpeg, b.FFmpegFound = resolveBinary(ffmpegPath, "ffmpeg")
	b.FFprobe, b.FFprobeFound = resolveBinary(ffprobePath, "ffprobe")
	b.Downloader, b.DownloaderFound = resolveBinary(downloaderPath, "yt-dlp")
	return b
}

func resolveBinary(configured, fallback string) (string, bool) {
	name := configured
	if name == "" {
		name = fallback
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return name, false
	}
	return path, true
}
