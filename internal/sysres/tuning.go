package sysres

// TuningInputs carries the configured bounds and any operator overrides for
// the tuning policy.
type TuningInputs struct {
	MinSegmentSecs   int
	MaxSegmentSecs   int
	TargetPerSegment int

	// MaxConcurrentOverride and ThreadsOverride, when positive, win over the
	// computed values.
	MaxConcurrentOverride int
	ThreadsOverride       int
}

// Tuning is the derived transcoder policy for the current resource envelope.
type Tuning struct {
	PerTranscoderMB int `json:"per_transcoder_mb"`
	MaxConcurrent   int `json:"max_concurrent"`
	Threads         int `json:"threads"`
	SegmentSeconds  int `json:"segment_seconds"`
}

// Derive computes the transcoder policy from detected limits and the live
// session count. It is a pure function; callers re-evaluate it on every
// admission decision so the policy tracks the probe.
func Derive(limits Limits, activeSessions int, in TuningInputs) Tuning {
	perMB := perTranscoderMB(limits.MemoryMB)

	// Concurrency is the lesser of the memory-bound and CPU-bound estimates,
	// never below one.
	byMemory := int(float64(limits.MemoryMB) / (float64(perMB) * 1.2))
	byCPU := limits.CPUCount / 2
	maxConcurrent := min(byMemory, byCPU)
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if in.MaxConcurrentOverride > 0 {
		maxConcurrent = in.MaxConcurrentOverride
	}

	threads := 1
	if limits.MemoryMB >= 1024 {
		threads = limits.CPUCount / 2
		if threads < 1 {
			threads = 1
		}
	}
	if in.ThreadsOverride > 0 {
		threads = in.ThreadsOverride
	}

	return Tuning{
		PerTranscoderMB: perMB,
		MaxConcurrent:   maxConcurrent,
		Threads:         threads,
		SegmentSeconds:  segmentSeconds(activeSessions, in),
	}
}

// perTranscoderMB estimates the working-set size of one ffmpeg process.
func perTranscoderMB(memoryMB int) int {
	switch {
	case memoryMB < 700:
		return 256
	case memoryMB < 1500:
		return 512
	default:
		return 800
	}
}

// segmentSeconds grows the HLS segment duration with concurrency to reduce
// per-session file churn under load, clamped to the configured bounds.
func segmentSeconds(activeSessions int, in TuningInputs) int {
	minSeg := in.MinSegmentSecs
	if minSeg < 1 {
		minSeg = 4
	}
	maxSeg := in.MaxSegmentSecs
	if maxSeg < minSeg {
		maxSeg = minSeg
	}
	target := in.TargetPerSegment
	if target < 1 {
		target = 10
	}

	steps := (activeSessions + target - 1) / target
	seg := steps * minSeg
	if seg < minSeg {
		seg = minSeg
	}
	if seg > maxSeg {
		seg = maxSeg
	}
	return seg
}
