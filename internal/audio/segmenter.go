package audio

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

// Segmentation modes
const (
	ModeStreaming  = "streaming"
	ModeFullDecode = "full-decode"
)

// Default pipeline progress window covered by segmentation
const (
	DefaultProgressFrom = 12
	DefaultProgressTo   = 25
)

// progressInterval is the minimum wall time between repeated updates at the
// same percentage
const progressInterval = 5 * time.Second

// Segmentation is the result of a split: ordered segments and the scratch
// directory that holds them
type Segmentation struct {
	Segments []types.AudioSegment
	Dir      string
	Mode     string
}

// Segmenter splits an inspected recording into fixed-length segment files
type Segmenter interface {
	Split(ctx context.Context, file types.AudioFile, length time.Duration, progress types.ProgressFunc) (Segmentation, error)
	Mode() string
}

// SegmenterConfig selects and configures the segmentation strategy
type SegmenterConfig struct {
	FFmpegPath           string
	TempDir              string
	DisableExternalTools bool
	ProgressFrom         int
	ProgressTo           int
}

func (c *SegmenterConfig) applyDefaults() {
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.ProgressFrom == 0 && c.ProgressTo == 0 {
		c.ProgressFrom = DefaultProgressFrom
		c.ProgressTo = DefaultProgressTo
	}
}

// NewSegmenter probes the host once and returns the streaming segmenter when
// ffmpeg is usable, otherwise the full-decode segmenter
func NewSegmenter(cfg SegmenterConfig, log zerolog.Logger) Segmenter {
	return newSegmenter(cfg, log, exec.LookPath)
}

func newSegmenter(cfg SegmenterConfig, log zerolog.Logger, lookPath func(string) (string, error)) Segmenter {
	cfg.applyDefaults()

	if !cfg.DisableExternalTools {
		if _, err := lookPath(cfg.FFmpegPath); err == nil {
			log.Info().Str("mode", ModeStreaming).Str("ffmpeg", cfg.FFmpegPath).Msg("segmenter selected")
			return NewFFmpegSegmenter(cfg, log)
		}
		log.Warn().Str("ffmpeg", cfg.FFmpegPath).Msg("ffmpeg not found on PATH")
	}
	log.Warn().Str("mode", ModeFullDecode).Msg("segmenter selected (degraded: whole file decoded in memory)")
	return NewWAVSegmenter(cfg, log)
}

// progressThrottle forwards an update when the percentage changes or when
// progressInterval has passed since the last one
type progressThrottle struct {
	fn       types.ProgressFunc
	now      func() time.Time
	interval time.Duration
	last     int
	lastAt   time.Time
	sent     bool
}

func newProgressThrottle(fn types.ProgressFunc, now func() time.Time) *progressThrottle {
	return &progressThrottle{fn: fn, now: now, interval: progressInterval}
}

func (p *progressThrottle) emit(percent int, message string) {
	if p.fn == nil {
		return
	}
	if p.sent && percent < p.last {
		percent = p.last
	}
	t := p.now()
	if p.sent && percent == p.last && t.Sub(p.lastAt) < p.interval {
		return
	}
	p.sent = true
	p.last = percent
	p.lastAt = t
	p.fn(percent, message)
}

// scale maps a fraction in [0,1] onto [from,to]
func scale(fraction float64, from, to int) int {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return from + int(fraction*float64(to-from))
}

func mkScratchDir(tempDir string) (string, error) {
	if tempDir != "" {
		if err := os.MkdirAll(tempDir, 0o755); err != nil {
			return "", err
		}
	}
	return os.MkdirTemp(tempDir, "audio_segments_")
}
