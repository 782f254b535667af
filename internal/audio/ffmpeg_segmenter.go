package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

// segmentExt is the container written by the streaming segmenter
const segmentExt = ".mp3"

// loudnormFilter is the single-pass normalization applied when the input is
// below target
var loudnormFilter = fmt.Sprintf("loudnorm=I=%.0f:TP=-1.5:LRA=11", TargetDBFS)

// FFmpegSegmenter runs ffmpeg once in segment mode, normalizing and writing
// segment files to disk as it decodes
type FFmpegSegmenter struct {
	ffmpegPath string
	tempDir    string
	from, to   int
	runner     commandRunner
	now        func() time.Time
	log        zerolog.Logger
}

// NewFFmpegSegmenter creates the streaming segmenter
func NewFFmpegSegmenter(cfg SegmenterConfig, log zerolog.Logger) *FFmpegSegmenter {
	cfg.applyDefaults()
	return &FFmpegSegmenter{
		ffmpegPath: cfg.FFmpegPath,
		tempDir:    cfg.TempDir,
		from:       cfg.ProgressFrom,
		to:         cfg.ProgressTo,
		runner:     &execRunner{},
		now:        time.Now,
		log:        log,
	}
}

// Mode implements Segmenter
func (s *FFmpegSegmenter) Mode() string { return ModeStreaming }

// Split implements Segmenter
func (s *FFmpegSegmenter) Split(ctx context.Context, file types.AudioFile, length time.Duration, progress types.ProgressFunc) (Segmentation, error) {
	if length <= 0 {
		return Segmentation{}, fmt.Errorf("%w: segment length must be positive", types.ErrSegmentationFailed)
	}
	dir, err := mkScratchDir(s.tempDir)
	if err != nil {
		return Segmentation{}, fmt.Errorf("%w: creating scratch directory: %v", types.ErrSegmentationFailed, err)
	}

	gain := NormalizationGain(file.VolumeDBFS)
	args := buildSegmentArgs(file.Path, dir, length, gain > 0)
	s.log.Info().
		Str("file", file.Filename()).
		Float64("dbfs", file.VolumeDBFS).
		Bool("quiet", IsQuiet(file.VolumeDBFS)).
		Bool("normalize", gain > 0).
		Dur("segment_length", length).
		Msg("splitting audio with ffmpeg")

	throttle := newProgressThrottle(progress, s.now)
	throttle.emit(s.from, fmt.Sprintf("Splitting audio... (%.1f minutes total)", file.DurationMinutes))

	total := file.Duration()
	onLine := func(line string) {
		elapsed, ok := parseProgressLine(line)
		if !ok || total <= 0 {
			return
		}
		frac := float64(elapsed) / float64(total)
		pct := scale(frac, s.from, s.to-1)
		throttle.emit(pct, fmt.Sprintf("Splitting audio... %.0f%% (%s of %s)",
			min(frac, 1)*100, elapsed.Truncate(time.Second), total.Truncate(time.Second)))
	}

	res, err := s.runner.Stream(ctx, onLine, s.ffmpegPath, args...)
	if err != nil {
		_ = os.RemoveAll(dir)
		return Segmentation{}, fmt.Errorf("%w: ffmpeg exited with code %d: %s",
			types.ErrSegmentationFailed, res.ExitCode, lastLines(res.Stderr, 5))
	}

	segments, err := collectSegments(dir, total, length)
	if err != nil {
		_ = os.RemoveAll(dir)
		return Segmentation{}, err
	}

	if progress != nil {
		progress(s.to, fmt.Sprintf("Successfully created %d segments. Starting transcription...", len(segments)))
	}
	return Segmentation{Segments: segments, Dir: dir, Mode: ModeStreaming}, nil
}

// buildSegmentArgs builds the single-pass ffmpeg segment invocation
func buildSegmentArgs(inputPath, dir string, length time.Duration, normalize bool) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
	}
	if normalize {
		args = append(args, "-af", loudnormFilter)
	}
	args = append(args,
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libmp3lame",
		"-b:a", "64k",
		"-f", "segment",
		"-segment_time", strconv.FormatFloat(length.Seconds(), 'f', -1, 64),
		"-segment_start_number", "1",
		"-reset_timestamps", "1",
		"-progress", "pipe:1",
		"-nostats",
		filepath.Join(dir, "%04d"+segmentExt),
	)
	return args
}

// collectSegments lists the files ffmpeg wrote and numbers them 1..N in
// file order
func collectSegments(dir string, total, length time.Duration) ([]types.AudioSegment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing segment directory: %v", types.ErrSegmentationFailed, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), segmentExt) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: ffmpeg produced no segments", types.ErrSegmentationFailed)
	}
	sort.Strings(names)

	spans := PlanSegments(total, length)
	segments := make([]types.AudioSegment, 0, len(names))
	for i, name := range names {
		d := length
		if len(spans) == len(names) {
			d = spans[i].Duration()
		} else if i == len(names)-1 && total > 0 {
			if rest := total - time.Duration(i)*length; rest > 0 && rest < length {
				d = rest
			}
		}
		segments = append(segments, types.AudioSegment{
			Path:            filepath.Join(dir, name),
			Number:          i + 1,
			DurationMs:      d.Milliseconds(),
			DurationMinutes: d.Minutes(),
		})
	}
	return segments, nil
}

// parseProgressLine reads the output position from one `-progress` line
// ffmpeg reports both out_time_us and out_time_ms in microseconds
func parseProgressLine(line string) (time.Duration, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return 0, false
	}
	switch key {
	case "out_time_us", "out_time_ms":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return 0, false
		}
		return time.Duration(n) * time.Microsecond, true
	case "out_time":
		return parseClock(value)
	default:
		return 0, false
	}
}

// parseClock parses HH:MM:SS.ffffff
func parseClock(v string) (time.Duration, bool) {
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || h < 0 || m < 0 || sec < 0 {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec*float64(time.Second)), true
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
