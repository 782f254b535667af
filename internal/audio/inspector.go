package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

// Probe defaults
const (
	DefaultProbeTimeout   = 30 * time.Second
	DefaultLoudnessSample = 30 * time.Second
)

var meanVolumeRe = regexp.MustCompile(`mean_volume:\s*(-?[0-9]+(?:\.[0-9]+)?)\s*dB`)

// Inspector reads duration and loudness metadata without decoding the whole file
type Inspector struct {
	ffprobePath string
	ffmpegPath  string
	timeout     time.Duration
	sample      time.Duration
	runner      commandRunner
	lookPath    func(file string) (string, error)
	stat        func(name string) (os.FileInfo, error)
	log         zerolog.Logger
}

// InspectorOption configures an Inspector
type InspectorOption func(*Inspector)

// WithTools overrides the ffprobe and ffmpeg executables
func WithTools(ffprobePath, ffmpegPath string) InspectorOption {
	return func(i *Inspector) {
		if ffprobePath != "" {
			i.ffprobePath = ffprobePath
		}
		if ffmpegPath != "" {
			i.ffmpegPath = ffmpegPath
		}
	}
}

// WithProbeTimeout sets the hard timeout of each probe
func WithProbeTimeout(d time.Duration) InspectorOption {
	return func(i *Inspector) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithLoudnessSample sets how much leading audio the loudness probe reads
func WithLoudnessSample(d time.Duration) InspectorOption {
	return func(i *Inspector) {
		if d > 0 {
			i.sample = d
		}
	}
}

// WithoutExternalTools treats ffprobe and ffmpeg as not installed, leaving
// only the WAV header path
func WithoutExternalTools() InspectorOption {
	return func(i *Inspector) {
		i.lookPath = func(file string) (string, error) {
			return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
		}
	}
}

// NewInspector creates an Inspector backed by ffprobe/ffmpeg
func NewInspector(log zerolog.Logger, opts ...InspectorOption) *Inspector {
	i := &Inspector{
		ffprobePath: "ffprobe",
		ffmpegPath:  "ffmpeg",
		timeout:     DefaultProbeTimeout,
		sample:      DefaultLoudnessSample,
		runner:      &execRunner{},
		lookPath:    exec.LookPath,
		stat:        os.Stat,
		log:         log,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Inspect returns the metadata of the file at path. Every failure wraps
// types.ErrAudioUnreadable
func (i *Inspector) Inspect(ctx context.Context, path string) (types.AudioFile, error) {
	if _, err := i.stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.AudioFile{}, fmt.Errorf("%w: audio file not found: %s", types.ErrAudioUnreadable, path)
		}
		return types.AudioFile{}, fmt.Errorf("%w: cannot access %s: %v", types.ErrAudioUnreadable, path, err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	if _, err := i.lookPath(i.ffprobePath); err != nil {
		if isWAVPath(path) {
			return i.inspectWAV(path)
		}
		return types.AudioFile{}, fmt.Errorf(
			"%w: ffprobe is not installed or not on PATH; install ffmpeg, or convert the file to WAV (PCM) and retry",
			types.ErrAudioUnreadable)
	}

	duration, err := i.probeDuration(ctx, path)
	if err != nil {
		return types.AudioFile{}, err
	}

	dbfs, err := i.probeLoudness(ctx, path)
	if err != nil {
		return types.AudioFile{}, err
	}

	return newAudioFile(path, duration, dbfs), nil
}

func newAudioFile(path string, duration time.Duration, dbfs float64) types.AudioFile {
	return types.AudioFile{
		Path:            path,
		DurationMs:      duration.Milliseconds(),
		DurationMinutes: duration.Minutes(),
		VolumeDBFS:      dbfs,
	}
}

// probeDuration runs a metadata-only ffprobe query
func (i *Inspector) probeDuration(ctx context.Context, path string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	res, err := i.runner.Run(ctx, i.ffprobePath, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf(
				"%w: ffprobe timed out after %s reading %s; convert the file to WAV (PCM) and retry",
				types.ErrAudioUnreadable, i.timeout, filepath.Base(path))
		}
		return 0, fmt.Errorf("%w: ffprobe failed (exit %d): %s",
			types.ErrAudioUnreadable, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	raw := strings.TrimSpace(res.Stdout)
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 {
		return 0, fmt.Errorf("%w: could not determine duration of %s (ffprobe reported %q); the file may be corrupt or in an unsupported format",
			types.ErrAudioUnreadable, filepath.Base(path), raw)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// probeLoudness estimates mean volume from the leading sample. Anything but
// a timeout falls back to NeutralDBFS
func (i *Inspector) probeLoudness(ctx context.Context, path string) (float64, error) {
	if _, err := i.lookPath(i.ffmpegPath); err != nil {
		i.log.Warn().Msg("ffmpeg not found; assuming neutral loudness")
		return NeutralDBFS, nil
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-t", strconv.Itoa(int(i.sample.Seconds())),
		"-i", path,
		"-vn",
		"-af", "volumedetect",
		"-f", "null",
		"-",
	}
	res, err := i.runner.Run(ctx, i.ffmpegPath, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf(
				"%w: ffmpeg loudness probe timed out after %s reading %s; convert the file to WAV (PCM) and retry",
				types.ErrAudioUnreadable, i.timeout, filepath.Base(path))
		}
		i.log.Warn().Err(err).Msg("loudness probe failed; assuming neutral loudness")
		return NeutralDBFS, nil
	}

	dbfs, ok := parseMeanVolume(res.Stderr)
	if !ok {
		i.log.Warn().Msg("loudness probe output had no mean_volume; assuming neutral loudness")
		return NeutralDBFS, nil
	}
	return dbfs, nil
}

// inspectWAV reads metadata straight from a WAV header when ffprobe is missing
func (i *Inspector) inspectWAV(path string) (types.AudioFile, error) {
	info, err := readWAVInfo(path, i.sample)
	if err != nil {
		return types.AudioFile{}, fmt.Errorf("%w: reading WAV header of %s: %v", types.ErrAudioUnreadable, filepath.Base(path), err)
	}
	dbfs := NeutralDBFS
	if info.Measured {
		dbfs = info.DBFS
	}
	i.log.Info().
		Str("file", filepath.Base(path)).
		Dur("duration", info.Duration).
		Msg("ffprobe unavailable; read metadata from WAV header")
	return newAudioFile(path, info.Duration, dbfs), nil
}

// parseMeanVolume extracts the volumedetect mean_volume figure
func parseMeanVolume(stderr string) (float64, bool) {
	m := meanVolumeRe.FindStringSubmatch(stderr)
	if len(m) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
