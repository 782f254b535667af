package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

// wavPCMFormat is the WAVE_FORMAT_PCM tag
const wavPCMFormat = 1

// WAVSegmenter decodes a PCM WAV file fully into memory, applies gain and
// writes each segment as its own WAV file. Used when ffmpeg is unavailable
type WAVSegmenter struct {
	tempDir  string
	from, to int
	log      zerolog.Logger
}

// NewWAVSegmenter creates the full-decode segmenter
func NewWAVSegmenter(cfg SegmenterConfig, log zerolog.Logger) *WAVSegmenter {
	cfg.applyDefaults()
	return &WAVSegmenter{
		tempDir: cfg.TempDir,
		from:    cfg.ProgressFrom,
		to:      cfg.ProgressTo,
		log:     log,
	}
}

// Mode implements Segmenter
func (s *WAVSegmenter) Mode() string { return ModeFullDecode }

// Split implements Segmenter
func (s *WAVSegmenter) Split(ctx context.Context, file types.AudioFile, length time.Duration, progress types.ProgressFunc) (Segmentation, error) {
	if length <= 0 {
		return Segmentation{}, fmt.Errorf("%w: segment length must be positive", types.ErrSegmentationFailed)
	}
	progress.Emit(s.from, "Decoding entire file into memory (full-decode mode)...")

	buf, err := decodeWAV(file.Path)
	if err != nil {
		return Segmentation{}, fmt.Errorf("%w: %v; install ffmpeg to process compressed formats", types.ErrSegmentationFailed, err)
	}

	bitDepth := buf.SourceBitDepth
	rate := buf.Format.SampleRate
	channels := buf.Format.NumChannels
	if rate <= 0 || channels <= 0 {
		return Segmentation{}, fmt.Errorf("%w: invalid WAV format", types.ErrSegmentationFailed)
	}

	gain := NormalizationGain(file.VolumeDBFS)
	if gain > 0 {
		s.log.Info().Float64("gain_db", gain).Bool("quiet", IsQuiet(file.VolumeDBFS)).Msg("applying gain")
		applyGain(buf.Data, gain, bitDepth)
	}

	totalFrames := len(buf.Data) / channels
	total := framesToDuration(totalFrames, rate)
	spans := PlanSegments(total, length)
	if len(spans) == 0 {
		return Segmentation{}, fmt.Errorf("%w: no audio data in %s", types.ErrSegmentationFailed, file.Filename())
	}

	dir, err := mkScratchDir(s.tempDir)
	if err != nil {
		return Segmentation{}, fmt.Errorf("%w: creating scratch directory: %v", types.ErrSegmentationFailed, err)
	}

	framesPerSegment := int(length.Seconds() * float64(rate))
	segments := make([]types.AudioSegment, 0, len(spans))
	for idx := range spans {
		if err := ctx.Err(); err != nil {
			_ = os.RemoveAll(dir)
			return Segmentation{}, fmt.Errorf("%w: %v", types.ErrSegmentationFailed, err)
		}
		n := idx + 1
		startFrame := idx * framesPerSegment
		endFrame := min(startFrame+framesPerSegment, totalFrames)
		if idx == len(spans)-1 {
			endFrame = totalFrames
		}
		if startFrame >= endFrame {
			break
		}

		path := filepath.Join(dir, fmt.Sprintf("%04d.wav", n))
		chunk := buf.Data[startFrame*channels : endFrame*channels]
		if err := writeWAV(path, chunk, rate, bitDepth, channels); err != nil {
			_ = os.RemoveAll(dir)
			return Segmentation{}, fmt.Errorf("%w: exporting segment %d: %v", types.ErrSegmentationFailed, n, err)
		}

		d := framesToDuration(endFrame-startFrame, rate)
		segments = append(segments, types.AudioSegment{
			Path:            path,
			Number:          n,
			DurationMs:      d.Milliseconds(),
			DurationMinutes: d.Minutes(),
		})
		progress.Emit(scale(float64(n)/float64(len(spans)), s.from, s.to),
			fmt.Sprintf("Created segment %d of %d (%.1f min)", n, len(spans), d.Minutes()))
	}

	s.log.Info().Int("segments", len(segments)).Str("dir", dir).Msg("full-decode split complete")
	return Segmentation{Segments: segments, Dir: dir, Mode: ModeFullDecode}, nil
}

func decodeWAV(path string) (*audio.IntBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), errNotWAV)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	if buf.SourceBitDepth == 0 {
		buf.SourceBitDepth = int(dec.BitDepth)
	}
	return buf, nil
}

func writeWAV(path string, data []int, rate, bitDepth, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := wav.NewEncoder(f, rate, bitDepth, channels, wavPCMFormat)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func framesToDuration(frames, rate int) time.Duration {
	return time.Duration(float64(frames) / float64(rate) * float64(time.Second))
}
