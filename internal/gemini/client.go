package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

// Client defaults
const (
	DefaultMaxAttempts  = 3
	DefaultPollInterval = 2 * time.Second
	DefaultMaxWait      = 5 * time.Minute
	DefaultRetryDelay   = 500 * time.Millisecond
	DefaultTemperature  = 0.1
	deleteTimeout       = 30 * time.Second
)

// Config configures a Client
type Config struct {
	APIKey          string
	Language        string
	PreferredModels []string
	// Prompts is the per-attempt prompt policy; see DefaultPrompts
	Prompts      []string
	MaxAttempts  int
	PollInterval time.Duration
	MaxWait      time.Duration
	RetryDelay   time.Duration
}

func (c *Config) applyDefaults() {
	if c.Language == "" {
		c.Language = "vi"
	}
	if len(c.Prompts) == 0 {
		c.Prompts = DefaultPrompts
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
}

// Client transcribes audio segments with a Gemini model
type Client struct {
	api   api
	model string
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	log   zerolog.Logger
}

// New connects to the Gemini API and selects a model. It fails with
// types.ErrModelInitialization when no model can be used
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key not found; set GEMINI_API_KEY", types.ErrModelInitialization)
	}
	svc, err := newAPIService(ctx, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrModelInitialization, err)
	}
	return newClient(ctx, svc, cfg, log)
}

func newClient(ctx context.Context, a api, cfg Config, log zerolog.Logger) (*Client, error) {
	cfg.applyDefaults()
	model, err := selectModel(ctx, a, cfg.PreferredModels, log)
	if err != nil {
		return nil, err
	}
	log.Info().Str("model", model).Str("language", cfg.Language).Msg("gemini model selected")
	return &Client{
		api:   a,
		model: model,
		cfg:   cfg,
		sleep: sleepContext,
		now:   time.Now,
		log:   log,
	}, nil
}

// Model returns the selected model id
func (c *Client) Model() string { return c.model }

// TranscribeSegment uploads one segment, transcribes it and deletes the
// upload. Remote failures come back as an error-flagged transcript
func (c *Client) TranscribeSegment(ctx context.Context, seg types.AudioSegment, total int) types.SegmentTranscript {
	log := c.log.With().Int("segment", seg.Number).Int("total", total).Logger()

	text, err := c.transcribe(ctx, seg, log)
	if err != nil {
		msg := fmt.Sprintf("Failed to transcribe segment %d: %v", seg.Number, err)
		if errors.Is(err, types.ErrSafetyFilterBlock) {
			msg = fmt.Sprintf("Segment %d was blocked by safety filters after %d attempts (likely a false positive)",
				seg.Number, c.cfg.MaxAttempts)
		}
		log.Warn().Err(err).Msg("segment transcription failed")
		return types.SegmentTranscript{Number: seg.Number, IsError: true, Error: msg}
	}

	log.Info().Int("chars", len(text)).Msg("segment transcribed")
	return types.SegmentTranscript{Number: seg.Number, Text: text}
}

func (c *Client) transcribe(ctx context.Context, seg types.AudioSegment, log zerolog.Logger) (string, error) {
	mime := mimeType(seg.Path)
	file, err := c.api.UploadFile(ctx, seg.Path, mime, seg.Filename())
	if err != nil {
		return "", fmt.Errorf("%w: upload: %v", types.ErrTranscriptionAPI, err)
	}
	defer c.deleteFile(ctx, file.Name, log)

	file, err = c.waitActive(ctx, file)
	if err != nil {
		return "", err
	}
	if file.MimeType == "" {
		file.MimeType = mime
	}
	return c.generateWithRetry(ctx, file, log)
}

// waitActive polls the uploaded file until it leaves the processing state
func (c *Client) waitActive(ctx context.Context, file remoteFile) (remoteFile, error) {
	deadline := c.now().Add(c.cfg.MaxWait)
	for file.State == stateProcessing {
		if !c.now().Before(deadline) {
			return file, fmt.Errorf("%w: file still processing after %s", types.ErrTranscriptionAPI, c.cfg.MaxWait)
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return file, err
		}
		next, err := c.api.GetFile(ctx, file.Name)
		if err != nil {
			return file, fmt.Errorf("%w: checking file state: %v", types.ErrTranscriptionAPI, err)
		}
		file = next
	}
	if file.State == stateFailed {
		detail := file.Error
		if detail == "" {
			detail = file.State
		}
		return file, fmt.Errorf("%w: file processing failed: %s", types.ErrTranscriptionAPI, detail)
	}
	return file, nil
}

// generateWithRetry runs up to MaxAttempts generations with a de-escalating
// prompt. Only the first attempt relaxes safety thresholds
func (c *Client) generateWithRetry(ctx context.Context, file remoteFile, log zerolog.Logger) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, c.cfg.RetryDelay); err != nil {
				return "", err
			}
		}

		resp, err := c.api.Generate(ctx, generateRequest{
			Model:       c.model,
			Prompt:      promptFor(c.cfg.Prompts, c.cfg.Language, attempt),
			FileURI:     file.URI,
			MimeType:    file.MimeType,
			Temperature: DefaultTemperature,
			RelaxSafety: attempt == 1,
		})
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			lastErr = fmt.Errorf("%w: %v", types.ErrTranscriptionAPI, err)
			log.Warn().Err(err).Int("attempt", attempt).Msg("generation failed")
			continue
		}

		out := classify(resp)
		switch out.Kind {
		case kindText:
			return out.Text, nil
		case kindBlockedWithText:
			log.Info().Int("attempt", attempt).Str("reason", out.Reason).Msg("response flagged but carries text; accepting")
			return out.Text, nil
		case kindBlockedNoText:
			lastErr = fmt.Errorf("%w: %s", types.ErrSafetyFilterBlock, out.Reason)
			log.Warn().Int("attempt", attempt).Int("max", c.cfg.MaxAttempts).Str("reason", out.Reason).Msg("blocked by safety filters")
		default:
			lastErr = fmt.Errorf("%w: %s", types.ErrTranscriptionAPI, out.Reason)
			log.Warn().Int("attempt", attempt).Str("reason", out.Reason).Msg("unusable response")
		}
	}
	return "", lastErr
}

// deleteFile removes the upload even when ctx is already cancelled
func (c *Client) deleteFile(ctx context.Context, name string, log zerolog.Logger) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()
	if err := c.api.DeleteFile(ctx, name); err != nil {
		log.Warn().Err(err).Str("file", name).Msg("failed to delete uploaded file")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
