package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/segment-transcriber/internal/audio"
	"github.com/codebuildervaibhav/segment-transcriber/internal/cleanup"
	"github.com/codebuildervaibhav/segment-transcriber/internal/config"
	"github.com/codebuildervaibhav/segment-transcriber/internal/gemini"
	"github.com/codebuildervaibhav/segment-transcriber/internal/handlers"
	"github.com/codebuildervaibhav/segment-transcriber/internal/logging"
	"github.com/codebuildervaibhav/segment-transcriber/internal/pipeline"
	"github.com/codebuildervaibhav/segment-transcriber/internal/queue"
	"github.com/codebuildervaibhav/segment-transcriber/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	authorizeDrive := flag.Bool("authorize-drive", false, "run the Google Drive OAuth flow, save the token and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Keep recent lines in memory for GET /logs
	logBuffer := logging.NewBuffer(logging.DefaultBufferLines)
	log := logging.NewWithWriter(cfg.Log, io.MultiWriter(os.Stdout, logBuffer))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *authorizeDrive {
		err := storage.AuthorizeDrive(ctx, cfg.GoogleDrive.CredentialsFile, cfg.GoogleDrive.TokenFile, os.Stdin, os.Stdout)
		if err != nil {
			log.Fatal().Err(err).Msg("Google Drive authorization failed")
		}
		log.Info().Str("token", cfg.GoogleDrive.TokenFile).Msg("Google Drive token saved")
		return
	}

	if err := run(ctx, cfg, log, logBuffer); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, logBuffer *logging.Buffer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Ensure directories exist
	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir, log); err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Storage.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	log.Info().Msg("initializing components")

	inspectorOpts := []audio.InspectorOption{
		audio.WithTools(cfg.Audio.FFprobePath, cfg.Audio.FFmpegPath),
		audio.WithProbeTimeout(cfg.ProbeTimeout()),
		audio.WithLoudnessSample(cfg.LoudnessSample()),
	}
	if cfg.Audio.DisableExternalTools {
		inspectorOpts = append(inspectorOpts, audio.WithoutExternalTools())
	}
	inspector := audio.NewInspector(logging.Component(log, "inspector"), inspectorOpts...)

	segmenter := audio.NewSegmenter(audio.SegmenterConfig{
		FFmpegPath:           cfg.Audio.FFmpegPath,
		TempDir:              cfg.Storage.TempDir,
		DisableExternalTools: cfg.Audio.DisableExternalTools,
	}, logging.Component(log, "segmenter"))

	client, err := gemini.New(ctx, gemini.Config{
		APIKey:          cfg.Gemini.APIKey,
		Language:        cfg.Gemini.Language,
		PreferredModels: cfg.Gemini.PreferredModels,
		MaxAttempts:     cfg.Gemini.MaxAttempts,
	}, logging.Component(log, "gemini"))
	if err != nil {
		return err
	}

	localStorage := storage.NewLocalStorage(cfg.Storage.OutputDir)

	db, err := storage.NewMetadataDB(cfg.Storage.Database)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	orchestrator := pipeline.New(inspector, segmenter, client, localStorage, logging.Component(log, "pipeline"))

	serviceOpts := []queue.Option{
		queue.WithRecorder(db),
		queue.WithSummaryWriter(localStorage),
		queue.WithInputRemoval(),
	}
	// Google Drive client (optional)
	if driveClient := newDriveClient(ctx, cfg, log); driveClient != nil {
		serviceOpts = append(serviceOpts, queue.WithExporter(driveClient))
	}
	store := queue.NewStore(logging.Component(log, "jobs"))
	service := queue.NewService(store, queue.NewEventBus(queue.DefaultMaxEvents), orchestrator,
		logging.Component(log, "worker"), serviceOpts...)

	scheduler := cleanup.NewScheduler(cfg.Storage.TempDir, cfg.SweepInterval(), cfg.JobMaxAge(), cfg.TempFileMaxAge(), store,
		logging.Component(log, "cleanup"))
	scheduler.Start(ctx)
	defer scheduler.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit:             int(cfg.MaxFileSize()) + 1024*1024,
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: logBuffer}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	uploadDir := filepath.Join(cfg.Storage.TempDir, "uploads")
	validator := handlers.NewValidator(cfg.Limits.AllowedExtensions, cfg.MaxFileSize())
	httpLog := logging.Component(log, "http")
	handlers.Routes{
		Upload:  handlers.NewUploadHandler(service, validator, uploadDir, cfg.Transcription.DefaultSegmentMinutes, httpLog),
		Status:  handlers.NewStatusHandler(service),
		Events:  handlers.NewEventsHandler(service, httpLog),
		Stream:  handlers.NewStreamHandler(service, validator, uploadDir, cfg.Transcription.DefaultSegmentMinutes, httpLog),
		History: handlers.NewHistoryHandler(db, localStorage, httpLog),
		Logs:    logBuffer,
	}.Mount(app)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info().
		Str("addr", addr).
		Str("model", client.Model()).
		Str("segmenter", segmenter.Mode()).
		Msg("server starting")
	log.Info().Msg("endpoints: POST /transcribe, GET /transcribe/status/:id, GET /transcribe/events/:id, " +
		"GET /ws/stream, GET /ws/jobs/:id, GET /transcripts, GET /transcripts/:id/text, GET /logs, GET /health")

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down gracefully")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return nil
}

// newDriveClient returns nil when Drive is not set up; transcripts are then
// saved locally only
func newDriveClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) *storage.DriveClient {
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info().Msg("Google Drive credentials not found - saving locally only")
		} else {
			log.Warn().Err(err).Msg("Google Drive credentials unreadable - saving locally only")
		}
		return nil
	}
	client, err := storage.NewDriveClient(ctx, cfg.GoogleDrive.CredentialsFile, cfg.GoogleDrive.TokenFile, cfg.GoogleDrive.FolderName)
	if err != nil {
		log.Warn().Err(err).Msg("Google Drive not available, transcripts will only be saved locally")
		return nil
	}
	log.Info().Str("folder", cfg.GoogleDrive.FolderName).Msg("Google Drive integration enabled")
	return client
}
