package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/segment-transcriber/internal/logging"
)

// Segment length bounds in minutes
const (
	DefaultSegmentMinutes = 12
	MinSegmentMinutes     = 1
	MaxSegmentMinutes     = 30
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Gemini struct {
		APIKey          string   `yaml:"api_key"`
		Language        string   `yaml:"language"`
		PreferredModels []string `yaml:"preferred_models"`
		MaxAttempts     int      `yaml:"max_attempts"`
	} `yaml:"gemini"`

	Audio struct {
		FFmpegPath           string `yaml:"ffmpeg_path"`
		FFprobePath          string `yaml:"ffprobe_path"`
		ProbeTimeoutSeconds  int    `yaml:"probe_timeout_seconds"`
		LoudnessSampleSecs   int    `yaml:"loudness_sample_seconds"`
		DisableExternalTools bool   `yaml:"disable_external_tools"`
	} `yaml:"audio"`

	Transcription struct {
		DefaultSegmentMinutes int `yaml:"default_segment_minutes"`
	} `yaml:"transcription"`

	Storage struct {
		TempDir   string `yaml:"temp_dir"`
		OutputDir string `yaml:"output_dir"`
		Database  string `yaml:"database"`

		// TempMaxAgeHours bounds uploads and segment scratch files. It is
		// never shorter than the job max age
		TempMaxAgeHours int `yaml:"temp_max_age_hours"`
	} `yaml:"storage"`

	Jobs struct {
		MaxAgeMinutes        int `yaml:"max_age_minutes"`
		SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
	} `yaml:"jobs"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB     int      `yaml:"max_file_size_mb"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
	} `yaml:"limits"`

	Log logging.Config `yaml:"log"`
}

// Default returns a Config populated with default values
func Default() *Config {
	c := &Config{}
	c.Server.Port = 5001
	c.Server.Host = "0.0.0.0"
	c.Gemini.Language = "vi"
	c.Gemini.MaxAttempts = 3
	c.Audio.FFmpegPath = "ffmpeg"
	c.Audio.FFprobePath = "ffprobe"
	c.Audio.ProbeTimeoutSeconds = 30
	c.Audio.LoudnessSampleSecs = 30
	c.Transcription.DefaultSegmentMinutes = DefaultSegmentMinutes
	c.Storage.TempDir = "temp"
	c.Storage.OutputDir = "outputs"
	c.Storage.Database = "transcripts.db"
	c.Storage.TempMaxAgeHours = 24
	c.Jobs.MaxAgeMinutes = 60
	c.Jobs.SweepIntervalMinutes = 5
	c.GoogleDrive.CredentialsFile = "credentials.json"
	c.GoogleDrive.TokenFile = "token.json"
	c.GoogleDrive.FolderName = "Transcripts"
	c.Limits.MaxFileSizeMB = 25
	c.Limits.AllowedExtensions = []string{"mp3", "wav", "m4a", "flac", "ogg", "aac", "wma"}
	c.Log = logging.Config{Level: "info", Format: "console"}
	return c
}

// Load reads the YAML file at path over the defaults, then applies .env and
// environment overrides. A missing file is not an error
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// .env is optional; existing environment variables win over it
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillZeroes()
	return cfg, nil
}

// applyEnv overlays environment variables onto the loaded file values
func (c *Config) applyEnv() error {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("TRANSCRIBE_LANGUAGE"); v != "" {
		c.Gemini.Language = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &c.Server.Port},
		{"DEFAULT_CHUNK_LENGTH", &c.Transcription.DefaultSegmentMinutes},
	}
	for _, e := range ints {
		v := os.Getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", e.key, v, err)
		}
		*e.dst = n
	}

	// MAX_FILE_SIZE is in bytes, as the original deployment used it
	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_FILE_SIZE %q: %w", v, err)
		}
		c.Limits.MaxFileSizeMB = int((n + (1 << 20) - 1) >> 20)
	}
	if v := os.Getenv("DISABLE_EXTERNAL_TOOLS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DISABLE_EXTERNAL_TOOLS %q: %w", v, err)
		}
		c.Audio.DisableExternalTools = b
	}
	return nil
}

// fillZeroes restores defaults for values a partial file left at zero
func (c *Config) fillZeroes() {
	d := Default()
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Gemini.Language == "" {
		c.Gemini.Language = d.Gemini.Language
	}
	if c.Gemini.MaxAttempts <= 0 {
		c.Gemini.MaxAttempts = d.Gemini.MaxAttempts
	}
	if c.Audio.ProbeTimeoutSeconds <= 0 {
		c.Audio.ProbeTimeoutSeconds = d.Audio.ProbeTimeoutSeconds
	}
	if c.Audio.LoudnessSampleSecs <= 0 {
		c.Audio.LoudnessSampleSecs = d.Audio.LoudnessSampleSecs
	}
	c.Transcription.DefaultSegmentMinutes = ClampSegmentMinutes(c.Transcription.DefaultSegmentMinutes)
	if c.Storage.TempMaxAgeHours <= 0 {
		c.Storage.TempMaxAgeHours = d.Storage.TempMaxAgeHours
	}
	if c.Jobs.MaxAgeMinutes <= 0 {
		c.Jobs.MaxAgeMinutes = d.Jobs.MaxAgeMinutes
	}
	if c.Jobs.SweepIntervalMinutes <= 0 {
		c.Jobs.SweepIntervalMinutes = d.Jobs.SweepIntervalMinutes
	}
	if c.Limits.MaxFileSizeMB <= 0 {
		c.Limits.MaxFileSizeMB = d.Limits.MaxFileSizeMB
	}
	if len(c.Limits.AllowedExtensions) == 0 {
		c.Limits.AllowedExtensions = d.Limits.AllowedExtensions
	}
}

// Validate reports configuration that prevents the server from starting
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		return errors.New("GEMINI_API_KEY not configured; set it in the environment or gemini.api_key")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// ProbeTimeout returns the metadata and loudness probe timeout
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Audio.ProbeTimeoutSeconds) * time.Second
}

// LoudnessSample returns the length of the leading loudness sample
func (c *Config) LoudnessSample() time.Duration {
	return time.Duration(c.Audio.LoudnessSampleSecs) * time.Second
}

// JobMaxAge returns how long a job record is kept
func (c *Config) JobMaxAge() time.Duration {
	return time.Duration(c.Jobs.MaxAgeMinutes) * time.Minute
}

// TempFileMaxAge returns how long temp files are kept, at least JobMaxAge
func (c *Config) TempFileMaxAge() time.Duration {
	return max(time.Duration(c.Storage.TempMaxAgeHours)*time.Hour, c.JobMaxAge())
}

// SweepInterval returns the cleanup scheduler period
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Jobs.SweepIntervalMinutes) * time.Minute
}

// MaxFileSize returns the upload limit in bytes
func (c *Config) MaxFileSize() int64 {
	return int64(c.Limits.MaxFileSizeMB) * 1024 * 1024
}

// ClampSegmentMinutes maps an out-of-range segment length to the default
func ClampSegmentMinutes(minutes int) int {
	if minutes < MinSegmentMinutes || minutes > MaxSegmentMinutes {
		return DefaultSegmentMinutes
	}
	return minutes
}
