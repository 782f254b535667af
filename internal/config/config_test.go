package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "HOST", "PORT", "TRANSCRIBE_LANGUAGE", "LOG_LEVEL", "LOG_FORMAT",
		"DEFAULT_CHUNK_LENGTH", "MAX_FILE_SIZE", "DISABLE_EXTERNAL_TOOLS",
	} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 5001 {
		t.Errorf("port = %d, want 5001", cfg.Server.Port)
	}
	if cfg.Transcription.DefaultSegmentMinutes != 12 {
		t.Errorf("segment minutes = %d, want 12", cfg.Transcription.DefaultSegmentMinutes)
	}
	if cfg.Gemini.Language != "vi" {
		t.Errorf("language = %q, want vi", cfg.Gemini.Language)
	}
	if cfg.MaxFileSize() != 25*1024*1024 {
		t.Errorf("max file size = %d", cfg.MaxFileSize())
	}
	if cfg.JobMaxAge() != time.Hour {
		t.Errorf("job max age = %v, want 1h", cfg.JobMaxAge())
	}
	if cfg.TempFileMaxAge() != 24*time.Hour {
		t.Errorf("temp file max age = %v, want 24h", cfg.TempFileMaxAge())
	}
	if len(cfg.Limits.AllowedExtensions) != 7 {
		t.Errorf("allowed extensions = %v", cfg.Limits.AllowedExtensions)
	}
}

func TestLoadFileAndPartialDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 8080
gemini:
  api_key: from-file
  language: en
transcription:
  default_segment_minutes: 45
jobs:
  max_age_minutes: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q, want default", cfg.Server.Host)
	}
	if cfg.Gemini.APIKey != "from-file" || cfg.Gemini.Language != "en" {
		t.Errorf("gemini = %+v", cfg.Gemini)
	}
	if cfg.Transcription.DefaultSegmentMinutes != 12 {
		t.Errorf("out of range segment minutes not clamped: %d", cfg.Transcription.DefaultSegmentMinutes)
	}
	if cfg.JobMaxAge() != 10*time.Minute {
		t.Errorf("job max age = %v", cfg.JobMaxAge())
	}
	if cfg.Gemini.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Gemini.MaxAttempts)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "gemini:\n  api_key: from-file\n")
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("PORT", "9000")
	t.Setenv("DEFAULT_CHUNK_LENGTH", "20")
	t.Setenv("MAX_FILE_SIZE", "104857600")
	t.Setenv("DISABLE_EXTERNAL_TOOLS", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gemini.APIKey != "from-env" {
		t.Errorf("api key = %q, want from-env", cfg.Gemini.APIKey)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Transcription.DefaultSegmentMinutes != 20 {
		t.Errorf("segment minutes = %d", cfg.Transcription.DefaultSegmentMinutes)
	}
	if cfg.Limits.MaxFileSizeMB != 100 {
		t.Errorf("max file size MB = %d, want 100", cfg.Limits.MaxFileSizeMB)
	}
	if !cfg.Audio.DisableExternalTools {
		t.Error("expected external tools disabled")
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("GEMINI_API_KEY")
	if err := os.WriteFile(".env", []byte("GEMINI_API_KEY=dotenv-key\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("GEMINI_API_KEY") })

	cfg, err := Load("missing.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gemini.APIKey != "dotenv-key" {
		t.Fatalf("api key = %q, want dotenv-key", cfg.Gemini.APIKey)
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	if _, err := Load("missing.yaml"); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected missing API key error")
	}
	cfg.Gemini.APIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected port range error")
	}
}

func TestClampSegmentMinutes(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 12}, {-5, 12}, {1, 1}, {12, 12}, {30, 30}, {31, 12}, {50, 12},
	}
	for _, tt := range tests {
		if got := ClampSegmentMinutes(tt.in); got != tt.want {
			t.Errorf("ClampSegmentMinutes(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTempFileMaxAgeCoversJobAge(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
storage:
  temp_max_age_hours: 1
jobs:
  max_age_minutes: 180
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TempFileMaxAge() != 3*time.Hour {
		t.Errorf("temp file max age = %v, want 3h", cfg.TempFileMaxAge())
	}
}
