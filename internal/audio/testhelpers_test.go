package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// fakeRunner simulates tool execution
type fakeRunner struct {
	run    func(ctx context.Context, name string, args ...string) (commandResult, error)
	stream func(ctx context.Context, onLine func(string), name string, args ...string) (commandResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

func (f *fakeRunner) Stream(ctx context.Context, onLine func(string), name string, args ...string) (commandResult, error) {
	if f.stream == nil {
		return commandResult{}, nil
	}
	return f.stream(ctx, onLine, name, args...)
}

func found(string) (string, error) { return "/usr/bin/tool", nil }

func missing(name string) (string, error) { return "", os.ErrNotExist }

// writeTestWAV writes a mono 16-bit PCM file where every sample has the
// given magnitude with alternating sign
func writeTestWAV(t *testing.T, path string, rate, seconds, amplitude int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	data := make([]int, rate*seconds)
	for i := range data {
		if i%2 == 0 {
			data[i] = amplitude
		} else {
			data[i] = -amplitude
		}
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
