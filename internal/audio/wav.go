package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var errNotWAV = errors.New("not a RIFF/WAV file")

// isWAVPath reports whether the extension names a WAV container
func isWAVPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".wav" || ext == ".wave"
}

// wavInfo is the header metadata of a PCM WAV file
type wavInfo struct {
	Duration   time.Duration
	SampleRate int
	Channels   int
	BitDepth   int
	// DBFS is the RMS level of the leading sample; valid only if Measured
	DBFS     float64
	Measured bool
}

// readWAVInfo reads the header of a PCM WAV file and measures the loudness of
// at most sample worth of leading audio. The PCM body is not decoded beyond
// the sample window
func readWAVInfo(path string, sample time.Duration) (wavInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return wavInfo{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return wavInfo{}, errNotWAV
	}
	if err := dec.FwdToPCM(); err != nil {
		return wavInfo{}, fmt.Errorf("locating PCM data: %w", err)
	}

	info := wavInfo{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	bytesPerSec := int64(info.SampleRate) * int64(info.Channels) * int64(info.BitDepth/8)
	if bytesPerSec <= 0 {
		return wavInfo{}, fmt.Errorf("invalid WAV format: %d Hz, %d channels, %d bits", info.SampleRate, info.Channels, info.BitDepth)
	}
	info.Duration = time.Duration(float64(dec.PCMLen()) / float64(bytesPerSec) * float64(time.Second))

	sample = min(sample, info.Duration)
	if sample > 0 {
		n := int(sample.Seconds() * float64(info.SampleRate) * float64(info.Channels))
		buf := &audio.IntBuffer{
			Format: &audio.Format{NumChannels: info.Channels, SampleRate: info.SampleRate},
			Data:   make([]int, n),
		}
		read, err := dec.PCMBuffer(buf)
		if err == nil && read > 0 {
			info.DBFS, info.Measured = rmsDBFS(buf.Data[:read], info.BitDepth)
		}
	}
	return info, nil
}
