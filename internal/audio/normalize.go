package audio

import "math"

// Loudness targets in dBFS
const (
	TargetDBFS         = -20.0
	QuietThresholdDBFS = -30.0

	// NeutralDBFS is assumed when loudness cannot be measured. It equals the
	// target so the normalization gain is zero
	NeutralDBFS = TargetDBFS
)

// NormalizationGain returns the gain in dB needed to bring a signal measured
// at dbfs up to the target. Signals at or above target get zero gain
func NormalizationGain(dbfs float64) float64 {
	if math.IsNaN(dbfs) || math.IsInf(dbfs, 0) {
		return 0
	}
	if dbfs < TargetDBFS {
		return TargetDBFS - dbfs
	}
	return 0
}

// IsQuiet reports a recording below the quiet threshold. Such files get the
// same gain rule but are logged as very quiet
func IsQuiet(dbfs float64) bool {
	return dbfs < QuietThresholdDBFS
}

// applyGain scales integer PCM samples by gainDB, clipping to the bit depth
func applyGain(samples []int, gainDB float64, bitDepth int) {
	if gainDB == 0 || len(samples) == 0 {
		return
	}
	factor := math.Pow(10, gainDB/20)
	maxVal := float64(int(1)<<(bitDepth-1)) - 1
	minVal := -maxVal - 1
	for i, s := range samples {
		v := math.Round(float64(s) * factor)
		if v > maxVal {
			v = maxVal
		} else if v < minVal {
			v = minVal
		}
		samples[i] = int(v)
	}
}

// rmsDBFS computes the RMS level of integer PCM samples relative to full scale
func rmsDBFS(samples []int, bitDepth int) (float64, bool) {
	if len(samples) == 0 || bitDepth <= 0 {
		return 0, false
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return 0, false
	}
	fullScale := float64(int(1) << (bitDepth - 1))
	return 20 * math.Log10(rms/fullScale), true
}
