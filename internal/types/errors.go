package types

import "errors"

// Pipeline error taxonomy. Wrap with fmt.Errorf("%w: ...") and test with errors.Is
var (
	ErrAudioFileNotFound   = errors.New("audio file not found")
	ErrAudioUnreadable     = errors.New("audio unreadable")
	ErrSegmentationFailed  = errors.New("segmentation failed")
	ErrModelInitialization = errors.New("model initialization failed")
	ErrInvalidCredential   = errors.New("invalid or expired API key")
	ErrTranscriptionAPI    = errors.New("transcription API error")
	ErrSafetyFilterBlock   = errors.New("content blocked by safety filters")
)
