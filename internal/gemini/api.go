package gemini

import (
	"context"

	"google.golang.org/genai"
)

// Remote file processing states
const (
	stateProcessing = string(genai.FileStateProcessing)
	stateActive     = string(genai.FileStateActive)
	stateFailed     = string(genai.FileStateFailed)
)

// remoteFile is an uploaded audio artifact on the remote service
type remoteFile struct {
	Name     string
	URI      string
	MimeType string
	State    string
	Error    string
}

// modelInfo describes one remote model
type modelInfo struct {
	// Name is the bare model id, without the "models/" prefix
	Name    string
	Methods []string
}

func (m modelInfo) supports(method string) bool {
	for _, s := range m.Methods {
		if s == method {
			return true
		}
	}
	return false
}

// generateRequest asks the model to transcribe one uploaded file
type generateRequest struct {
	Model       string
	Prompt      string
	FileURI     string
	MimeType    string
	Temperature float64
	// RelaxSafety sends per-request BLOCK_NONE safety thresholds
	RelaxSafety bool
}

type candidate struct {
	Text         string
	FinishReason string
}

// generateResponse is the part of a generation response the client reads
type generateResponse struct {
	Candidates  []candidate
	BlockReason string
}

// api is the subset of the remote service used by Client
type api interface {
	ListModels(ctx context.Context) ([]modelInfo, error)
	GetModel(ctx context.Context, name string) (modelInfo, error)
	UploadFile(ctx context.Context, path, mimeType, displayName string) (remoteFile, error)
	GetFile(ctx context.Context, name string) (remoteFile, error)
	DeleteFile(ctx context.Context, name string) error
	Generate(ctx context.Context, req generateRequest) (generateResponse, error)
}
