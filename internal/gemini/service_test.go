package gemini

import (
	"testing"

	"google.golang.org/genai"
)

func TestToGenerateResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
		Candidates: []*genai.Candidate{
			nil,
			{
				Content: &genai.Content{Parts: []*genai.Part{
					{Text: "thinking", Thought: true},
					{Text: "Xin chào"},
					nil,
					{Text: "mọi người"},
				}},
				FinishReason: genai.FinishReasonSafety,
			},
		},
	}

	out := toGenerateResponse(resp)
	if out.BlockReason != "SAFETY" {
		t.Errorf("BlockReason = %q", out.BlockReason)
	}
	if len(out.Candidates) != 1 {
		t.Fatalf("candidates = %+v", out.Candidates)
	}
	if got := out.Candidates[0]; got.Text != "Xin chào mọi người" || got.FinishReason != "SAFETY" {
		t.Fatalf("candidate = %+v", got)
	}

	if got := classify(out); got.Kind != kindBlockedWithText {
		t.Fatalf("classify = %v, want blocked-with-text", got.Kind)
	}
}

func TestToGenerateResponseNil(t *testing.T) {
	if out := toGenerateResponse(nil); len(out.Candidates) != 0 || out.BlockReason != "" {
		t.Fatalf("nil response = %+v", out)
	}
}

func TestToRemoteFile(t *testing.T) {
	f := toRemoteFile(&genai.File{
		Name:     "files/abc",
		URI:      "https://example/files/abc",
		MIMEType: "audio/mpeg",
		State:    genai.FileStateFailed,
		Error:    &genai.FileStatus{Message: "bad audio"},
	})
	if f.Name != "files/abc" || f.State != stateFailed || f.Error != "bad audio" || f.MimeType != "audio/mpeg" {
		t.Fatalf("remote file = %+v", f)
	}
}

func TestToModelInfo(t *testing.T) {
	m := toModelInfo(&genai.Model{Name: "models/gemini-2.5-flash", SupportedActions: []string{"generateContent"}})
	if m.Name != "gemini-2.5-flash" || !m.supports(generateMethod) {
		t.Fatalf("model = %+v", m)
	}
}
