package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const modelPrefix = "models/"

// harmCategories are relaxed on the first attempt of every segment
var harmCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
}

// apiService adapts the genai SDK client to api
type apiService struct {
	client *genai.Client
}

func newAPIService(ctx context.Context, apiKey string) (*apiService, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &apiService{client: client}, nil
}

func (s *apiService) ListModels(ctx context.Context) ([]modelInfo, error) {
	var out []modelInfo
	for m, err := range s.client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}
		if m != nil {
			out = append(out, toModelInfo(m))
		}
	}
	return out, nil
}

func (s *apiService) GetModel(ctx context.Context, name string) (modelInfo, error) {
	m, err := s.client.Models.Get(ctx, name, nil)
	if err != nil {
		return modelInfo{}, err
	}
	return toModelInfo(m), nil
}

func (s *apiService) UploadFile(ctx context.Context, path, mimeType, displayName string) (remoteFile, error) {
	f, err := s.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return remoteFile{}, err
	}
	if f == nil {
		return remoteFile{}, fmt.Errorf("upload of %s returned no file", displayName)
	}
	return toRemoteFile(f), nil
}

func (s *apiService) GetFile(ctx context.Context, name string) (remoteFile, error) {
	f, err := s.client.Files.Get(ctx, name, nil)
	if err != nil {
		return remoteFile{}, err
	}
	return toRemoteFile(f), nil
}

func (s *apiService) DeleteFile(ctx context.Context, name string) error {
	_, err := s.client.Files.Delete(ctx, name, nil)
	return err
}

func (s *apiService) Generate(ctx context.Context, req generateRequest) (generateResponse, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(req.Prompt),
			genai.NewPartFromURI(req.FileURI, req.MimeType),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.RelaxSafety {
		for _, c := range harmCategories {
			config.SafetySettings = append(config.SafetySettings, &genai.SafetySetting{
				Category:  c,
				Threshold: genai.HarmBlockThresholdBlockNone,
			})
		}
	}

	resp, err := s.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return generateResponse{}, err
	}
	return toGenerateResponse(resp), nil
}

func toGenerateResponse(resp *genai.GenerateContentResponse) generateResponse {
	var out generateResponse
	if resp == nil {
		return out
	}
	if resp.PromptFeedback != nil {
		out.BlockReason = string(resp.PromptFeedback.BlockReason)
	}
	for _, c := range resp.Candidates {
		if c == nil {
			continue
		}
		var parts []string
		if c.Content != nil {
			for _, p := range c.Content.Parts {
				if p != nil && p.Text != "" && !p.Thought {
					parts = append(parts, p.Text)
				}
			}
		}
		out.Candidates = append(out.Candidates, candidate{
			Text:         strings.Join(parts, " "),
			FinishReason: string(c.FinishReason),
		})
	}
	return out
}

func toModelInfo(m *genai.Model) modelInfo {
	return modelInfo{
		Name:    strings.TrimPrefix(m.Name, modelPrefix),
		Methods: m.SupportedActions,
	}
}

func toRemoteFile(f *genai.File) remoteFile {
	rf := remoteFile{
		Name:     f.Name,
		URI:      f.URI,
		MimeType: f.MIMEType,
		State:    string(f.State),
	}
	if f.Error != nil {
		rf.Error = f.Error.Message
	}
	return rf
}
