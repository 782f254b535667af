package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

// DefaultPreferredModels is ordered from most to least preferred
var DefaultPreferredModels = []string{
	"gemini-3-flash",
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
	"gemini-pro",
}

// fallbackModels are probed directly when listing fails
var fallbackModels = []string{"gemini-1.5-flash", "gemini-pro"}

const generateMethod = "generateContent"

var invalidKeyMarkers = []string{"api_key_invalid", "api key not valid", "invalid api key"}

func isInvalidCredential(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range invalidKeyMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func credentialError(err error) error {
	return fmt.Errorf("%w: %w: get a valid key at https://aistudio.google.com/apikey and set GEMINI_API_KEY (%v)",
		types.ErrModelInitialization, types.ErrInvalidCredential, err)
}

// selectModel picks the first preferred model the key can use, then the
// first listed model, then a probed fallback
func selectModel(ctx context.Context, a api, preferred []string, log zerolog.Logger) (string, error) {
	if len(preferred) == 0 {
		preferred = DefaultPreferredModels
	}

	models, listErr := a.ListModels(ctx)
	if listErr == nil {
		available := make(map[string]bool, len(models))
		var first string
		for _, m := range models {
			if !m.supports(generateMethod) {
				continue
			}
			available[m.Name] = true
			if first == "" {
				first = m.Name
			}
		}
		for _, name := range preferred {
			if available[name] {
				return name, nil
			}
		}
		if first != "" {
			log.Warn().Str("model", first).Msg("no preferred model available; using first listed model")
			return first, nil
		}
		listErr = errors.New("no listed model supports " + generateMethod)
	}
	if isInvalidCredential(listErr) {
		return "", credentialError(listErr)
	}

	log.Warn().Err(listErr).Msg("model listing failed; probing fallback models")
	for _, name := range fallbackModels {
		_, err := a.GetModel(ctx, name)
		if err == nil {
			return name, nil
		}
		if isInvalidCredential(err) {
			return "", credentialError(err)
		}
	}
	return "", fmt.Errorf("%w: could not select a Gemini model: %v", types.ErrModelInitialization, listErr)
}
