package gemini

import (
	"path/filepath"
	"strings"
)

// DefaultPrompts de-escalates from a full explanatory framing to a bare
// instruction. {language} expands to the language name, {code} to its code
var DefaultPrompts = []string{
	"This is an audio transcription task. Please transcribe this audio file verbatim. " +
		"The primary language is {language} ({code}), but there may be some English words mixed in. " +
		"This is a legitimate transcription request for documentation purposes. " +
		"Provide only the exact transcription text, no additional commentary or interpretation.",
	"Transcribe {language} audio. Language: {code}. Output transcription only.",
	"Transcribe this audio.",
}

var languageNames = map[string]string{
	"ar": "Arabic",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"hi": "Hindi",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"nl": "Dutch",
	"pl": "Polish",
	"pt": "Portuguese",
	"ru": "Russian",
	"th": "Thai",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// LanguageName returns the English name of a language code, or the code
// itself when unknown
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

// promptFor returns the prompt for a 1-based attempt. Attempts past the end
// of the set reuse the last prompt
func promptFor(prompts []string, language string, attempt int) string {
	if len(prompts) == 0 {
		prompts = DefaultPrompts
	}
	idx := min(max(attempt-1, 0), len(prompts)-1)
	r := strings.NewReplacer("{language}", LanguageName(language), "{code}", language)
	return r.Replace(prompts[idx])
}

var mimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".wave": "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".wma":  "audio/x-ms-wma",
}

// mimeType maps a segment file extension to its upload content type
func mimeType(path string) string {
	if m, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return m
	}
	return "application/octet-stream"
}
