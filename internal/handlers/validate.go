package handlers

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/codebuildervaibhav/segment-transcriber/internal/config"
)

// Validator checks uploaded files against the configured limits
type Validator struct {
	allowed map[string]bool
	maxSize int64
}

// NewValidator creates a validator. Extensions are given without the dot
func NewValidator(allowedExtensions []string, maxSize int64) *Validator {
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Validator{allowed: allowed, maxSize: maxSize}
}

// ValidateFilename checks that the name carries an allowed extension
func (v *Validator) ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("No file selected")
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return errors.New("File must have an extension")
	}
	if !v.allowed[strings.ToLower(ext)] {
		return fmt.Errorf("File type not allowed. Allowed types: %s", v.allowedList())
	}
	return nil
}

// ValidateSize checks the upload size limit
func (v *Validator) ValidateSize(size int64) error {
	if v.maxSize > 0 && size > v.maxSize {
		return fmt.Errorf("File too large. Maximum size: %d MB", v.maxSize/(1024*1024))
	}
	return nil
}

func (v *Validator) allowedList() string {
	exts := make([]string, 0, len(v.allowed))
	for ext := range v.allowed {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}

// parseSegmentLength reads a form value, falling back to def when it is
// missing or not a number, then clamps it
func parseSegmentLength(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		n = def
	}
	return config.ClampSegmentMinutes(n)
}
