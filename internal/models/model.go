package models

import (
	"context"
	"encoding/base64"
	"errors"
)

// Prompt is one multimodal request: a text instruction plus a single image
type Prompt struct {
	Text     string
	Image    []byte
	MIMEType string
}

// DataURL returns the image as an inline base64 data URL
func (p Prompt) DataURL() string {
	return "data:" + p.MIMEType + ";base64," + p.Base64()
}

// Base64 returns the standard base64 encoding of the image
func (p Prompt) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Image)
}

// VisionModel describes an image following a text prompt
type VisionModel interface {
	// Describe sends the prompt and image and returns the model's text answer
	Describe(ctx context.Context, p Prompt) (string, error)

	// Name identifies the provider and model, e.g. "openai:gpt-4o"
	Name() string
}

// ErrEmptyResponse is returned when a provider answers without any text
var ErrEmptyResponse = errors.New("model returned no text")
