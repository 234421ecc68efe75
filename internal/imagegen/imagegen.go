// Package imagegen builds image URLs on a public prompt-to-image service.
package imagegen

import (
	"errors"
	"net/url"
	"strings"
)

const DefaultBaseURL = "https://image.pollinations.ai/prompt/"

var ErrEmptyPrompt = errors.New("prompt is required")

// URL returns the image URL for prompt. The service renders lazily on the
// first GET, so nothing is fetched here.
func URL(prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	return DefaultBaseURL + url.PathEscape(prompt), nil
}
