// atoms.go contains pure helpers shared by the providers: endpoint
// detection, size mapping, prompt prefixes, and image decoding.
package imagegen

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/sashabaranov/go-openai"
	_ "golang.org/x/image/webp"
)

// IsAzureEndpoint checks if the given endpoint URL is an Azure OpenAI endpoint.
// It performs case-insensitive substring matching against known Azure domain patterns.
//
// Example:
//
//	IsAzureEndpoint("https://myresource.openai.azure.com")            // true
//	IsAzureEndpoint("https://myresource.cognitiveservices.azure.com") // true
//	IsAzureEndpoint("https://api.openai.com")                         // false
func IsAzureEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	lower := strings.ToLower(endpoint)
	return strings.Contains(lower, "openai.azure.com") ||
		strings.Contains(lower, "cognitiveservices.azure.com")
}

// HostedSize maps a requested size to the nearest size the hosted Images
// API accepts.
//
//	square    -> 1024x1024
//	portrait  -> 1024x1792
//	landscape -> 1792x1024
func HostedSize(s Size) string {
	switch s.Shape() {
	case ShapePortrait:
		return openai.CreateImageSize1024x1792
	case ShapeLandscape:
		return openai.CreateImageSize1792x1024
	default:
		return openai.CreateImageSize1024x1024
	}
}

// AspectPrefix is the tag prepended to prompts for providers that take
// explicit dimensions but still benefit from a written aspect hint.
func AspectPrefix(s Size) string {
	switch s.Shape() {
	case ShapePortrait:
		return "[ASPECT: Vertical Portrait 9:16] "
	case ShapeLandscape:
		return "[ASPECT: Horizontal Landscape 16:9] "
	default:
		return "[ASPECT: Square 1:1] "
	}
}

// DecodeImage decodes PNG, JPEG, or WebP bytes.
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrUndecodableImage
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}
	return img, format, nil
}

// truncate shortens s for log and error output.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
