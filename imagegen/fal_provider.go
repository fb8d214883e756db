// fal_provider.go implements the FalProvider molecule: a third-party
// provider that accepts explicit dimensions and a seed, and answers with a
// hosted image URL.
//
// This molecule composes:
//   - atoms.go: AspectPrefix
//   - downloader.go: fetches and decodes the returned URL
//   - core.Config: key, base URL, model
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"storyforge/core"
)

// ThirdPartyName is the provider name used in logs and history.
const ThirdPartyName = "third-party"

// FalProvider implements Provider for fal.ai style endpoints.
//
// The request is a synchronous POST to {base}/{model}; the response lists
// image URLs that are fetched through the Downloader.
//
// Thread Safety: FalProvider is safe for concurrent use.
type FalProvider struct {
	client     *http.Client
	baseURL    string
	model      string
	apiKey     string
	downloader *Downloader
}

// FalProviderConfig holds configuration specific to the fal provider.
type FalProviderConfig struct {
	APIKey     string // required
	BaseURL    string // default: https://fal.run
	Model      string // default: fal-ai/nano-banana-pro
	HTTPClient *http.Client
	Downloader *Downloader // required for URL responses; a default is created when nil
}

type falImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type falRequest struct {
	Prompt    string       `json:"prompt"`
	ImageSize falImageSize `json:"image_size"`
	NumImages int          `json:"num_images"`
	Seed      *int64       `json:"seed,omitempty"`
}

type falResponse struct {
	Images []struct {
		URL         string `json:"url"`
		ContentType string `json:"content_type"`
	} `json:"images"`
	Seed *int64 `json:"seed"`
}

// NewFalProvider creates the third-party provider from cfg.
func NewFalProvider(cfg *core.Config, downloader *Downloader) (*FalProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	return NewFalProviderWithConfig(FalProviderConfig{
		APIKey:     cfg.FalAPIKey,
		BaseURL:    cfg.FalBaseURL,
		Model:      cfg.FalModel,
		HTTPClient: core.GetHTTPClient(cfg, cfg.ProviderTimeout),
		Downloader: downloader,
	})
}

// NewFalProviderWithConfig creates a fal provider with explicit configuration.
func NewFalProviderWithConfig(providerCfg FalProviderConfig) (*FalProvider, error) {
	if providerCfg.APIKey == "" {
		return nil, fmt.Errorf("imagegen: FAL API key is required: %w", ErrProviderUnconfigured)
	}
	baseURL := strings.TrimRight(providerCfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = core.DefaultFalBaseURL
	}
	model := strings.Trim(providerCfg.Model, "/")
	if model == "" {
		model = core.DefaultFalModel
	}
	client := providerCfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: time.Duration(core.DefaultProviderTimeoutSecs) * time.Second}
	}
	downloader := providerCfg.Downloader
	if downloader == nil {
		downloader = NewDownloaderWithConfig(DefaultDownloaderConfig())
	}

	return &FalProvider{
		client:     client,
		baseURL:    baseURL,
		model:      model,
		apiKey:     providerCfg.APIKey,
		downloader: downloader,
	}, nil
}

// Name returns "third-party".
func (p *FalProvider) Name() string { return ThirdPartyName }

// SupportsSeed is true: the same seed across slides keeps the style stable.
func (p *FalProvider) SupportsSeed() bool { return true }

// Model returns the configured model path.
func (p *FalProvider) Model() string { return p.model }

// Generate posts the prompt with exact dimensions and the optional seed,
// then downloads the first returned image.
func (p *FalProvider) Generate(ctx context.Context, req Request) (image.Image, error) {
	if req.Prompt == "" {
		return nil, &ProviderError{Provider: ThirdPartyName, Class: ClassRejected, Err: ErrEmptyPrompt}
	}

	body, err := json.Marshal(falRequest{
		Prompt:    AspectPrefix(req.Size) + req.Prompt,
		ImageSize: falImageSize{Width: req.Size.Width, Height: req.Size.Height},
		NumImages: 1,
		Seed:      req.Seed,
	})
	if err != nil {
		return nil, &ProviderError{Provider: ThirdPartyName, Class: ClassTransport, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+p.model, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: ThirdPartyName, Class: ClassTransport, Err: err}
	}
	httpReq.Header.Set("Authorization", "Key "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, wrapError(ThirdPartyName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, wrapError(ThirdPartyName, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       truncate(strings.TrimSpace(string(errBody)), 300),
		})
	}

	var parsed falResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, emptyError(ThirdPartyName, fmt.Errorf("imagegen: invalid response body: %w", err))
	}
	if len(parsed.Images) == 0 || parsed.Images[0].URL == "" {
		return nil, emptyError(ThirdPartyName, nil)
	}

	img, err := p.downloader.FetchImage(ctx, parsed.Images[0].URL)
	if err != nil {
		if StatusCode(err) != 0 || isNetworkError(err) {
			return nil, &ProviderError{Provider: ThirdPartyName, Class: ClassTransport, StatusCode: StatusCode(err), Err: err}
		}
		return nil, emptyError(ThirdPartyName, err)
	}
	return img, nil
}

// Ensure FalProvider implements Provider interface at compile time.
var _ Provider = (*FalProvider)(nil)
