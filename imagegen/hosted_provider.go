// hosted_provider.go implements the HostedProvider molecule that generates
// images through an OpenAI-compatible Images API. One instance serves one
// tier: the fast tier uses standard quality, the high-fidelity tier hd.
//
// This molecule composes:
//   - atoms.go: HostedSize, DecodeImage
//   - errors.go: classification into *ProviderError
//   - core.Config: API key, endpoint, tier models
//   - go-openai client: for API calls
package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"net/http"

	"storyforge/core"

	"github.com/sashabaranov/go-openai"
)

// Hosted tier names.
const (
	TierFast         = "fast"
	TierHighFidelity = "high-fidelity"
)

// HostedProvider implements Provider for the OpenAI Images API.
//
// Images are requested as b64_json so no second download is needed.
// Endpoints that ignore the response format and answer with a URL are
// fetched through the Downloader.
//
// Thread Safety: HostedProvider is safe for concurrent use.
// The underlying OpenAI client handles connection pooling.
type HostedProvider struct {
	client     *openai.Client
	name       string
	model      string
	quality    string
	downloader *Downloader
}

// HostedProviderConfig holds configuration specific to one hosted tier.
type HostedProviderConfig struct {
	// Name identifies the tier in logs and history (default: fast)
	Name string

	// APIKey is the OpenAI API key (required)
	APIKey string

	// BaseURL is the API endpoint (default: https://api.openai.com/v1)
	BaseURL string

	// Model is the image model to use (default: dall-e-3)
	Model string

	// Quality is passed through as the request quality (default: standard)
	Quality string

	// HTTPClient is the HTTP client for API calls (optional)
	HTTPClient *http.Client

	// Downloader fetches URL responses (optional)
	Downloader *Downloader
}

// DefaultHostedProviderConfig returns the fast tier defaults.
func DefaultHostedProviderConfig() HostedProviderConfig {
	return HostedProviderConfig{
		Name:    TierFast,
		BaseURL: "https://api.openai.com/v1",
		Model:   core.DefaultImageModel,
		Quality: openai.CreateImageQualityStandard,
	}
}

// NewFastProvider creates the fast tier from cfg.
func NewFastProvider(cfg *core.Config, downloader *Downloader) (*HostedProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	return NewHostedProvider(HostedProviderConfig{
		Name:       TierFast,
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.ImageAPIURL,
		Model:      cfg.FastImageModel,
		Quality:    cfg.FastImageQuality,
		HTTPClient: core.GetHTTPClient(cfg, cfg.ProviderTimeout),
		Downloader: downloader,
	})
}

// NewHighFidelityProvider creates the high-fidelity tier from cfg.
func NewHighFidelityProvider(cfg *core.Config, downloader *Downloader) (*HostedProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	quality := cfg.HiFiImageQuality
	if quality == "" {
		quality = openai.CreateImageQualityHD
	}
	return NewHostedProvider(HostedProviderConfig{
		Name:       TierHighFidelity,
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.ImageAPIURL,
		Model:      cfg.HiFiImageModel,
		Quality:    quality,
		HTTPClient: core.GetHTTPClient(cfg, cfg.ProviderTimeout),
		Downloader: downloader,
	})
}

// NewHostedProvider creates a hosted provider with explicit configuration.
// This is useful for testing or when you need fine-grained control over settings.
//
// Returns an error if the API key is empty.
func NewHostedProvider(providerCfg HostedProviderConfig) (*HostedProvider, error) {
	if providerCfg.APIKey == "" {
		return nil, fmt.Errorf("imagegen: OpenAI API key is required: %w", ErrProviderUnconfigured)
	}

	defaults := DefaultHostedProviderConfig()
	if providerCfg.Name == "" {
		providerCfg.Name = defaults.Name
	}
	if providerCfg.BaseURL == "" {
		providerCfg.BaseURL = defaults.BaseURL
	}
	if providerCfg.Model == "" {
		providerCfg.Model = defaults.Model
	}
	if providerCfg.Quality == "" {
		providerCfg.Quality = defaults.Quality
	}

	clientConfig := openai.DefaultConfig(providerCfg.APIKey)
	clientConfig.BaseURL = providerCfg.BaseURL
	if providerCfg.HTTPClient != nil {
		clientConfig.HTTPClient = providerCfg.HTTPClient
	}

	return &HostedProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		name:       providerCfg.Name,
		model:      providerCfg.Model,
		quality:    providerCfg.Quality,
		downloader: providerCfg.Downloader,
	}, nil
}

// Name returns the tier name.
func (p *HostedProvider) Name() string { return p.name }

// SupportsSeed is false: the Images API has no seed parameter.
func (p *HostedProvider) SupportsSeed() bool { return false }

// Model returns the configured image model name.
func (p *HostedProvider) Model() string { return p.model }

// Quality returns the configured quality.
func (p *HostedProvider) Quality() string { return p.quality }

// Generate requests one image at the hosted size nearest to req.Size.
func (p *HostedProvider) Generate(ctx context.Context, req Request) (image.Image, error) {
	if req.Prompt == "" {
		return nil, &ProviderError{Provider: p.name, Class: ClassRejected, Err: ErrEmptyPrompt}
	}

	imageReq := openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          p.model,
		Size:           HostedSize(req.Size),
		Quality:        p.quality,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		N:              1,
	}
	if p.model == "dall-e-3" {
		imageReq.Style = openai.CreateImageStyleVivid
	}

	response, err := p.client.CreateImage(ctx, imageReq)
	if err != nil {
		return nil, wrapError(p.name, err)
	}
	return decodeImageResponse(ctx, p.name, response, p.downloader)
}

// decodeImageResponse extracts the first image from an Images API
// response. Shared with AzureHostedProvider.
func decodeImageResponse(ctx context.Context, provider string, response openai.ImageResponse, downloader *Downloader) (image.Image, error) {
	if len(response.Data) == 0 {
		return nil, emptyError(provider, fmt.Errorf("%w: empty data array", ErrNoImage))
	}
	first := response.Data[0]

	switch {
	case first.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(first.B64JSON)
		if err != nil {
			return nil, emptyError(provider, fmt.Errorf("%w: %v", ErrUndecodableImage, err))
		}
		img, _, err := DecodeImage(data)
		if err != nil {
			return nil, emptyError(provider, err)
		}
		return img, nil

	case first.URL != "" && downloader != nil:
		img, err := downloader.FetchImage(ctx, first.URL)
		if err != nil {
			if StatusCode(err) != 0 || isNetworkError(err) {
				return nil, &ProviderError{Provider: provider, Class: ClassTransport, StatusCode: StatusCode(err), Err: err}
			}
			return nil, emptyError(provider, err)
		}
		return img, nil

	default:
		return nil, emptyError(provider, fmt.Errorf("%w: response carried no image data", ErrNoImage))
	}
}

// Ensure HostedProvider implements Provider interface at compile time.
var _ Provider = (*HostedProvider)(nil)
