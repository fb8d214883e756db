// azure_provider.go implements the AzureHostedProvider molecule that serves
// the hosted tiers from Azure OpenAI deployments.
//
// This molecule composes:
//   - hosted_provider.go: decodeImageResponse
//   - core.Config: Azure endpoint, key, and deployments
//   - go-openai client: for API calls
package imagegen

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"strings"

	"storyforge/core"

	"github.com/sashabaranov/go-openai"
)

// AzureHostedProvider implements Provider for Azure OpenAI image generation.
//
// Azure OpenAI differs from standard OpenAI in several ways:
//   - Uses deployment names instead of model names
//   - Requires an api-version query parameter
//   - gpt-image deployments reject the style parameter
//
// Thread Safety: AzureHostedProvider is safe for concurrent use.
type AzureHostedProvider struct {
	client     *openai.Client
	name       string
	deployment string
	quality    string
	downloader *Downloader
}

// AzureProviderConfig holds configuration specific to one Azure deployment.
type AzureProviderConfig struct {
	// Name identifies the tier (default: fast)
	Name string

	// APIKey is the Azure OpenAI API key (required)
	APIKey string

	// Endpoint is the Azure OpenAI endpoint URL (required)
	// Example: https://your-resource.openai.azure.com/
	Endpoint string

	// Deployment is the Azure deployment name (required)
	// Example: dalle3, gpt-image-1
	Deployment string

	// APIVersion is the Azure API version (default: 2024-02-15-preview)
	APIVersion string

	// Quality is passed through as the request quality (default: standard)
	Quality string

	// HTTPClient is the HTTP client for API calls (optional)
	HTTPClient *http.Client

	// Downloader fetches URL responses (optional)
	Downloader *Downloader
}

// NewAzureTierProviders creates the fast and high-fidelity tiers from the
// Azure settings in cfg.
func NewAzureTierProviders(cfg *core.Config, downloader *Downloader) (fast, hifi *AzureHostedProvider, err error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	base := AzureProviderConfig{
		APIKey:     cfg.AzureOpenAIKey,
		Endpoint:   cfg.AzureOpenAIEndpoint,
		APIVersion: cfg.AzureOpenAIAPIVersion,
		HTTPClient: core.GetHTTPClient(cfg, cfg.ProviderTimeout),
		Downloader: downloader,
	}

	fastCfg := base
	fastCfg.Name = TierFast
	fastCfg.Deployment = cfg.AzureOpenAIDeployment
	fastCfg.Quality = cfg.FastImageQuality
	if fast, err = NewAzureHostedProvider(fastCfg); err != nil {
		return nil, nil, err
	}

	hifiCfg := base
	hifiCfg.Name = TierHighFidelity
	hifiCfg.Deployment = cfg.AzureOpenAIHiFiDeployment
	if hifiCfg.Deployment == "" {
		hifiCfg.Deployment = cfg.AzureOpenAIDeployment
	}
	hifiCfg.Quality = cfg.HiFiImageQuality
	if hifiCfg.Quality == "" {
		hifiCfg.Quality = openai.CreateImageQualityHD
	}
	if hifi, err = NewAzureHostedProvider(hifiCfg); err != nil {
		return nil, nil, err
	}
	return fast, hifi, nil
}

// NewAzureHostedProvider creates an Azure provider with explicit configuration.
//
// Returns an error if the API key, endpoint, or deployment is empty.
func NewAzureHostedProvider(providerCfg AzureProviderConfig) (*AzureHostedProvider, error) {
	if providerCfg.APIKey == "" {
		return nil, fmt.Errorf("imagegen: Azure API key is required: %w", ErrProviderUnconfigured)
	}
	if providerCfg.Endpoint == "" {
		return nil, fmt.Errorf("imagegen: Azure endpoint is required: %w", ErrProviderUnconfigured)
	}
	if providerCfg.Deployment == "" {
		return nil, fmt.Errorf("imagegen: Azure deployment name is required: %w", ErrProviderUnconfigured)
	}
	if providerCfg.Name == "" {
		providerCfg.Name = TierFast
	}
	if providerCfg.Quality == "" {
		providerCfg.Quality = openai.CreateImageQualityStandard
	}

	clientConfig := openai.DefaultAzureConfig(providerCfg.APIKey, providerCfg.Endpoint)
	if providerCfg.APIVersion != "" {
		clientConfig.APIVersion = providerCfg.APIVersion
	}
	// Requests carry the deployment as the model; map it verbatim.
	clientConfig.AzureModelMapperFunc = func(model string) string { return model }
	if providerCfg.HTTPClient != nil {
		clientConfig.HTTPClient = providerCfg.HTTPClient
	}

	return &AzureHostedProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		name:       providerCfg.Name,
		deployment: providerCfg.Deployment,
		quality:    providerCfg.Quality,
		downloader: providerCfg.Downloader,
	}, nil
}

// Name returns the tier name.
func (p *AzureHostedProvider) Name() string { return p.name }

// SupportsSeed is false.
func (p *AzureHostedProvider) SupportsSeed() bool { return false }

// Deployment returns the configured deployment name.
func (p *AzureHostedProvider) Deployment() string { return p.deployment }

// Generate requests one image from the deployment.
func (p *AzureHostedProvider) Generate(ctx context.Context, req Request) (image.Image, error) {
	if req.Prompt == "" {
		return nil, &ProviderError{Provider: p.name, Class: ClassRejected, Err: ErrEmptyPrompt}
	}

	imageReq := openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          p.deployment,
		Size:           HostedSize(req.Size),
		Quality:        p.quality,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		N:              1,
	}
	if isDalleDeployment(p.deployment) {
		imageReq.Style = openai.CreateImageStyleVivid
	}

	response, err := p.client.CreateImage(ctx, imageReq)
	if err != nil {
		return nil, wrapError(p.name, err)
	}
	return decodeImageResponse(ctx, p.name, response, p.downloader)
}

// isDalleDeployment reports whether the deployment name refers to DALL-E,
// which accepts the style parameter.
func isDalleDeployment(deployment string) bool {
	lower := strings.ToLower(deployment)
	return strings.Contains(lower, "dall") || strings.Contains(lower, "dalle")
}

// Ensure AzureHostedProvider implements Provider interface at compile time.
var _ Provider = (*AzureHostedProvider)(nil)
