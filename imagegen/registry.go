// registry.go implements the Registry organism: it owns one Provider per
// selector and resolves request selectors to them.
//
// This organism composes:
//   - hosted_provider.go / azure_provider.go: fast and high-fidelity tiers
//   - fal_provider.go: third-party tier
//   - throttle.go: shared pacing per provider
//   - downloader.go: one cached downloader shared by all providers
package imagegen

import (
	"fmt"
	"strings"

	"storyforge/core"
	"storyforge/logging"

	"go.uber.org/zap"
)

// Selector names a provider tier.
type Selector string

const (
	SelectorFast         Selector = "fast"
	SelectorHighFidelity Selector = "high-fidelity"
	SelectorThirdParty   Selector = "third-party"
)

// Selectors lists every selector in display order.
var Selectors = []Selector{SelectorFast, SelectorHighFidelity, SelectorThirdParty}

// selectorAliases maps accepted spellings, including legacy provider
// names, to selectors.
var selectorAliases = map[string]Selector{
	"fast":          SelectorFast,
	"gemini-flash":  SelectorFast,
	"high-fidelity": SelectorHighFidelity,
	"hifi":          SelectorHighFidelity,
	"gemini-pro":    SelectorHighFidelity,
	"third-party":   SelectorThirdParty,
	"fal":           SelectorThirdParty,
}

// ParseSelector resolves a selector or alias. An empty string selects the
// fast tier.
func ParseSelector(s string) (Selector, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return SelectorFast, nil
	}
	if sel, ok := selectorAliases[key]; ok {
		return sel, nil
	}
	return "", fmt.Errorf("%w: %q (want fast, high-fidelity, or third-party)", ErrUnknownSelector, s)
}

// Registry holds the configured providers. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	providers map[Selector]Provider
}

// NewRegistry builds every provider cfg has credentials for. Missing
// credentials are not an error; selecting that tier later fails with
// ErrProviderUnconfigured.
func NewRegistry(cfg *core.Config, logger *logging.Logger) (*Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	log := logger.Named("imagegen")

	downloader, err := NewDownloader(cfg)
	if err != nil {
		return nil, err
	}

	providers := make(map[Selector]Provider, len(Selectors))
	pace := func(p Provider) Provider { return NewThrottled(p, cfg.ImageRequestsPerMinute) }

	switch {
	case cfg.UsesAzure():
		if !IsAzureEndpoint(cfg.AzureOpenAIEndpoint) {
			log.Warn("AZURE_OPENAI_ENDPOINT does not look like an Azure endpoint",
				zap.String("endpoint", cfg.AzureOpenAIEndpoint))
		}
		fast, hifi, err := NewAzureTierProviders(cfg, downloader)
		if err != nil {
			return nil, err
		}
		providers[SelectorFast] = pace(fast)
		providers[SelectorHighFidelity] = pace(hifi)
		log.Info("hosted tiers use Azure deployments",
			zap.String("fast_deployment", fast.Deployment()),
			zap.String("hifi_deployment", hifi.Deployment()))

	case cfg.OpenAIAPIKey != "":
		fast, err := NewFastProvider(cfg, downloader)
		if err != nil {
			return nil, err
		}
		hifi, err := NewHighFidelityProvider(cfg, downloader)
		if err != nil {
			return nil, err
		}
		providers[SelectorFast] = pace(fast)
		providers[SelectorHighFidelity] = pace(hifi)
		log.Info("hosted tiers configured",
			zap.String("fast_model", fast.Model()),
			zap.String("hifi_model", hifi.Model()))
	}

	if cfg.HasFalProvider() {
		fal, err := NewFalProvider(cfg, downloader)
		if err != nil {
			return nil, err
		}
		providers[SelectorThirdParty] = pace(fal)
		log.Info("third-party provider configured", zap.String("model", fal.Model()))
	}

	if len(providers) == 0 {
		log.Warn("no image provider configured; set OPENAI_API_KEY, AZURE_OPENAI_* or FAL_API_KEY")
	}

	return &Registry{providers: providers}, nil
}

// NewRegistryWithProviders builds a registry from explicit providers.
// This is useful for testing.
func NewRegistryWithProviders(providers map[Selector]Provider) *Registry {
	m := make(map[Selector]Provider, len(providers))
	for sel, p := range providers {
		if p != nil {
			m[sel] = p
		}
	}
	return &Registry{providers: m}
}

// Get returns the provider for sel.
func (r *Registry) Get(sel Selector) (Provider, error) {
	p, ok := r.providers[sel]
	if !ok {
		if _, known := selectorAliases[string(sel)]; !known {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSelector, sel)
		}
		return nil, fmt.Errorf("%w: %s", ErrProviderUnconfigured, sel)
	}
	return p, nil
}

// Resolve parses name and returns its selector and provider.
func (r *Registry) Resolve(name string) (Selector, Provider, error) {
	sel, err := ParseSelector(name)
	if err != nil {
		return "", nil, err
	}
	p, err := r.Get(sel)
	if err != nil {
		return sel, nil, err
	}
	return sel, p, nil
}

// Configured returns the selectors that have a provider, in display order.
func (r *Registry) Configured() []Selector {
	var out []Selector
	for _, sel := range Selectors {
		if _, ok := r.providers[sel]; ok {
			out = append(out, sel)
		}
	}
	return out
}
