package llm

import (
	"fmt"
	"strings"
	"time"

	"portfolio/internal/config"
)

// Factory creates completion clients from one configuration.
type Factory struct {
	GeminiAPIKey       string
	GeminiBaseURL      string
	OpenaiAPIKey       string
	OpenaiBaseURL      string
	OpenRouterReferrer string
	OpenRouterTitle    string
	YandexOAuthToken   string
	YandexFolderID     string
	Timeout            time.Duration
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		GeminiAPIKey:       cfg.GeminiAPIKey,
		GeminiBaseURL:      cfg.GeminiBaseURL,
		OpenaiAPIKey:       cfg.OpenAIAPIKey,
		OpenaiBaseURL:      cfg.OpenAIBaseURL,
		OpenRouterReferrer: cfg.OpenRouterReferrer,
		OpenRouterTitle:    cfg.OpenRouterTitle,
		YandexOAuthToken:   cfg.YandexOAuthToken,
		YandexFolderID:     cfg.YandexFolderID,
		Timeout:            cfg.HTTPTimeout,
	}
}

func (f *Factory) CreateClient(provider, model string) (Completer, error) {
	switch strings.ToLower(provider) {
	case string(config.ProviderGemini):
		return NewGemini(f.GeminiBaseURL, f.GeminiAPIKey, model, f.Timeout), nil
	case string(config.ProviderOpenAI):
		return NewOpenAI(f.OpenaiAPIKey, f.OpenaiBaseURL, model, f.OpenRouterReferrer, f.OpenRouterTitle, f.Timeout), nil
	case string(config.ProviderYandex):
		return NewYandex(f.YandexOAuthToken, f.YandexFolderID)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}

// ModelFor returns the configured model name for the provider.
func ModelFor(cfg *config.Config) string {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return cfg.OpenAIModel
	case config.ProviderGemini:
		return cfg.GeminiModel
	default:
		return ""
	}
}
