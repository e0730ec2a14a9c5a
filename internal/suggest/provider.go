package suggest

import (
	"context"
	"fmt"

	"github.com/dimitrije/assessor-collab/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

type Options struct {
	Temperature float64
	MaxTokens   int
}

var DefaultOptions = Options{Temperature: 0.2, MaxTokens: 512}

// Provider is one text-generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// LLMProvider adapts a langchaingo model to Provider.
type LLMProvider struct {
	name  string
	model llms.Model
}

func NewLLMProvider(name string, model llms.Model) *LLMProvider {
	return &LLMProvider{name: name, model: model}
}

func (p *LLMProvider) Name() string {
	return p.name
}

func (p *LLMProvider) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, p.model, prompt, callOpts...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.name, err)
	}
	return out, nil
}

func NewOpenAI(cfg config.ProviderConfig) (*LLMProvider, error) {
	opts := []openai.Option{openai.WithToken(cfg.APIKey)}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return NewLLMProvider("openai", model), nil
}

func NewAnthropic(cfg config.ProviderConfig) (*LLMProvider, error) {
	opts := []anthropic.Option{anthropic.WithToken(cfg.APIKey)}
	if cfg.Model != "" {
		opts = append(opts, anthropic.WithModel(cfg.Model))
	}
	model, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic client: %w", err)
	}
	return NewLLMProvider("anthropic", model), nil
}

func NewOllama(cfg config.ProviderConfig) (*LLMProvider, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	model, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return NewLLMProvider("ollama", model), nil
}

// FromConfig builds the providers named in cfg.Providers, in order. Cloud
// providers without an API key are skipped.
func FromConfig(cfg config.SuggestionConfig) ([]Provider, error) {
	var providers []Provider
	for _, name := range cfg.Providers {
		var (
			p   *LLMProvider
			err error
		)
		switch name {
		case "openai":
			if cfg.OpenAI.APIKey == "" {
				continue
			}
			p, err = NewOpenAI(cfg.OpenAI)
		case "anthropic":
			if cfg.Anthropic.APIKey == "" {
				continue
			}
			p, err = NewAnthropic(cfg.Anthropic)
		case "ollama":
			if cfg.Ollama.Model == "" {
				continue
			}
			p, err = NewOllama(cfg.Ollama)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}
