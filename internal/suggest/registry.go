package suggest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/assessor-collab/internal/logging"
	"github.com/dimitrije/assessor-collab/internal/metrics"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

var (
	ErrNoProviders         = errors.New("no suggestion providers configured")
	ErrUnknownProvider     = errors.New("unknown suggestion provider")
	ErrAllProvidersFailed  = errors.New("all suggestion providers failed")
	ErrMalformedSuggestion = errors.New("malformed suggestion")
	ErrCoolingDown         = errors.New("suggestion cooling down")
)

type Response struct {
	Message string `json:"message"`
}

type BreakerSettings struct {
	MinRequests  uint32
	FailureRatio float64
	OpenTimeout  time.Duration
}

var DefaultBreakerSettings = BreakerSettings{
	MinRequests:  3,
	FailureRatio: 0.6,
	OpenTimeout:  30 * time.Second,
}

// Registry exposes the configured providers by name, each behind its own
// circuit breaker.
type Registry struct {
	order     []string
	providers map[string]Provider
	breakers  map[string]*gobreaker.CircuitBreaker
	log       *logrus.Entry
}

func NewRegistry(settings BreakerSettings, providers ...Provider) *Registry {
	r := &Registry{
		providers: make(map[string]Provider, len(providers)),
		breakers:  make(map[string]*gobreaker.CircuitBreaker, len(providers)),
		log:       logging.Component("suggest"),
	}
	for _, p := range providers {
		name := p.Name()
		if _, dup := r.providers[name]; dup {
			continue
		}
		r.order = append(r.order, name)
		r.providers[name] = p
		r.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: settings.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= settings.MinRequests && failureRatio >= settings.FailureRatio
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				r.log.WithFields(logrus.Fields{
					"provider": name,
					"from":     from.String(),
					"to":       to.String(),
				}).Warn("provider circuit breaker state change")
			},
		})
	}
	return r
}

// ListProviders returns provider names in preference order.
func (r *Registry) ListProviders() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Generate(ctx context.Context, prompt, provider string, opts Options) (*Response, error) {
	p, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	out, err := r.breakers[provider].Execute(func() (interface{}, error) {
		return p.Generate(ctx, prompt, opts)
	})
	if err != nil {
		metrics.Suggestions.WithLabelValues(provider, "error").Inc()
		return nil, err
	}
	metrics.Suggestions.WithLabelValues(provider, "ok").Inc()
	return &Response{Message: out.(string)}, nil
}
