package providers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/i474232898/sunnyside/internal/upstream"
)

// Option customizes a provider at construction time.
type Option func(*options)

type options struct {
	baseURL string
	policy  upstream.Policy
}

// WithBaseURL overrides the provider endpoint (used for tests and proxies).
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimSpace(baseURL)
	}
}

// WithPolicy sets retries and the circuit breaker. A lookup is a single call
// with no breaker unless p asks for more. The constructor's client is kept
// when p.Client is nil.
func WithPolicy(p upstream.Policy) Option {
	return func(o *options) {
		if p.Client == nil {
			p.Client = o.policy.Client
		}
		o.policy = p
	}
}

func buildOptions(client *http.Client, defaultBaseURL string, opts []Option) options {
	o := options{
		baseURL: defaultBaseURL,
		policy:  upstream.Policy{Client: client},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.baseURL == "" {
		o.baseURL = defaultBaseURL
	}
	if o.policy.Client == nil {
		o.policy.Client = http.DefaultClient
	}
	return o
}

var (
	errMissingAPIKey = errors.New("api key is not configured")
	errMalformed     = errors.New("malformed provider payload")
)

const notFoundReason = "City not found"
