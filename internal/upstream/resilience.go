package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Policy bundles the HTTP client and the retry settings for one provider.
// MaxRetries of zero disables retries entirely. Without Breaker every call
// goes out, whatever happened to the previous ones.
type Policy struct {
	Client          *http.Client
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Breaker         bool
}

// StatusError captures a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Retryable reports whether the provider may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

var (
	ErrCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidPolicy = errors.New("invalid retry policy")
)

const maxErrorBody = 4096

// NewBreaker returns the circuit breaker used for a single provider.
// Client errors (4xx other than 429) do not count as failures: a place the
// weather provider does not know is a normal answer, not an outage.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *StatusError
			if errors.As(err, &se) {
				return !se.Retryable()
			}
			return errors.Is(err, context.Canceled)
		},
	})
}

// BreakerFor returns the named breaker when p enables one, nil otherwise.
func BreakerFor(name string, p Policy) *gobreaker.CircuitBreaker {
	if !p.Breaker {
		return nil
	}
	return NewBreaker(name)
}

// Do executes the request, through cb when it is not nil. On success the
// caller owns the response body. Non-2xx responses are drained, closed and
// returned as *StatusError.
func Do(
	ctx context.Context,
	p Policy,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) (*http.Response, error) {
	if p.Client == nil {
		return nil, errNoHTTPClient
	}
	if p.MaxRetries < 0 || (p.MaxRetries > 0 && p.InitialInterval <= 0) {
		return nil, errInvalidPolicy
	}

	var attempt int
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest(ctx)
		if err != nil {
			return nil, err
		}

		var resp *http.Response
		if cb == nil {
			resp, err = send(p.Client, req)
		} else {
			var result interface{}
			result, err = cb.Execute(func() (interface{}, error) {
				return send(p.Client, req)
			})
			if err == nil {
				var ok bool
				if resp, ok = result.(*http.Response); !ok {
					return nil, fmt.Errorf("unexpected result type from circuit breaker")
				}
			}
		}
		if err == nil {
			return resp, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}

		if attempt >= p.MaxRetries || !retryable(ctx, err) {
			return nil, err
		}

		delay := p.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > p.MaxInterval && p.MaxInterval > 0 {
			delay = p.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

func send(client *http.Client, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			URL:        req.URL.Redacted(),
			Body:       string(buf),
		}
	}
	return resp, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
