package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/i474232898/sunnyside/internal/apperr"
	"github.com/i474232898/sunnyside/internal/upstream"
	"github.com/i474232898/sunnyside/internal/weather"
)

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	policy  upstream.Policy
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, opts ...Option) *OpenWeatherProvider {
	o := buildOptions(client, "https://api.openweathermap.org/data/2.5/weather", opts)
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: o.baseURL,
		policy:  o.policy,
		circuit: upstream.BreakerFor("openweathermap", o.policy),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type openWeatherPayload struct {
	Cod     json.RawMessage `json:"cod"`
	Message string          `json:"message"`
	Main    *struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// cod is a number on success and a string on errors ("404").
func (p openWeatherPayload) code() string {
	return string(bytes.Trim(p.Cod, `"`))
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, place string) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, apperr.Upstream("weather provider unavailable", fmt.Errorf("openweathermap: %w", errMissingAPIKey))
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("q", place)
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := upstream.Do(ctx, p.policy, p.circuit, buildRequest)
	if err != nil {
		var se *upstream.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return weather.Reading{}, apperr.NotFound(notFoundReason, fmt.Errorf("openweathermap: no match for %q", place))
		}
		return weather.Reading{}, apperr.Upstream("weather provider unavailable", fmt.Errorf("openweathermap: %w", err))
	}
	defer resp.Body.Close()

	var payload openWeatherPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, apperr.Upstream("weather provider returned malformed data", fmt.Errorf("openweathermap: decode: %w", err))
	}

	if payload.code() == "404" {
		return weather.Reading{}, apperr.NotFound(notFoundReason, fmt.Errorf("openweathermap: no match for %q", place))
	}
	if payload.Main == nil || len(payload.Weather) == 0 {
		return weather.Reading{}, apperr.Upstream("weather provider returned malformed data", fmt.Errorf("openweathermap: %w", errMalformed))
	}

	return weather.Reading{
		Place:        place,
		ProviderName: p.name,
		TemperatureC: payload.Main.Temp,
		HumidityPct:  payload.Main.Humidity,
		PressureHpa:  payload.Main.Pressure,
		Condition:    payload.Weather[0].Description,
	}, nil
}
