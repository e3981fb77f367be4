package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/sunnyside/internal/apperr"
	"github.com/i474232898/sunnyside/internal/upstream"
	"github.com/i474232898/sunnyside/internal/weather"
)

// weatherAPINoMatch is WeatherAPI.com's error code for an unknown location.
const weatherAPINoMatch = 1006

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	policy  upstream.Policy
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, opts ...Option) *WeatherAPIProvider {
	o := buildOptions(client, "https://api.weatherapi.com/v1/current.json", opts)
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: o.baseURL,
		policy:  o.policy,
		circuit: upstream.BreakerFor("weatherapi", o.policy),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPIError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, place string) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, apperr.Upstream("weather provider unavailable", fmt.Errorf("weatherapi: %w", errMissingAPIKey))
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("q", place)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := upstream.Do(ctx, p.policy, p.circuit, buildRequest)
	if err != nil {
		var se *upstream.StatusError
		if errors.As(err, &se) && isWeatherAPINoMatch(se) {
			return weather.Reading{}, apperr.NotFound(notFoundReason, fmt.Errorf("weatherapi: no match for %q", place))
		}
		return weather.Reading{}, apperr.Upstream("weather provider unavailable", fmt.Errorf("weatherapi: %w", err))
	}
	defer resp.Body.Close()

	var payload struct {
		Current *struct {
			TempC      float64 `json:"temp_c"`
			Humidity   float64 `json:"humidity"`
			PressureMb float64 `json:"pressure_mb"`
			Condition  struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, apperr.Upstream("weather provider returned malformed data", fmt.Errorf("weatherapi: decode: %w", err))
	}
	if payload.Current == nil || payload.Current.Condition.Text == "" {
		return weather.Reading{}, apperr.Upstream("weather provider returned malformed data", fmt.Errorf("weatherapi: %w", errMalformed))
	}

	return weather.Reading{
		Place:        place,
		ProviderName: p.name,
		TemperatureC: payload.Current.TempC,
		HumidityPct:  payload.Current.Humidity,
		PressureHpa:  payload.Current.PressureMb,
		// WeatherAPI capitalizes condition text ("Partly cloudy"); OpenWeatherMap does not.
		Condition: strings.ToLower(payload.Current.Condition.Text),
	}, nil
}

// WeatherAPI answers unknown locations with 400 and error code 1006.
func isWeatherAPINoMatch(se *upstream.StatusError) bool {
	if se.StatusCode != http.StatusBadRequest && se.StatusCode != http.StatusNotFound {
		return false
	}
	var body weatherAPIError
	if err := json.Unmarshal([]byte(se.Body), &body); err != nil {
		return false
	}
	return body.Error.Code == weatherAPINoMatch
}
