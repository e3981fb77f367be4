package weather

import "context"

// Provider abstracts a current-weather source (e.g. OpenWeatherMap, WeatherAPI).
// Fetch performs exactly one lookup; an unknown place yields an
// apperr.CodeNotFound error, anything else that goes wrong an
// apperr.CodeUpstream error.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, place string) (Reading, error)
}
