package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/i474232898/sunnyside/internal/apperr"
)

var errNoProvider = errors.New("no weather provider configured")

// Service performs weather lookups against a single configured provider.
type Service struct {
	provider Provider
	logger   *slog.Logger
}

// NewService creates a new Service.
func NewService(provider Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		logger:   logger,
	}
}

// Lookup fetches the current reading for place. No retry is attempted here;
// the caller decides.
func (s *Service) Lookup(ctx context.Context, place string) (Reading, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return Reading{}, apperr.InvalidInput("city is required", nil)
	}
	if s.provider == nil {
		return Reading{}, apperr.Upstream("weather provider unavailable", errNoProvider)
	}

	r, err := s.provider.Fetch(ctx, place)
	if err != nil {
		s.logger.Warn("weather lookup failed",
			"provider", s.provider.Name(), "place", place, "code", apperr.CodeOf(err), "err", err)
		if apperr.CodeOf(err) == "" {
			return Reading{}, apperr.Upstream("weather provider unavailable", fmt.Errorf("%s: %w", s.provider.Name(), err))
		}
		return Reading{}, err
	}
	if r.Place == "" {
		r.Place = place
	}
	return r, nil
}

// Summary looks up place and returns the formatted summary.
func (s *Service) Summary(ctx context.Context, place string) (string, error) {
	r, err := s.Lookup(ctx, place)
	if err != nil {
		return "", err
	}
	return r.Summary(), nil
}
