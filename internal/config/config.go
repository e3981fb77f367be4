package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/sunnyside/internal/apperr"
	"github.com/i474232898/sunnyside/internal/secrets"
)

const (
	ProviderOpenWeatherMap = "openweathermap"
	ProviderWeatherAPI     = "weatherapi"
)

var defaultOrigins = []string{"http://localhost:5173", "https://sunnyside-91z4.onrender.com"}

type AppConfig struct {
	Port           string   `env:"PORT" validate:"required,numeric"`
	StaticDir      string   `env:"STATIC_DIR" validate:"required"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" validate:"min=1,dive,url"`

	WeatherProvider   string `env:"WEATHER_PROVIDER" validate:"oneof=openweathermap weatherapi"`
	OpenWeatherAPIKey string `env:"OPENWEATHER_API_KEY" validate:"required_if=WeatherProvider openweathermap"`
	WeatherAPIKey     string `env:"WEATHERAPI_API_KEY" validate:"required_if=WeatherProvider weatherapi"`

	OpenAIAPIKey        string `env:"OPENAI_API_KEY" validate:"required"`
	OpenAIBaseURL       string `env:"OPENAI_BASE_URL" validate:"required,url"`
	OpenAIModel         string `env:"OPENAI_MODEL" validate:"required"`
	CommentaryMaxTokens int    `env:"COMMENTARY_MAX_TOKENS" validate:"gt=0"`
	CommentaryMaxChars  int    `env:"COMMENTARY_MAX_CHARS" validate:"gt=0"`

	// The speech key is the one credential the process refuses to start without.
	ElevenLabsAPIKey       string `env:"ELEVENLABS_API_KEY" validate:"required"`
	ElevenLabsBaseURL      string `env:"ELEVENLABS_BASE_URL" validate:"required,url"`
	ElevenLabsVoiceID      string `env:"ELEVENLABS_VOICE_ID" validate:"required"`
	ElevenLabsModelID      string `env:"ELEVENLABS_MODEL_ID" validate:"required"`
	// The audio route labels its body audio/mpeg, so only MP3 encodings fit.
	ElevenLabsOutputFormat string `env:"ELEVENLABS_OUTPUT_FORMAT" validate:"required,startswith=mp3_"`

	// HTTPTimeout of zero leaves outbound calls without a client-side deadline.
	HTTPTimeout        time.Duration `env:"HTTP_TIMEOUT"`
	UpstreamMaxRetries int           `env:"UPSTREAM_MAX_RETRIES" validate:"gte=0,lte=10"`
	// UpstreamBreaker puts a circuit breaker in front of each provider.
	// Off, every request makes its own outbound calls.
	UpstreamBreaker    bool          `env:"UPSTREAM_BREAKER"`

	// ParamPrefix enables SSM lookup for credentials missing from the environment.
	ParamPrefix string     `env:"PARAM_PREFIX"`
	LogLevel    slog.Level `env:"LOG_LEVEL"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Load reads configuration from the environment (and .env, if present) with
// sensible defaults. It does not check required credentials; call Validate
// once secrets are resolved.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "err", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8000")

	staticDir, err := filepath.Abs(getenvDefault("STATIC_DIR", "dist"))
	if err != nil {
		return nil, apperr.Configuration("invalid STATIC_DIR", err)
	}
	cfg.StaticDir = staticDir
	cfg.AllowedOrigins = getenvList("ALLOWED_ORIGINS", defaultOrigins)

	cfg.WeatherProvider = strings.ToLower(getenvDefault("WEATHER_PROVIDER", ProviderOpenWeatherMap))
	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = getenvDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	cfg.OpenAIModel = getenvDefault("OPENAI_MODEL", "gpt-4o-mini")
	if cfg.CommentaryMaxTokens, err = getenvInt("COMMENTARY_MAX_TOKENS", 150); err != nil {
		return nil, err
	}
	if cfg.CommentaryMaxChars, err = getenvInt("COMMENTARY_MAX_CHARS", 500); err != nil {
		return nil, err
	}

	cfg.ElevenLabsAPIKey = os.Getenv("ELEVENLABS_API_KEY")
	cfg.ElevenLabsBaseURL = getenvDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io")
	cfg.ElevenLabsVoiceID = getenvDefault("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM")
	cfg.ElevenLabsModelID = getenvDefault("ELEVENLABS_MODEL_ID", "eleven_turbo_v2_5")
	cfg.ElevenLabsOutputFormat = getenvDefault("ELEVENLABS_OUTPUT_FORMAT", "mp3_44100_128")

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "0s"))
	if err != nil {
		return nil, apperr.Configuration("invalid HTTP_TIMEOUT", err)
	}
	if timeout < 0 {
		return nil, apperr.Configuration("invalid HTTP_TIMEOUT", fmt.Errorf("negative duration %s", timeout))
	}
	cfg.HTTPTimeout = timeout
	if cfg.UpstreamMaxRetries, err = getenvInt("UPSTREAM_MAX_RETRIES", 0); err != nil {
		return nil, err
	}
	if cfg.UpstreamBreaker, err = getenvBool("UPSTREAM_BREAKER", false); err != nil {
		return nil, err
	}

	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(os.Getenv("PARAM_PREFIX")), "/")
	if err := cfg.LogLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, apperr.Configuration("invalid LOG_LEVEL", err)
	}

	return cfg, nil
}

// SecretGetter is satisfied by *secrets.ParamStore.
type SecretGetter interface {
	Get(ctx context.Context, name string) (string, error)
}

// ResolveSecrets fills credentials left empty by the environment from
// {ParamPrefix}/<name>. Parameters that do not exist are skipped; Validate
// reports whatever is still missing.
func (c *AppConfig) ResolveSecrets(ctx context.Context, g SecretGetter) error {
	if c.ParamPrefix == "" || g == nil {
		return nil
	}
	fields := []struct {
		name string
		dst  *string
	}{
		{"openweather-api-key", &c.OpenWeatherAPIKey},
		{"weatherapi-api-key", &c.WeatherAPIKey},
		{"openai-api-key", &c.OpenAIAPIKey},
		{"elevenlabs-api-key", &c.ElevenLabsAPIKey},
	}
	for _, f := range fields {
		if *f.dst != "" {
			continue
		}
		v, err := g.Get(ctx, c.ParamPrefix+"/"+f.name)
		if err != nil {
			if errors.Is(err, secrets.ErrNotFound) {
				continue
			}
			return apperr.Configuration("failed to resolve "+f.name, err)
		}
		*f.dst = v
	}
	return nil
}

// Validate checks the configuration and reports every problem at once as a
// CONFIGURATION_ERROR.
func (c *AppConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Configuration("invalid configuration", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			problems = append(problems, fe.Field()+" is required")
		default:
			problems = append(problems, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
	}
	return apperr.Configuration(strings.Join(problems, "; "), err)
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Configuration("invalid "+key, err)
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apperr.Configuration("invalid "+key, err)
	}
	return b, nil
}

func getenvList(key string, def []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
