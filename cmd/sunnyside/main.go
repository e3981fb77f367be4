package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	httpapi "github.com/i474232898/sunnyside/internal/api/http"
	"github.com/i474232898/sunnyside/internal/broadcast"
	"github.com/i474232898/sunnyside/internal/commentary"
	"github.com/i474232898/sunnyside/internal/config"
	"github.com/i474232898/sunnyside/internal/secrets"
	"github.com/i474232898/sunnyside/internal/speech"
	"github.com/i474232898/sunnyside/internal/upstream"
	"github.com/i474232898/sunnyside/internal/weather"
	"github.com/i474232898/sunnyside/internal/weather/providers"
)

func main() {
	ctx := context.Background()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if cfg.ParamPrefix != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			fatal("failed to load AWS config", err)
		}
		store, err := secrets.NewParamStore(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			fatal("failed to create SSM client", err)
		}
		if err := cfg.ResolveSecrets(ctx, store); err != nil {
			fatal("failed to resolve secrets", err)
		}
	}

	// A missing speech credential stops the process here.
	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration", err)
	}

	// Shared by the weather and commentary calls; a zero timeout leaves calls unbounded.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	policy := upstream.Policy{
		Client:          httpClient,
		MaxRetries:      cfg.UpstreamMaxRetries,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Breaker:         cfg.UpstreamBreaker,
	}

	// Client.Timeout would also cut the audio body short, so the speech
	// client only bounds the wait for response headers.
	speechTransport := http.DefaultTransport.(*http.Transport).Clone()
	speechTransport.ResponseHeaderTimeout = cfg.HTTPTimeout
	speechPolicy := policy
	speechPolicy.Client = &http.Client{Transport: speechTransport}

	provider := newWeatherProvider(cfg, httpClient, policy)
	weatherSvc := weather.NewService(provider, logger.With("component", "weather"))

	generator, err := commentary.NewOpenAIClient(cfg.OpenAIAPIKey,
		commentary.WithBaseURL(cfg.OpenAIBaseURL),
		commentary.WithModel(cfg.OpenAIModel),
		commentary.WithMaxTokens(cfg.CommentaryMaxTokens),
		commentary.WithPolicy(policy),
	)
	if err != nil {
		fatal("failed to create OpenAI client", err)
	}

	// The synthesis stream is never retried once opened; retries only cover
	// failures before the first byte.
	synthesizer, err := speech.NewElevenLabs(cfg.ElevenLabsAPIKey, speechPolicy.Client,
		speech.WithBaseURL(cfg.ElevenLabsBaseURL),
		speech.WithVoice(cfg.ElevenLabsVoiceID),
		speech.WithModel(cfg.ElevenLabsModelID),
		speech.WithOutputFormat(cfg.ElevenLabsOutputFormat),
		speech.WithPolicy(speechPolicy),
	)
	if err != nil {
		fatal("failed to create ElevenLabs client", err)
	}

	pipeline, err := broadcast.NewPipeline(weatherSvc, generator, synthesizer, cfg.CommentaryMaxChars, logger.With("component", "broadcast"))
	if err != nil {
		fatal("failed to create pipeline", err)
	}

	// Start the HTTP server.
	app := httpapi.NewApp(httpapi.AppOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
		AccessLog:      true,
	})
	// PrepareTimeout bounds the steps before the first audio byte, while
	// nothing yet tells us whether the caller is still there.
	httpapi.RegisterRoutes(app, httpapi.Dependencies{
		Weather:        weatherSvc,
		Pipeline:       pipeline,
		StaticDir:      cfg.StaticDir,
		PrepareTimeout: cfg.HTTPTimeout,
		Logger:         logger,
	})

	go func() {
		logger.Info("sunnyside listening", "port", cfg.Port, "weather_provider", provider.Name(), "static_dir", cfg.StaticDir)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "err", err)
		}
	}()

	// Wait for termination signal
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "err", err)
	}
}

func newWeatherProvider(cfg *config.AppConfig, client *http.Client, p upstream.Policy) weather.Provider {
	if cfg.WeatherProvider == config.ProviderWeatherAPI {
		return providers.NewWeatherAPIProvider(client, cfg.WeatherAPIKey, providers.WithPolicy(p))
	}
	return providers.NewOpenWeatherProvider(client, cfg.OpenWeatherAPIKey, providers.WithPolicy(p))
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
