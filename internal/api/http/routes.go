package httpapi

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/sunnyside/internal/apperr"
	"github.com/i474232898/sunnyside/internal/broadcast"
)

var validate = validator.New()

// Dependencies are the collaborators the HTTP handlers call into.
type Dependencies struct {
	Weather        broadcast.WeatherSummarizer
	Pipeline       *broadcast.Pipeline
	StaticDir      string
	// PrepareTimeout caps everything before the first audio byte. Zero
	// leaves it unbounded.
	PrepareTimeout time.Duration
	Logger         *slog.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. The SPA fallback
// is registered last so API routes always win.
func RegisterRoutes(app *fiber.App, d Dependencies) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "sunnyside",
		})
	})

	app.Get("/weather", func(c *fiber.Ctx) error {
		q := weatherQuery{City: strings.TrimSpace(c.Query("city"))}
		if err := validate.Struct(q); err != nil {
			return apperr.InvalidInput("city is required", err)
		}

		summary, err := d.Weather.Summary(c.UserContext(), q.City)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"weather": summary})
	})

	app.Get("/stream-audio", func(c *fiber.Ctx) error {
		q := streamQuery{Weather: strings.TrimSpace(c.Query("weather"))}
		if err := validate.Struct(q); err != nil {
			return apperr.InvalidInput("weather is required", err)
		}

		// The upstream calls outlive this handler: the body is written after
		// it returns, so the context is canceled by the stream writer.
		ctx, cancel := context.WithCancel(context.Background())
		run := d.Pipeline.NewRun(requestID(c), "place", q.Weather)

		var timer *time.Timer
		if d.PrepareTimeout > 0 {
			timer = time.AfterFunc(d.PrepareTimeout, cancel)
		}
		stream, err := d.Pipeline.Prepare(ctx, run, q.Weather)
		if timer != nil && !timer.Stop() && err == nil {
			_ = stream.Close()
			err = apperr.Upstream("broadcast timed out", context.DeadlineExceeded)
		}
		if err != nil {
			cancel()
			return err
		}

		c.Status(fiber.StatusOK)
		c.Set(fiber.HeaderContentType, "audio/mpeg")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer cancel()
			// Headers are gone by now; an error can only end the connection.
			if err := d.Pipeline.Stream(ctx, run, w, stream); err != nil {
				d.Logger.Debug("audio stream ended early", "request_id", run.ID(), "err", err)
			}
		})
		return nil
	})

	app.Static("/assets", filepath.Join(d.StaticDir, "assets"))

	app.Get("/*", func(c *fiber.Ctx) error {
		index := filepath.Join(d.StaticDir, "index.html")
		if _, err := os.Stat(index); err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Page not found")
		}
		return c.SendFile(index)
	})
}

// weatherQuery holds query parameters for the weather endpoint.
type weatherQuery struct {
	City string `validate:"required"`
}

// streamQuery holds query parameters for the audio endpoint; Weather is the
// place name to report on.
type streamQuery struct {
	Weather string `validate:"required"`
}
