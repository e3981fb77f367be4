package httpapi

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/i474232898/sunnyside/internal/apperr"
)

const requestIDKey = "requestid"

// AppOptions configures the Fiber application shell.
type AppOptions struct {
	AllowedOrigins []string
	Logger         *slog.Logger
	// AccessLog turns on the per-request access log.
	AccessLog bool
}

// NewApp builds the Fiber app with the centralized error handler and the
// global middleware. Routes are added with RegisterRoutes.
func NewApp(opts AppOptions) *fiber.App {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:               "sunnyside",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		ErrorHandler:          ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} | ${locals:requestid} | ${status} | ${latency} | ${method} | ${path} | ${error}\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(opts.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "",
		AllowCredentials: true,
	}))

	return app
}

// ErrorHandler renders every error as {"detail": "..."}.
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		detail := "Internal Server Error"

		var fe *fiber.Error
		var ae *apperr.Error
		switch {
		case errors.As(err, &fe):
			code, detail = fe.Code, fe.Message
		case errors.As(err, &ae):
			code, detail = apperr.HTTPStatus(ae), ae.Reason
		}

		if code >= fiber.StatusInternalServerError {
			log.Error("request failed",
				"request_id", requestID(c), "method", c.Method(), "path", c.Path(), "status", code, "err", err)
		}
		return c.Status(code).JSON(fiber.Map{"detail": detail})
	}
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}
