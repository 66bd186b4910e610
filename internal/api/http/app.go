package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yuzuleung/sun-visualization/internal/metrics"
)

// AppOptions configures NewApp.
type AppOptions struct {
	// Collector records per-request metrics when set.
	Collector *metrics.Collector
	// Gatherer is served at /metrics when set.
	Gatherer prometheus.Gatherer
	// AccessLog enables fiber's request logger.
	AccessLog bool
}

// NewApp builds the Fiber app with middleware, health, metrics and API routes.
func NewApp(svc *Service, opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "sun-visualization",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Loads wait on the request scheduler.
		WriteTimeout: 5 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	if opts.Collector != nil {
		app.Use(requestMetrics(opts.Collector))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "sun-visualization",
			"cities":  len(svc.Roster.Cities),
		})
	})

	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	RegisterRoutes(app, svc)
	return app
}

func requestMetrics(col *metrics.Collector) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var e *fiber.Error
		if errors.As(err, &e) {
			status = e.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		col.ObserveRequest(c.Route().Path, c.Method(), status, time.Since(start))
		return err
	}
}
