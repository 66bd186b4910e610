package httpapi

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/yuzuleung/sun-visualization/internal/fallback"
	"github.com/yuzuleung/sun-visualization/internal/sun"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// "ALL" or an ISO 3166 alpha-2 code.
	_ = v.RegisterValidation("countryfilter", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == sun.AllCountries {
			return true
		}
		if len(s) != 2 {
			return false
		}
		for _, r := range s {
			if r < 'A' || r > 'Z' {
				return false
			}
		}
		return true
	})
	return v
}

// Service is what the routes need from the application.
type Service struct {
	Loader *sun.Loader
	Roster sun.Roster
	// Now defaults to time.Now.
	Now func() time.Time
	// OnLoad, when set, receives every finished batch.
	OnLoad func(sun.Summary)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, svc *Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/cities", func(c *fiber.Ctx) error {
		country, err := parseCountry(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		cities := sun.FilterCountry(svc.Roster.Cities, country)
		if cities == nil {
			cities = []sun.City{}
		}
		return c.JSON(fiber.Map{
			"countries": svc.Roster.Countries,
			"cities":    cities,
		})
	})

	v1.Post("/load", func(c *fiber.Ctx) error {
		var req loadQuery
		if err := req.bind(c, svc.now()); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		cities := sun.FilterCountry(svc.Roster.Cities, req.Country)
		if len(cities) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "no cities for requested country")
		}

		summary := svc.Loader.Load(c.UserContext(), cities, req.Year)
		if svc.OnLoad != nil {
			svc.OnLoad(summary)
		}
		return c.JSON(summary)
	})

	v1.Get("/states", func(c *fiber.Ctx) error {
		var req loadQuery
		if err := req.bind(c, svc.now()); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		states := make(map[string]sun.State)
		for _, city := range sun.FilterCountry(svc.Roster.Cities, req.Country) {
			states[city.Name] = svc.Loader.State(city.Name, req.Year)
		}
		return c.JSON(fiber.Map{"year": req.Year, "states": states})
	})

	v1.Get("/night", func(c *fiber.Ctx) error {
		var req nightQuery
		if err := req.bind(c, svc.now()); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		cities := sun.FilterCountry(svc.Roster.Cities, req.Country)
		view := sun.NightView(cities, svc.Loader.Dataset, req.Year, req.Day, req.Minute)

		night := 0
		for _, st := range view {
			if st.Phase == sun.Night {
				night++
			}
		}
		return c.JSON(fiber.Map{
			"year":   req.Year,
			"day":    req.Day,
			"date":   sun.DateFromYearDay(req.Year, req.Day),
			"minute": req.Minute,
			"time":   sun.FormatMinutes(req.Minute),
			"night":  night,
			"cities": view,
		})
	})

	v1.Get("/export", func(c *fiber.Ctx) error {
		datasets := svc.Loader.Datasets()
		if len(datasets) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "no datasets loaded")
		}

		now := svc.now()
		doc := fallback.Export(svc.Roster.Cities, datasets, now)
		c.Attachment(fallback.FileName(now))
		return c.JSON(doc)
	})

	v1.Delete("/cache", func(c *fiber.Ctx) error {
		if err := svc.Loader.Reset(c.UserContext()); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to clear cache")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func parseCountry(c *fiber.Ctx) (string, error) {
	q := struct {
		Country string `validate:"countryfilter"`
	}{Country: strings.ToUpper(c.Query("country", sun.AllCountries))}

	if err := validate.Struct(q); err != nil {
		return "", err
	}
	return q.Country, nil
}

// loadQuery holds query parameters for batch endpoints.
type loadQuery struct {
	Year    int    `query:"year" validate:"gte=1940,lte=2100"`
	Country string `query:"country" validate:"countryfilter"`
}

func (q *loadQuery) bind(c *fiber.Ctx, now time.Time) error {
	if err := c.QueryParser(q); err != nil {
		return err
	}
	if q.Year == 0 {
		q.Year = now.Year()
	}
	q.Country = strings.ToUpper(q.Country)
	if q.Country == "" {
		q.Country = sun.AllCountries
	}
	return validate.Struct(q)
}

// nightQuery holds query parameters for the night view. Time ("HH:MM",
// UTC) takes precedence over Minute when both are given.
type nightQuery struct {
	Year    int    `query:"year" validate:"gte=1940,lte=2100"`
	Day     int    `query:"day" validate:"gte=1,lte=366"`
	Minute  int    `query:"minute" validate:"gte=0,lte=1439"`
	Time    string `query:"time"`
	Country string `query:"country" validate:"countryfilter"`
}

func (q *nightQuery) bind(c *fiber.Ctx, now time.Time) error {
	if err := c.QueryParser(q); err != nil {
		return err
	}
	now = now.UTC()
	if q.Year == 0 {
		q.Year = now.Year()
	}
	if q.Day == 0 {
		q.Day = now.YearDay()
	}
	switch {
	case q.Time != "":
		m, err := sun.ParseMinutes(q.Time)
		if err != nil {
			return err
		}
		q.Minute = m
	case c.Query("minute") == "":
		q.Minute = now.Hour()*60 + now.Minute()
	}
	q.Country = strings.ToUpper(q.Country)
	if q.Country == "" {
		q.Country = sun.AllCountries
	}
	return validate.Struct(q)
}
