package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/multierr"

	"github.com/i474232898/station-aggregator/internal/store"
	"github.com/i474232898/station-aggregator/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1")

	v1.Post("/readings", func(c *fiber.Ctx) error {
		readings, err := weather.DecodeReadings(c.Body())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		applied, err := service.ReportBatch(c.UserContext(), readings)
		if err != nil {
			errs := multierr.Errors(err)
			messages := make([]string, len(errs))
			for i, e := range errs {
				messages[i] = e.Error()
			}
			return c.Status(statusFor(err)).JSON(fiber.Map{
				"error":    true,
				"received": len(readings),
				"accepted": applied,
				"errors":   messages,
			})
		}

		// accepted excludes readings dropped for an out of range sensor
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"received": len(readings),
			"accepted": applied,
		})
	})

	v1.Get("/stations", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"stations": service.Stations(),
		})
	})

	v1.Post("/stations/:id/flush", func(c *fiber.Ctx) error {
		id := c.Params("id")
		sample, ok, err := service.Flush(c.UserContext(), id)
		if err != nil {
			if ok {
				// The period was closed but the sink rejected the sample.
				return fiber.NewError(fiber.StatusBadGateway, err.Error())
			}
			return fiber.NewError(statusFor(err), err.Error())
		}
		if !ok {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.JSON(sample)
	})

	v1.Get("/stations/:id/current", func(c *fiber.Ctx) error {
		sample, ok, err := service.Preview(c.UserContext(), c.Params("id"))
		if err != nil {
			return fiber.NewError(statusFor(err), err.Error())
		}
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no readings in the current period")
		}
		return c.JSON(sample)
	})

	v1.Get("/stations/:id/samples/latest", func(c *fiber.Ctx) error {
		sample, err := service.GetLatest(c.Params("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no samples for requested station")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch samples")
		}
		return c.JSON(sample)
	})

	v1.Get("/stations/:id/samples", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		samples, err := service.GetRange(req.StationID, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no samples for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch samples")
		}

		return c.JSON(fiber.Map{
			"stationId": req.StationID,
			"from":      req.From,
			"to":        req.To,
			"samples":   samples,
		})
	})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, weather.ErrUnknownStation):
		return fiber.StatusNotFound
	case errors.Is(err, weather.ErrInvalidReading), errors.Is(err, weather.ErrUnknownKind):
		return fiber.StatusBadRequest
	case errors.Is(err, weather.ErrStationStopped):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// historyQuery holds the parameters of the samples range endpoint.
type historyQuery struct {
	StationID string    `validate:"required"`
	From      time.Time `validate:"required"`
	To        time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.StationID = c.Params("id")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
