package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-collector/internal/scheduler"
	"github.com/i474232898/weather-collector/internal/store"
)

var validate = validator.New()

// SchedulerStatus is the read side of the scheduler.
type SchedulerStatus interface {
	State() scheduler.State
	LastCycle() (scheduler.CycleReport, bool)
}

// Deps are the components the HTTP surface reports on.
type Deps struct {
	Scheduler SchedulerStatus
	Status    *store.StatusStore
	Gatherer  prometheus.Gatherer
}

// cycleView adds the derived result to a cycle report.
type cycleView struct {
	scheduler.CycleReport
	Summary string `json:"result"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-collector",
		})
	})

	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/status", func(c *fiber.Ctx) error {
		var last *cycleView
		if report, ok := deps.Scheduler.LastCycle(); ok {
			last = &cycleView{CycleReport: report, Summary: report.Result()}
		}

		return c.JSON(fiber.Map{
			"state":     deps.Scheduler.State(),
			"lastCycle": last,
			"locations": deps.Status.All(),
		})
	})

	v1.Get("/status/locations/:id", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		outcomes, err := deps.Status.History(req.LocationID, 0)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no collection outcome for requested location")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read location status")
		}

		outcomes = req.filter(outcomes)
		return c.JSON(fiber.Map{
			"locationId": req.LocationID,
			"outcomes":   outcomes,
		})
	})
}

// historyQuery holds parameters for the location history endpoint.
type historyQuery struct {
	LocationID string `validate:"required"`
	Limit      int    `validate:"gte=0,lte=100"`
	Since      time.Time
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.LocationID = c.Params("id")

	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return errors.New("limit must be an integer")
		}
		h.Limit = n
	}

	if since := c.Query("since"); since != "" {
		ts, err := parseTime(since)
		if err != nil {
			return err
		}
		h.Since = ts
	}
	return nil
}

// filter applies since and limit to newest-first outcomes.
func (h historyQuery) filter(outcomes []store.Outcome) []store.Outcome {
	result := make([]store.Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if !h.Since.IsZero() && o.Timestamp.Before(h.Since) {
			break
		}
		result = append(result, o)
		if h.Limit > 0 && len(result) == h.Limit {
			break
		}
	}
	return result
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
