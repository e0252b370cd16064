package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/sg-weather/internal/radar"
	"github.com/i474232898/sg-weather/internal/store"
	"github.com/i474232898/sg-weather/internal/weather"
)

var validate = validator.New()

// SnapshotReader is the read-only snapshot accessor.
type SnapshotReader interface {
	GetLatest() (weather.Snapshot, error)
	GetRange(from, to time.Time) ([]weather.Snapshot, error)
}

// RadarSource exposes the last resolved radar tile and animation.
type RadarSource interface {
	Last() (radar.Frame, bool)
	Animation() ([]byte, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. rs may be nil
// when the radar is disabled.
func RegisterRoutes(app *fiber.App, snapshots SnapshotReader, rs RadarSource) {
	v1 := app.Group("/api/v1")

	v1.Get("/snapshot", func(c *fiber.Ctx) error {
		snapshot, err := latest(snapshots)
		if err != nil {
			return err
		}
		return c.JSON(snapshot)
	})

	v1.Get("/snapshots", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		result, err := snapshots.GetRange(req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather snapshots for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather snapshots")
		}

		return c.JSON(fiber.Map{
			"from":      req.From,
			"to":        req.To,
			"snapshots": result,
		})
	})

	v1.Get("/areas/:name", func(c *fiber.Ctx) error {
		name, err := pathParam(c, "name")
		if err != nil {
			return err
		}
		area, err := weather.CanonicalArea(name)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		snapshot, err := latest(snapshots)
		if err != nil {
			return err
		}
		if snapshot.Forecast2hr == nil {
			return fiber.NewError(fiber.StatusNotFound, "area forecast not available")
		}
		cond, ok := snapshot.Forecast2hr.Areas[area]
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no forecast for area "+area)
		}
		return c.JSON(fiber.Map{
			"area":      area,
			"timestamp": snapshot.Forecast2hr.Timestamp,
			"source":    snapshot.Forecast2hr.Source,
			"forecast":  cond,
		})
	})

	v1.Get("/regions/:name", func(c *fiber.Ctx) error {
		name, err := pathParam(c, "name")
		if err != nil {
			return err
		}
		region, err := weather.CanonicalRegion(name)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		snapshot, err := latest(snapshots)
		if err != nil {
			return err
		}
		if snapshot.Forecast24hr == nil {
			return fiber.NewError(fiber.StatusNotFound, "region forecast not available")
		}
		return c.JSON(fiber.Map{
			"region":    region,
			"name":      weather.RegionDisplayName(region),
			"timestamp": snapshot.Forecast24hr.Timestamp,
			"source":    snapshot.Forecast24hr.Source,
			"periods":   snapshot.Forecast24hr.Regions[region],
		})
	})

	v1.Get("/rain/:station", func(c *fiber.Ctx) error {
		id, err := pathParam(c, "station")
		if err != nil {
			return err
		}
		snapshot, err := latest(snapshots)
		if err != nil {
			return err
		}
		if snapshot.Rain == nil {
			return fiber.NewError(fiber.StatusNotFound, "rain data not available")
		}
		station, reading, ok := snapshot.Rain.Station(id)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "unknown rain station "+id)
		}
		return c.JSON(fiber.Map{
			"station":   station,
			"timestamp": snapshot.Rain.Timestamp,
			"source":    snapshot.Rain.Source,
			"reading":   reading,
		})
	})

	v1.Get("/radar", func(c *fiber.Ctx) error {
		if rs == nil {
			return fiber.NewError(fiber.StatusNotFound, "radar disabled")
		}
		frame, ok := rs.Last()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no radar tile yet")
		}
		c.Set("X-Tile-Time", frame.Bucket.Format(time.RFC3339))
		c.Set("X-Tile-URL", frame.URL)
		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(frame.Image)
	})

	v1.Get("/radar/animation", func(c *fiber.Ctx) error {
		if rs == nil {
			return fiber.NewError(fiber.StatusNotFound, "radar disabled")
		}
		anim, err := rs.Animation()
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		c.Set(fiber.HeaderContentType, "image/gif")
		return c.Send(anim)
	})
}

func latest(snapshots SnapshotReader) (weather.Snapshot, error) {
	snapshot, err := snapshots.GetLatest()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return weather.Snapshot{}, fiber.NewError(fiber.StatusNotFound, "no weather snapshot published yet")
		}
		return weather.Snapshot{}, fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather snapshot")
	}
	return snapshot, nil
}

type identifierParam struct {
	Value string `validate:"required,max=64"`
}

func pathParam(c *fiber.Ctx, key string) (string, error) {
	p := identifierParam{Value: c.Params(key)}
	if err := validate.Struct(p); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return p.Value, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
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
