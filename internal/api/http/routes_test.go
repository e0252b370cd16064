package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/sg-weather/internal/radar"
	"github.com/i474232898/sg-weather/internal/store"
	"github.com/i474232898/sg-weather/internal/weather"
)

var queryTime = time.Date(2024, 5, 1, 11, 40, 0, 0, weather.SGT)

type fakeRadar struct {
	frame     *radar.Frame
	animation []byte
}

func (f fakeRadar) Last() (radar.Frame, bool) {
	if f.frame == nil {
		return radar.Frame{}, false
	}
	return *f.frame, true
}

func (f fakeRadar) Animation() ([]byte, error) {
	if f.animation == nil {
		return nil, radar.ErrAnimationNotReady
	}
	return f.animation, nil
}

func newApp(t *testing.T, withSnapshot bool, rs RadarSource) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{UnescapePath: true})

	memStore := store.NewMemoryStore(10, 0)
	if withSnapshot {
		meta := weather.Meta{Timestamp: queryTime, Source: weather.SourceSecondary}
		memStore.SaveSnapshot(weather.Snapshot{
			ID:        "cycle-1",
			QueryTime: queryTime,
			Forecast2hr: &weather.AreaForecast{
				Meta: meta,
				Areas: map[string]weather.AreaCondition{
					"Ang Mo Kio": {Forecast: "Light Rain", Condition: weather.ConditionRainy, Code: "LR"},
				},
			},
			Forecast24hr: &weather.RegionForecast{
				Meta: meta,
				Regions: map[string][]weather.PeriodForecast{
					"central": {{Label: "Today afternoon", Forecast: "Thundery Showers"}},
				},
			},
			Rain: &weather.RainObservation{
				Meta:     meta,
				Stations: map[string]weather.RainStation{
					"S07":  {Name: "Lornie Road", Value: 0.4},
					"S230": {Name: "Punggol Field", Value: 1.6},
				},
			},
		})
	}
	svc := weather.NewService(memStore, nil, weather.Features{Weather: true}, time.Second, nil)
	RegisterRoutes(app, svc, rs)
	return app
}

func get(t *testing.T, app *fiber.App, target string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)

	var body map[string]any
	if resp.Header.Get(fiber.HeaderContentType) == fiber.MIMEApplicationJSON {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))
	}
	return resp, body
}

func TestSnapshotNotFoundBeforeFirstCycle(t *testing.T) {
	app := newApp(t, false, nil)

	resp, _ := get(t, app, "/api/v1/snapshot")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSnapshotReturnsLatest(t *testing.T) {
	app := newApp(t, true, nil)

	resp, body := get(t, app, "/api/v1/snapshot")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cycle-1", body["id"])
	assert.Contains(t, body, "forecast2hr")
	assert.NotContains(t, body, "temperature")
}

// TestSnapshotsRangeValidation verifies that the history endpoint requires
// both bounds and rejects an inverted range.
func TestSnapshotsRangeValidation(t *testing.T) {
	app := newApp(t, true, nil)

	resp, _ := get(t, app, "/api/v1/snapshots?from=2024-05-01T00:00:00Z")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, app, "/api/v1/snapshots?from=2024-05-02T00:00:00Z&to=2024-05-01T00:00:00Z")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, app, "/api/v1/snapshots?from=yesterday&to=today")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := get(t, app, "/api/v1/snapshots?from=1714500000&to=2024-05-02T00:00:00Z")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["snapshots"], 1)

	resp, _ = get(t, app, "/api/v1/snapshots?from=2023-01-01T00:00:00Z&to=2023-01-02T00:00:00Z")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAreaForecast(t *testing.T) {
	app := newApp(t, true, nil)

	resp, body := get(t, app, "/api/v1/areas/ang_mo_kio")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ang Mo Kio", body["area"])
	assert.Equal(t, "secondary", body["source"])

	resp, _ = get(t, app, "/api/v1/areas/Ang%20Mo%20Kio")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, app, "/api/v1/areas/Bedok")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, app, "/api/v1/areas/Atlantis")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegionForecast(t *testing.T) {
	app := newApp(t, true, nil)

	resp, body := get(t, app, "/api/v1/regions/Central")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "central", body["region"])
	assert.Equal(t, "Weather in Central Singapore", body["name"])
	assert.Len(t, body["periods"], 1)

	resp, _ = get(t, app, "/api/v1/regions/northeast")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRainStation(t *testing.T) {
	app := newApp(t, true, nil)

	resp, body := get(t, app, "/api/v1/rain/s07")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "S07", body["station"])

	resp, body = get(t, app, "/api/v1/rain/s230")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "S230", body["station"])

	resp, _ = get(t, app, "/api/v1/rain/S102")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRadarDisabled(t *testing.T) {
	app := newApp(t, true, nil)

	resp, _ := get(t, app, "/api/v1/radar")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, app, "/api/v1/radar/animation")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRadarTile(t *testing.T) {
	frame := radar.Frame{Bucket: queryTime, URL: "https://radar.test/202405011140.png", Image: []byte("png-bytes")}
	app := newApp(t, true, fakeRadar{frame: &frame})

	resp, _ := get(t, app, "/api/v1/radar")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, frame.URL, resp.Header.Get("X-Tile-URL"))
	assert.Equal(t, "2024-05-01T11:40:00+08:00", resp.Header.Get("X-Tile-Time"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, frame.Image, raw)

	resp, _ = get(t, app, "/api/v1/radar/animation")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRadarAnimation(t *testing.T) {
	app := newApp(t, true, fakeRadar{animation: []byte("GIF89a")})

	resp, _ := get(t, app, "/api/v1/radar/animation")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/gif", resp.Header.Get(fiber.HeaderContentType))
}
