package providers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/sg-weather/internal/weather"
)

const emptyRainfallJSON = `{
  "metadata": {
    "stations": [{"id": "S07", "device_id": "S07", "name": "Lornie Road", "location": {"latitude": 1.341, "longitude": 103.834}}],
    "reading_type": "TB1 Rainfall 5 Minute Total F",
    "reading_unit": "mm"
  },
  "items": [],
  "api_info": {"status": "healthy"}
}`

func newTestNEA(t *testing.T, f *fakeFetcher) (*NEA, *countingSecondary) {
	t.Helper()
	sec := newCountingSecondary()
	sec.nowcast = loadNowcast(t)
	sec.outlook = outlookDays
	sec.observations[QuantityTemperature] = temperatureObservation()
	sec.observations[QuantityWind] = windObservation()
	sec.observations[QuantityHumidity] = StationObservation{
		Quantity:   QuantityHumidity,
		ObservedAt: "Observations at 11:00 AM, 1 May 2024",
		Stations:   []ScrapedStation{{ID: "S24", Value: "78"}, {ID: "S43", Value: "82"}},
	}
	sec.observations[QuantityRainfall] = StationObservation{
		Quantity:   QuantityRainfall,
		ObservedAt: "Observations at 11:00 AM, 1 May 2024",
		Stations:   []ScrapedStation{{ID: "S07", Value: "0.4"}},
	}

	primary := NewPrimaryClient(f, testPrimaryURL, time.Second)
	return NewNEAWith(primary, sec, sec, func() time.Time { return testNow }), sec
}

func TestCyclePrefersPrimary(t *testing.T) {
	f := newFakeFetcher()
	f.respond(testPrimaryURL+"/"+PathTemperature, primaryTemperatureJSON)
	nea, sec := newTestNEA(t, f)

	d, err := nea.NewCycle(testNow).Fetch(context.Background(), weather.KindTemperature)
	require.NoError(t, err)

	assert.Equal(t, weather.SourcePrimary, d.Provenance())
	assert.Equal(t, weather.KindTemperature, d.Kind())
	assert.Zero(t, sec.callCount(string(QuantityTemperature)))
}

func TestCycleFallsBackOnPrimaryFailure(t *testing.T) {
	f := newFakeFetcher()
	f.fallback = &weather.HTTPStatusError{Code: 503, URL: testPrimaryURL}
	nea, sec := newTestNEA(t, f)
	cycle := nea.NewCycle(testNow)

	for _, kind := range weather.AllKinds {
		d, err := cycle.Fetch(context.Background(), kind)
		require.NoError(t, err, kind)
		assert.Equal(t, weather.SourceSecondary, d.Provenance(), kind)
		assert.Equal(t, kind, d.Kind())
	}

	assert.Equal(t, 1, sec.callCount("nowcast"))
	assert.Equal(t, 1, sec.callCount("outlook"))
	assert.Equal(t, 1, sec.callCount(string(QuantityWind)))
	assert.Equal(t, 1, sec.callCount(string(QuantityRainfall)))
}

func TestCycleMemoizesSecondaryUnderConcurrency(t *testing.T) {
	f := newFakeFetcher()
	f.fallback = weather.ErrTransport
	nea, sec := newTestNEA(t, f)
	cycle := nea.NewCycle(testNow)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for _, kind := range []weather.DatasetKind{weather.KindForecast2hr, weather.KindForecast24hr} {
			wg.Add(1)
			go func(kind weather.DatasetKind) {
				defer wg.Done()
				_, err := cycle.Fetch(context.Background(), kind)
				assert.NoError(t, err)
			}(kind)
		}
	}
	wg.Wait()
	assert.Equal(t, 1, sec.callCount("nowcast"))

	_, err := nea.NewCycle(testNow).Fetch(context.Background(), weather.KindForecast2hr)
	require.NoError(t, err)
	assert.Equal(t, 2, sec.callCount("nowcast"))
}

func TestCycleDoesNotFallBackOnStructureError(t *testing.T) {
	f := newFakeFetcher()
	f.respond(testPrimaryURL+"/"+PathRainfall, emptyRainfallJSON)
	nea, sec := newTestNEA(t, f)

	_, err := nea.NewCycle(testNow).Fetch(context.Background(), weather.KindRain)
	assert.ErrorIs(t, err, weather.ErrStructure)
	assert.Zero(t, sec.callCount(string(QuantityRainfall)))
}

func TestCycleReportsSecondaryFailure(t *testing.T) {
	f := newFakeFetcher()
	f.fallback = weather.ErrTimeout
	nea, sec := newTestNEA(t, f)
	sec.err = weather.ErrTransport

	_, err := nea.NewCycle(testNow).Fetch(context.Background(), weather.KindHumidity)
	assert.ErrorIs(t, err, weather.ErrTransport)
	assert.Contains(t, err.Error(), "secondary")
}

func TestCycleWindFallsBackAsUnit(t *testing.T) {
	f := newFakeFetcher()
	f.respond(testPrimaryURL+"/"+PathWindSpeed, primaryTemperatureJSON)
	f.errs[testPrimaryURL+"/"+PathWindDirection] = &weather.HTTPStatusError{Code: 500}
	nea, sec := newTestNEA(t, f)

	d, err := nea.NewCycle(testNow).Fetch(context.Background(), weather.KindWind)
	require.NoError(t, err)

	w, ok := d.(*weather.WindObservation)
	require.True(t, ok)
	assert.Equal(t, weather.SourceSecondary, w.Source)
	assert.Equal(t, 2, w.StationsUsed)
	assert.Equal(t, 1, sec.callCount(string(QuantityWind)))
}

func TestCycleRejectsUnknownKind(t *testing.T) {
	nea, _ := newTestNEA(t, newFakeFetcher())
	_, err := nea.NewCycle(testNow).Fetch(context.Background(), weather.DatasetKind("pollen"))
	assert.ErrorIs(t, err, weather.ErrUnknownIdentifier)
}
