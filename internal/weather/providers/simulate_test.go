package providers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/sg-weather/internal/weather"
)

func loadNowcast(t *testing.T) NowcastDoc {
	t.Helper()
	var doc NowcastDoc
	require.NoError(t, json.Unmarshal([]byte(nowcastJSON), &doc))
	return doc
}

func TestSimulateAreaForecast(t *testing.T) {
	doc, err := SimulateAreaForecast(loadNowcast(t), testNow)
	require.NoError(t, err)

	require.Len(t, doc.Items, 1)
	item := doc.Items[0]
	assert.Equal(t, "2024-05-01T11:30:00+08:00", item.Timestamp)
	assert.Equal(t, "2024-05-01T11:30:00+08:00", item.ValidPeriod.Start)
	assert.Equal(t, "2024-05-01T13:30:00+08:00", item.ValidPeriod.End)
	assert.Equal(t, []AreaEntry{
		{Area: "Ang Mo Kio", Forecast: "Partly Cloudy (Day)"},
		{Area: "Bedok", Forecast: "Light Rain"},
		{Area: "Bishan", Forecast: "Light Rain"},
	}, item.Forecasts)
	require.Len(t, doc.AreaMetadata, 3)
	assert.InDelta(t, 1.375, float64(doc.AreaMetadata[0].LabelLocation.Latitude), 1e-9)
}

func TestSimulateAreaForecastRejectsMisalignedLists(t *testing.T) {
	n := loadNowcast(t)
	n.Channel2HrForecast.Item.WeatherForecast.Area[1].Forecast = ""

	_, err := SimulateAreaForecast(n, testNow)
	assert.ErrorIs(t, err, weather.ErrStructure)
	assert.False(t, weather.IsFallbackError(err))
}

func TestSimulateAreaForecastRejectsUnknownCode(t *testing.T) {
	n := loadNowcast(t)
	n.Channel2HrForecast.Item.WeatherForecast.Area[0].Forecast = "ZZ"

	_, err := SimulateAreaForecast(n, testNow)
	assert.ErrorIs(t, err, weather.ErrStructure)
}

func TestSimulateRegionForecast(t *testing.T) {
	doc, err := SimulateRegionForecast(loadNowcast(t), testNow)
	require.NoError(t, err)

	require.Len(t, doc.Items, 1)
	item := doc.Items[0]
	assert.Equal(t, "2024-05-01T05:00:00+08:00", item.Timestamp)
	assert.Equal(t, "2024-05-01T06:00:00+08:00", item.ValidPeriod.Start)
	assert.Equal(t, "2024-05-02T06:00:00+08:00", item.ValidPeriod.End)
	assert.Equal(t, "Thundery Showers", item.General.Forecast)
	assert.Equal(t, flexFloat(24), item.General.Temperature.Low)
	assert.Equal(t, flexFloat(95), item.General.RelativeHumidity.High)
	assert.Equal(t, flexFloat(20), item.General.Wind.Speed.High)
	assert.Equal(t, "SSE", item.General.Wind.Direction)

	require.Len(t, item.Periods, 3)
	wantTimes := [][2]string{
		{"2024-05-01T06:00:00+08:00", "2024-05-01T12:00:00+08:00"},
		{"2024-05-01T12:00:00+08:00", "2024-05-01T18:00:00+08:00"},
		{"2024-05-01T18:00:00+08:00", "2024-05-02T06:00:00+08:00"},
	}
	for i, p := range item.Periods {
		assert.Equal(t, wantTimes[i][0], p.Time.Start, "period %d", i)
		assert.Equal(t, wantTimes[i][1], p.Time.End, "period %d", i)
		assert.Len(t, p.Regions, len(weather.Regions))
	}
	assert.Equal(t, "Cloudy", item.Periods[0].Regions["north"])
	assert.Equal(t, "Thundery Showers", item.Periods[1].Regions["east"])
	assert.Equal(t, "Fair (Night)", item.Periods[2].Regions["central"])
}

func TestSimulateRegionForecastNeedsThreePeriods(t *testing.T) {
	n := loadNowcast(t)
	n.Channel24HrForecast.Forecasts = n.Channel24HrForecast.Forecasts[:2]

	_, err := SimulateRegionForecast(n, testNow)
	assert.ErrorIs(t, err, weather.ErrStructure)
}

func TestSimulateOutlookMapsDayNames(t *testing.T) {
	doc, err := SimulateOutlook(outlookDays, testNow)
	require.NoError(t, err)

	require.Len(t, doc.Items, 1)
	entries := doc.Items[0].Forecasts
	require.Len(t, entries, 4)
	assert.Equal(t, "2024-05-01", entries[0].Date)
	assert.Equal(t, "2024-05-02T00:00:00+08:00", entries[1].Timestamp)
	assert.Equal(t, "2024-05-04", entries[3].Date)

	assert.Equal(t, flexFloat(25), entries[0].Temperature.Low)
	assert.Equal(t, flexFloat(33), entries[0].Temperature.High)
	assert.Equal(t, "NE", entries[0].Wind.Direction)
	assert.Equal(t, flexFloat(10), entries[0].Wind.Speed.Low)
	assert.Equal(t, flexFloat(20), entries[0].Wind.Speed.High)
	assert.Equal(t, "2024-05-01T11:40:00+08:00", doc.Items[0].Timestamp)
}

func TestSimulateOutlookRejectsUnknownDay(t *testing.T) {
	days := append([]OutlookDay(nil), outlookDays...)
	days[2].Day = "XYZ"

	_, err := SimulateOutlook(days, testNow)
	assert.ErrorIs(t, err, weather.ErrStructure)

	_, err = SimulateOutlook(nil, testNow)
	assert.ErrorIs(t, err, weather.ErrStructure)
}

func TestSimulateRealtimeSkipsUnreadableValues(t *testing.T) {
	doc, err := SimulateRealtime(temperatureObservation(), PathTemperature, testNow)
	require.NoError(t, err)

	assert.Equal(t, "deg C", doc.Metadata.ReadingUnit)
	assert.Len(t, doc.Metadata.Stations, 3)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "2024-05-01T11:00:00+08:00", doc.Items[0].Timestamp)
	assert.Equal(t, []Reading{
		{StationID: "S24", Value: 30.5},
		{StationID: "S43", Value: 29.5},
	}, doc.Items[0].Readings)
}

func TestSimulateRealtimeWind(t *testing.T) {
	speed, err := SimulateRealtime(windObservation(), PathWindSpeed, testNow)
	require.NoError(t, err)
	require.Len(t, speed.Items[0].Readings, 3)
	assert.InDelta(t, 10*KnotsPerKmh, float64(speed.Items[0].Readings[0].Value), 1e-9)
	assert.Equal(t, "knots", speed.Metadata.ReadingUnit)

	direction, err := SimulateRealtime(windObservation(), PathWindDirection, testNow)
	require.NoError(t, err)
	assert.Equal(t, []Reading{
		{StationID: "S24", Value: 0},
		{StationID: "S43", Value: 90},
	}, direction.Items[0].Readings)
}

func TestSimulateRealtimeRejectsUnknownCompassLabel(t *testing.T) {
	obs := windObservation()
	obs.Stations[0].Direction = "NNE-ish"

	_, err := SimulateRealtime(obs, PathWindDirection, testNow)
	assert.ErrorIs(t, err, weather.ErrStructure)
}

func TestSimulateRealtimeRejectsBadObservationTime(t *testing.T) {
	obs := temperatureObservation()
	obs.ObservedAt = "Observations unavailable"

	_, err := SimulateRealtime(obs, PathTemperature, testNow)
	assert.ErrorIs(t, err, weather.ErrStructure)
}

func TestSplitWind(t *testing.T) {
	dir, low, high, err := splitWind("NE 10 - 20 km/h")
	require.NoError(t, err)
	assert.Equal(t, "NE", dir)
	assert.Equal(t, 10.0, low)
	assert.Equal(t, 20.0, high)

	_, _, _, err = splitWind("calm")
	assert.Error(t, err)
}
