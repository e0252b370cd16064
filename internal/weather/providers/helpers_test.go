package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/i474232898/sg-weather/internal/weather"
)

// fakeFetcher answers requests from a URL-keyed table and records them.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]*Response
	errs      map[string]error
	fallback  error
	requests  []Request
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		responses: make(map[string]*Response),
		errs:      make(map[string]error),
	}
}

func (f *fakeFetcher) respond(url, body string) {
	f.responses[url] = &Response{Status: 200, ContentType: "application/json", Body: []byte(body)}
}

func (f *fakeFetcher) Do(ctx context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err, ok := f.errs[req.URL]; ok {
		return nil, err
	}
	if resp, ok := f.responses[req.URL]; ok {
		return resp, nil
	}
	if f.fallback != nil {
		return nil, f.fallback
	}
	return nil, &weather.HTTPStatusError{Code: 404, URL: req.URL}
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.URL == url {
			n++
		}
	}
	return n
}

// countingSecondary records how often each secondary resource is read.
type countingSecondary struct {
	mu           sync.Mutex
	nowcast      NowcastDoc
	outlook      []OutlookDay
	observations map[Quantity]StationObservation
	err          error
	calls        map[string]int
}

func newCountingSecondary() *countingSecondary {
	return &countingSecondary{
		observations: make(map[Quantity]StationObservation),
		calls:        make(map[string]int),
	}
}

func (c *countingSecondary) hit(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name]++
}

func (c *countingSecondary) callCount(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *countingSecondary) Nowcast(ctx context.Context, at time.Time) (NowcastDoc, error) {
	c.hit("nowcast")
	return c.nowcast, c.err
}

func (c *countingSecondary) Outlook(ctx context.Context, at time.Time) ([]OutlookDay, error) {
	c.hit("outlook")
	return c.outlook, c.err
}

func (c *countingSecondary) StationReadings(ctx context.Context, q Quantity) (StationObservation, error) {
	c.hit(string(q))
	if c.err != nil {
		return StationObservation{}, c.err
	}
	obs, ok := c.observations[q]
	if !ok {
		return StationObservation{}, fmt.Errorf("%w: no fixture for %s", weather.ErrStructure, q)
	}
	return obs, nil
}

var testNow = time.Date(2024, 5, 1, 11, 40, 0, 0, weather.SGT)

const primaryTemperatureJSON = `{
  "metadata": {
    "stations": [
      {"id": "S24", "device_id": "S24", "name": "Upper Changi Road North", "location": {"latitude": 1.3678, "longitude": 103.9826}},
      {"id": "S43", "device_id": "S43", "name": "Kim Chuan Road", "location": {"latitude": 1.3399, "longitude": 103.8878}}
    ],
    "reading_type": "DBT 1M F",
    "reading_unit": "deg C"
  },
  "items": [
    {
      "timestamp": "2024-05-01T11:00:00+08:00",
      "readings": [
        {"station_id": "S24", "value": 30.5},
        {"station_id": "S43", "value": 29.5},
        {"station_id": "S999", "value": 50}
      ]
    }
  ],
  "api_info": {"status": "healthy"}
}`

const primaryAreaForecastJSON = `{
  "area_metadata": [
    {"name": "Ang Mo Kio", "label_location": {"latitude": 1.375, "longitude": 103.839}},
    {"name": "Bedok", "label_location": {"latitude": 1.321, "longitude": 103.924}},
    {"name": "Bishan", "label_location": {"latitude": 1.350772, "longitude": 103.839}}
  ],
  "items": [
    {
      "update_timestamp": "2024-05-01T11:38:52+08:00",
      "timestamp": "2024-05-01T11:30:00+08:00",
      "valid_period": {"start": "2024-05-01T11:30:00+08:00", "end": "2024-05-01T13:30:00+08:00"},
      "forecasts": [
        {"area": "Ang Mo Kio", "forecast": "Partly Cloudy (Day)"},
        {"area": "Bedok", "forecast": "Light Rain"},
        {"area": "Bishan", "forecast": "Light Rain"},
        {"area": "Atlantis", "forecast": "Cloudy"}
      ]
    }
  ],
  "api_info": {"status": "healthy"}
}`

const primaryRegionForecastJSON = `{
  "items": [
    {
      "update_timestamp": "2024-05-01T05:00:00+08:00",
      "timestamp": "2024-05-01T05:00:00+08:00",
      "valid_period": {"start": "2024-05-01T06:00:00+08:00", "end": "2024-05-02T06:00:00+08:00"},
      "general": {
        "forecast": "Thundery Showers",
        "relative_humidity": {"low": 60, "high": 95},
        "temperature": {"low": 24, "high": 33},
        "wind": {"speed": {"low": 10, "high": 20}, "direction": "SSE"}
      },
      "periods": [
        {
          "time": {"start": "2024-05-01T06:00:00+08:00", "end": "2024-05-01T12:00:00+08:00"},
          "regions": {"west": "Partly Cloudy (Day)", "east": "Partly Cloudy (Day)", "central": "Partly Cloudy (Day)", "south": "Partly Cloudy (Day)", "north": "Cloudy"}
        },
        {
          "time": {"start": "2024-05-01T12:00:00+08:00", "end": "2024-05-01T18:00:00+08:00"},
          "regions": {"west": "Thundery Showers", "east": "Thundery Showers", "central": "Thundery Showers", "south": "Thundery Showers", "north": "Thundery Showers"}
        },
        {
          "time": {"start": "2024-05-01T18:00:00+08:00", "end": "2024-05-02T06:00:00+08:00"},
          "regions": {"west": "Partly Cloudy (Night)", "east": "Partly Cloudy (Night)", "central": "Fair (Night)", "south": "Partly Cloudy (Night)", "north": "Partly Cloudy (Night)"}
        }
      ]
    }
  ],
  "api_info": {"status": "healthy"}
}`

const primaryRainfallJSON = `{
  "metadata": {
    "stations": [
      {"id": "S07", "device_id": "S07", "name": "Lornie Road", "location": {"latitude": 1.341, "longitude": 103.834}},
      {"id": "S201", "device_id": "S201", "name": "Cantonment Road", "location": {"latitude": 1.2741, "longitude": 103.8389}}
    ],
    "reading_type": "TB1 Rainfall 5 Minute Total F",
    "reading_unit": "mm"
  },
  "items": [
    {
      "timestamp": "2024-05-01T11:00:00+08:00",
      "readings": [
        {"station_id": "S07", "value": 0.4},
        {"station_id": "S201", "value": 1.2}
      ]
    }
  ],
  "api_info": {"status": "healthy"}
}`

func rainfallObservation() StationObservation {
	return StationObservation{
		Quantity:   QuantityRainfall,
		ObservedAt: "Observations at 11:00 AM, 1 May 2024",
		Stations: []ScrapedStation{
			{ID: "S07", Name: "Lornie Road", Location: weather.Location{Latitude: 1.341, Longitude: 103.834}, Value: "0.4"},
			{ID: "S201", Name: "Cantonment Road", Location: weather.Location{Latitude: 1.2741, Longitude: 103.8389}, Value: "1.2"},
		},
	}
}

const nowcastJSON = `{
  "Channel2HrForecast": {
    "Item": {
      "ForecastIssue": {"Date": "01-05-2024", "Time": "11:30", "DateTimeStr": "11.30 am, 1 May 2024"},
      "ValidTime": "11.30 am to 1.30 pm",
      "WeatherForecast": {
        "Area": [
          {"Name": "Ang Mo Kio", "LocationName": "Ang Mo Kio", "Lat": "1.375", "Lon": "103.839", "Forecast": "PC"},
          {"Name": "Bedok", "LocationName": "Bedok", "Lat": "1.321", "Lon": "103.924", "Forecast": "LR"},
          {"Name": "Bishan", "LocationName": "Bishan", "Lat": "1.350772", "Lon": "103.839", "Forecast": "LR"}
        ]
      }
    }
  },
  "Channel24HrForecast": {
    "Main": {
      "ForecastIssue": {"DateTimeStr": "5.00 am, 1 May 2024"},
      "ValidTime": "6 AM 1 May - 6 AM 2 May",
      "Forecast": "Thundery Showers",
      "RelativeHumidity": {"Low": "60", "High": "95"},
      "Temperature": {"Low": "24", "High": "33"},
      "Wind": {"Speed": "10 - 20", "Direction": "SSE"}
    },
    "Forecasts": [
      {"Type": "Morning", "TimePeriod": "6 am to Midday", "Wxeast": "PC", "Wxwest": "PC", "Wxnorth": "CL", "Wxsouth": "PC", "Wxcentral": "PC"},
      {"Type": "Afternoon", "TimePeriod": "Midday to 6 pm", "Wxeast": "TL", "Wxwest": "TL", "Wxnorth": "TL", "Wxsouth": "TL", "Wxcentral": "TL"},
      {"Type": "Night", "TimePeriod": "6 pm to 6 am", "Wxeast": "PN", "Wxwest": "PN", "Wxnorth": "PN", "Wxsouth": "PN", "Wxcentral": "FN"}
    ]
  }
}`

var outlookDays = []OutlookDay{
	{Day: "WED", Forecast: "Afternoon thundery showers.", Temperature: "25 - 33°C", WindSpeed: "NE 10 - 20 km/h"},
	{Day: "THU", Forecast: "Partly cloudy.", Temperature: "26 - 34°C", WindSpeed: "E 10 - 25 km/h"},
	{Day: "FRI", Forecast: "Volcanic ash.", Temperature: "26 - 34°C", WindSpeed: "E 10 - 25 km/h"},
	{Day: "SAT", Forecast: "Late morning showers.", Temperature: "25 - 32°C", WindSpeed: "SE 5 - 15 km/h"},
}

func temperatureObservation() StationObservation {
	return StationObservation{
		Quantity:   QuantityTemperature,
		ObservedAt: "Observations at 11:00 AM, 1 May 2024",
		Stations: []ScrapedStation{
			{ID: "S24", Name: "Upper Changi Road North", Location: weather.Location{Latitude: 1.3678, Longitude: 103.9826}, Value: "30.5"},
			{ID: "S43", Name: "Kim Chuan Road", Location: weather.Location{Latitude: 1.3399, Longitude: 103.8878}, Value: "29.5"},
			{ID: "S44", Name: "Nanyang Avenue", Value: "-"},
		},
	}
}

func windObservation() StationObservation {
	return StationObservation{
		Quantity:   QuantityWind,
		ObservedAt: "Observations at 11:00 AM, 1 May 2024",
		Stations: []ScrapedStation{
			{ID: "S24", Value: "10", Direction: "N"},
			{ID: "S43", Value: "10", Direction: "E"},
			{ID: "S44", Value: "0", Direction: ""},
		},
	}
}
