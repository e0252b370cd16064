package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The types below mirror the data.gov.sg v1 environment API. The secondary
// adapter produces the same types, so extraction never needs to know which
// source a document came from.

// flexFloat accepts JSON numbers and numeric strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := parseNumber(s)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q as number: %w", s, err)
	}
	return v, nil
}

type APIInfo struct {
	Status string `json:"status"`
}

type LabelLocation struct {
	Latitude  flexFloat `json:"latitude"`
	Longitude flexFloat `json:"longitude"`
}

type ValidPeriod struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type LowHigh struct {
	Low  flexFloat `json:"low"`
	High flexFloat `json:"high"`
}

type WindForecast struct {
	Speed     LowHigh `json:"speed"`
	Direction string  `json:"direction"`
}

type AreaMetadata struct {
	Name          string        `json:"name"`
	LabelLocation LabelLocation `json:"label_location"`
}

type AreaEntry struct {
	Area     string `json:"area"`
	Forecast string `json:"forecast"`
}

type AreaForecastItem struct {
	UpdateTimestamp string      `json:"update_timestamp"`
	Timestamp       string      `json:"timestamp"`
	ValidPeriod     ValidPeriod `json:"valid_period"`
	Forecasts       []AreaEntry `json:"forecasts"`
}

// AreaForecastDoc is the 2-hour-weather-forecast document.
type AreaForecastDoc struct {
	APIInfo      APIInfo            `json:"api_info"`
	AreaMetadata []AreaMetadata     `json:"area_metadata"`
	Items        []AreaForecastItem `json:"items"`
}

type GeneralBlock struct {
	Forecast         string       `json:"forecast"`
	RelativeHumidity LowHigh      `json:"relative_humidity"`
	Temperature      LowHigh      `json:"temperature"`
	Wind             WindForecast `json:"wind"`
}

type RegionPeriod struct {
	Time    ValidPeriod       `json:"time"`
	Regions map[string]string `json:"regions"`
}

type RegionForecastItem struct {
	UpdateTimestamp string         `json:"update_timestamp"`
	Timestamp       string         `json:"timestamp"`
	ValidPeriod     ValidPeriod    `json:"valid_period"`
	General         GeneralBlock   `json:"general"`
	Periods         []RegionPeriod `json:"periods"`
}

// RegionForecastDoc is the 24-hour-weather-forecast document.
type RegionForecastDoc struct {
	APIInfo APIInfo              `json:"api_info"`
	Items   []RegionForecastItem `json:"items"`
}

type OutlookEntry struct {
	Date             string       `json:"date"`
	Timestamp        string       `json:"timestamp"`
	Forecast         string       `json:"forecast"`
	RelativeHumidity LowHigh      `json:"relative_humidity"`
	Temperature      LowHigh      `json:"temperature"`
	Wind             WindForecast `json:"wind"`
}

type OutlookItem struct {
	UpdateTimestamp string         `json:"update_timestamp"`
	Timestamp       string         `json:"timestamp"`
	Forecasts       []OutlookEntry `json:"forecasts"`
}

// OutlookDoc is the 4-day-weather-forecast document.
type OutlookDoc struct {
	APIInfo APIInfo       `json:"api_info"`
	Items   []OutlookItem `json:"items"`
}

type StationMetadata struct {
	ID       string        `json:"id"`
	DeviceID string        `json:"device_id"`
	Name     string        `json:"name"`
	Location LabelLocation `json:"location"`
}

type Reading struct {
	StationID string    `json:"station_id"`
	Value     flexFloat `json:"value"`
}

type RealtimeMetadata struct {
	Stations    []StationMetadata `json:"stations"`
	ReadingType string            `json:"reading_type"`
	ReadingUnit string            `json:"reading_unit"`
}

type RealtimeItem struct {
	Timestamp string    `json:"timestamp"`
	Readings  []Reading `json:"readings"`
}

// RealtimeDoc is the shape shared by air-temperature, relative-humidity,
// wind-speed, wind-direction and rainfall.
type RealtimeDoc struct {
	APIInfo  APIInfo          `json:"api_info"`
	Metadata RealtimeMetadata `json:"metadata"`
	Items    []RealtimeItem   `json:"items"`
}

// WindDocs pairs the two wind documents, which always come from one source.
type WindDocs struct {
	Speed     RealtimeDoc
	Direction RealtimeDoc
}
