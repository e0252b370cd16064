package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/sg-weather/internal/log"
	"github.com/i474232898/sg-weather/internal/weather"
)

// DefaultPrimaryBaseURL is the data.gov.sg environment API root.
const DefaultPrimaryBaseURL = "https://api.data.gov.sg/v1/environment"

// MinPrimaryBodyLength is the smallest primary body considered to carry a
// real payload. Anything shorter is an empty or error envelope.
const MinPrimaryBodyLength = 120

// Primary endpoint paths, relative to the base URL.
const (
	PathForecast2hr   = "2-hour-weather-forecast"
	PathForecast24hr  = "24-hour-weather-forecast"
	PathForecast4day  = "4-day-weather-forecast"
	PathTemperature   = "air-temperature"
	PathHumidity      = "relative-humidity"
	PathWindDirection = "wind-direction"
	PathWindSpeed     = "wind-speed"
	PathRainfall      = "rainfall"
)

// PrimaryClient reads documents from the data.gov.sg JSON API.
type PrimaryClient struct {
	name    string
	baseURL string
	fetcher Fetcher
	timeout time.Duration
}

// NewPrimaryClient creates a client for baseURL. An empty baseURL selects
// DefaultPrimaryBaseURL.
func NewPrimaryClient(fetcher Fetcher, baseURL string, timeout time.Duration) *PrimaryClient {
	if baseURL == "" {
		baseURL = DefaultPrimaryBaseURL
	}
	return &PrimaryClient{
		name:    "data.gov.sg",
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		timeout: timeout,
	}
}

func (c *PrimaryClient) Name() string {
	return c.name
}

// Get fetches path for the given query time and decodes it into out.
// Non-JSON, short or undecodable bodies are reported as weather.ErrPayloadTooShort so
// the caller falls back to the secondary source.
func (c *PrimaryClient) Get(ctx context.Context, path string, queryTime time.Time, out any) error {
	params := url.Values{}
	params.Set("date_time", weather.InSGT(queryTime).Format("2006-01-02T15:04:05"))

	resp, err := c.fetcher.Do(ctx, Request{
		URL:     c.baseURL + "/" + path,
		Params:  params,
		Timeout: c.timeout,
	})
	if err != nil {
		return err
	}

	log.Debugw("primary response received", "path", path, "length", len(resp.Body))
	if resp.ContentType != "" && !resp.IsJSON() {
		return fmt.Errorf("%w: %s returned %s", weather.ErrPayloadTooShort, path, resp.ContentType)
	}
	if len(resp.Body) < MinPrimaryBodyLength {
		return fmt.Errorf("%w: %s returned %d bytes", weather.ErrPayloadTooShort, path, len(resp.Body))
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: %s is not valid json: %v", weather.ErrPayloadTooShort, path, err)
	}
	return nil
}

func (c *PrimaryClient) AreaForecast(ctx context.Context, at time.Time) (AreaForecastDoc, error) {
	var doc AreaForecastDoc
	err := c.Get(ctx, PathForecast2hr, at, &doc)
	return doc, err
}

func (c *PrimaryClient) RegionForecast(ctx context.Context, at time.Time) (RegionForecastDoc, error) {
	var doc RegionForecastDoc
	err := c.Get(ctx, PathForecast24hr, at, &doc)
	return doc, err
}

func (c *PrimaryClient) Outlook(ctx context.Context, at time.Time) (OutlookDoc, error) {
	var doc OutlookDoc
	err := c.Get(ctx, PathForecast4day, at, &doc)
	return doc, err
}

// Realtime fetches one of the station observation documents.
func (c *PrimaryClient) Realtime(ctx context.Context, path string, at time.Time) (RealtimeDoc, error) {
	var doc RealtimeDoc
	err := c.Get(ctx, path, at, &doc)
	return doc, err
}

// Wind fetches both wind documents. Either one failing fails the pair.
func (c *PrimaryClient) Wind(ctx context.Context, at time.Time) (WindDocs, error) {
	speed, err := c.Realtime(ctx, PathWindSpeed, at)
	if err != nil {
		return WindDocs{}, err
	}
	direction, err := c.Realtime(ctx, PathWindDirection, at)
	if err != nil {
		return WindDocs{}, err
	}
	return WindDocs{Speed: speed, Direction: direction}, nil
}
