package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/i474232898/sg-weather/internal/log"
	"github.com/i474232898/sg-weather/internal/weather"
)

// Endpoints holds the upstream base URLs. Empty values select the public
// services.
type Endpoints struct {
	Primary    string
	NEA        string
	WeatherGov string
}

// NEA implements weather.Provider on top of data.gov.sg with the NEA web
// sites as fallback.
type NEA struct {
	primary   *PrimaryClient
	stations  StationReader
	forecasts ForecastReader
	clock     weather.Clock
}

// NewNEA wires the primary client and the scraper over one gateway.
func NewNEA(client *http.Client, endpoints Endpoints, requestTimeout time.Duration, clock weather.Clock) *NEA {
	gw := NewGateway(client)
	scraper := NewScraper(gw, endpoints.NEA, endpoints.WeatherGov, requestTimeout)
	return NewNEAWith(NewPrimaryClient(gw, endpoints.Primary, requestTimeout), scraper, scraper, clock)
}

// NewNEAWith assembles a provider from explicit collaborators.
func NewNEAWith(primary *PrimaryClient, stations StationReader, forecasts ForecastReader, clock weather.Clock) *NEA {
	if clock == nil {
		clock = time.Now
	}
	return &NEA{primary: primary, stations: stations, forecasts: forecasts, clock: clock}
}

// NewCycle returns the per-cycle fetcher. Secondary resources are memoized
// for its lifetime.
func (n *NEA) NewCycle(queryTime time.Time) weather.Cycle {
	return &cycle{
		nea:       n,
		queryTime: queryTime,
		secondary: NewSecondary(n.stations, n.forecasts, queryTime),
	}
}

type cycle struct {
	nea       *NEA
	queryTime time.Time
	secondary *Secondary
}

// Fetch runs the dataset fetcher for kind.
func (c *cycle) Fetch(ctx context.Context, kind weather.DatasetKind) (weather.Dataset, error) {
	p := c.nea.primary
	now := c.nea.clock()

	switch kind {
	case weather.KindForecast2hr:
		return fetchDataset(ctx, kind,
			func(ctx context.Context) (AreaForecastDoc, error) { return p.AreaForecast(ctx, c.queryTime) },
			c.secondary.AreaForecast,
			func(d AreaForecastDoc, src weather.Source) (weather.Dataset, error) {
				return ExtractAreaForecast(d, src)
			})
	case weather.KindForecast24hr:
		return fetchDataset(ctx, kind,
			func(ctx context.Context) (RegionForecastDoc, error) { return p.RegionForecast(ctx, c.queryTime) },
			c.secondary.RegionForecast,
			func(d RegionForecastDoc, src weather.Source) (weather.Dataset, error) {
				return ExtractRegionForecast(d, src, now)
			})
	case weather.KindForecast4day:
		return fetchDataset(ctx, kind,
			func(ctx context.Context) (OutlookDoc, error) { return p.Outlook(ctx, c.queryTime) },
			c.secondary.Outlook,
			func(d OutlookDoc, src weather.Source) (weather.Dataset, error) {
				return ExtractOutlook(d, src)
			})
	case weather.KindTemperature, weather.KindHumidity:
		path := PathTemperature
		if kind == weather.KindHumidity {
			path = PathHumidity
		}
		return fetchDataset(ctx, kind,
			func(ctx context.Context) (RealtimeDoc, error) { return p.Realtime(ctx, path, c.queryTime) },
			func(ctx context.Context) (RealtimeDoc, error) { return c.secondary.Realtime(ctx, path) },
			func(d RealtimeDoc, src weather.Source) (weather.Dataset, error) {
				return ExtractStationAverage(kind, d, src)
			})
	case weather.KindWind:
		return fetchDataset(ctx, kind,
			func(ctx context.Context) (WindDocs, error) { return p.Wind(ctx, c.queryTime) },
			c.secondary.Wind,
			func(d WindDocs, src weather.Source) (weather.Dataset, error) {
				return ExtractWind(d, src)
			})
	case weather.KindRain:
		return fetchDataset(ctx, kind,
			func(ctx context.Context) (RealtimeDoc, error) { return p.Realtime(ctx, PathRainfall, c.queryTime) },
			func(ctx context.Context) (RealtimeDoc, error) { return c.secondary.Realtime(ctx, PathRainfall) },
			func(d RealtimeDoc, src weather.Source) (weather.Dataset, error) {
				return ExtractRain(d, src)
			})
	}
	return nil, fmt.Errorf("%w: dataset %q", weather.ErrUnknownIdentifier, kind)
}

// fetchDataset tries the primary document first and, on a transport,
// timeout, status or short-payload failure, replaces it wholesale with the
// secondary document. The chosen document is then extracted; extraction
// failures are final.
func fetchDataset[D any](
	ctx context.Context,
	kind weather.DatasetKind,
	primary func(context.Context) (D, error),
	secondary func(context.Context) (D, error),
	extract func(D, weather.Source) (weather.Dataset, error),
) (weather.Dataset, error) {
	src := weather.SourcePrimary
	doc, err := primary(ctx)
	if err != nil {
		if !weather.IsFallbackError(err) {
			return nil, err
		}
		log.Warnw("primary source unusable, falling back to secondary", "dataset", kind, "reason", err.Error())

		src = weather.SourceSecondary
		doc, err = secondary(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s secondary: %w", kind, err)
		}
	}
	return extract(doc, src)
}
