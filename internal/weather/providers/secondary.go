package providers

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/sg-weather/internal/log"
)

// once memoizes a single secondary resource for one cycle. The first caller
// performs the fetch; concurrent and later callers share its result,
// including a failure.
type once[T any] struct {
	o   sync.Once
	val T
	err error
}

func (m *once[T]) get(fn func() (T, error)) (T, error) {
	m.o.Do(func() {
		m.val, m.err = fn()
	})
	return m.val, m.err
}

// Secondary serves primary-shaped documents built from the secondary
// sources. Each upstream resource is fetched at most once per Secondary, and
// a Secondary lives for exactly one update cycle.
type Secondary struct {
	stations  StationReader
	forecasts ForecastReader
	queryTime time.Time

	nowcast      once[NowcastDoc]
	outlook      once[[]OutlookDay]
	observations map[Quantity]*once[StationObservation]
}

// NewSecondary creates the adapter for a cycle that started at queryTime.
func NewSecondary(stations StationReader, forecasts ForecastReader, queryTime time.Time) *Secondary {
	obs := make(map[Quantity]*once[StationObservation], 4)
	for _, q := range []Quantity{QuantityTemperature, QuantityHumidity, QuantityWind, QuantityRainfall} {
		obs[q] = &once[StationObservation]{}
	}
	return &Secondary{
		stations:     stations,
		forecasts:    forecasts,
		queryTime:    queryTime,
		observations: obs,
	}
}

func (s *Secondary) nowcastDoc(ctx context.Context) (NowcastDoc, error) {
	return s.nowcast.get(func() (NowcastDoc, error) {
		log.Debugw("fetching secondary nowcast", "query_time", s.queryTime)
		return s.forecasts.Nowcast(ctx, s.queryTime)
	})
}

func (s *Secondary) observation(ctx context.Context, q Quantity) (StationObservation, error) {
	return s.observations[q].get(func() (StationObservation, error) {
		log.Debugw("fetching secondary observations", "quantity", q)
		return s.stations.StationReadings(ctx, q)
	})
}

func (s *Secondary) AreaForecast(ctx context.Context) (AreaForecastDoc, error) {
	n, err := s.nowcastDoc(ctx)
	if err != nil {
		return AreaForecastDoc{}, err
	}
	return SimulateAreaForecast(n, s.queryTime)
}

func (s *Secondary) RegionForecast(ctx context.Context) (RegionForecastDoc, error) {
	n, err := s.nowcastDoc(ctx)
	if err != nil {
		return RegionForecastDoc{}, err
	}
	return SimulateRegionForecast(n, s.queryTime)
}

func (s *Secondary) Outlook(ctx context.Context) (OutlookDoc, error) {
	days, err := s.outlook.get(func() ([]OutlookDay, error) {
		log.Debugw("fetching secondary outlook", "query_time", s.queryTime)
		return s.forecasts.Outlook(ctx, s.queryTime)
	})
	if err != nil {
		return OutlookDoc{}, err
	}
	return SimulateOutlook(days, s.queryTime)
}

// Realtime serves temperature, humidity and rainfall documents.
func (s *Secondary) Realtime(ctx context.Context, path string) (RealtimeDoc, error) {
	q := QuantityTemperature
	switch path {
	case PathHumidity:
		q = QuantityHumidity
	case PathRainfall:
		q = QuantityRainfall
	case PathWindSpeed, PathWindDirection:
		q = QuantityWind
	}
	obs, err := s.observation(ctx, q)
	if err != nil {
		return RealtimeDoc{}, err
	}
	return SimulateRealtime(obs, path, s.queryTime)
}

// Wind serves both wind documents from the one wind page.
func (s *Secondary) Wind(ctx context.Context) (WindDocs, error) {
	speed, err := s.Realtime(ctx, PathWindSpeed)
	if err != nil {
		return WindDocs{}, err
	}
	direction, err := s.Realtime(ctx, PathWindDirection)
	if err != nil {
		return WindDocs{}, err
	}
	return WindDocs{Speed: speed, Direction: direction}, nil
}
