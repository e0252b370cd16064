package weather

import (
	"sort"
	"time"

	"github.com/i474232898/sg-weather/internal/common"
)

// SGT is the fixed UTC+8 zone every timestamp is normalized to, independent
// of the host's local zone.
var SGT = time.FixedZone("SGT", 8*60*60)

// InSGT converts t into the fixed UTC+8 zone.
func InSGT(t time.Time) time.Time {
	return t.In(SGT)
}

// Clock is the time source used for date-bucket math.
type Clock func() time.Time

// Source identifies which upstream produced a dataset.
type Source string

const (
	// SourcePrimary is the data.gov.sg JSON API.
	SourcePrimary Source = "primary"
	// SourceSecondary is the scraped nea.gov.sg / weather.gov.sg fallback.
	SourceSecondary Source = "secondary"
)

// DatasetKind names one of the seven canonical datasets.
type DatasetKind string

const (
	KindForecast2hr  DatasetKind = "forecast2hr"
	KindForecast24hr DatasetKind = "forecast24hr"
	KindForecast4day DatasetKind = "forecast4day"
	KindTemperature  DatasetKind = "temperature"
	KindHumidity     DatasetKind = "humidity"
	KindWind         DatasetKind = "wind"
	KindRain         DatasetKind = "rain"
)

// AllKinds lists every dataset in assembly order.
var AllKinds = []DatasetKind{
	KindForecast2hr,
	KindForecast24hr,
	KindForecast4day,
	KindTemperature,
	KindHumidity,
	KindWind,
	KindRain,
}

// Dataset is implemented by every canonical dataset result.
type Dataset interface {
	Kind() DatasetKind
	Provenance() Source
	ObservedAt() time.Time
}

// Meta carries the fields shared by all dataset results.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	Source    Source    `json:"source"`
}

func (m Meta) Provenance() Source    { return m.Source }
func (m Meta) ObservedAt() time.Time { return m.Timestamp }

// Location is a latitude/longitude pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AreaCondition is the 2-hour forecast for one area.
type AreaCondition struct {
	// Forecast is the NEA description, e.g. "Partly Cloudy (Day)".
	Forecast  string    `json:"forecast"`
	Condition Condition `json:"condition"`
	Code      string    `json:"code,omitempty"`
	Location  Location  `json:"location"`
}

// AreaForecast is the forecast2hr dataset.
type AreaForecast struct {
	Meta
	// CurrentCondition is the most common forecast description across areas.
	CurrentCondition string                   `json:"current_condition"`
	Condition        Condition                `json:"condition"`
	Areas            map[string]AreaCondition `json:"areas"`
}

func (AreaForecast) Kind() DatasetKind { return KindForecast2hr }

// PeriodForecast is one labelled period in a region's 24-hour forecast.
type PeriodForecast struct {
	Label     string    `json:"label"`
	Forecast  string    `json:"forecast"`
	Condition Condition `json:"condition"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// Range is a low/high pair.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// GeneralForecast is the island-wide part of the 24-hour forecast.
type GeneralForecast struct {
	Forecast         string `json:"forecast"`
	Temperature      Range  `json:"temperature"`
	RelativeHumidity Range  `json:"relative_humidity"`
	WindSpeed        Range  `json:"wind_speed"`
	WindDirection    string `json:"wind_direction"`
	// ValidFrom and ValidTo are zero when upstream omits the valid period.
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
}

// RegionForecast is the forecast24hr dataset.
type RegionForecast struct {
	Meta
	General GeneralForecast             `json:"general"`
	Regions map[string][]PeriodForecast `json:"regions"`
}

func (RegionForecast) Kind() DatasetKind { return KindForecast24hr }

// DayForecast is one entry of the 4-day outlook.
type DayForecast struct {
	Time        time.Time `json:"datetime"`
	Forecast    string    `json:"forecast"`
	Condition   Condition `json:"condition"`
	TempHigh    float64   `json:"temperature"`
	TempLow     float64   `json:"templow"`
	WindSpeed   float64   `json:"wind_speed"`
	WindBearing string    `json:"wind_bearing"`
}

// OutlookForecast is the forecast4day dataset.
type OutlookForecast struct {
	Meta
	Entries []DayForecast `json:"entries"`
}

func (OutlookForecast) Kind() DatasetKind { return KindForecast4day }

// StationReading is a single station value.
type StationReading struct {
	StationID string  `json:"station_id"`
	Value     float64 `json:"value"`
}

// StationAverage is the temperature or humidity dataset.
type StationAverage struct {
	Meta
	kind     DatasetKind
	Average  float64          `json:"average"`
	Unit     string           `json:"unit"`
	Readings []StationReading `json:"readings"`
}

// NewStationAverage builds a temperature or humidity result.
func NewStationAverage(kind DatasetKind, meta Meta, avg float64, unit string, readings []StationReading) *StationAverage {
	return &StationAverage{Meta: meta, kind: kind, Average: avg, Unit: unit, Readings: readings}
}

func (s StationAverage) Kind() DatasetKind { return s.kind }

// WindObservation is the wind dataset: raw per-station readings plus the
// vector-averaged aggregate.
type WindObservation struct {
	Meta
	Speed            []StationReading `json:"speed"`
	Direction        []StationReading `json:"direction"`
	AggregateSpeed   float64          `json:"aggregate_speed"`
	AggregateBearing float64          `json:"aggregate_bearing"`
	StationsUsed     int              `json:"stations_used"`
}

func (WindObservation) Kind() DatasetKind { return KindWind }

// RainStation is the rainfall reading of one known station.
type RainStation struct {
	Name     string   `json:"name"`
	Value    float64  `json:"value"`
	Location Location `json:"location"`
}

// RainObservation is the rain dataset. It always holds every known rain
// station.
type RainObservation struct {
	Meta
	Stations map[string]RainStation `json:"stations"`
}

// StationIDs lists the stations in catalog order, followed by stations only
// upstream knows, sorted by id.
func (r RainObservation) StationIDs() []string {
	ids := make([]string, 0, len(r.Stations))
	seen := make(map[string]bool, len(r.Stations))
	for _, st := range RainStations() {
		if _, ok := r.Stations[st.ID]; ok {
			ids = append(ids, st.ID)
			seen[st.ID] = true
		}
	}
	var extra []string
	for id := range r.Stations {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(ids, extra...)
}

// Station finds a station by id, ignoring case and surrounding space.
func (r RainObservation) Station(id string) (string, RainStation, bool) {
	for key, st := range r.Stations {
		if common.NormalizeKey(key) == common.NormalizeKey(id) {
			return key, st, true
		}
	}
	return "", RainStation{}, false
}

func (RainObservation) Kind() DatasetKind { return KindRain }

// Snapshot is the consolidated result of one update cycle. Datasets not
// required by the configuration, or unavailable this cycle, are nil.
type Snapshot struct {
	ID        string    `json:"id"`
	QueryTime time.Time `json:"query_time"`

	Forecast2hr  *AreaForecast    `json:"forecast2hr,omitempty"`
	Forecast24hr *RegionForecast  `json:"forecast24hr,omitempty"`
	Forecast4day *OutlookForecast `json:"forecast4day,omitempty"`
	Temperature  *StationAverage  `json:"temperature,omitempty"`
	Humidity     *StationAverage  `json:"humidity,omitempty"`
	Wind         *WindObservation `json:"wind,omitempty"`
	Rain         *RainObservation `json:"rain,omitempty"`
}

// Set places a dataset into its slot. It reports false for an unknown kind.
func (s *Snapshot) Set(d Dataset) bool {
	switch v := d.(type) {
	case *AreaForecast:
		s.Forecast2hr = v
	case *RegionForecast:
		s.Forecast24hr = v
	case *OutlookForecast:
		s.Forecast4day = v
	case *StationAverage:
		switch v.Kind() {
		case KindTemperature:
			s.Temperature = v
		case KindHumidity:
			s.Humidity = v
		default:
			return false
		}
	case *WindObservation:
		s.Wind = v
	case *RainObservation:
		s.Rain = v
	default:
		return false
	}
	return true
}

// Datasets returns the populated datasets in assembly order.
func (s Snapshot) Datasets() []Dataset {
	var out []Dataset
	if s.Forecast2hr != nil {
		out = append(out, s.Forecast2hr)
	}
	if s.Forecast24hr != nil {
		out = append(out, s.Forecast24hr)
	}
	if s.Forecast4day != nil {
		out = append(out, s.Forecast4day)
	}
	if s.Temperature != nil {
		out = append(out, s.Temperature)
	}
	if s.Humidity != nil {
		out = append(out, s.Humidity)
	}
	if s.Wind != nil {
		out = append(out, s.Wind)
	}
	if s.Rain != nil {
		out = append(out, s.Rain)
	}
	return out
}
