package providers

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/i474232898/sg-weather/internal/log"
	"github.com/i474232898/sg-weather/internal/weather"
)

// KnotsPerKmh converts the scraped km/h wind speeds to the primary API's knots.
const KnotsPerKmh = 0.539957

// compassDegrees maps the wind page's direction labels. An empty label means
// calm or missing and yields NaN, which is never published.
var compassDegrees = map[string]float64{
	"N":  0,
	"NE": 45,
	"E":  90,
	"SE": 135,
	"S":  180,
	"SW": 225,
	"W":  270,
	"NW": 315,
	"":   math.NaN(),
}

type readingConst struct {
	readingType string
	unit        string
}

// realtimeConstants are the metadata values the primary API reports for
// each observation document.
var realtimeConstants = map[string]readingConst{
	PathTemperature:   {"DBT 1M F", "deg C"},
	PathHumidity:      {"RH 1M F", "percentage"},
	PathRainfall:      {"TB1 Rainfall 5 Minute Total F", "mm"},
	PathWindDirection: {"Converted from NSEW symbols at 45 deg intervals", "degrees"},
	PathWindSpeed:     {"Wind Speed AVG(S)10M M1M", "knots"},
}

func simulationError(kind weather.DatasetKind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: simulating primary document: %s", weather.ErrStructure, kind, fmt.Sprintf(format, args...))
}

func healthy() APIInfo { return APIInfo{Status: "healthy"} }

// SimulateAreaForecast builds a 2-hour-weather-forecast document from the
// nea.gov.sg nowcast. Area metadata and forecast codes are taken as two
// parallel lists; if they do not line up the document is rejected.
func SimulateAreaForecast(n NowcastDoc, now time.Time) (AreaForecastDoc, error) {
	item := n.Channel2HrForecast.Item
	issued, err := parseLocalTime(item.ForecastIssue.DateTimeStr, now)
	if err != nil {
		return AreaForecastDoc{}, simulationError(weather.KindForecast2hr, "forecast issue: %v", err)
	}
	issuedAt := resolveUndated(issued, now.Add(-earlyWindow))
	start, end, err := parseTimeRange(item.ValidTime, " to ", issuedAt)
	if err != nil {
		return AreaForecastDoc{}, simulationError(weather.KindForecast2hr, "valid time: %v", err)
	}

	var meta []AreaMetadata
	var codes []string
	for _, a := range item.WeatherForecast.Area {
		if a.Name != "" {
			meta = append(meta, AreaMetadata{
				Name:          a.Name,
				LabelLocation: LabelLocation{Latitude: a.Lat, Longitude: a.Lon},
			})
		}
		if a.Forecast != "" {
			codes = append(codes, a.Forecast)
		}
	}
	if len(meta) == 0 {
		return AreaForecastDoc{}, simulationError(weather.KindForecast2hr, "no areas")
	}
	if len(meta) != len(codes) {
		return AreaForecastDoc{}, simulationError(weather.KindForecast2hr, "%d areas but %d forecast codes", len(meta), len(codes))
	}

	entries := make([]AreaEntry, len(meta))
	for i, m := range meta {
		c, ok := weather.LookupCode(codes[i])
		if !ok {
			return AreaForecastDoc{}, simulationError(weather.KindForecast2hr, "unknown condition code %q for %s", codes[i], m.Name)
		}
		entries[i] = AreaEntry{Area: m.Name, Forecast: c.Description}
	}

	ts := formatSGT(issuedAt)
	return AreaForecastDoc{
		APIInfo:      healthy(),
		AreaMetadata: meta,
		Items: []AreaForecastItem{{
			UpdateTimestamp: ts,
			Timestamp:       ts,
			ValidPeriod:     ValidPeriod{Start: formatSGT(start), End: formatSGT(end)},
			Forecasts:       entries,
		}},
	}, nil
}

// regionalPeriodCount is the number of periods the nowcast publishes.
const regionalPeriodCount = 3

// SimulateRegionForecast builds a 24-hour-weather-forecast document from the
// nea.gov.sg nowcast.
func SimulateRegionForecast(n NowcastDoc, now time.Time) (RegionForecastDoc, error) {
	ch := n.Channel24HrForecast
	issued, err := parseLocalTime(ch.Main.ForecastIssue.DateTimeStr, now)
	if err != nil {
		return RegionForecastDoc{}, simulationError(weather.KindForecast24hr, "forecast issue: %v", err)
	}
	issuedAt := resolveUndated(issued, now.Add(-earlyWindow))

	if len(ch.Forecasts) != regionalPeriodCount {
		return RegionForecastDoc{}, simulationError(weather.KindForecast24hr, "expected %d periods, got %d", regionalPeriodCount, len(ch.Forecasts))
	}

	item := RegionForecastItem{
		UpdateTimestamp: formatSGT(issuedAt),
		Timestamp:       formatSGT(issuedAt),
		General: GeneralBlock{
			Forecast:         ch.Main.Forecast,
			RelativeHumidity: LowHigh(ch.Main.RelativeHumidity),
			Temperature:      LowHigh(ch.Main.Temperature),
			Wind:             WindForecast{Direction: ch.Main.Wind.Direction},
		},
	}

	if ch.Main.ValidTime != "" {
		vs, ve, err := parseTimeRange(ch.Main.ValidTime, " - ", issuedAt)
		if err != nil {
			return RegionForecastDoc{}, simulationError(weather.KindForecast24hr, "valid time: %v", err)
		}
		item.ValidPeriod = ValidPeriod{Start: formatSGT(vs), End: formatSGT(ve)}
	}
	if ch.Main.Wind.Speed != "" {
		low, high, err := splitRange(ch.Main.Wind.Speed)
		if err != nil {
			return RegionForecastDoc{}, simulationError(weather.KindForecast24hr, "wind speed: %v", err)
		}
		item.General.Wind.Speed = LowHigh{Low: flexFloat(low), High: flexFloat(high)}
	}

	ref := issuedAt
	for i, p := range ch.Forecasts {
		start, end, err := parseTimeRange(p.TimePeriod, " to ", ref)
		if err != nil {
			return RegionForecastDoc{}, simulationError(weather.KindForecast24hr, "period %d: %v", i, err)
		}
		regions := make(map[string]string, len(weather.Regions))
		for _, r := range weather.Regions {
			c, ok := weather.LookupCode(p.Code(r))
			if !ok {
				return RegionForecastDoc{}, simulationError(weather.KindForecast24hr, "period %d: unknown condition code %q for %s", i, p.Code(r), r)
			}
			regions[r] = c.Description
		}
		item.Periods = append(item.Periods, RegionPeriod{
			Time:    ValidPeriod{Start: formatSGT(start), End: formatSGT(end)},
			Regions: regions,
		})
		ref = end.Add(earlyWindow)
	}

	return RegionForecastDoc{APIInfo: healthy(), Items: []RegionForecastItem{item}}, nil
}

// SimulateOutlook builds a 4-day-weather-forecast document from the
// nea.gov.sg outlook. Day names are mapped onto the next seven calendar days
// counted from now; a name outside that window is rejected.
func SimulateOutlook(days []OutlookDay, now time.Time) (OutlookDoc, error) {
	now = weather.InSGT(now).Truncate(time.Second)
	dates := make(map[string]time.Time, 7)
	for i := 0; i < 7; i++ {
		d := now.AddDate(0, 0, i)
		key := strings.ToUpper(d.Format("Mon"))
		dates[key] = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, weather.SGT)
	}

	if len(days) == 0 {
		return OutlookDoc{}, simulationError(weather.KindForecast4day, "no days")
	}

	entries := make([]OutlookEntry, 0, len(days))
	for _, d := range days {
		date, ok := dates[strings.ToUpper(strings.TrimSpace(d.Day))]
		if !ok {
			return OutlookDoc{}, simulationError(weather.KindForecast4day, "day %q is not within the next seven days", d.Day)
		}
		tLow, tHigh, err := splitRange(d.Temperature)
		if err != nil {
			return OutlookDoc{}, simulationError(weather.KindForecast4day, "temperature for %s: %v", d.Day, err)
		}
		dir, wLow, wHigh, err := splitWind(d.WindSpeed)
		if err != nil {
			return OutlookDoc{}, simulationError(weather.KindForecast4day, "wind for %s: %v", d.Day, err)
		}
		entries = append(entries, OutlookEntry{
			Date:        date.Format("2006-01-02"),
			Timestamp:   formatSGT(date),
			Forecast:    d.Forecast,
			Temperature: LowHigh{Low: flexFloat(tLow), High: flexFloat(tHigh)},
			Wind: WindForecast{
				Speed:     LowHigh{Low: flexFloat(wLow), High: flexFloat(wHigh)},
				Direction: dir,
			},
		})
	}

	// The outlook carries no issue time of its own.
	ts := formatSGT(now)
	return OutlookDoc{
		APIInfo: healthy(),
		Items:   []OutlookItem{{UpdateTimestamp: ts, Timestamp: ts, Forecasts: entries}},
	}, nil
}

// splitRange reads "25 - 33°C" or "10 - 20" style ranges.
func splitRange(s string) (float64, float64, error) {
	parts := strings.Split(s, " - ")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("range %q does not have two parts", s)
	}
	low, err := parseNumber(leadingNumber(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	high, err := parseNumber(leadingNumber(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return low, high, nil
}

// splitWind reads "NE 10 - 20 km/h" into bearing, low and high.
func splitWind(s string) (string, float64, float64, error) {
	s = strings.TrimSpace(s)
	dir, rest, ok := strings.Cut(s, " ")
	if !ok {
		return "", 0, 0, fmt.Errorf("wind %q has no direction", s)
	}
	low, high, err := splitRange(strings.TrimSpace(rest))
	if err != nil {
		return "", 0, 0, err
	}
	return dir, low, high, nil
}

func leadingNumber(s string) string {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] == '.' || s[end] == '-' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	return s[:end]
}

// SimulateRealtime builds one of the station observation documents from a
// scraped observations page. path selects the document; the wind page feeds
// both wind-speed and wind-direction.
func SimulateRealtime(obs StationObservation, path string, now time.Time) (RealtimeDoc, error) {
	kind := kindForPath(path)
	consts, ok := realtimeConstants[path]
	if !ok {
		return RealtimeDoc{}, simulationError(kind, "no realtime document named %q", path)
	}

	observed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(obs.ObservedAt), "Observations at"))
	lt, err := parseLocalTime(observed, now)
	if err != nil {
		return RealtimeDoc{}, simulationError(kind, "observation time: %v", err)
	}
	observedAt := lt.t

	doc := RealtimeDoc{
		APIInfo: healthy(),
		Metadata: RealtimeMetadata{
			ReadingType: consts.readingType,
			ReadingUnit: consts.unit,
		},
	}
	item := RealtimeItem{Timestamp: formatSGT(observedAt)}

	for _, st := range obs.Stations {
		doc.Metadata.Stations = append(doc.Metadata.Stations, StationMetadata{
			ID:       st.ID,
			DeviceID: st.ID,
			Name:     st.Name,
			Location: LabelLocation{
				Latitude:  flexFloat(st.Location.Latitude),
				Longitude: flexFloat(st.Location.Longitude),
			},
		})

		var value float64
		switch path {
		case PathWindDirection:
			deg, ok := compassDegrees[strings.ToUpper(strings.TrimSpace(st.Direction))]
			if !ok {
				return RealtimeDoc{}, simulationError(kind, "station %s has unknown direction %q", st.ID, st.Direction)
			}
			value = deg
		default:
			v, err := parseNumber(st.Value)
			if err != nil {
				log.Debugw("skipping unreadable station value", "document", path, "station", st.ID, "value", st.Value)
				continue
			}
			value = v
			if path == PathWindSpeed {
				value *= KnotsPerKmh
			}
		}
		if math.IsNaN(value) {
			continue
		}
		item.Readings = append(item.Readings, Reading{StationID: st.ID, Value: flexFloat(value)})
	}

	doc.Items = []RealtimeItem{item}
	return doc, nil
}

func kindForPath(path string) weather.DatasetKind {
	switch path {
	case PathTemperature:
		return weather.KindTemperature
	case PathHumidity:
		return weather.KindHumidity
	case PathRainfall:
		return weather.KindRain
	default:
		return weather.KindWind
	}
}
