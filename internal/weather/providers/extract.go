package providers

import (
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/sg-weather/internal/common"
	"github.com/i474232898/sg-weather/internal/log"
	"github.com/i474232898/sg-weather/internal/weather"
)

// The Extract functions turn a primary-shaped document into its canonical
// dataset. They do not care which source built the document. Any missing
// structure is reported as weather.ErrStructure naming the field.

func timestampOf(kind weather.DatasetKind, field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, weather.StructureError(kind, field)
	}
	t, err := parseISO(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", weather.StructureError(kind, field), err)
	}
	return t, nil
}

// ExtractAreaForecast builds the forecast2hr dataset.
func ExtractAreaForecast(doc AreaForecastDoc, src weather.Source) (*weather.AreaForecast, error) {
	const kind = weather.KindForecast2hr
	if len(doc.Items) == 0 {
		return nil, weather.StructureError(kind, "items[0]")
	}
	item := doc.Items[0]
	ts, err := timestampOf(kind, "items[0].timestamp", item.Timestamp)
	if err != nil {
		return nil, err
	}
	if len(item.Forecasts) == 0 {
		return nil, weather.StructureError(kind, "items[0].forecasts")
	}

	locations := make(map[string]weather.Location, len(doc.AreaMetadata))
	for _, m := range doc.AreaMetadata {
		name, err := weather.CanonicalArea(m.Name)
		if err != nil {
			continue
		}
		locations[name] = weather.Location{
			Latitude:  float64(m.LabelLocation.Latitude),
			Longitude: float64(m.LabelLocation.Longitude),
		}
	}

	out := &weather.AreaForecast{
		Meta:  weather.Meta{Timestamp: ts, Source: src},
		Areas: make(map[string]weather.AreaCondition, len(item.Forecasts)),
	}
	descriptions := make([]string, 0, len(item.Forecasts))
	for _, f := range item.Forecasts {
		name, err := weather.CanonicalArea(f.Area)
		if err != nil {
			log.Debugw("dropping forecast for unknown area", "dataset", kind, "area", f.Area)
			continue
		}
		loc, ok := locations[name]
		if !ok {
			return nil, weather.StructureError(kind, "area_metadata["+name+"]")
		}
		code, _ := weather.LookupDescription(f.Forecast)
		out.Areas[name] = weather.AreaCondition{
			Forecast:  f.Forecast,
			Condition: code.Condition,
			Code:      code.Code,
			Location:  loc,
		}
		descriptions = append(descriptions, f.Forecast)
	}
	if len(out.Areas) == 0 {
		return nil, weather.StructureError(kind, "items[0].forecasts: no known areas")
	}

	out.CurrentCondition = weather.MostCommon(descriptions)
	out.Condition = weather.ConditionForDescription(out.CurrentCondition)
	return out, nil
}

// ExtractRegionForecast builds the forecast24hr dataset. now decides whether
// a period is labelled Today or Tomorrow.
func ExtractRegionForecast(doc RegionForecastDoc, src weather.Source, now time.Time) (*weather.RegionForecast, error) {
	const kind = weather.KindForecast24hr
	if len(doc.Items) == 0 {
		return nil, weather.StructureError(kind, "items[0]")
	}
	item := doc.Items[0]
	ts, err := timestampOf(kind, "items[0].timestamp", item.Timestamp)
	if err != nil {
		return nil, err
	}
	if len(item.Periods) == 0 {
		return nil, weather.StructureError(kind, "items[0].periods")
	}

	g := item.General
	out := &weather.RegionForecast{
		Meta: weather.Meta{Timestamp: ts, Source: src},
		General: weather.GeneralForecast{
			Forecast:         g.Forecast,
			Temperature:      weather.Range{Low: float64(g.Temperature.Low), High: float64(g.Temperature.High)},
			RelativeHumidity: weather.Range{Low: float64(g.RelativeHumidity.Low), High: float64(g.RelativeHumidity.High)},
			WindSpeed:        weather.Range{Low: float64(g.Wind.Speed.Low), High: float64(g.Wind.Speed.High)},
			WindDirection:    g.Wind.Direction,
		},
		Regions: make(map[string][]weather.PeriodForecast, len(weather.Regions)),
	}
	if vp := item.ValidPeriod; vp.Start != "" && vp.End != "" {
		if out.General.ValidFrom, err = timestampOf(kind, "items[0].valid_period.start", vp.Start); err != nil {
			return nil, err
		}
		if out.General.ValidTo, err = timestampOf(kind, "items[0].valid_period.end", vp.End); err != nil {
			return nil, err
		}
	}

	for i, p := range item.Periods {
		field := fmt.Sprintf("items[0].periods[%d]", i)
		start, err := timestampOf(kind, field+".time.start", p.Time.Start)
		if err != nil {
			return nil, err
		}
		end, err := timestampOf(kind, field+".time.end", p.Time.End)
		if err != nil {
			return nil, err
		}
		if len(p.Regions) == 0 {
			return nil, weather.StructureError(kind, field+".regions")
		}
		label := weather.PeriodLabel(start, now)
		for upstream, forecast := range p.Regions {
			region, err := weather.CanonicalRegion(upstream)
			if err != nil {
				log.Debugw("dropping forecast for unknown region", "dataset", kind, "region", upstream)
				continue
			}
			out.Regions[region] = append(out.Regions[region], weather.PeriodForecast{
				Label:     label,
				Forecast:  forecast,
				Condition: weather.ConditionForDescription(forecast),
				Start:     start,
				End:       end,
			})
		}
	}
	if len(out.Regions) == 0 {
		return nil, weather.StructureError(kind, "items[0].periods: no known regions")
	}
	return out, nil
}

// ExtractOutlook builds the forecast4day dataset. Entries whose text matches
// no condition keyword are skipped.
func ExtractOutlook(doc OutlookDoc, src weather.Source) (*weather.OutlookForecast, error) {
	const kind = weather.KindForecast4day
	if len(doc.Items) == 0 {
		return nil, weather.StructureError(kind, "items[0]")
	}
	item := doc.Items[0]
	ts, err := timestampOf(kind, "items[0].timestamp", item.Timestamp)
	if err != nil {
		return nil, err
	}
	if len(item.Forecasts) == 0 {
		return nil, weather.StructureError(kind, "items[0].forecasts")
	}

	out := &weather.OutlookForecast{Meta: weather.Meta{Timestamp: ts, Source: src}}
	for i, f := range item.Forecasts {
		cond, ok := weather.MatchOutlookCondition(f.Forecast)
		if !ok {
			log.Debugw("no condition keyword in outlook entry", "dataset", kind, "forecast", f.Forecast)
			continue
		}
		at, err := timestampOf(kind, fmt.Sprintf("items[0].forecasts[%d].timestamp", i), f.Timestamp)
		if err != nil {
			return nil, err
		}
		out.Entries = append(out.Entries, weather.DayForecast{
			Time:        at,
			Forecast:    f.Forecast,
			Condition:   cond,
			TempHigh:    float64(f.Temperature.High),
			TempLow:     float64(f.Temperature.Low),
			WindSpeed:   float64(f.Wind.Speed.High),
			WindBearing: f.Wind.Direction,
		})
	}
	return out, nil
}

// declaredStations indexes the stations a document lists in its metadata.
func declaredStations(doc RealtimeDoc) map[string]weather.Station {
	out := make(map[string]weather.Station, len(doc.Metadata.Stations))
	for _, m := range doc.Metadata.Stations {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			continue
		}
		out[common.NormalizeKey(id)] = weather.Station{
			ID:   id,
			Name: m.Name,
			Location: weather.Location{
				Latitude:  float64(m.Location.Latitude),
				Longitude: float64(m.Location.Longitude),
			},
		}
	}
	return out
}

// knownReadings returns the first item's timestamp and the readings of
// stations that are catalogued or declared in the document's metadata.
func knownReadings(kind weather.DatasetKind, doc RealtimeDoc) (time.Time, []weather.StationReading, error) {
	if len(doc.Items) == 0 {
		return time.Time{}, nil, weather.StructureError(kind, "items[0]")
	}
	item := doc.Items[0]
	ts, err := timestampOf(kind, "items[0].timestamp", item.Timestamp)
	if err != nil {
		return time.Time{}, nil, err
	}

	declared := declaredStations(doc)
	readings := make([]weather.StationReading, 0, len(item.Readings))
	for _, r := range item.Readings {
		st, ok := weather.StationFromMetadata(r.StationID, declared)
		if !ok {
			log.Debugw("dropping reading from undeclared station", "dataset", kind, "station", r.StationID)
			continue
		}
		readings = append(readings, weather.StationReading{StationID: st.ID, Value: float64(r.Value)})
	}
	return ts, readings, nil
}

// ExtractStationAverage builds the temperature or humidity dataset.
func ExtractStationAverage(kind weather.DatasetKind, doc RealtimeDoc, src weather.Source) (*weather.StationAverage, error) {
	ts, readings, err := knownReadings(kind, doc)
	if err != nil {
		return nil, err
	}
	avg, err := weather.Average(readings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return weather.NewStationAverage(kind, weather.Meta{Timestamp: ts, Source: src}, avg, doc.Metadata.ReadingUnit, readings), nil
}

// ExtractWind builds the wind dataset and its vector aggregate.
func ExtractWind(docs WindDocs, src weather.Source) (*weather.WindObservation, error) {
	const kind = weather.KindWind
	ts, speed, err := knownReadings(kind, docs.Speed)
	if err != nil {
		return nil, err
	}
	_, direction, err := knownReadings(kind, docs.Direction)
	if err != nil {
		return nil, err
	}
	agg, err := weather.AggregateWind(speed, direction)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return &weather.WindObservation{
		Meta:             weather.Meta{Timestamp: ts, Source: src},
		Speed:            speed,
		Direction:        direction,
		AggregateSpeed:   agg.Speed,
		AggregateBearing: agg.Bearing,
		StationsUsed:     agg.ReadingsUsed,
	}, nil
}

// ExtractRain builds the rain dataset. Every catalogued rain gauge and every
// station the document declares is present; stations without a reading
// this cycle read 0.
func ExtractRain(doc RealtimeDoc, src weather.Source) (*weather.RainObservation, error) {
	const kind = weather.KindRain
	ts, readings, err := knownReadings(kind, doc)
	if err != nil {
		return nil, err
	}
	values := make(map[string]float64, len(readings))
	for _, r := range readings {
		values[r.StationID] = r.Value
	}

	stations := weather.RainStations()
	listed := make(map[string]bool, len(stations))
	for _, st := range stations {
		listed[st.ID] = true
	}
	declared := declaredStations(doc)
	for _, st := range declared {
		if known, err := weather.LookupStation(st.ID); err == nil {
			st = known
		} else {
			log.Debugw("rain station not in catalog, using upstream metadata", "station", st.ID, "name", st.Name)
		}
		if !listed[st.ID] {
			listed[st.ID] = true
			stations = append(stations, st)
		}
	}
	for _, r := range readings {
		if !listed[r.StationID] {
			st, _ := weather.StationFromMetadata(r.StationID, declared)
			listed[st.ID] = true
			stations = append(stations, st)
		}
	}

	out := &weather.RainObservation{
		Meta:     weather.Meta{Timestamp: ts, Source: src},
		Stations: make(map[string]weather.RainStation, len(stations)),
	}
	for _, st := range stations {
		v, ok := values[st.ID]
		if !ok {
			log.Debugw("rain station missing upstream, reading 0", "station", st.ID)
		}
		out.Stations[st.ID] = weather.RainStation{Name: st.Name, Value: v, Location: st.Location}
	}
	return out, nil
}
