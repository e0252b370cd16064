package weather

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Average returns the mean of all readings with a value above zero, rounded
// to two decimals. Readings at or below zero are sensor-fault sentinels and
// excluded from both sum and count.
func Average(readings []StationReading) (float64, error) {
	values := make([]float64, 0, len(readings))
	for _, r := range readings {
		if r.Value > 0 {
			values = append(values, r.Value)
		}
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: no positive readings out of %d", ErrAggregation, len(readings))
	}
	return round2(stat.Mean(values, nil)), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MostCommon returns the most frequent value. Ties go to the value seen
// first.
func MostCommon(values []string) string {
	counts := make(map[string]int, len(values))
	order := make([]string, 0, len(values))
	for _, v := range values {
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}

	best, bestCount := "", 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

// WindAggregate is the vector average of paired station readings.
type WindAggregate struct {
	Speed        float64
	Bearing      float64
	ReadingsUsed int
}

// AggregateWind pairs speed and direction readings by station id and
// vector-averages them. Each speed is decomposed along the reciprocal
// bearing (direction + 180, wind "coming from") into north-south and
// east-west components. The bearing is normalized into [0, 360).
func AggregateWind(speed, direction []StationReading) (WindAggregate, error) {
	var nsSum, ewSum float64
	used := 0
	for _, s := range speed {
		for _, d := range direction {
			if s.StationID != d.StationID {
				continue
			}
			rad := (d.Value + 180) * math.Pi / 180
			nsSum += s.Value * math.Cos(rad)
			ewSum += s.Value * math.Sin(rad)
			used++
		}
	}
	if used == 0 {
		return WindAggregate{}, fmt.Errorf("%w: no station has both wind speed and direction", ErrAggregation)
	}

	nsAvg := nsSum / float64(used)
	ewAvg := ewSum / float64(used)

	bearing := math.Atan2(ewAvg, nsAvg) * 180 / math.Pi
	if bearing < 0 {
		bearing += 360
	}
	if bearing >= 360 {
		bearing -= 360
	}

	return WindAggregate{
		Speed:        floats.Norm([]float64{nsAvg, ewAvg}, 2),
		Bearing:      bearing,
		ReadingsUsed: used,
	}, nil
}

// TimeOfDay classifies a 24-hour forecast period by its starting hour. Only
// an exact 6 is morning and an exact 12 is afternoon; every other hour is
// evening.
func TimeOfDay(hour int) string {
	switch hour {
	case 6:
		return "morning"
	case 12:
		return "afternoon"
	default:
		return "evening"
	}
}

// PeriodLabel builds the human label of a forecast period relative to now,
// e.g. "Today afternoon" or "Tomorrow morning".
func PeriodLabel(start, now time.Time) string {
	start, now = InSGT(start), InSGT(now)
	day := "Tomorrow "
	if start.Year() == now.Year() && start.YearDay() == now.YearDay() {
		day = "Today "
	}
	return day + TimeOfDay(start.Hour())
}
