package providers

import (
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/sg-weather/internal/weather"
)

// isoLayout renders timestamps the way data.gov.sg does, with an explicit
// +08:00 offset once converted to SGT.
const isoLayout = "2006-01-02T15:04:05-07:00"

func formatSGT(t time.Time) string {
	return weather.InSGT(t).Format(isoLayout)
}

func parseISO(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return weather.InSGT(t), nil
}

var (
	datedLayouts = []string{
		"3.04PM 2 Jan 2006", "3:04PM 2 Jan 2006", "3PM 2 Jan 2006", "15:04 2 Jan 2006",
		"2 Jan 2006 3.04PM", "2 Jan 2006 3:04PM", "2 Jan 2006 3PM", "2 Jan 2006 15:04",
		"3.04PM 2 January 2006", "2 January 2006 3.04PM", "2 January 2006 15:04",
	}
	yearlessLayouts = []string{
		"3.04PM 2 Jan", "3:04PM 2 Jan", "3PM 2 Jan", "15:04 2 Jan",
		"2 Jan 3.04PM", "2 Jan 3:04PM", "2 Jan 3PM", "2 Jan 15:04",
		"3.04PM 2 January", "2 January 3.04PM",
	}
	clockLayouts = []string{"3.04PM", "3:04PM", "3PM", "15:04", "15.04"}
)

var weekdayTokens = map[string]bool{
	"MON": true, "TUE": true, "WED": true, "THU": true, "FRI": true, "SAT": true, "SUN": true,
	"MONDAY": true, "TUESDAY": true, "WEDNESDAY": true, "THURSDAY": true, "FRIDAY": true,
	"SATURDAY": true, "SUNDAY": true,
}

// normalizeClockText upper-cases s, drops commas and weekday names, spells
// Midday and Midnight as clock times and glues AM/PM onto the hour.
func normalizeClockText(s string) string {
	s = strings.ToUpper(strings.ReplaceAll(s, ",", " "))
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		switch {
		case weekdayTokens[f]:
			continue
		case f == "MIDDAY" || f == "NOON":
			f = "12PM"
		case f == "MIDNIGHT":
			f = "12AM"
		case (f == "AM" || f == "PM") && len(out) > 0:
			out[len(out)-1] += f
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

type localTime struct {
	t       time.Time
	hasDate bool
}

// parseLocalTime reads the free-form times used on the NEA sites, such as
// "11.30AM 19 Oct", "6 pm", "Midday 20 Oct" or "3.00pm, 19 Oct 2024".
// Missing years are inferred as the one closest to ref.
func parseLocalTime(s string, ref time.Time) (localTime, error) {
	v := normalizeClockText(s)
	ref = weather.InSGT(ref)

	for _, layout := range datedLayouts {
		if t, err := time.ParseInLocation(layout, v, weather.SGT); err == nil {
			return localTime{t: t, hasDate: true}, nil
		}
	}
	for _, layout := range yearlessLayouts {
		if t, err := time.ParseInLocation(layout, v, weather.SGT); err == nil {
			return localTime{t: nearestYear(t, ref), hasDate: true}, nil
		}
	}
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(layout, v, weather.SGT); err == nil {
			on := time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour(), t.Minute(), 0, 0, weather.SGT)
			return localTime{t: on}, nil
		}
	}
	return localTime{}, fmt.Errorf("unrecognised time %q", s)
}

func nearestYear(t, ref time.Time) time.Time {
	var best time.Time
	var bestDiff time.Duration = -1
	for _, y := range []int{ref.Year() - 1, ref.Year(), ref.Year() + 1} {
		c := time.Date(y, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, weather.SGT)
		d := c.Sub(ref)
		if d < 0 {
			d = -d
		}
		if bestDiff < 0 || d < bestDiff {
			best, bestDiff = c, d
		}
	}
	return best
}

// resolveUndated moves an undated clock time onto the first day where it
// is not earlier than floor.
func resolveUndated(lt localTime, floor time.Time) time.Time {
	t := lt.t
	if lt.hasDate {
		return t
	}
	floor = weather.InSGT(floor)
	t = time.Date(floor.Year(), floor.Month(), floor.Day(), t.Hour(), t.Minute(), 0, 0, weather.SGT)
	if t.Before(floor) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// earlyWindow lets a period that started shortly before it was issued keep
// the issue date.
const earlyWindow = 6 * time.Hour

// parseTimeRange splits s on sep and resolves both ends. An undated start
// lands on the first day not earlier than ref minus earlyWindow; an undated
// end lands on the first day after the start.
func parseTimeRange(s, sep string, ref time.Time) (time.Time, time.Time, error) {
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("time range %q does not have two parts separated by %q", s, sep)
	}
	start, err := parseLocalTime(parts[0], ref)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseLocalTime(parts[1], ref)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	st := resolveUndated(start, ref.Add(-earlyWindow))
	et := resolveUndated(end, st.Add(time.Minute))
	return st, et, nil
}
