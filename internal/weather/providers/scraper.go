package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/i474232898/sg-weather/internal/log"
	"github.com/i474232898/sg-weather/internal/weather"
)

const (
	DefaultNEABaseURL        = "https://www.nea.gov.sg"
	DefaultWeatherGovBaseURL = "http://www.weather.gov.sg"

	rainfallAjaxPath = "/wp-content/themes/wiptheme/page-functions/functions-weather-current-observations-rainfall-ajax.php"
)

// Quantity names a weather.gov.sg current-observations page.
type Quantity string

const (
	QuantityTemperature Quantity = "temperature"
	QuantityHumidity    Quantity = "relative-humidity"
	QuantityWind        Quantity = "wind"
	QuantityRainfall    Quantity = "rainfall"
)

// ScrapedStation is one station as shown on an observations page. Value is
// kept as page text; wind pages also carry a compass label.
type ScrapedStation struct {
	ID        string
	Name      string
	Location  weather.Location
	Value     string
	Direction string
}

// StationObservation is the raw content of one observations page.
type StationObservation struct {
	Quantity   Quantity
	ObservedAt string
	Stations   []ScrapedStation
}

// StationReader returns raw per-station readings for a quantity.
type StationReader interface {
	StationReadings(ctx context.Context, q Quantity) (StationObservation, error)
}

type ForecastIssue struct {
	Date        string `json:"Date"`
	Time        string `json:"Time"`
	DateTimeStr string `json:"DateTimeStr"`
}

type NowcastArea struct {
	Name         string    `json:"Name"`
	LocationName string    `json:"LocationName"`
	Lat          flexFloat `json:"Lat"`
	Lon          flexFloat `json:"Lon"`
	Forecast     string    `json:"Forecast"`
}

type NowcastItem struct {
	ForecastIssue   ForecastIssue `json:"ForecastIssue"`
	ValidTime       string        `json:"ValidTime"`
	WeatherForecast struct {
		Area []NowcastArea `json:"Area"`
	} `json:"WeatherForecast"`
}

type NowcastLowHigh struct {
	Low  flexFloat `json:"Low"`
	High flexFloat `json:"High"`
}

type NowcastMain struct {
	ForecastIssue    ForecastIssue  `json:"ForecastIssue"`
	ValidTime        string         `json:"ValidTime"`
	Forecast         string         `json:"Forecast"`
	RelativeHumidity NowcastLowHigh `json:"RelativeHumidity"`
	Temperature      NowcastLowHigh `json:"Temperature"`
	Wind             struct {
		Speed     string `json:"Speed"`
		Direction string `json:"Direction"`
	} `json:"Wind"`
}

// NowcastPeriod is one of the three regional periods. The Wx fields hold
// two-letter condition codes.
type NowcastPeriod struct {
	Type       string `json:"Type"`
	TimePeriod string `json:"TimePeriod"`
	Wxeast     string `json:"Wxeast"`
	Wxwest     string `json:"Wxwest"`
	Wxnorth    string `json:"Wxnorth"`
	Wxsouth    string `json:"Wxsouth"`
	Wxcentral  string `json:"Wxcentral"`
}

// Code returns the condition code for a region key.
func (p NowcastPeriod) Code(region string) string {
	switch region {
	case "east":
		return p.Wxeast
	case "west":
		return p.Wxwest
	case "north":
		return p.Wxnorth
	case "south":
		return p.Wxsouth
	case "central":
		return p.Wxcentral
	}
	return ""
}

// NowcastDoc is the nea.gov.sg combined 2-hour and 24-hour forecast.
type NowcastDoc struct {
	Channel2HrForecast struct {
		Item NowcastItem `json:"Item"`
	} `json:"Channel2HrForecast"`
	Channel24HrForecast struct {
		Main      NowcastMain     `json:"Main"`
		Forecasts []NowcastPeriod `json:"Forecasts"`
	} `json:"Channel24HrForecast"`
}

// OutlookDay is one day of the nea.gov.sg 4-day outlook.
type OutlookDay struct {
	Day         string `json:"day"`
	Forecast    string `json:"forecast"`
	Temperature string `json:"temperature"`
	WindSpeed   string `json:"wind_speed"`
}

// ForecastReader returns the nea.gov.sg forecast documents.
type ForecastReader interface {
	Nowcast(ctx context.Context, at time.Time) (NowcastDoc, error)
	Outlook(ctx context.Context, at time.Time) ([]OutlookDay, error)
}

// Scraper reads the secondary sources: the nea.gov.sg JSON endpoints and the
// weather.gov.sg observation pages.
type Scraper struct {
	fetcher       Fetcher
	neaURL        string
	weatherGovURL string
	timeout       time.Duration
}

// NewScraper creates a Scraper. Empty base URLs select the public sites.
func NewScraper(fetcher Fetcher, neaURL, weatherGovURL string, timeout time.Duration) *Scraper {
	if neaURL == "" {
		neaURL = DefaultNEABaseURL
	}
	if weatherGovURL == "" {
		weatherGovURL = DefaultWeatherGovBaseURL
	}
	return &Scraper{
		fetcher:       fetcher,
		neaURL:        strings.TrimRight(neaURL, "/"),
		weatherGovURL: strings.TrimRight(weatherGovURL, "/"),
		timeout:       timeout,
	}
}

// cacheBuster is the unix time floored to five minutes, which the NEA
// endpoints expect as the trailing path element.
func cacheBuster(at time.Time) string {
	ts := at.Unix()
	return fmt.Sprint(ts - ts%300)
}

func (s *Scraper) Nowcast(ctx context.Context, at time.Time) (NowcastDoc, error) {
	var doc NowcastDoc
	err := s.getJSON(ctx, s.neaURL+"/api/WeatherForecast/forecast24hrnowcast2hrs/"+cacheBuster(at), &doc)
	return doc, err
}

func (s *Scraper) Outlook(ctx context.Context, at time.Time) ([]OutlookDay, error) {
	var days []OutlookDay
	err := s.getJSON(ctx, s.neaURL+"/api/Weather4DayOutlook/GetData/"+cacheBuster(at), &days)
	return days, err
}

func (s *Scraper) getJSON(ctx context.Context, target string, out any) error {
	resp, err := s.fetcher.Do(ctx, Request{URL: target, Timeout: s.timeout})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", weather.ErrStructure, target, err)
	}
	return nil
}

// StationReadings scrapes the observations page for q. Rainfall readings
// come from a separate form POST; station coordinates and the observation
// time always come from the page itself.
func (s *Scraper) StationReadings(ctx context.Context, q Quantity) (StationObservation, error) {
	pageURL := fmt.Sprintf("%s/weather-currentobservations-%s/", s.weatherGovURL, q)
	page, err := s.fetcher.Do(ctx, Request{URL: pageURL, Timeout: s.timeout})
	if err != nil {
		return StationObservation{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return StationObservation{}, fmt.Errorf("%w: parse %s: %v", weather.ErrStructure, pageURL, err)
	}

	obsNode := doc.Find(".date-obs").First()
	if obsNode.Length() == 0 {
		return StationObservation{}, fmt.Errorf("%w: %s has no observation time", weather.ErrStructure, pageURL)
	}

	marker := `{station_code:"`
	if q == QuantityHumidity {
		marker = `{stationCode:"`
	}
	locations := parseStationMetadata(page.Text(), marker)

	readingsDoc := doc
	if q == QuantityRainfall {
		form := url.Values{}
		form.Set("tableName", "30")
		form.Set("type", "html")
		resp, err := s.fetcher.Do(ctx, Request{
			Method:  http.MethodPost,
			URL:     s.weatherGovURL + rainfallAjaxPath,
			Form:    form,
			Timeout: s.timeout,
		})
		if err != nil {
			return StationObservation{}, err
		}
		readingsDoc, err = goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			return StationObservation{}, fmt.Errorf("%w: parse rainfall table: %v", weather.ErrStructure, err)
		}
	}

	obs := StationObservation{
		Quantity:   q,
		ObservedAt: strings.TrimSpace(obsNode.Text()),
	}
	readingsDoc.Find(".sgr").Each(func(_ int, sel *goquery.Selection) {
		id := strings.TrimSpace(sel.AttrOr("id", ""))
		if id == "" {
			return
		}
		st := ScrapedStation{
			ID:    id,
			Name:  stationName(sel.AttrOr("data-content", "")),
			Value: strings.TrimSpace(sel.Text()),
		}
		if loc, ok := locations[id]; ok {
			st.Location = loc
		} else {
			log.Debugw("station has no embedded coordinates", "quantity", q, "station", id)
		}
		if q == QuantityWind {
			st.Direction = strings.TrimSpace(sel.Find("img").AttrOr("alt", ""))
		}
		obs.Stations = append(obs.Stations, st)
	})

	if len(obs.Stations) == 0 {
		return StationObservation{}, fmt.Errorf("%w: %s has no station readings", weather.ErrStructure, pageURL)
	}
	log.Debugw("observations scraped", "quantity", q, "stations", len(obs.Stations))
	return obs, nil
}

// stationName extracts the <strong> text of a reading's popover markup.
func stationName(content string) string {
	if content == "" {
		return ""
	}
	frag, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(frag.Find("strong").First().Text())
}

// parseStationMetadata pulls station coordinates out of the page's inline
// script, where each station is an object literal beginning with marker
// followed by quoted id, lat and lon values.
func parseStationMetadata(page, marker string) map[string]weather.Location {
	out := make(map[string]weather.Location)
	blocks := strings.Split(page, marker)
	for _, block := range blocks[1:] {
		parts := strings.SplitN(block, `"`, 6)
		if len(parts) < 5 {
			continue
		}
		lat, err1 := parseNumber(parts[2])
		lon, err2 := parseNumber(parts[4])
		if err1 != nil || err2 != nil {
			continue
		}
		out[parts[0]] = weather.Location{Latitude: lat, Longitude: lon}
	}
	return out
}
