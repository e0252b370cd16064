package mqtt

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/i474232898/sg-weather/internal/common"
	"github.com/i474232898/sg-weather/internal/radar"
	"github.com/i474232898/sg-weather/internal/weather"
)

// IconBaseURL serves the NEA condition icons, one PNG per two-letter code.
const IconBaseURL = "https://www.nea.gov.sg/assets/images/icons/weather-bg/"

const updatedAt = "Updated at"

// Entity is one home-automation entity derived from a snapshot.
type Entity struct {
	// Platform is the entity-id domain: weather, sensor or camera.
	Platform   string
	ObjectID   string
	Name       string
	UniqueID   string
	State      any
	Attributes map[string]any
	Picture    string
	Icon       string
	Unit       string
}

// EntityID is the platform-qualified id, e.g. sensor.nea_ang_mo_kio.
func (e Entity) EntityID() string {
	return e.Platform + "." + e.ObjectID
}

// Message is one MQTT publication.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// Builder derives entities and their MQTT messages from snapshots.
type Builder struct {
	Name            string
	Prefix          string
	TopicPrefix     string
	DiscoveryPrefix string
	Features        weather.Features
}

func objectID(parts ...string) string {
	return common.Slug(strings.Join(parts, "_"))
}

func iconURL(code string) string {
	if code == "" {
		return ""
	}
	return IconBaseURL + code + ".png"
}

func timestamp(t time.Time) string {
	return weather.InSGT(t).Format(time.RFC3339)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Entities returns every entity the snapshot can populate. Entities whose
// dataset is absent are left out, so their last retained state stays put.
func (b Builder) Entities(s weather.Snapshot) []Entity {
	var out []Entity
	if b.Features.Weather {
		if e, ok := b.weatherEntity(s); ok {
			out = append(out, e)
		}
	}
	if !b.Features.Sensors {
		return out
	}
	if s.Forecast2hr != nil {
		for _, area := range b.Features.Areas {
			if e, ok := b.areaEntity(s.Forecast2hr, area); ok {
				out = append(out, e)
			}
		}
	}
	if b.Features.Region && s.Forecast24hr != nil {
		for _, region := range weather.Regions {
			if e, ok := b.regionEntity(s.Forecast24hr, region); ok {
				out = append(out, e)
			}
		}
	}
	if b.Features.Rain && s.Rain != nil {
		for _, id := range s.Rain.StationIDs() {
			out = append(out, b.rainEntity(s.Rain, id))
		}
	}
	return out
}

func (b Builder) weatherEntity(s weather.Snapshot) (Entity, bool) {
	if s.Forecast2hr == nil || s.Temperature == nil {
		return Entity{}, false
	}
	attrs := map[string]any{
		"temperature":      s.Temperature.Average,
		"temperature_unit": "°C",
		updatedAt:          timestamp(s.Temperature.Timestamp),
	}
	if s.Humidity != nil {
		attrs["humidity"] = s.Humidity.Average
	}
	if s.Wind != nil {
		attrs["wind_speed"] = round2(s.Wind.AggregateSpeed)
		attrs["wind_speed_unit"] = "kn"
		attrs["wind_bearing"] = math.Round(s.Wind.AggregateBearing)
	}
	if s.Forecast4day != nil {
		attrs["forecast"] = s.Forecast4day.Entries
	}
	return Entity{
		Platform:   "weather",
		ObjectID:   objectID(b.Name),
		Name:       b.Name,
		UniqueID:   b.Name,
		State:      s.Forecast2hr.Condition,
		Attributes: attrs,
	}, true
}

func (b Builder) areaEntity(f *weather.AreaForecast, area string) (Entity, bool) {
	a, ok := f.Areas[area]
	if !ok {
		return Entity{}, false
	}
	return Entity{
		Platform: "sensor",
		ObjectID: objectID(b.Prefix, area),
		Name:     area,
		UniqueID: b.Prefix + " " + area,
		State:    a.Forecast,
		Picture:  iconURL(a.Code),
		Attributes: map[string]any{
			updatedAt:   timestamp(f.Timestamp),
			"latitude":  a.Location.Latitude,
			"longitude": a.Location.Longitude,
		},
	}, true
}

func (b Builder) regionEntity(f *weather.RegionForecast, region string) (Entity, bool) {
	periods := f.Regions[region]
	if len(periods) == 0 {
		return Entity{}, false
	}
	attrs := map[string]any{updatedAt: timestamp(f.Timestamp)}
	for _, p := range periods {
		attrs[p.Label] = p.Forecast
	}
	code, _ := weather.LookupDescription(periods[0].Forecast)
	return Entity{
		Platform:   "sensor",
		ObjectID:   objectID(b.Prefix, region),
		Name:       weather.RegionDisplayName(region),
		UniqueID:   b.Prefix + " " + region,
		State:      periods[0].Forecast,
		Picture:    iconURL(code.Code),
		Attributes: attrs,
	}, true
}

func (b Builder) rainEntity(r *weather.RainObservation, id string) Entity {
	st := r.Stations[id]
	return Entity{
		Platform: "sensor",
		ObjectID: objectID(b.Prefix, "rainfall", id),
		Name:     id,
		UniqueID: b.Prefix + " Rainfall " + id,
		State:    st.Value,
		Unit:     "mm",
		Icon:     "mdi:weather-pouring",
		Picture:  RainfallPicture(st.Value),
		Attributes: map[string]any{
			updatedAt:       timestamp(r.Timestamp),
			"Location name": st.Name,
			"latitude":      st.Location.Latitude,
			"longitude":     st.Location.Longitude,
		},
	}
}

// RainfallPicture buckets a rainfall amount onto the local picture set.
func RainfallPicture(mm float64) string {
	var q string
	switch {
	case mm == 0:
		q = "0"
	case mm < 0.35:
		q = "0.2"
	case mm < 0.75:
		q = "0.5"
	case mm < 1.5:
		q = "1"
	case mm < 2.5:
		q = "2"
	case mm < 3.5:
		q = "3"
	case mm < 4.5:
		q = "4"
	default:
		q = "5"
	}
	return "/local/weather/" + q + ".png"
}

// RadarEntity is the rain map camera for a resolved tile.
func (b Builder) RadarEntity(f radar.Frame) Entity {
	return Entity{
		Platform: "camera",
		ObjectID: objectID(b.Prefix, "rain_map"),
		Name:     "Rain Map",
		UniqueID: b.Prefix + " Rain Map",
		State:    f.Image,
		Attributes: map[string]any{
			updatedAt: timestamp(f.Bucket),
			"URL":     f.URL,
		},
	}
}

func (b Builder) stateTopic(e Entity) string {
	return fmt.Sprintf("%s/%s/state", b.TopicPrefix, e.ObjectID)
}

func (b Builder) attributesTopic(e Entity) string {
	return fmt.Sprintf("%s/%s/attributes", b.TopicPrefix, e.ObjectID)
}

// discoveryComponent is the Home Assistant MQTT component. There is no MQTT
// weather component, so the weather entity is announced as a sensor.
func discoveryComponent(e Entity) string {
	if e.Platform == "camera" {
		return "camera"
	}
	return "sensor"
}

func (b Builder) device() map[string]any {
	return map[string]any{
		"identifiers":  []string{"nea_sg_weather"},
		"name":         "Weather forecast coordinator",
		"manufacturer": "NEA Weather",
		"model":        "data.gov.sg API Polling",
	}
}

// Discovery returns the retained Home Assistant discovery message for e.
func (b Builder) Discovery(e Entity) (Message, error) {
	config := map[string]any{
		"name":                  e.Name,
		"unique_id":             common.Slug(e.UniqueID),
		"object_id":             e.ObjectID,
		"json_attributes_topic": b.attributesTopic(e),
		"device":                b.device(),
	}
	if e.Platform == "camera" {
		config["topic"] = b.stateTopic(e)
	} else {
		config["state_topic"] = b.stateTopic(e)
	}
	if e.Unit != "" {
		config["unit_of_measurement"] = e.Unit
	}
	if e.Icon != "" {
		config["icon"] = e.Icon
	}
	if e.Picture != "" {
		config["entity_picture"] = e.Picture
	}

	payload, err := json.Marshal(config)
	if err != nil {
		return Message{}, fmt.Errorf("marshal discovery for %s: %w", e.EntityID(), err)
	}
	return Message{
		Topic:    fmt.Sprintf("%s/%s/sg_weather/%s/config", b.DiscoveryPrefix, discoveryComponent(e), e.ObjectID),
		Payload:  payload,
		Retained: true,
	}, nil
}

// StateMessages returns the state and attribute messages for e.
func (b Builder) StateMessages(e Entity) ([]Message, error) {
	var state []byte
	switch v := e.State.(type) {
	case []byte:
		state = v
	case string:
		state = []byte(v)
	case weather.Condition:
		state = []byte(v)
	default:
		state = []byte(fmt.Sprint(v))
	}

	attrs, err := json.Marshal(e.Attributes)
	if err != nil {
		return nil, fmt.Errorf("marshal attributes for %s: %w", e.EntityID(), err)
	}
	return []Message{
		{Topic: b.stateTopic(e), Payload: state, Retained: true},
		{Topic: b.attributesTopic(e), Payload: attrs, Retained: true},
	}, nil
}
