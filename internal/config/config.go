package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/i474232898/sg-weather/internal/log"
	"github.com/i474232898/sg-weather/internal/weather"
)

// EnvPrefix prefixes every environment override, e.g. SGWEATHER_PORT or
// SGWEATHER_MQTT_BROKER.
const EnvPrefix = "SGWEATHER"

// AllAreas selects every known area.
const AllAreas = "All"

type AppConfig struct {
	Name             string `mapstructure:"name" validate:"required"`
	WeatherEnabled   bool   `mapstructure:"weather_enabled"`
	SensorsEnabled   bool   `mapstructure:"sensors_enabled"`
	RegionEnabled    bool   `mapstructure:"region_enabled"`
	RainEnabled      bool   `mapstructure:"rain_enabled"`
	EntityNamePrefix string `mapstructure:"entity_name_prefix" validate:"required"`

	// Areas holds canonical area names, already expanded from "All".
	Areas []string `mapstructure:"-"`

	ScanIntervalMinutes int `mapstructure:"scan_interval_minutes" validate:"min=1,max=1440"`
	TimeoutSeconds      int `mapstructure:"timeout_seconds" validate:"min=1,max=300"`

	Port            int  `mapstructure:"port" validate:"min=1,max=65535"`
	Debug           bool `mapstructure:"debug"`
	StoreMaxHistory int  `mapstructure:"store_max_history" validate:"min=1"`
	// StoreMaxAge is the oldest snapshot kept in history (0 = unlimited).
	StoreMaxAge time.Duration `mapstructure:"store_max_age"`

	Radar     RadarConfig     `mapstructure:"radar"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
}

type RadarConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	Animate        bool `mapstructure:"animate"`
	Frames         int  `mapstructure:"frames" validate:"min=1,max=96"`
	Width          int  `mapstructure:"width" validate:"min=0"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds" validate:"min=1,max=300"`
	LimitRefetch   bool `mapstructure:"limit_refetch"`
}

type MQTTConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Broker          string `mapstructure:"broker" validate:"required_if=Enabled true"`
	ClientID        string `mapstructure:"client_id"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	TopicPrefix     string `mapstructure:"topic_prefix" validate:"required_if=Enabled true"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix" validate:"required_if=Enabled true"`
}

type EndpointsConfig struct {
	Primary    string `mapstructure:"primary" validate:"omitempty,url"`
	NEA        string `mapstructure:"nea" validate:"omitempty,url"`
	WeatherGov string `mapstructure:"weathergov" validate:"omitempty,url"`
	Radar      string `mapstructure:"radar" validate:"omitempty,url"`
}

// ScanInterval is the update period.
func (c *AppConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMinutes) * time.Minute
}

// Timeout is the per-cycle deadline.
func (c *AppConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Features converts the enabled options into the orchestrator's feature set.
func (c *AppConfig) Features() weather.Features {
	return weather.Features{
		Weather: c.WeatherEnabled,
		Sensors: c.SensorsEnabled,
		Areas:   c.Areas,
		Region:  c.RegionEnabled,
		Rain:    c.RainEnabled,
	}
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "Singapore Weather")
	v.SetDefault("weather_enabled", true)
	v.SetDefault("sensors_enabled", false)
	v.SetDefault("areas", AllAreas)
	v.SetDefault("region_enabled", false)
	v.SetDefault("rain_enabled", false)
	v.SetDefault("entity_name_prefix", "NEA")
	v.SetDefault("scan_interval_minutes", 15)
	v.SetDefault("timeout_seconds", 10)
	v.SetDefault("port", 8080)
	v.SetDefault("debug", false)
	v.SetDefault("store_max_history", 4)
	v.SetDefault("store_max_age", "0s")
	v.SetDefault("radar.enabled", true)
	v.SetDefault("radar.animate", false)
	v.SetDefault("radar.frames", 24)
	v.SetDefault("radar.width", 0)
	v.SetDefault("radar.timeout_seconds", 15)
	v.SetDefault("radar.limit_refetch", true)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "sg-weather")
	v.SetDefault("mqtt.topic_prefix", "sg-weather")
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")
	v.SetDefault("endpoints.primary", "")
	v.SetDefault("endpoints.nea", "")
	v.SetDefault("endpoints.weathergov", "")
	v.SetDefault("endpoints.radar", "")
}

// Load reads configuration from an optional YAML file, a .env file and
// SGWEATHER_* environment variables, in increasing precedence.
func Load(configPath string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debugw("no .env file loaded", "error", err)
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sg-weather")
	}

	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	areas, err := parseAreas(v.Get("areas"))
	if err != nil {
		return nil, err
	}
	cfg.Areas = areas

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if !cfg.WeatherEnabled && !cfg.SensorsEnabled {
		return nil, errors.New("invalid config: at least one of weather_enabled or sensors_enabled must be set")
	}
	return &cfg, nil
}

// parseAreas accepts "All", a comma-separated string or a list, and
// returns canonical, de-duplicated area names in catalog order.
func parseAreas(raw any) ([]string, error) {
	var names []string
	switch val := raw.(type) {
	case nil:
		return nil, nil
	case string:
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				names = append(names, s)
			}
		}
	case []string:
		names = val
	case []any:
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid config: areas entry %v is not a string", item)
			}
			names = append(names, s)
		}
	default:
		return nil, fmt.Errorf("invalid config: areas must be %q or a list of names", AllAreas)
	}

	selected := make(map[string]bool, len(names))
	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), AllAreas) {
			return append([]string(nil), weather.Areas...), nil
		}
		area, err := weather.CanonicalArea(n)
		if err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		selected[area] = true
	}

	var out []string
	for _, a := range weather.Areas {
		if selected[a] {
			out = append(out, a)
		}
	}
	return out, nil
}
