package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/sg-weather/internal/api/http"
	"github.com/i474232898/sg-weather/internal/config"
	"github.com/i474232898/sg-weather/internal/log"
	"github.com/i474232898/sg-weather/internal/mqtt"
	"github.com/i474232898/sg-weather/internal/radar"
	"github.com/i474232898/sg-weather/internal/scheduler"
	"github.com/i474232898/sg-weather/internal/store"
	"github.com/i474232898/sg-weather/internal/weather"
	"github.com/i474232898/sg-weather/internal/weather/providers"
)

var (
	configFile string
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sg-weather",
		Short: "Singapore NEA weather service",
		Long:  "Fetches NEA weather data, normalizes it and republishes it over HTTP and MQTT",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(fetchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the collaborators shared by both commands.
type app struct {
	cfg     *config.AppConfig
	store   *store.MemoryStore
	service *weather.Service
	radar   *radar.Resolver
}

func setup() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := log.Init(debug || cfg.Debug); err != nil {
		return nil, err
	}

	// Shared HTTP client for outbound calls; per-request timeouts are set
	// by the gateway.
	httpClient := &http.Client{}

	provider := providers.NewNEA(httpClient, providers.Endpoints{
		Primary:    cfg.Endpoints.Primary,
		NEA:        cfg.Endpoints.NEA,
		WeatherGov: cfg.Endpoints.WeatherGov,
	}, cfg.Timeout(), nil)

	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	service := weather.NewService(memStore, provider, cfg.Features(), cfg.Timeout(), nil)

	a := &app{cfg: cfg, store: memStore, service: service}
	if cfg.Radar.Enabled {
		a.radar = radar.NewResolver(providers.NewGateway(httpClient), radar.Options{
			URLPrefix:    cfg.Endpoints.Radar,
			LimitRefetch: cfg.Radar.LimitRefetch,
			Animate:      cfg.Radar.Animate,
			Frames:       cfg.Radar.Frames,
			Width:        cfg.Radar.Width,
			Timeout:      time.Duration(cfg.Radar.TimeoutSeconds) * time.Second,
		}, nil)
	}
	return a, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the update scheduler, HTTP API and MQTT publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			cfg := a.cfg

			publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
				Broker:          cfg.MQTT.Broker,
				ClientID:        cfg.MQTT.ClientID,
				Username:        cfg.MQTT.Username,
				Password:        cfg.MQTT.Password,
				TopicPrefix:     cfg.MQTT.TopicPrefix,
				DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
				Enabled:         cfg.MQTT.Enabled,
			}, mqtt.Builder{
				Name:     cfg.Name,
				Prefix:   cfg.EntityNamePrefix,
				Features: cfg.Features(),
			})
			if err != nil {
				log.Warnw("mqtt unavailable, publishing disabled", "error", err)
				publisher = nil
			}

			var (
				sched       *scheduler.Scheduler
				radarSource httpapi.RadarSource
				pub         scheduler.Publisher
				rr          scheduler.RadarResolver
			)
			if publisher != nil {
				pub = publisher
				defer publisher.Close()
			}
			if a.radar != nil {
				rr = a.radar
				radarSource = a.radar
			}
			sched = scheduler.New(cfg.ScanInterval(), a.service, rr, pub)
			if err := sched.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			defer sched.Stop()

			server := fiber.New(fiber.Config{
				AppName:               "sg-weather",
				DisableStartupMessage: true,
				UnescapePath:          true,
				ReadTimeout:           10 * time.Second,
				WriteTimeout:          10 * time.Second,
				ErrorHandler: func(c *fiber.Ctx, err error) error {
					code := fiber.StatusInternalServerError
					if e, ok := err.(*fiber.Error); ok {
						code = e.Code
					}
					return c.Status(code).JSON(fiber.Map{
						"error":   true,
						"message": err.Error(),
					})
				},
			})

			server.Use(logger.New())
			server.Use(recover.New())

			server.Get("/health", func(c *fiber.Ctx) error {
				return c.JSON(fiber.Map{
					"status":  "ok",
					"service": "sg-weather",
				})
			})

			httpapi.RegisterRoutes(server, a.service, radarSource)

			go func() {
				if err := server.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
					log.Errorw("fiber server stopped", "error", err)
				}
			}()
			log.Infow("sg-weather started", "port", cfg.Port, "datasets", cfg.Features().RequiredDatasets())

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.ShutdownWithContext(shutdownCtx); err != nil {
				log.Warnw("error during shutdown", "error", err)
			}
			return nil
		},
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Run one update cycle and print the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			snapshot, err := a.service.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			output, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
			return nil
		},
	}
}
