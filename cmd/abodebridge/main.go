// Abode Bridge exposes Abode cloud switches, dimmers and bulbs to local
// smart-home hosts: HomeKit, MQTT, InfluxDB and a small HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/abode-bridge/internal/api"
	bridge "github.com/nerrad567/abode-bridge/internal/bridges/abode"
	"github.com/nerrad567/abode-bridge/internal/homekit"
	"github.com/nerrad567/abode-bridge/internal/infrastructure/config"
	"github.com/nerrad567/abode-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/abode-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/abode-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/abode-bridge/internal/platform"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the platform to every enabled host and blocks until ctx is
// cancelled. Deferred closes run in reverse start order.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Abode Bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.PathFromEnv()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	plat := platform.New(platformConfig(cfg), log.Component("platform"))
	defer func() {
		log.Info("stopping platform")
		plat.Close()
	}()

	// Hosts are attached before Init so discovery registers with all of them.
	var mqttBridge *bridge.Bridge
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
			"topic_prefix", mqttClient.Topics().Prefix(),
		)

		mqttBridge, err = bridge.NewBridge(bridge.Options{
			MQTT:    mqttClient,
			Core:    plat,
			Topics:  mqttClient.Topics(),
			QoS:     mqttClient.QoS(),
			Version: version,
			Logger:  log.Component("mqtt-bridge"),
		})
		if err != nil {
			return fmt.Errorf("creating MQTT bridge: %w", err)
		}
		plat.AddHost(mqttBridge)
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		plat.AddHost(influxdb.NewStateRecorder(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	var hk *homekit.Host
	if cfg.HomeKit.Enabled {
		hk = homekit.NewHost(homekit.Config{
			Name:        cfg.HomeKit.Name,
			Pin:         cfg.HomeKit.Pin,
			StoragePath: cfg.HomeKit.StoragePath,
			Port:        cfg.HomeKit.Port,
			Version:     version,
		}, plat)
		hk.SetLogger(log.Component("homekit"))
		plat.AddHost(hk)
	} else {
		log.Info("HomeKit disabled")
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(apiDeps(cfg, log, plat, mqttClient, influxClient))
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		plat.AddHost(apiServer)
	} else {
		log.Info("HTTP API disabled")
	}

	if err := plat.Init(ctx); err != nil {
		return fmt.Errorf("initialising platform: %w", err)
	}
	log.Info("platform initialised", "devices", plat.Status().Devices)

	if mqttBridge != nil {
		if err := mqttBridge.Start(ctx); err != nil {
			return fmt.Errorf("starting MQTT bridge: %w", err)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			mqttBridge.Stop()
		}()
	}

	hkDone := make(chan error, 1)
	if hk != nil {
		go func() { hkDone <- hk.Serve(ctx) }()
		log.Info("HomeKit accessory host starting", "accessories", hk.Len())
	}

	if apiServer != nil {
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case err := <-hkDone:
		if err != nil {
			return fmt.Errorf("HomeKit host: %w", err)
		}
	}

	log.Info("Abode Bridge stopped")
	return nil
}

func platformConfig(cfg *config.Config) platform.Config {
	return platform.Config{
		Email:           cfg.Abode.Email,
		Password:        cfg.Abode.Password,
		HostVersion:     cfg.Abode.HostVersion,
		BaseURL:         cfg.Abode.BaseURL,
		SocketURL:       cfg.Abode.SocketURL,
		RenewInterval:   cfg.Abode.RenewInterval,
		RequestTimeout:  cfg.Abode.RequestTimeout,
		WatchdogTimeout: cfg.Abode.WatchdogTimeout,
		DebounceWindow:  cfg.Abode.DebounceWindow,
	}
}

// apiDeps builds the API dependencies. Disabled clients stay nil interfaces
// so metrics omit them.
func apiDeps(cfg *config.Config, log *logging.Logger, core api.Core, mqttClient *mqtt.Client, influxClient *influxdb.Client) api.Deps {
	deps := api.Deps{
		Config:  cfg.API,
		Logger:  log.Component("api"),
		Core:    core,
		Version: version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.InfluxDB = influxClient
	}
	return deps
}

// healthCheck verifies the optional downstream connections. Either client
// may be nil when disabled.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	var errs []error
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	return errors.Join(errs...)
}
