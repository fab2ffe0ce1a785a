// AquaSense Core - aquarium sensor correction service.
//
// This is the main entry point. It wires the SQLite store, the MQTT broker
// connection, optional InfluxDB telemetry and the observability listener
// around the correction loop, then runs until SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	_ "github.com/nerrad567/aquasense-core/migrations"

	"github.com/nerrad567/aquasense-core/internal/api"
	"github.com/nerrad567/aquasense-core/internal/aquarium"
	"github.com/nerrad567/aquasense-core/internal/correction"
	"github.com/nerrad567/aquasense-core/internal/infrastructure/config"
	"github.com/nerrad567/aquasense-core/internal/infrastructure/database"
	"github.com/nerrad567/aquasense-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/aquasense-core/internal/infrastructure/logging"
	"github.com/nerrad567/aquasense-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/aquasense-core/internal/sensor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is used when neither --config nor AQUASENSE_CONFIG is set.
	defaultConfigPath = "configs/config.yaml"

	configEnv = "AQUASENSE_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the CLI. With no subcommand it runs the service.
func newRootCmd() *cobra.Command {
	var configFlag string

	root := &cobra.Command{
		Use:           "aquasense",
		Short:         "Aquarium sensor correction service",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), getConfigPath(configFlag))
		},
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "",
		"config file (default $"+configEnv+" or "+defaultConfigPath+")")

	root.AddCommand(newMigrateCmd(&configFlag))
	return root
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting AquaSense Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	registry, err := sensor.FromConfig(cfg.Correction.Sensors)
	if err != nil {
		return fmt.Errorf("building sensor registry: %w", err)
	}
	for i, e := range registry.Entries() {
		log.Info("sensor registered",
			"index", i,
			"topic", e.Topic,
			"sensor_type", string(e.SensorType),
			"device", e.DeviceName,
			"lower", e.Range.Lower,
			"upper", e.Range.Upper,
		)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", db.Path())

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	repo := aquarium.NewSQLiteRepository(db.DB)
	if cfg.Aquarium.Provision {
		if provErr := repo.Provision(ctx, provisionSpec(cfg, registry)); provErr != nil {
			return fmt.Errorf("provisioning aquarium: %w", provErr)
		}
		log.Info("aquarium provisioned",
			"aquarium_id", cfg.Aquarium.ID,
			"sensors", len(registry.SensorTypes()),
			"devices", len(registry.DeviceNames()),
		)
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

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
	} else {
		log.Info("InfluxDB disabled")
	}

	loop := correction.NewLoop(registry, repo, mqttClient, loopConfig(cfg, mqttClient.QoS()))
	loop.SetLogger(log.With("component", "correction"))
	loop.SetMetrics(correction.NewMetrics(prometheus.DefaultRegisterer))
	if influxClient != nil {
		loop.SetTelemetry(influxClient)
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if runErr := loop.Run(loopCtx); runErr != nil {
			log.Error("correction loop exited", "error", runErr)
		}
	}()
	// Stop the loop before the deferred closes run, so an in-flight cycle
	// aborts before the broker and database go away.
	defer func() {
		stopLoop()
		wg.Wait()
	}()

	topics := registry.TopicsToSubscribe()
	if subErr := mqttClient.SubscribeAll(topics, mqttClient.QoS(), loop.HandleMessage); subErr != nil {
		return fmt.Errorf("subscribing to sensor topics: %w", subErr)
	}
	log.Info("subscribed to sensor topics", "topics", topics)

	if cfg.Metrics.Enabled {
		server, srvErr := api.New(api.Deps{
			Config: cfg.Metrics,
			Logger: log.With("component", "api"),
			Loop:   loop,
			Store:  repo,
			Checks: map[string]api.HealthChecker{
				"database":      db,
				"mqtt":          mqttClient,
				"subscriptions": subscriptionCheck{client: mqttClient, topics: topics},
			},
			Version: version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating observability server: %w", srvErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting observability server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing observability server", "error", closeErr)
			}
		}()
	} else {
		log.Info("observability server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("AquaSense Core stopped")
	return nil
}

// getConfigPath returns the configuration file path: the --config flag,
// then the AQUASENSE_CONFIG environment variable, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// loopConfig maps application config onto the correction loop's tunables.
func loopConfig(cfg *config.Config, qos byte) correction.Config {
	return correction.Config{
		AquariumID:            cfg.Aquarium.ID,
		ControlTopic:          cfg.Correction.ControlTopic,
		QoS:                   qos,
		SettleDelayInRange:    cfg.Correction.SettleDelayInRange(),
		CorrectionSettleDelay: cfg.Correction.CorrectionSettleDelay(),
		PostCorrectionDelay:   cfg.Correction.PostCorrectionDelay(),
	}
}

// provisionSpec lists the rows the registry needs in the database.
func provisionSpec(cfg *config.Config, registry *sensor.Registry) aquarium.ProvisionSpec {
	types := registry.SensorTypes()
	sensorTypes := make([]string, 0, len(types))
	for _, t := range types {
		sensorTypes = append(sensorTypes, string(t))
	}

	return aquarium.ProvisionSpec{
		AquariumID:   cfg.Aquarium.ID,
		AquariumName: cfg.Aquarium.Name,
		SensorTypes:  sensorTypes,
		DeviceNames:  registry.DeviceNames(),
	}
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when InfluxDB is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// subscriptionTracker is the part of the MQTT client the subscription check reads.
type subscriptionTracker interface {
	SubscriptionCount() int
	HasSubscription(topic string) bool
}

// subscriptionCheck fails while any registry topic is not subscribed. A
// missing topic means the loop can never reach that sensor's turn.
type subscriptionCheck struct {
	client subscriptionTracker
	topics []string
}

func (c subscriptionCheck) HealthCheck(_ context.Context) error {
	var missing []string
	for _, topic := range c.topics {
		if !c.client.HasSubscription(topic) {
			missing = append(missing, topic)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%d of %d sensor topics subscribed, missing %s",
			c.client.SubscriptionCount(), len(c.topics), strings.Join(missing, ", "))
	}
	return nil
}
