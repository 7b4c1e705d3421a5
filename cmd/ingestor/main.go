package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"energy-server/confs"
	"energy-server/db"
	"energy-server/ingest"
	"energy-server/logging"
	"energy-server/repositories"
	"energy-server/usecases"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := confs.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	logger := logging.Setup(cfg.LogLevel, !cfg.IsProduction())

	if !cfg.Database.HasDatabase() {
		logger.Fatal().Err(confs.ErrMissingDatabase).Msg("invalid configuration")
	}

	database, err := db.Connect(cfg.Database, logging.Component(logger, "db"))
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect failed")
	}
	defer database.Close()

	devices := usecases.NewDeviceUseCase(
		repositories.NewDevicePgRepository(database),
		repositories.NewUserPgRepository(database),
		cfg.HighUsageThreshold,
		logging.Component(logger, "devices"),
	)
	ingestor := ingest.NewIngestor(devices, logging.Component(logger, "ingest"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID(cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	// resubscribe after every reconnect
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if err := ingestor.Subscribe(ctx, c, cfg.MQTT.Topic); err != nil {
			logger.Error().Err(err).Msg("subscribe failed")
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Fatal().Err(token.Error()).Str("broker", cfg.MQTT.Broker).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	logger.Info().Str("broker", cfg.MQTT.Broker).Msg("ingestor running; Ctrl+C to stop")
	<-ctx.Done()
	logger.Info().Msg("ingestor shutting down")
}
