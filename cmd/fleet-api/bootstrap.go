package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/FreightLink/config"
	"github.com/BearBump/FreightLink/internal/broker/kafka"
	"github.com/BearBump/FreightLink/internal/integrations/plannerclient/plannerhttp"
	"github.com/BearBump/FreightLink/internal/metrics"
	"github.com/BearBump/FreightLink/internal/services/dispatch"
	"github.com/BearBump/FreightLink/internal/services/fleet"
	"github.com/BearBump/FreightLink/internal/storage/pgfleet"
)

type fleetAPIApp struct {
	ctx         context.Context
	cancel      context.CancelFunc
	opts        fleetAPIOpts
	fleetSvc    *fleet.Service
	dispatchSvc *dispatch.Service
	consumer    *kafka.Consumer
	closeDB     func()
}

func mustBootstrapFleetAPI() *fleetAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.Fleet.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8082"
	}
	plannerBaseURL := cfg.Fleet.PlannerBaseURL
	if plannerBaseURL == "" {
		plannerBaseURL = "http://localhost:8081"
	}
	consumerGroup := cfg.Fleet.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "fleet-api"
	}
	topic := cfg.Kafka.LegEventsTopicName
	if topic == "" {
		topic = "leg.events"
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	fleetSvc := fleet.New(st, nil)
	dispatchSvc := dispatch.New(fleetSvc, plannerhttp.New(plannerBaseURL), nil)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	metrics.Register()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &fleetAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: fleetAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		fleetSvc:    fleetSvc,
		dispatchSvc: dispatchSvc,
		consumer:    consumer,
		closeDB:     st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgfleet.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgfleet.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *fleetAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *fleetAPIApp) Run() error {
	return runFleetAPI(a.ctx, a.opts, a.fleetSvc, a.dispatchSvc, a.dispatchSvc, a.consumer)
}
