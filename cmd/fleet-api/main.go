package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/FreightLink/config"
	"github.com/BearBump/FreightLink/internal/broker/kafka"
	"github.com/BearBump/FreightLink/internal/integrations/plannerclient/plannerhttp"
	"github.com/BearBump/FreightLink/internal/metrics"
	"github.com/BearBump/FreightLink/internal/services/dispatch"
	"github.com/BearBump/FreightLink/internal/services/fleet"
	"github.com/BearBump/FreightLink/internal/storage/pgfleet"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
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
	st, err := pgfleet.New(connString)
	if err != nil {
		panic(err)
	}
	defer st.Close()

	fleetSvc := fleet.New(st, nil)
	dispatchSvc := dispatch.New(fleetSvc, plannerhttp.New(plannerBaseURL), nil)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	metrics.Register()

	swaggerPath := os.Getenv("swaggerPath")
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runFleetAPI(ctx, fleetAPIOpts{
		httpAddr:      httpAddr,
		swaggerPath:   swaggerPath,
		topic:         topic,
		consumerGroup: consumerGroup,
	}, fleetSvc, dispatchSvc, dispatchSvc, consumer); err != nil && err != context.Canceled {
		panic(err)
	}
}
