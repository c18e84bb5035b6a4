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
	"github.com/BearBump/FreightLink/internal/cache/rediscache"
	"github.com/BearBump/FreightLink/internal/integrations/fleetclient/fleethttp"
	"github.com/BearBump/FreightLink/internal/integrations/routing"
	routingfake "github.com/BearBump/FreightLink/internal/integrations/routing/fake"
	"github.com/BearBump/FreightLink/internal/integrations/routing/osrmhttp"
	"github.com/BearBump/FreightLink/internal/metrics"
	"github.com/BearBump/FreightLink/internal/services/legs"
	"github.com/BearBump/FreightLink/internal/services/routes"
	"github.com/BearBump/FreightLink/internal/storage/pglogistics"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.Planner.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8081"
	}
	fleetBaseURL := cfg.Planner.FleetBaseURL
	if fleetBaseURL == "" {
		fleetBaseURL = "http://localhost:8082"
	}
	topic := cfg.Kafka.LegEventsTopicName
	if topic == "" {
		topic = "leg.events"
	}
	profileTTL := time.Duration(cfg.Planner.VehicleProfileTTLSeconds) * time.Second
	if profileTTL <= 0 {
		profileTTL = 5 * time.Minute
	}
	guardTTL := time.Duration(cfg.Planner.AssignGuardTTLSeconds) * time.Second
	if guardTTL <= 0 {
		guardTTL = 10 * time.Minute
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st, err := pglogistics.New(connString)
	if err != nil {
		panic(err)
	}
	defer st.Close()

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	guard := rediscache.NewIdempotencyGuard(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	var router routing.Client
	if cfg.Planner.OSRMBaseURL != "" {
		router = osrmhttp.New(cfg.Planner.OSRMBaseURL)
	} else {
		router = routingfake.New()
	}

	fleet := fleethttp.New(fleetBaseURL)
	legsSvc := legs.New(st, fleet, rc, profileTTL, producer, topic, guard, guardTTL, nil)
	routesSvc := routes.New(st, router, nil)

	metrics.Register()

	swaggerPath := os.Getenv("swaggerPath")
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runPlannerAPI(ctx, plannerAPIOpts{
		httpAddr:    httpAddr,
		swaggerPath: swaggerPath,
	}, legsSvc, routesSvc); err != nil && err != context.Canceled {
		panic(err)
	}
}
