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

type plannerAPIApp struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opts      plannerAPIOpts
	legsSvc   *legs.Service
	routesSvc *routes.Service
	producer  *kafka.Producer
	closeDB   func()
}

func mustBootstrapPlannerAPI() *plannerAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")

	cfg, err := config.LoadConfig(cfgPath)
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
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	guard := rediscache.NewIdempotencyGuard(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)

	var router routing.Client
	if cfg.Planner.OSRMBaseURL != "" {
		router = osrmhttp.New(cfg.Planner.OSRMBaseURL)
	} else {
		router = routingfake.New()
	}

	legsSvc := legs.New(st, fleethttp.New(fleetBaseURL), rc, profileTTL, producer, topic, guard, guardTTL, nil)
	routesSvc := routes.New(st, router, nil)

	metrics.Register()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &plannerAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: plannerAPIOpts{
			httpAddr:    httpAddr,
			swaggerPath: swaggerPath,
		},
		legsSvc:   legsSvc,
		routesSvc: routesSvc,
		producer:  producer,
		closeDB:   st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pglogistics.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pglogistics.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *plannerAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *plannerAPIApp) Run() error {
	return runPlannerAPI(a.ctx, a.opts, a.legsSvc, a.routesSvc)
}
