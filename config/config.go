package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Planner  PlannerConfig  `yaml:"planner"`
	Fleet    FleetConfig    `yaml:"fleet"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	LegEventsTopicName string `yaml:"leg_events_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// PlannerConfig — сервис маршрутов/плеч (planner-api).
type PlannerConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	// OSRMBaseURL пустой — берётся фейковый роутинг-провайдер (dev/тесты).
	OSRMBaseURL  string `yaml:"osrm_base_url"`
	FleetBaseURL string `yaml:"fleet_base_url"`

	// TTL кэша профилей машин, читаемых из флот-сервиса при расчёте стоимости.
	VehicleProfileTTLSeconds int `yaml:"vehicle_profile_ttl_seconds"`

	// TTL идемпотентного ключа назначения (legId, vehicleRef).
	AssignGuardTTLSeconds int `yaml:"assign_guard_ttl_seconds"`
}

// FleetConfig — сервис флота (fleet-api).
type FleetConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	PlannerBaseURL     string `yaml:"planner_base_url"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
