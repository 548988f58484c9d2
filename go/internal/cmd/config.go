package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/livetrivia/go/internal/broadcast"
)

// Config is the process configuration: an optional YAML file overridden by
// environment variables, so deployments can ship one file and tweak per
// process with env.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Game struct {
		AnswerWindowSeconds int `yaml:"answer_window_seconds"`
		MarkerTTLHours      int `yaml:"marker_ttl_hours"`
	} `yaml:"game"`
}

func loadConfig(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server.Port = getEnv("PORT", defaulted(config.Server.Port, "8080"))
	config.Redis.Addr = getEnv("REDIS_ADDR", defaulted(config.Redis.Addr, "localhost:6379"))
	config.Redis.Password = getEnv("REDIS_PASSWORD", config.Redis.Password)
	config.NATS.URL = getEnv("NATS_URL", defaulted(config.NATS.URL, "nats://localhost:4222"))
	config.NATS.Subject = getEnv("NATS_SUBJECT", defaulted(config.NATS.Subject, broadcast.DefaultSubject))
	config.Auth.JWTSecret = getEnv("JWT_SECRET", config.Auth.JWTSecret)

	if config.Game.AnswerWindowSeconds == 0 {
		config.Game.AnswerWindowSeconds = 10
	}
	if config.Game.MarkerTTLHours == 0 {
		config.Game.MarkerTTLHours = 6
	}

	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return &config, nil
}

func (c *Config) answerWindow() time.Duration {
	return time.Duration(c.Game.AnswerWindowSeconds) * time.Second
}

func (c *Config) markerTTL() time.Duration {
	return time.Duration(c.Game.MarkerTTLHours) * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaulted(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
