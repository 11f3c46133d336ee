package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Bus       BusConfig
	Retention RetentionConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// pool sizing: dedup SETNX and cache reads sit on the hot ingest
	// and serving paths, so the pool is tunable per deployment
	PoolSize     int
	MinIdleConns int
}

type BusConfig struct {
	EventsTopic  string
	CDCTopic     string
	EventsGroup  string
	CDCGroup     string
	ConsumerName string
}

type RetentionConfig struct {
	SweepIntervalMinutes int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, errors.New("invalid redis database")
	}

	redisPoolSize, err := strconv.Atoi(getEnv("REDIS_POOL_SIZE", "20"))
	if err != nil {
		return nil, errors.New("invalid redis pool size")
	}

	redisMinIdle, err := strconv.Atoi(getEnv("REDIS_MIN_IDLE_CONNS", "5"))
	if err != nil {
		return nil, errors.New("invalid redis min idle conns")
	}

	sweepInterval, err := strconv.Atoi(getEnv("RETENTION_SWEEP_INTERVAL_MINUTES", "60"))
	if err != nil {
		return nil, errors.New("invalid retention sweep interval")
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Novafeed Ranking API"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "novafeed"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
			PoolSize:      redisPoolSize,
			MinIdleConns:  redisMinIdle,
		},
		Bus: BusConfig{
			EventsTopic:  getEnv("BUS_EVENTS_TOPIC", "events"),
			CDCTopic:     getEnv("BUS_CDC_TOPIC", "cdc"),
			EventsGroup:  getEnv("BUS_EVENTS_GROUP", "novafeed-events-v1"),
			CDCGroup:     getEnv("BUS_CDC_GROUP", "novafeed-cdc-v1"),
			ConsumerName: getEnv("BUS_CONSUMER_NAME", ""),
		},
		Retention: RetentionConfig{
			SweepIntervalMinutes: sweepInterval,
		},
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}
