package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	InstanceID string `env:"INSTANCE_ID"` // defaults to a random id when empty

	RedisHost          string `env:"REDIS_HOST"           envDefault:"localhost"`
	RedisPort          uint16 `env:"REDIS_PORT"           envDefault:"6379"  validate:"min=1000,max=65535"`
	RedisDB            int    `env:"REDIS_DB"             envDefault:"0"     validate:"min=0,max=15"`
	RedisFanoutEnabled bool   `env:"REDIS_FANOUT_ENABLED" envDefault:"false"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"relay_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"relay_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"relay_db"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE"  envDefault:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	JWTSecret   string        `env:"JWT_SECRET"    envDefault:"dev-secret-change-me" validate:"min=8"`
	JWTTokenTTL time.Duration `env:"JWT_TOKEN_TTL" envDefault:"24h"                  validate:"gt=0"`

	ClientURL string `env:"CLIENT_URL" envDefault:"http://localhost:5173" validate:"url|eq=*"` // "*" allows every origin

	SendQueueSize       int           `env:"WS_SEND_QUEUE_SIZE"     envDefault:"256" validate:"min=1,max=65536"`
	DurableWriteTimeout time.Duration `env:"DURABLE_WRITE_TIMEOUT"  envDefault:"5s"  validate:"gt=0"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"5000" validate:"min=1000,max=65535"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
