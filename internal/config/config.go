package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Base64SecretPrefix marca un JWT_SECRET codificado en base64.
const Base64SecretPrefix = "base64:"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	DatabaseURL string `env:"DATABASE_URL"`

	JWTSecret       string `env:"JWT_SECRET" envDefault:"defaultSecretKeyThatIsAtLeast256BitsLongForHS256Algorithm"`
	JWTExpirationMs int64  `env:"JWT_EXPIRATION_MS" envDefault:"86400000"`
	BcryptCost      int    `env:"BCRYPT_COST" envDefault:"10"`

	ServiceName         string        `env:"SERVICE_NAME" envDefault:"user-service"`
	TelemetryEnabled    bool          `env:"TELEMETRY_ENABLED" envDefault:"true"`
	TelemetryServiceURL string        `env:"TELEMETRY_SERVICE_URL" envDefault:"http://localhost:8086"`
	TelemetryQueueSize  int           `env:"TELEMETRY_QUEUE_SIZE" envDefault:"1024"`
	TelemetryWorkers    int           `env:"TELEMETRY_WORKERS" envDefault:"2"`
	TelemetryTimeout    time.Duration `env:"TELEMETRY_TIMEOUT" envDefault:"5s"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	LoginRateWindow time.Duration `env:"LOGIN_RATE_WINDOW" envDefault:"1m"`
	LoginRateMax    int           `env:"LOGIN_RATE_MAX" envDefault:"10"`

	SeedData bool `env:"SEED_DATA" envDefault:"true"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// JWTExpiration devuelve el TTL de los tokens como time.Duration.
func (c *Config) JWTExpiration() time.Duration {
	return time.Duration(c.JWTExpirationMs) * time.Millisecond
}

// SigningKey resuelve el material de la clave HMAC.
func (c *Config) SigningKey() ([]byte, error) {
	return DecodeSecret(c.JWTSecret)
}

// DecodeSecret interpreta el secreto como base64 cuando lleva el prefijo, o como bytes crudos.
func DecodeSecret(secret string) ([]byte, error) {
	if encoded, ok := strings.CutPrefix(secret, Base64SecretPrefix); ok {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode base64 jwt secret: %w", err)
		}
		return key, nil
	}
	return []byte(secret), nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}
