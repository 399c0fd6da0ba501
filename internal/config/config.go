package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvProd = "prod"
	EnvDev  = "dev"
)

type Config struct {
	Env string `yaml:"env" env:"ENV" env-default:"dev"`

	HTTP     HTTP     `yaml:"http"`
	Postgres Postgres `yaml:"postgres"`
	Cache    Cache    `yaml:"cache"`
	Currency Currency `yaml:"currency"`
}

type HTTP struct {
	Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

type Postgres struct {
	Host           string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User           string `yaml:"user" env:"POSTGRES_USER" env-default:"postgres"`
	Password       string `yaml:"password" env:"POSTGRES_PASSWORD"`
	Database       string `yaml:"database" env:"POSTGRES_DATABASE" env-default:"vouchers"`
	SSLMode        string `yaml:"sslmode" env:"POSTGRES_SSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"POSTGRES_MIGRATIONS_PATH" env-default:"migrations"`
}

type Cache struct {
	TTL time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"30s"`
}

type Currency struct {
	// MinorUnitPlaces is the precision discounts are rounded to.
	// 0 for VND, 2 for USD-like currencies.
	MinorUnitPlaces int32 `yaml:"minor_unit_places" env:"CURRENCY_MINOR_UNIT_PLACES" env-default:"0"`
}

func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User, c.Postgres.Password, c.Postgres.Host, c.Postgres.Port, c.Postgres.Database, c.Postgres.SSLMode)
}

// Load reads configuration from the YAML file at path with environment
// overrides. An empty path reads from the environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read env config: %w", err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return &cfg, nil
}
