package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Generator GeneratorConfig `mapstructure:"generator"`
}

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	HTTPPort    string `mapstructure:"http_port"`
	AllowOrigin string `mapstructure:"allow_origin"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | mysql | postgres
	DSN    string `mapstructure:"dsn"`
}

type StorageConfig struct {
	SavedDir      string `mapstructure:"saved_dir"`
	GeneratedDir  string `mapstructure:"generated_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type GeneratorConfig struct {
	Endpoint          string        `mapstructure:"endpoint"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Workers           int           `mapstructure:"workers"`
	QueueSize         int           `mapstructure:"queue_size"`
	Steps             int           `mapstructure:"steps"`
	GuidanceScale     float64       `mapstructure:"guidance_scale"`
	ConditioningScale float64       `mapstructure:"conditioning_scale"`
}

// Load читает config.yaml (путь опционален) + переменные окружения RAKUGAKI_*.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.http_port", "8000")
	v.SetDefault("server.allow_origin", "http://localhost:3000")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "app.db")
	v.SetDefault("storage.saved_dir", "saved-images")
	v.SetDefault("storage.generated_dir", "generated-images")
	v.SetDefault("storage.public_base_url", "http://localhost:8000")
	v.SetDefault("generator.endpoint", "http://localhost:7860/generate")
	v.SetDefault("generator.timeout", 5*time.Minute)
	v.SetDefault("generator.workers", 1)
	v.SetDefault("generator.queue_size", 16)
	v.SetDefault("generator.steps", 100)
	v.SetDefault("generator.guidance_scale", 6.5)
	v.SetDefault("generator.conditioning_scale", 0.7)

	v.SetEnvPrefix("RAKUGAKI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
