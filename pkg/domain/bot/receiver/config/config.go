package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BackendURL     string `yaml:"backend_url" validate:"required,url"`
	HTTPTimeoutSec int    `yaml:"http_timeout_sec" validate:"required"`
	// PostgreAddr is optional; without it sessions live in memory only.
	PostgreAddr string `yaml:"postgre_addr"`

	BotToken      string
	ClinicEmail   string
	ClinicPass    string
	AdminChatAddr string
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

func LoadConfig() (*Config, error) {
	path := filepath.Join("cmd/bot/etc", "app.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New("failed to read config file").Wrap(err)
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.New("failed to unmarshal YAML").Wrap(err)
	}

	if err = validator.New().Struct(cfg); err != nil {
		return nil, errs.New("config validation failed").Wrap(err)
	}

	if err = godotenv.Load(); err != nil {
		return nil, errs.New("failed to load .env").Wrap(err)
	}
	cfg.BotToken = os.Getenv("TG_TOKEN")
	cfg.ClinicEmail = os.Getenv("CLINIC_EMAIL")
	cfg.ClinicPass = os.Getenv("CLINIC_PASSWORD")
	cfg.AdminChatAddr = os.Getenv("TG_CHANNEL_ID")

	if cfg.BotToken == "" {
		return nil, errs.New("empty TG_TOKEN")
	}
	if cfg.ClinicEmail == "" || cfg.ClinicPass == "" {
		return nil, errs.New("clinic credentials are required")
	}

	return &cfg, nil
}
