package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type NotifyConfig struct {
	Webhook string
	NtfyURL string
}

type Config struct {
	Port          int
	AllowedOrigin string
	StorePath     string
	LogDir        string
	LogLevel      string
	Notify        NotifyConfig
}

func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Port:          5000,
		AllowedOrigin: "*",
		StorePath:     filepath.Join(home, ".wastewatch", "records.db"),
		LogDir:        filepath.Join(home, ".wastewatch", "logs"),
		LogLevel:      "info",
	}
}

// FromEnv loads a .env file when present and overlays environment variables
// on the defaults. All runtime configuration is externally supplied; nothing
// here is consulted again after startup.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = p
	}
	if v := os.Getenv("ALLOWED_ORIGIN"); v != "" {
		cfg.AllowedOrigin = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		cfg.StorePath = v
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	cfg.Notify.Webhook = os.Getenv("NOTIFY_WEBHOOK")
	cfg.Notify.NtfyURL = os.Getenv("NOTIFY_NTFY")
	return cfg, nil
}
