package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the bootstrap configuration loaded once at process start from
// the environment (optionally seeded from a .env file). Runtime sync
// settings live in SyncSettings and are mutable through configure_sync.
type Config struct {
	DataDir  string       `mapstructure:"data_dir"`
	Timezone string       `mapstructure:"timezone"`
	Log      LogConfig    `mapstructure:"log"`
	ICloud   ICloudConfig `mapstructure:"icloud"`
	Google   GoogleConfig `mapstructure:"google"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ICloudConfig holds CalDAV credentials for the source account.
// Password must be an app-specific password, not the account password.
type ICloudConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// GoogleConfig holds OAuth client credentials and the token file location
// for the target Google Calendar account.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	TokenFile    string `mapstructure:"token_file"`
}

// Load reads configuration from environment variables, prefixed with
// ICALSYNC_ (e.g. ICALSYNC_ICLOUD_USERNAME). A .env file next to the
// working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	v := viper.New()
	v.SetEnvPrefix("icalsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data_dir", filepath.Join(home, ".icalsync"))
	v.SetDefault("timezone", "UTC")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("icloud.url", "https://caldav.icloud.com")
	v.SetDefault("icloud.username", "")
	v.SetDefault("icloud.password", "")
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.token_file", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Google.TokenFile == "" {
		cfg.Google.TokenFile = filepath.Join(cfg.DataDir, "google_token.json")
	}

	return &cfg, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, &ConfigError{Field: "timezone", Reason: err.Error()}
	}
	return loc, nil
}

// SettingsPath returns the path of the runtime sync settings file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

// StatePath returns the path of the sync state snapshot.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "sync_state.json")
}

// HistoryPath returns the path of the sync run history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}
