package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/loanxp/loantrack/internal/db"
)

// Config is the full process configuration.
type Config struct {
	Database db.Config
	TenantID string
}

// Defaults returns the configuration used when no file or env is present.
func Defaults() Config {
	return Config{
		Database: db.DefaultConfig(),
		TenantID: "default",
	}
}

// Load reads config.yaml from configPath and applies environment overrides.
// Env vars use the LOANTRACK prefix, e.g. LOANTRACK_DATABASE.HOST.
func Load(configPath string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("LOANTRACK")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("tenant.id")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("tenant.id") {
		cfg.TenantID = v.GetString("tenant.id")
	}

	return cfg, nil
}
