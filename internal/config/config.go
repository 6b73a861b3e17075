package config

import (
	"time"

	"github.com/spf13/viper"
)

// Init wires viper to the .env file and the process environment. Call
// once at startup before anything reads configuration.
func Init() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	viper.BindEnv("eveapi.base_url", "EVEAPI_BASE_URL")
	viper.BindEnv("sync.wallets_every_hours", "SYNC_WALLETS_EVERY_HOURS")
	viper.BindEnv("sync.warmup_seconds", "SYNC_WARMUP_SECONDS")
	viper.BindEnv("sync.row_count", "SYNC_ROW_COUNT")
	viper.BindEnv("sync.debug", "SYNC_DEBUG")
	viper.BindEnv("log.level", "LOG_LEVEL")
}

// SyncConfig is everything the wallet synchronization worker consumes.
type SyncConfig struct {
	Period   time.Duration
	Warmup   time.Duration
	RowCount int
	Debug    bool
	BaseURL  string
}

// LoadSyncConfig reads the sync worker settings. The period is denominated
// in whole hours.
func LoadSyncConfig() SyncConfig {
	viper.SetDefault("sync.wallets_every_hours", 4)
	viper.SetDefault("sync.warmup_seconds", 20)
	viper.SetDefault("sync.row_count", 2560)
	viper.SetDefault("sync.debug", false)
	viper.SetDefault("eveapi.base_url", "")

	return SyncConfig{
		Period:   time.Duration(viper.GetInt("sync.wallets_every_hours")) * time.Hour,
		Warmup:   time.Duration(viper.GetInt("sync.warmup_seconds")) * time.Second,
		RowCount: viper.GetInt("sync.row_count"),
		Debug:    viper.GetBool("sync.debug"),
		BaseURL:  viper.GetString("eveapi.base_url"),
	}
}
