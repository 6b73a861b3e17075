package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"

	"github.com/eve-tsu/eve-kasse/internal/config"
)

// InitRedis initializes the Redis client used as the EVE API response
// cache. The service works without it, just slower and harder on the API.
func InitRedis() *redis.Client {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	addr := viper.GetString("redis.host") + ":" + viper.GetString("redis.port")
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		config.GetLogger().WithError(err).Warn("Redis connection failed, continuing without response cache")
		return nil
	}

	config.GetLogger().Info("Redis connection established")
	return rdb
}
