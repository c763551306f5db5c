package cache

import (
	"os"

	"checkit-service/config"

	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// InitializeCache builds the list cache (redis in production; CACHE_TYPE can
// select the in-memory backend for local runs).
func InitializeCache(cfg config.Config) cache.Cache {
	cache, err := cache.New(cache.Config{
		Type:          cfg.CacheType,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Error("Failed to initialize cache:", zap.Error(err))
		os.Exit(1)
	}
	return cache
}
