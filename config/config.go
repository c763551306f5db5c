package config

import (
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings, decoded from the environment.
type Config struct {
	Port         string        `env:"PORT,default=3001"`
	DatabasePath string        `env:"DATABASE_PATH,default=./checkit.db"`
	JWTSecret    string        `env:"JWT_SECRET,required"`
	TokenTTL     time.Duration `env:"TOKEN_TTL,default=24h"`

	CacheType     string `env:"CACHE_TYPE,default=redis"`
	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD,default="`
	RedisDB       int    `env:"REDIS_DB,default=0"`
}

// Load reads .env (if present) and decodes the environment into a Config.
func Load() (Config, error) {
	// Missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
