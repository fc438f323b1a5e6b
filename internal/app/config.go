package app

import (
	"github.com/prosodia/prosodia-backend/internal/platform/envutil"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

type Config struct {
	HTTPAddr     string
	JWTSecretKey string
	Environment  string
	Version      string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		HTTPAddr:     ":" + envutil.GetEnv("PORT", "8080", log),
		JWTSecretKey: envutil.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		Environment:  envutil.GetEnv("APP_ENV", "development", log),
		Version:      envutil.GetEnv("APP_VERSION", "dev", log),
	}
}
