package logger

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"
)

const serviceName = "order-dispatch"

// Setup configures the global zerolog logger. Contexts that carry no
// request logger (workers, the status listener) fall back to it.
func Setup(level string, production bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.DefaultContextLogger = &log.Logger

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if production {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Str("service", serviceName).Logger()
}

// GormLevel maps the zerolog level onto gorm's SQL logger.
func GormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug", "trace":
		return gormlogger.Info
	case "warn":
		return gormlogger.Warn
	case "error", "fatal", "panic":
		return gormlogger.Error
	default:
		return gormlogger.Silent
	}
}

// Middleware logs each request and stores a request-scoped logger in the
// request context.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLogger := log.With().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Logger()
		c.Request = c.Request.WithContext(reqLogger.WithContext(c.Request.Context()))

		c.Next()

		event := reqLogger.Info()
		if c.Writer.Status() >= 500 {
			event = reqLogger.Error()
		} else if c.Writer.Status() >= 400 {
			event = reqLogger.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request handled")
	}
}
