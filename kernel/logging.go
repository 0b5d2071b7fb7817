package kernel

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"
)

func (art *AppRuntime) SetupLogging() {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level := zerolog.InfoLevel
	if art.DeploymentEnvironment == "development" {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(os.Stdout)
	if !art.Production() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly})
	}

	log.Logger = logger.With().
		Timestamp().
		Caller().
		Str("service", art.ServiceName).
		Str("version", art.ServiceVersion).
		Logger()
}

// gormWriter feeds GORM's logger into zerolog. GORM only prints at Warn
// and above (slow queries and failures), so everything lands at Warn.
type gormWriter struct {
	logger zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn().Msgf(format, args...)
}

func newGormLogger(l zerolog.Logger) logger.Interface {
	return logger.New(
		gormWriter{logger: l.With().Str("component", "gorm").Logger()},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}
