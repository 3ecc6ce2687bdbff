package bootstrap

import (
	"github.com/artpar/trustmeter/adapters/metrics"
	"github.com/artpar/trustmeter/config"
	"github.com/rs/zerolog"
)

// ReloadHooks returns the listeners applied on a successful and a failed config reload.
// Only logging.level takes effect at runtime; other changes are logged by the holder.
func ReloadHooks(m *metrics.Collector, logger zerolog.Logger) (onChange func(*config.Config), onError func(error)) {
	onChange = func(cfg *config.Config) {
		applyLogLevel(cfg.Logging.Level, logger)
		if m != nil {
			m.ConfigReloads.Inc()
			m.ConfigLastReload.SetToCurrentTime()
		}
	}
	onError = func(error) {
		if m != nil {
			m.ConfigReloadErrors.Inc()
		}
	}
	return onChange, onError
}

// applyLogLevel sets the global log level, ignoring unknown levels.
func applyLogLevel(level string, logger zerolog.Logger) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logger.Warn().Str("level", level).Msg("ignoring invalid log level")
		return
	}
	if lvl != zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(lvl)
		logger.Info().Str("level", lvl.String()).Msg("log level changed")
	}
}
