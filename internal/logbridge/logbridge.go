// Package logbridge builds the process logger and surfaces editor events as
// log lines.
package logbridge

import (
	"github.com/l1jgo/workbench/internal/config"
	"github.com/l1jgo/workbench/internal/core/event"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger: JSON production output for format "json",
// otherwise a compact colored console encoder.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// Subscribe logs editor events delivered on bus. It only logs: the editor
// never waits on it.
func Subscribe(bus *event.Bus, log *zap.Logger) {
	log = log.Named("events")
	event.Subscribe(bus, func(e event.HistoryPushed) {
		log.Debug("history", zap.String("label", e.Label), zap.String("outcome", e.Outcome), zap.Int("depth", e.Depth))
	})
	event.Subscribe(bus, func(e event.HistoryUndone) {
		log.Info("undo", zap.String("label", e.Label))
	})
	event.Subscribe(bus, func(e event.HistoryRedone) {
		log.Info("redo", zap.String("label", e.Label))
	})
	event.Subscribe(bus, func(e event.RestoreConflict) {
		ids := make([]uint64, len(e.Entities))
		for i, id := range e.Entities {
			ids[i] = uint64(id)
		}
		log.Warn("entities could not be restored", zap.String("cause", e.Cause), zap.Uint64s("entities", ids))
	})
	event.Subscribe(bus, func(e event.EditGroupClosed) {
		log.Debug("edit group closed", zap.String("label", e.Label), zap.Bool("abandoned", e.Abandoned), zap.Bool("idle", e.Idle))
	})
	event.Subscribe(bus, func(e event.SceneLoaded) {
		log.Info("scene", zap.String("name", e.Name), zap.Int("entities", e.Entities))
	})
	event.Subscribe(bus, func(e event.ScriptsReloaded) {
		log.Info("scripts reloaded", zap.Int("files", e.Files), zap.Duration("took", e.Took))
	})
}
