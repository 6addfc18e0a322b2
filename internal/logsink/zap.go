package logsink

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zap adapts a *zap.Logger. Red lines log at error level, yellow at warn and
// everything else at debug.
type Zap struct {
	logger *zap.Logger
}

func NewZap(logger *zap.Logger) *Zap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Zap{logger: logger}
}

func (z *Zap) LogDebug(text string, color Color) {
	z.logger.Log(levelFor(color), text)
}

func (z *Zap) Trace(unit, text string, color Color) {
	z.logger.Log(levelFor(color), text, zap.String("unit", unit))
}

func levelFor(color Color) zapcore.Level {
	switch color {
	case Red:
		return zapcore.ErrorLevel
	case Yellow:
		return zapcore.WarnLevel
	default:
		return zapcore.DebugLevel
	}
}
