package obs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	Level  string
	Pretty bool
	App    string
	Env    string
	Ver    string
	// File, when set, receives a rotated JSON copy of every record.
	File string
}

// NewLogger builds the process logger. Pretty selects the console encoder for
// local runs; an unparsable Level falls back to info.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	base := zap.NewProductionConfig()
	if c.Pretty {
		base = zap.NewDevelopmentConfig()
	}
	base.Level = zap.NewAtomicLevelAt(parseLevel(c.Level))
	base.EncoderConfig.TimeKey = "ts"
	base.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	opts := []zap.Option{zap.Fields(
		zap.String("service", c.App),
		zap.String("env", c.Env),
		zap.String("version", c.Ver),
	)}
	if c.File != "" {
		file := rotatingCore(c.File, base.EncoderConfig, base.Level)
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, file)
		}))
	}
	return base.Build(opts...)
}

func parseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func rotatingCore(path string, enc zapcore.EncoderConfig, lvl zapcore.LevelEnabler) zapcore.Core {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), lvl)
}
