package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds a JSON logger writing to a rotating file. The terminal is
// owned by the shell, so nothing is logged to stdout or stderr.
func newLogger(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	path := cfg.LogFile
	if path == "" {
		if err := EnsureConfigDir(); err != nil {
			return nil, err
		}
		if path, err = configPath(appName + ".log"); err != nil {
			return nil, err
		}
	}

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	})
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, level)

	return zap.New(core, zap.AddCaller()).Named(appName), nil
}
