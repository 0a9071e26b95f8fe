package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/core/logger"
	xlogger "github.com/jxo-me/ddnsd/sdk/logger"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logOutput resolves log.output. ok is false when logging is disabled.
func logOutput(cfg *config.LogConfig) (out io.Writer, ok bool) {
	switch cfg.Output {
	case "none", "null":
		return io.Discard, false
	case "stdout":
		return os.Stdout, true
	case "stderr", "":
		return os.Stderr, true
	}

	if cfg.Rotation != nil {
		return &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.Rotation.MaxSize,
			MaxAge:     cfg.Rotation.MaxAge,
			MaxBackups: cfg.Rotation.MaxBackups,
			LocalTime:  cfg.Rotation.LocalTime,
			Compress:   cfg.Rotation.Compress,
		}, true
	}
	_ = os.MkdirAll(filepath.Dir(cfg.Output), 0755)
	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		xlogger.NewLogger().Warnf("open log file %s: %v, logging to stderr", cfg.Output, err)
		return os.Stderr, true
	}
	return f, true
}

func logFromConfig(cfg *config.LogConfig, out io.Writer, enabled bool) logger.ILogger {
	if cfg == nil {
		cfg = &config.LogConfig{}
	}
	if !enabled {
		return xlogger.Nop()
	}
	return xlogger.NewLogger(
		xlogger.FormatLoggerOption(logger.LogFormat(cfg.Format)),
		xlogger.LevelLoggerOption(logger.LogLevel(cfg.Level)),
		xlogger.OutputLoggerOption(out),
	)
}

// zlogFromConfig builds the zerolog logger used by the config watcher.
func zlogFromConfig(cfg *config.LogConfig, out io.Writer, enabled bool) *zerolog.Logger {
	if cfg == nil {
		cfg = &config.LogConfig{}
	}
	if !enabled {
		l := zerolog.Nop()
		return &l
	}
	if cfg.Format != string(logger.JSONFormat) {
		out = zerolog.ConsoleWriter{Out: out, NoColor: true}
	}
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(out).Level(lvl).With().Timestamp().Str("component", "config").Logger()
	return &l
}

// loggers builds both loggers from the same log configuration.
func loggers(cfg *config.LogConfig) (logger.ILogger, *zerolog.Logger) {
	if cfg == nil {
		cfg = &config.LogConfig{}
	}
	out, ok := logOutput(cfg)
	return logFromConfig(cfg, out, ok), zlogFromConfig(cfg, out, ok)
}

// resolveConfigPath returns the explicit path, else the default path when a
// file exists there, else "" for defaults and environment only.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := config.GetConfigFilePathDefault(); fileExists(p) {
		return p
	}
	return ""
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
