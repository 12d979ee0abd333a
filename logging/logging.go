// Package logging builds the zap logger shared by the task routing services.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation controls size based rotation for file outputs.
type Rotation struct {
	Enable     bool   `json:"enable,omitempty" yaml:"enable,omitempty"`
	MaxSizeMB  int    `json:"maxSizeMB,omitempty" yaml:"maxSizeMB,omitempty"`
	MaxBackups int    `json:"maxBackups,omitempty" yaml:"maxBackups,omitempty"`
	MaxAgeDays int    `json:"maxAgeDays,omitempty" yaml:"maxAgeDays,omitempty"`
	Compress   bool   `json:"compress,omitempty" yaml:"compress,omitempty"`
	Filename   string `json:"filename,omitempty" yaml:"filename,omitempty"`
}

// Config describes logger construction.
type Config struct {
	Level       string   `json:"level,omitempty" yaml:"level,omitempty"`
	Format      string   `json:"format,omitempty" yaml:"format,omitempty"`
	Outputs     []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Development bool     `json:"development,omitempty" yaml:"development,omitempty"`
	Rotation    Rotation `json:"rotation,omitempty" yaml:"rotation,omitempty"`
}

// Init ensures defaults.
func (c *Config) Init() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if len(c.Outputs) == 0 {
		c.Outputs = []string{"stderr"}
	}
}

// New builds a zap logger from the config. The caller owns Sync.
func New(cfg Config) (*zap.Logger, error) {
	cfg.Init()
	level := zap.NewAtomicLevel()
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "warn", "warning":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var cores []zapcore.Core
	for _, output := range cfg.Outputs {
		cores = append(cores, zapcore.NewCore(encoder, writeSyncer(output, cfg.Rotation), level))
	}
	options := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
	if cfg.Development {
		options = append(options, zap.Development())
	}
	return zap.New(zapcore.NewTee(cores...), options...), nil
}

// Nop returns a logger discarding everything, used as the default when no
// logger was supplied.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func writeSyncer(output string, rotation Rotation) zapcore.WriteSyncer {
	switch strings.ToLower(output) {
	case "stdout":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	}
	if rotation.Enable {
		filename := output
		if strings.TrimSpace(rotation.Filename) != "" {
			filename = rotation.Filename
		}
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   filename,
			MaxSize:    defaulted(rotation.MaxSizeMB, 10),
			MaxBackups: defaulted(rotation.MaxBackups, 1),
			MaxAge:     defaulted(rotation.MaxAgeDays, 7),
			Compress:   rotation.Compress,
		})
	}
	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zapcore.AddSync(os.Stderr)
	}
	return zapcore.AddSync(file)
}

func defaulted(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
