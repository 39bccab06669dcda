package common

import (
	"os"
	"path/filepath"

	"github.com/berrythewa/clipkeep/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the rotating daemon log under the log directory.
const LogFileName = "clipkeep.log"

// LoggerOptions tweaks NewLogger for the calling command.
type LoggerOptions struct {
	// Level overrides cfg.Log.Level when set
	Level string
	// NoFile disables the rotating file sink even if the config enables it
	NoFile bool
	// Quiet drops the console sink below warnings
	Quiet bool
}

// NewLogger creates a zap logger writing to stderr and, when enabled, to a
// size-rotated file in the log directory.
func NewLogger(cfg *config.Config, opts LoggerOptions) (*zap.Logger, error) {
	levelName := cfg.Log.Level
	if opts.Level != "" {
		levelName = opts.Level
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = zapcore.InfoLevel
	}
	atomic := zap.NewAtomicLevelAt(level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEncoder zapcore.Encoder
	if cfg.Log.Format == "json" {
		consoleEncoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoder = zapcore.NewConsoleEncoder(consoleCfg)
	}

	consoleLevel := zapcore.LevelEnabler(atomic)
	if opts.Quiet {
		consoleLevel = zapcore.WarnLevel
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), consoleLevel),
	}

	if cfg.Log.EnableFileLogging && !opts.NoFile && cfg.SystemPaths.LogDir != "" {
		if err := os.MkdirAll(cfg.SystemPaths.LogDir, 0755); err != nil {
			return nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.SystemPaths.LogDir, LogFileName),
			MaxSize:    cfg.Log.MaxLogSize,
			MaxBackups: cfg.Log.MaxLogFiles,
			MaxAge:     cfg.Log.MaxLogAge,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(rotator), atomic))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}
