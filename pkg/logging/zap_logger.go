package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	BaseDataDir = "data"
	LogsDir     = "logs"
)

type LogLevel string

const (
	Development LogLevel = "development" // prints debug and above
	Production  LogLevel = "production"  // prints info and above
)

// ProcessName type to ensure valid process names
type ProcessName string

const (
	DeployProcess  ProcessName = "deploy"
	IndexerProcess ProcessName = "indexer"
	LottoProcess   ProcessName = "lotto"
)

type ZapLogger struct {
	logger *zap.Logger
}

var _ Logger = (*ZapLogger)(nil)

var loggers = make(map[ProcessName]Logger)

// NewZapLogger creates a new logger wrapping zap.Logger. In development mode
// output goes to both the console and a timestamped file under
// data/logs/<process>/; production writes to the file only.
func NewZapLogger(env LogLevel, processName string) (Logger, error) {
	var config zap.Config

	timestamp := time.Now().UTC().Format("2006-01-02T15-04-05Z")

	logDir := filepath.Join(BaseDataDir, LogsDir, processName)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("%s.log", timestamp))

	if env == Production {
		config = zap.NewProductionConfig()
		config.OutputPaths = []string{logPath}
	} else {
		config = zap.NewDevelopmentConfig()
		config.OutputPaths = []string{"stdout", logPath}
	}

	return NewZapLoggerByConfig(config, zap.AddCallerSkip(1))
}

// NewZapLoggerByConfig creates a logger from an explicit zap config.
// Pass zap.AddCallerSkip(1) when the caller should be reported.
func NewZapLoggerByConfig(config zap.Config, options ...zap.Option) (Logger, error) {
	logger, err := config.Build(options...)
	if err != nil {
		return nil, err
	}

	return &ZapLogger{logger: logger}, nil
}

func (z *ZapLogger) Debug(msg string, tags ...any) {
	z.logger.Sugar().Debugw(msg, tags...)
}

func (z *ZapLogger) Info(msg string, tags ...any) {
	z.logger.Sugar().Infow(msg, tags...)
}

func (z *ZapLogger) Warn(msg string, tags ...any) {
	z.logger.Sugar().Warnw(msg, tags...)
}

func (z *ZapLogger) Error(msg string, tags ...any) {
	z.logger.Sugar().Errorw(msg, tags...)
}

func (z *ZapLogger) Fatal(msg string, tags ...any) {
	z.logger.Sugar().Fatalw(msg, tags...)
}

func (z *ZapLogger) Debugf(template string, args ...interface{}) {
	z.logger.Sugar().Debugf(template, args...)
}

func (z *ZapLogger) Infof(template string, args ...interface{}) {
	z.logger.Sugar().Infof(template, args...)
}

func (z *ZapLogger) Warnf(template string, args ...interface{}) {
	z.logger.Sugar().Warnf(template, args...)
}

func (z *ZapLogger) Errorf(template string, args ...interface{}) {
	z.logger.Sugar().Errorf(template, args...)
}

func (z *ZapLogger) Fatalf(template string, args ...interface{}) {
	z.logger.Sugar().Fatalf(template, args...)
}

func (z *ZapLogger) With(tags ...any) Logger {
	return &ZapLogger{
		logger: z.logger.Sugar().With(tags...).Desugar(),
	}
}

// GetLogger returns the cached logger for a process, creating it on first use.
func GetLogger(env LogLevel, processName ProcessName) Logger {
	if logger, exists := loggers[processName]; exists {
		return logger
	}
	logger, err := NewZapLogger(env, string(processName))
	if err != nil {
		nop := zap.NewNop()
		logger = &ZapLogger{logger: nop}
	}
	loggers[processName] = logger
	return logger
}

// Sync flushes buffered log entries. Errors are ignored; syncing stdout
// is expected to fail on some platforms.
func (z *ZapLogger) Sync() {
	_ = z.logger.Sync()
}
