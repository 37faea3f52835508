package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pizzastream/internal/config"
	"pizzastream/pkg/logging"
)

type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})
	Sync() error

	// Ctx variants prepend the trace and record fields carried by ctx.
	DebugwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	InfowCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	WarnwCtx(ctx context.Context, msg string, keysAndValues ...interface{})
	ErrorwCtx(ctx context.Context, msg string, keysAndValues ...interface{})

	// Named returns a child logger tagged with a component name
	// (router, catalog, statusjoin, aggregate, query, ...).
	Named(component string) Logger
}

type SugaredLogger struct {
	*zap.SugaredLogger
	serviceName string
}

// SetServiceName sets the service_name field used when ctx carries none.
func (l *SugaredLogger) SetServiceName(name string) {
	l.serviceName = name
}

// New builds the process logger from the logging section.
func New(cfg config.LoggingConfig) (Logger, error) {
	enc, encoding, err := encoderFor(cfg.Format)
	if err != nil {
		return nil, err
	}

	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		lvl = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = encoding
	zcfg.EncoderConfig = enc
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	// Identical lines beyond 100 per second are sampled 1 in 100.
	zcfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}

	z, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &SugaredLogger{SugaredLogger: z.Sugar()}, nil
}

func encoderFor(format string) (zapcore.EncoderConfig, string, error) {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.NameKey = "component"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	switch format {
	case "", "json":
		enc.EncodeLevel = zapcore.LowercaseLevelEncoder
		return enc, "json", nil
	case "console":
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return enc, "console", nil
	default:
		return enc, "", fmt.Errorf("unsupported log format: %s", format)
	}
}

// NewFromZap wraps an existing zap logger, mostly for tests using zaptest/observer.
func NewFromZap(z *zap.Logger) Logger {
	return &SugaredLogger{SugaredLogger: z.Sugar()}
}

func NopLogger() Logger {
	return &SugaredLogger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *SugaredLogger) Named(component string) Logger {
	return &SugaredLogger{
		SugaredLogger: l.SugaredLogger.Named(component),
		serviceName:   l.serviceName,
	}
}

func (l *SugaredLogger) DebugwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.withContext(ctx).Debugw(msg, keysAndValues...)
}

func (l *SugaredLogger) InfowCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.withContext(ctx).Infow(msg, keysAndValues...)
}

func (l *SugaredLogger) WarnwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.withContext(ctx).Warnw(msg, keysAndValues...)
}

func (l *SugaredLogger) ErrorwCtx(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.withContext(ctx).Errorw(msg, keysAndValues...)
}

func (l *SugaredLogger) withContext(ctx context.Context) *zap.SugaredLogger {
	fields := logging.GetLogFields(ctx)
	if l.serviceName != "" && logging.GetServiceName(ctx) == "" {
		fields = append(fields, logging.ServiceNameKey, l.serviceName)
	}
	if len(fields) == 0 {
		return l.SugaredLogger
	}
	return l.SugaredLogger.With(fields...)
}

// Bootstrap is a console logger on stderr for use before the configuration
// has been loaded.
func Bootstrap() Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	z, err := cfg.Build()
	if err != nil {
		return NopLogger()
	}
	return &SugaredLogger{SugaredLogger: z.Sugar()}
}
