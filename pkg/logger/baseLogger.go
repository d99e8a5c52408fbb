package logger

import (
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type BaseLogger struct {
	sugar  *zap.SugaredLogger
	prefix string
}

// New builds a logger for the given mode: "prod" emits JSON, anything else the development console format.
func New(mode string) (*BaseLogger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &BaseLogger{sugar: zapLogger.Sugar()}, nil
}

// NewLogger writes JSON lines to writer under the given prefix.
func NewLogger(writer io.Writer, prefix string) *BaseLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(writer), zapcore.DebugLevel)
	return &BaseLogger{
		sugar:  zap.New(core).Sugar().Named(prefix),
		prefix: prefix,
	}
}

func NewNop() *BaseLogger {
	return &BaseLogger{sugar: zap.NewNop().Sugar()}
}

func (l *BaseLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, redact(keysAndValues)...)
}

func (l *BaseLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, redact(keysAndValues)...)
}

func (l *BaseLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, redact(keysAndValues)...)
}

func (l *BaseLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, redact(keysAndValues)...)
}

func (l *BaseLogger) With(keysAndValues ...interface{}) Logger {
	return &BaseLogger{
		sugar:  l.sugar.With(redact(keysAndValues)...),
		prefix: l.prefix,
	}
}

func (l *BaseLogger) WithPrefix(extraPrefix string) Logger {
	prefix := extraPrefix
	if l.prefix != "" {
		prefix = l.prefix + "." + extraPrefix
	}
	return &BaseLogger{
		sugar:  l.sugar.Named(extraPrefix),
		prefix: prefix,
	}
}

func (l *BaseLogger) Prefix() string {
	return l.prefix
}

func (l *BaseLogger) Sync() {
	_ = l.sugar.Sync()
}

func redact(kv []interface{}) []interface{} {
	if len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key, _ := kv[i].(string)
		if isSecretKey(key) {
			out = append(out, key, "[REDACTED]")
			continue
		}
		out = append(out, kv[i], kv[i+1])
	}
	return out
}

func isSecretKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.Contains(key, "secret"),
		strings.Contains(key, "token"),
		strings.Contains(key, "password"),
		strings.Contains(key, "authorization"):
		return true
	default:
		return false
	}
}
