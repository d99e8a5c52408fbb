package logger

// Logger is the structured logging surface shared by every component of the sync engine.
// Key/value pairs follow zap's sugared convention.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	With(keysAndValues ...interface{}) Logger
	WithPrefix(prefix string) Logger
	Sync()
}
