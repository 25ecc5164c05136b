package logger

import "fmt"

// CronLogger adapts Logger to robfig/cron's Logger interface.
type CronLogger struct {
	l *Logger
}

// NewCronLogger wraps l for use with cron.WithLogger and cron.Recover.
func NewCronLogger(l *Logger) CronLogger {
	return CronLogger{l: l}
}

// Info logs routine scheduler messages at debug level; cron is chatty.
func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvToFields(keysAndValues)...)
}

// Error logs scheduler errors, including recovered panics.
func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, err, kvToFields(keysAndValues)...)
}

func kvToFields(kv []interface{}) []Field {
	fields := make([]Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, Field{Key: fmt.Sprint(kv[i]), Value: kv[i+1]})
	}
	return fields
}
