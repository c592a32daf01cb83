package log

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger     *logrus.Logger
	loggerOnce sync.Once
)

// get initializes the shared logger on first use. All log output goes to
// stderr so that stdout stays clean for the event listing itself.
func get() *logrus.Logger {
	loggerOnce.Do(func() {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.InfoLevel)
	})
	return logger
}

// SetDebug switches the minimum level between info and debug.
func SetDebug(on bool) {
	if on {
		get().SetLevel(logrus.DebugLevel)
		return
	}
	get().SetLevel(logrus.InfoLevel)
}

func Debug(msg string, kv ...any) {
	get().WithFields(fields(kv...)).Debug(msg)
}

func Info(msg string, kv ...any) {
	get().WithFields(fields(kv...)).Info(msg)
}

func Error(msg string, err error, kv ...any) {
	get().WithError(err).WithFields(fields(kv...)).Error(msg)
}

// fields converts a flat key/value list into logrus fields. Keys must be
// strings; a trailing odd value is ignored.
func fields(kv ...any) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		f[key] = kv[i+1]
	}
	return f
}
