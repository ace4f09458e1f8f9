package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

var (
	base *slog.Logger
	once sync.Once
)

// Init configures the process-wide JSON logger. Safe to call more than once;
// only the first call takes effect.
func Init() {
	once.Do(func() {
		base = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	})
}

func Info(event string, fields map[string]interface{}) {
	logWith(slog.LevelInfo, event, nil, fields)
}

func InfoWithUser(userID, event string, fields map[string]interface{}) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["user_id"] = userID
	logWith(slog.LevelInfo, event, nil, fields)
}

func Warn(event string, fields map[string]interface{}) {
	logWith(slog.LevelWarn, event, nil, fields)
}

func Error(event string, err error, fields map[string]interface{}) {
	logWith(slog.LevelError, event, err, fields)
}

func logWith(level slog.Level, event string, err error, fields map[string]interface{}) {
	if base == nil {
		Init()
	}

	attrs := make([]any, 0, len(fields)*2+2)
	if err != nil {
		attrs = append(attrs, "error", err.Error())
	}
	for key, value := range fields {
		attrs = append(attrs, key, value)
	}

	base.Log(context.Background(), level, event, attrs...)
}
