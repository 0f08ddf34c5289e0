package server

import (
	"context"
	"encoding/json"

	"github.com/viant/jsonrpc"
	"github.com/viant/jsonrpc/transport"
	"github.com/viant/mcp-protocol/logger"
	"github.com/viant/mcp-protocol/schema"
)

// Logger forwards session-scoped records to the connected agent as
// notifications/message, honoring the threshold the agent set via
// logging/setLevel. The level pointer is shared with the session handler.
type Logger struct {
	name     string
	level    *schema.LoggingLevel
	notifier transport.Notifier
}

// NewLogger creates a notification logger bound to a session transport.
func NewLogger(name string, level *schema.LoggingLevel, notifier transport.Notifier) *Logger {
	return &Logger{
		name:     name,
		level:    level,
		notifier: notifier,
	}
}

// Logger derives a named sub-logger sharing the session's level and transport.
func (l *Logger) Logger(name string) logger.Logger {
	return &Logger{
		name:     name,
		level:    l.level,
		notifier: l.notifier,
	}
}

func (l *Logger) emit(ctx context.Context, level schema.LoggingLevel, data any) error {
	if l.level == nil || l.level.Ordinal() > level.Ordinal() {
		// below the agent's threshold
		return nil
	}
	notification := &jsonrpc.Notification{Method: schema.MethodNotificationMessage}
	params := schema.LoggingMessageNotificationParams{
		Level:  level,
		Logger: &l.name,
		Data:   data,
	}
	var err error
	if notification.Params, err = json.Marshal(params); err != nil {
		return err
	}
	return l.notifier.Notify(ctx, notification)
}

func (l *Logger) Debug(ctx context.Context, data interface{}) error {
	return l.emit(ctx, schema.LoggingLevelDebug, data)
}

func (l *Logger) Info(ctx context.Context, data interface{}) error {
	return l.emit(ctx, schema.Info, data)
}

func (l *Logger) Notice(ctx context.Context, data interface{}) error {
	return l.emit(ctx, schema.Notice, data)
}

func (l *Logger) Warning(ctx context.Context, data interface{}) error {
	return l.emit(ctx, schema.Warning, data)
}

func (l *Logger) Error(ctx context.Context, data interface{}) error {
	return l.emit(ctx, schema.Error, data)
}

func (l *Logger) Critical(ctx context.Context, data interface{}) error {
	return l.emit(ctx, schema.Critical, data)
}

func (l *Logger) Alert(ctx context.Context, data interface{}) error {
	return l.emit(ctx, schema.Alert, data)
}

func (l *Logger) Emergency(ctx context.Context, data interface{}) error {
	return l.emit(ctx, schema.Emergency, data)
}
