package utils

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"user-registry/config"
)

// NewLogger builds the service logger from config
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// queue drains entries on a single goroutine. When the buffer is full the
// entry is handled synchronously by overflow instead of blocking the caller.
type queue[T any] struct {
	ch       chan T
	done     chan struct{}
	mu       sync.RWMutex
	closed   bool
	handle   func(T)
	overflow func(T)
}

func newQueue[T any](size int, handle, overflow func(T)) *queue[T] {
	q := &queue[T]{
		ch:       make(chan T, size),
		done:     make(chan struct{}),
		handle:   handle,
		overflow: overflow,
	}
	go func() {
		defer close(q.done)
		for entry := range q.ch {
			q.handle(entry)
		}
	}()
	return q
}

func (q *queue[T]) push(entry T) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.overflow(entry)
		return
	}
	select {
	case q.ch <- entry:
	default:
		q.overflow(entry)
	}
}

// close stops accepting entries and waits until the buffer is drained
func (q *queue[T]) close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	<-q.done
}

// AuditLogger handles asynchronous logging of registry operations
type AuditLogger struct {
	q *queue[LogEntry]
}

// LogEntry represents a single audit log entry
type LogEntry struct {
	Action    string
	UserID    string
	RequestID string
	Details   string
	Timestamp time.Time
}

func (e LogEntry) fields() []zap.Field {
	return []zap.Field{
		zap.String("action", e.Action),
		zap.String("user_id", e.UserID),
		zap.String("request_id", e.RequestID),
		zap.String("details", e.Details),
		zap.Time("time", e.Timestamp),
	}
}

// NewAuditLogger starts an audit logger writing to logger
func NewAuditLogger(logger *zap.Logger, buffer int) *AuditLogger {
	audit := logger.Named("audit")
	return &AuditLogger{
		q: newQueue(buffer,
			func(e LogEntry) { audit.Info("user action", e.fields()...) },
			func(e LogEntry) { audit.Warn("audit buffer overflow", e.fields()...) },
		),
	}
}

// LogUserAction records an action against userID
func (a *AuditLogger) LogUserAction(requestID, action, userID, details string) {
	a.q.push(LogEntry{
		Action:    action,
		UserID:    userID,
		RequestID: requestID,
		Details:   details,
		Timestamp: time.Now(),
	})
}

// Close flushes pending entries
func (a *AuditLogger) Close() {
	a.q.close()
}

// NotificationService handles async user notifications
type NotificationService struct {
	q *queue[Notification]
}

// Notification represents a notification to be sent
type Notification struct {
	UserID  string
	Type    string
	Message string
}

// NewNotificationService starts a notifier. Delivery is a log line; there is
// no outbound channel yet.
func NewNotificationService(logger *zap.Logger, buffer int) *NotificationService {
	notify := logger.Named("notification")
	send := func(n Notification) {
		notify.Info("notification sent",
			zap.String("type", n.Type),
			zap.String("user_id", n.UserID),
			zap.String("message", n.Message))
	}
	return &NotificationService{
		q: newQueue(buffer, send, func(n Notification) {
			notify.Warn("notification overflow", zap.String("type", n.Type), zap.String("user_id", n.UserID))
		}),
	}
}

// SendNotification queues a notification for userID
func (n *NotificationService) SendNotification(userID, notifType, message string) {
	n.q.push(Notification{UserID: userID, Type: notifType, Message: message})
}

// Close flushes pending notifications
func (n *NotificationService) Close() {
	n.q.close()
}

// ErrorHandler handles async error reporting
type ErrorHandler struct {
	q *queue[ErrorEntry]
}

// ErrorEntry represents an error to be logged
type ErrorEntry struct {
	Operation string
	RequestID string
	Error     error
	Context   string
	Timestamp time.Time
}

// NewErrorHandler starts an error reporter writing to logger
func NewErrorHandler(logger *zap.Logger, buffer int) *ErrorHandler {
	errs := logger.Named("error")
	write := func(e ErrorEntry) {
		errs.Error(e.Context,
			zap.String("operation", e.Operation),
			zap.String("request_id", e.RequestID),
			zap.Error(e.Error),
			zap.Time("time", e.Timestamp))
	}
	return &ErrorHandler{q: newQueue(buffer, write, write)}
}

// HandleError records err raised by operation
func (e *ErrorHandler) HandleError(requestID, operation string, err error, context string) {
	e.q.push(ErrorEntry{
		Operation: operation,
		RequestID: requestID,
		Error:     err,
		Context:   context,
		Timestamp: time.Now(),
	})
}

// HandleErrorf records err with a formatted context
func (e *ErrorHandler) HandleErrorf(requestID, operation string, err error, format string, args ...interface{}) {
	e.HandleError(requestID, operation, err, fmt.Sprintf(format, args...))
}

// Close flushes pending errors
func (e *ErrorHandler) Close() {
	e.q.close()
}

// Reporters bundles the async sinks handlers write to
type Reporters struct {
	Audit         *AuditLogger
	Notifications *NotificationService
	Errors        *ErrorHandler
}

// NewReporters starts all three sinks on logger
func NewReporters(logger *zap.Logger, buffer int) *Reporters {
	return &Reporters{
		Audit:         NewAuditLogger(logger, buffer),
		Notifications: NewNotificationService(logger, buffer),
		Errors:        NewErrorHandler(logger, buffer),
	}
}

// Close drains every sink
func (r *Reporters) Close() {
	r.Audit.Close()
	r.Notifications.Close()
	r.Errors.Close()
}
