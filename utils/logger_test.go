package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"user-registry/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestAuditLogger_FlushesOnClose(t *testing.T) {
	logger, logs := observed()
	audit := NewAuditLogger(logger, 16)

	audit.LogUserAction("req-1", "CREATE", "12345678Z", "")
	audit.LogUserAction("req-2", "DELETE", "12345678Z", "")
	audit.Close()

	entries := logs.FilterMessage("user action").All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "CREATE", fields["action"])
	assert.Equal(t, "12345678Z", fields["user_id"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "audit", entries[0].LoggerName)
}

func TestAuditLogger_AfterCloseFallsBackToOverflow(t *testing.T) {
	logger, logs := observed()
	audit := NewAuditLogger(logger, 1)
	audit.Close()
	audit.Close()

	audit.LogUserAction("", "LATE", "12345678Z", "")

	assert.Equal(t, 1, logs.FilterMessage("audit buffer overflow").Len())
	assert.Equal(t, 0, logs.FilterMessage("user action").Len())
}

func TestNotificationService(t *testing.T) {
	logger, logs := observed()
	notify := NewNotificationService(logger, 4)

	notify.SendNotification("12345678Z", "WELCOME", "User account created successfully")
	notify.Close()

	entries := logs.FilterMessage("notification sent").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "WELCOME", entries[0].ContextMap()["type"])
}

func TestErrorHandler(t *testing.T) {
	logger, logs := observed()
	errs := NewErrorHandler(logger, 4)

	errs.HandleErrorf("req-9", "CreateUser", errors.New("boom"), "attempt %d", 2)
	errs.Close()

	entries := logs.FilterMessage("attempt 2").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "boom", entries[0].ContextMap()["error"])
	assert.Equal(t, "CreateUser", entries[0].ContextMap()["operation"])
}

func TestReporters_Close(t *testing.T) {
	logger, logs := observed()
	r := NewReporters(logger, 8)
	r.Audit.LogUserAction("", "LIST_USERS", "", "")
	r.Notifications.SendNotification("12345678Z", "PROFILE_UPDATED", "updated")
	r.Errors.HandleError("", "UpdateUser", errors.New("bad"), "validation failed")
	r.Close()

	assert.Equal(t, 3, logs.Len())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger(config.LoggingConfig{Level: "warn", Development: true})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger(config.LoggingConfig{Level: "verbose"})
	assert.Error(t, err)
}
