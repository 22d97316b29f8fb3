package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()
	called := false
	h := LogMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, "HTTP Request", entry.Message)
	assert.Equal(t, "/ws", entry.Data["path"])
	assert.Equal(t, http.MethodGet, entry.Data["method"])
}

func TestConnectionLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()

	LogConnect(logger, "tcp", "10.0.0.1:5000")
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, "tcp", hook.LastEntry().Data["transport"])

	LogDisconnect(logger, "tcp", "10.0.0.1:5000", nil)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.NotContains(t, hook.LastEntry().Data, "error")

	LogDisconnect(logger, "ws", "10.0.0.1:5000", errors.New("reset"))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Data, "error")
}
