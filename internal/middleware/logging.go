// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// LogMiddleware is an HTTP middleware that logs incoming requests using Logrus.
// Logs the method, path, and duration of each request.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := r.URL.Path
			method := r.Method

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   method,
				"path":     path,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Info("HTTP Request")
		})
	}
}

// LogConnect logs a client connecting over the named transport ("tcp" or "ws").
func LogConnect(logger logrus.FieldLogger, transport, remoteAddr string) {
	logger.WithFields(logrus.Fields{
		"transport": transport,
		"remote":    remoteAddr,
	}).Info("client connected")
}

// LogDisconnect logs a client leaving. A nil err means a clean close.
func LogDisconnect(logger logrus.FieldLogger, transport, remoteAddr string, err error) {
	fields := logrus.Fields{
		"transport": transport,
		"remote":    remoteAddr,
	}
	if err != nil {
		fields["error"] = err
		logger.WithFields(fields).Warn("client disconnected")
		return
	}
	logger.WithFields(fields).Info("client disconnected")
}
