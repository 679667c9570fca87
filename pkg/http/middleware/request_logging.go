package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yurykabanov/wpbackup/pkg/appcontext"
)

type responseRecorder struct {
	http.ResponseWriter
	status int
	length int
}

func (w *responseRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.length += n
	return n, err
}

// requestLogLevel keeps periodic scrapes out of the log unless they fail.
func requestLogLevel(status int) logrus.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return logrus.ErrorLevel
	case status >= http.StatusBadRequest:
		return logrus.WarnLevel
	}

	return logrus.DebugLevel
}

func WithRequestLogging(next http.Handler, logger logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startAt := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		entry := appcontext.LoggerFromContext(logger, r.Context()).WithFields(logrus.Fields{
			"remote_addr":    r.RemoteAddr,
			"method":         r.Method,
			"request_uri":    r.RequestURI,
			"status":         rec.status,
			"content_length": rec.length,
			"user_agent":     r.UserAgent(),
			"duration":       time.Since(startAt).String(),
		})

		switch requestLogLevel(rec.status) {
		case logrus.ErrorLevel:
			entry.Error("Request failed")
		case logrus.WarnLevel:
			entry.Warn("Request rejected")
		default:
			entry.Debug("Request served")
		}
	})
}
