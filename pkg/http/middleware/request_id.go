package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/yurykabanov/wpbackup/pkg/appcontext"
)

func WithRequestId(next http.Handler, nextRequestId func() string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get("X-Request-Id")

		if requestId == "" {
			requestId = nextRequestId()
		}

		ctx := appcontext.WithRequestId(r.Context(), requestId)

		w.Header().Set("X-Request-Id", requestId)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func DefaultRequestIdProvider() string {
	return uuid.New().String()
}
