package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/davidahmann/callrelay/internal/logging"
)

const requestIDHeader = "X-Request-Id"

func NewRouter(handler *Handler) http.Handler {
	r := mux.NewRouter()
	r.Use(requestLogger)

	r.HandleFunc("/webhook", handler.Webhook).Methods(http.MethodPost)
	r.HandleFunc("/debug", handler.Debug).Methods(http.MethodPost)
	r.HandleFunc("/", handler.Index).Methods(http.MethodGet)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestLogger tags each request with an id and a scoped logger, and logs
// the outcome once the handler returns.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		entry := logging.NewLogger("http").WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
		})
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()

		next.ServeHTTP(rec, r.WithContext(logging.WithLogger(r.Context(), entry)))

		entry.WithFields(logrus.Fields{
			"status":   rec.status,
			"duration": time.Since(started).String(),
		}).Info("request handled")
	})
}
