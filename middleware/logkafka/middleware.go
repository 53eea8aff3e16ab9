package logkafka

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go_trial/foodhub/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type LogEntry struct {
	Level     string            `json:"level"`
	Module    string            `json:"module"`
	Message   string            `json:"message"`
	TraceID   string            `json:"trace_id"`
	Env       string            `json:"env"`
	Timestamp string            `json:"timestamp"`
	Extra     map[string]string `json:"extra"`
}

// Log sends an entry without blocking the request on the broker.
func (s *Sink) Log(level, module, message, traceID string, extra map[string]string) {
	entry := LogEntry{
		Level:     level,
		Module:    module,
		Message:   message,
		TraceID:   traceID,
		Env:       s.env,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Extra:     extra,
	}
	b, err := json.Marshal(entry)
	if err != nil {
		s.log.Warn("encode request log", "error", err)
		return
	}
	if err := s.write(context.Background(), b); err != nil {
		s.log.Warn("ship request log", "error", err)
	}
}

type userSlotKey struct{}

type userSlot struct{ id string }

// SetUserID records the authenticated user for the request log. It is a
// no-op outside the logging middleware.
func SetUserID(ctx context.Context, id string) {
	if slot, ok := ctx.Value(userSlotKey{}).(*userSlot); ok {
		slot.id = id
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

// traceID uses the caller's X-Trace-ID, then an active span, then a fresh
// uuid.
func traceID(r *http.Request) string {
	if id := r.Header.Get("X-Trace-ID"); id != "" {
		return id
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.New().String()
}

func (s *Sink) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		tid := traceID(r)
		w.Header().Set("X-Trace-ID", tid)
		slot := &userSlot{}
		r = r.WithContext(context.WithValue(r.Context(), userSlotKey{}, slot))

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		userID := slot.id
		if userID == "" {
			userID = "anonymous"
		}
		extra := map[string]string{
			"user_id":     userID,
			"ip":          utils.ClientIP(r),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      strconv.Itoa(rw.statusCode),
			"duration_ms": strconv.FormatInt(duration.Milliseconds(), 10),
			"user_agent":  r.UserAgent(),
		}

		level := "info"
		if rw.statusCode >= http.StatusInternalServerError {
			level = "error"
		}
		s.Log(level, "http", "request completed", tid, extra)
	})
}
