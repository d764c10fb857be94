package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/matiasleandrokruk/hubrag/internal/infra/logging"
)

// RequestLogger writes one structured line per request. 5xx responses are
// logged at error level, 4xx at warn, the rest at info. Place it after
// chi's RequestID so the id is available.
func RequestLogger(log *logging.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logging.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			// AuthMiddleware runs further down the chain, so the user id is
			// read back from the request it hands on.
			var userID string
			next.ServeHTTP(ww, r.WithContext(withUserSink(r.Context(), &userID)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			l := log.Log()
			evt := l.Info()
			switch {
			case status >= 500:
				evt = l.Error()
			case status >= 400:
				evt = l.Warn()
			}
			evt.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Int("duration_ms", int(time.Since(start).Milliseconds())).
				Str("request_id", chimw.GetReqID(r.Context())).
				Str("user_id", userID).
				Str("outcome", outcomeFromStatus(status)).
				Msg("http request")
		})
	}
}

// outcomeFromStatus buckets a status for logs and metrics.
func outcomeFromStatus(status int) string {
	switch {
	case status >= 200 && status < 400:
		return "success"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "denied"
	default:
		return "error"
	}
}

type userSinkKey struct{}

// withUserSink lets AuthMiddleware report the resolved user id back to the logger.
func withUserSink(ctx context.Context, dst *string) context.Context {
	return context.WithValue(ctx, userSinkKey{}, dst)
}

func reportUser(ctx context.Context, userID string) {
	if dst, ok := ctx.Value(userSinkKey{}).(*string); ok {
		*dst = userID
	}
}
