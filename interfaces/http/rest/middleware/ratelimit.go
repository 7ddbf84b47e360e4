package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"mindboard/pkg/common"
	pkgerrors "mindboard/pkg/errors"
	"mindboard/pkg/ratelimit"
)

// RateLimit bounds requests per session. It must run after RequireSession.
// A limiter that cannot decide lets the request through.
func RateLimit(limiter ratelimit.Limiter, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, _ := common.GetSessionID(r.Context())

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter failed, allowing request",
					zap.String("sessionId", key),
					zap.Error(err),
				)
			}
			if !allowed {
				errs.Handle(w, r, pkgerrors.NewRateLimitError(limiter.RetryAfter(key)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
