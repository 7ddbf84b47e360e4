package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"mindboard/pkg/common"
	pkgerrors "mindboard/pkg/errors"
)

// maxSessionIDLength bounds the header so it stays a sane map key
const maxSessionIDLength = 128

// RequireSession rejects requests without an X-Session-ID header and stores
// the session id in the request context
func RequireSession(errs *pkgerrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get(common.SessionHeader)
			switch {
			case sessionID == "":
				errs.Handle(w, r, pkgerrors.NewValidationError(common.SessionHeader+" header is required"))
				return
			case len(sessionID) > maxSessionIDLength:
				errs.Handle(w, r, pkgerrors.NewValidationError(common.SessionHeader+" header is too long").
					WithDetail("max", maxSessionIDLength))
				return
			}

			ctx := common.WithSessionID(r.Context(), sessionID)
			ctx = common.WithRequestID(ctx, middleware.GetReqID(r.Context()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
