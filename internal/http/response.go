package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"kharcha/internal/auth"
	"kharcha/internal/log"
	"kharcha/internal/services"
	"kharcha/internal/storage"
)

// errBadRequest marks bodies that could not be decoded at all.
var errBadRequest = errors.New("malformed request")

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response",
			log.FieldComponent, log.ComponentHTTP,
			log.FieldError, err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrUnauthenticated),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status and a JSON body. Internal errors are logged
// and their text is not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(),
			"Request failed", err, log.ComponentHTTP, r.Method+" "+r.URL.Path, log.NewFields())
		msg = http.StatusText(status)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="kharcha"`)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentSecurity,
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later"})
}

// authenticated rejects requests without a valid bearer token and stores the
// claims on the request context. Edit rights are checked by the service.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		claims, err := s.tokens.Validate(token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := auth.WithClaims(r.Context(), claims)
		logger := log.FromContext(ctx).With(log.FieldUserID, claims.UserID)
		ctx = context.WithValue(ctx, log.LoggerContextKey, logger)
		next(w, r.WithContext(ctx))
	}
}
