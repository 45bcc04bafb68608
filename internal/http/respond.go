package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"chessmate/internal/auth"
)

const maxJSONBodyBytes int64 = 64 << 10

var errPayloadTooLarge = errors.New("payload too large")

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeErrorCode(w, status, msg, "")
}

func writeErrorCode(w http.ResponseWriter, status int, msg, code string) {
	if code == "" {
		code = defaultErrorCode(status)
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func defaultErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return "internal"
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	limited := http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	defer func() {
		_ = limited.Close()
	}()

	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w (max %d bytes)", errPayloadTooLarge, maxErr.Limit)
		}
		return err
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, err error) {
	if errors.Is(err, errPayloadTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
}

// statusForAuthError maps an auth error to its transport status and client message.
func statusForAuthError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, auth.ErrInvalidCredential):
		return http.StatusUnauthorized, "Invalid session"
	case errors.Is(err, auth.ErrSessionExpired):
		return http.StatusUnauthorized, "Session expired"
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, auth.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, "Authentication service timeout"
	case errors.Is(err, auth.ErrMalformedUpstreamResponse):
		return http.StatusServiceUnavailable, "Authentication service returned an invalid response"
	case errors.Is(err, auth.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "Authentication service unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	status, msg := statusForAuthError(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeErrorCode(w, status, msg, auth.Kind(err))
}
