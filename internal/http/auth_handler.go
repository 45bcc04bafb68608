package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chessmate/internal/auth"
	"chessmate/internal/exporter"
)

// AuthHandler exposes the session lifecycle over HTTP.
type AuthHandler struct {
	service      *auth.Service
	logger       *slog.Logger
	exporter     *exporter.CSVExporter
	secureCookie bool
}

// NewAuthHandler creates a handler. Cookies are Secure with SameSite=None outside development.
func NewAuthHandler(service *auth.Service, env string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:      service,
		logger:       logger,
		exporter:     exporter.NewCSVExporter(),
		secureCookie: !strings.EqualFold(env, "development"),
	}
}

type sessionResponse struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	Name         string  `json:"name"`
	Picture      *string `json:"picture"`
	SessionToken string  `json:"session_token"`
}

type profileResponse struct {
	Email           string  `json:"email"`
	Name            string  `json:"name"`
	Picture         *string `json:"picture"`
	Age             *int    `json:"age"`
	Country         *string `json:"country"`
	ProfileComplete bool    `json:"profile_complete"`
	TotalGames      int     `json:"total_games"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	Draws           int     `json:"draws"`
}

type userSummary struct {
	profileResponse
	CreatedAt time.Time `json:"created_at"`
}

type userListResponse struct {
	TotalUsers int           `json:"total_users"`
	Users      []userSummary `json:"users"`
}

func newProfileResponse(p auth.Profile) profileResponse {
	return profileResponse{
		Email:           p.Email,
		Name:            p.Name,
		Picture:         optionalString(p.Picture),
		Age:             p.Age,
		Country:         p.Country,
		ProfileComplete: p.ProfileComplete,
		TotalGames:      p.Stats.TotalGames,
		Wins:            p.Stats.Wins,
		Losses:          p.Stats.Losses,
		Draws:           p.Stats.Draws,
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateSession redeems the X-Session-ID exchange id and issues the session cookie.
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CreateSession(r.Context(), r.Header.Get(auth.ExchangeHeader))
	if err != nil {
		h.logFailure("create session", err)
		writeAuthError(w, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(result.SessionToken, h.service.SessionTTL()))
	writeJSON(w, http.StatusOK, sessionResponse{
		ID:           result.ID,
		Email:        result.Email,
		Name:         result.Name,
		Picture:      optionalString(result.Picture),
		SessionToken: result.SessionToken,
	})
}

// Verify returns the caller's profile.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Verify(r.Context(), tokenFromRequest(r))
	if err != nil {
		h.logFailure("verify session", err)
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(*profile))
}

// UpdateProfile applies age and/or country from query parameters or a JSON body.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	update, parseErr := parseProfileUpdate(w, r)
	if parseErr != nil {
		// Credential failures take precedence over input errors.
		if _, err := h.service.Verify(r.Context(), token); err != nil {
			writeAuthError(w, err)
			return
		}
		if errors.Is(parseErr, errPayloadTooLarge) || errors.Is(parseErr, errInvalidBody) {
			writeJSONError(w, parseErr)
			return
		}
		writeError(w, http.StatusBadRequest, parseErr.Error())
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), token, update)
	if err != nil {
		h.logFailure("update profile", err)
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(*profile))
}

// Logout deletes the caller's session, if any, and clears the cookie. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context(), tokenFromRequest(r))

	clearCookie := h.sessionCookie("", 0)
	clearCookie.MaxAge = -1
	clearCookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, clearCookie)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// ListUsers enumerates users without an authentication gate.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users", "error", err)
		writeAuthError(w, err)
		return
	}

	resp := userListResponse{TotalUsers: len(users), Users: make([]userSummary, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, userSummary{
			profileResponse: newProfileResponse(u.Profile()),
			CreatedAt:       u.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExportUsers streams the same user listing as CSV.
func (h *AuthHandler) ExportUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("export users", "error", err)
		writeAuthError(w, err)
		return
	}

	filename := fmt.Sprintf("chessmate-users-%s.csv", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := h.exporter.Export(w, users); err != nil {
		h.logger.Error("write users csv", "error", err)
	}
}

func (h *AuthHandler) logFailure(op string, err error) {
	status, _ := statusForAuthError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, "error", err, "kind", auth.Kind(err))
		return
	}
	h.logger.Debug(op, "error", err, "kind", auth.Kind(err))
}

func (h *AuthHandler) sessionCookie(value string, ttl time.Duration) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if h.secureCookie {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: sameSite,
		Secure:   h.secureCookie,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
	}
}

var errInvalidBody = errors.New("invalid request body")

// parseProfileUpdate reads age and country from the JSON body, when present,
// then lets non-empty query parameters override them.
func parseProfileUpdate(w http.ResponseWriter, r *http.Request) (auth.ProfileUpdate, error) {
	var update auth.ProfileUpdate

	if r.Body != nil && r.ContentLength != 0 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var payload struct {
			Age     *int    `json:"age"`
			Country *string `json:"country"`
		}
		if err := decodeJSONBody(w, r, &payload); err != nil && !errors.Is(err, io.EOF) {
			if errors.Is(err, errPayloadTooLarge) {
				return auth.ProfileUpdate{}, err
			}
			return auth.ProfileUpdate{}, errInvalidBody
		}
		update.Age = payload.Age
		if payload.Country != nil {
			if country := strings.TrimSpace(*payload.Country); country != "" {
				update.Country = &country
			}
		}
	}

	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("age")); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			return auth.ProfileUpdate{}, errors.New("age must be an integer")
		}
		update.Age = &age
	}
	if country := strings.TrimSpace(query.Get("country")); country != "" {
		update.Country = &country
	}

	if update.Age != nil && (*update.Age < 0 || *update.Age > 150) {
		return auth.ProfileUpdate{}, errors.New("age must be between 0 and 150")
	}
	return update, nil
}
