package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tutela.org/internal/audit"
	"tutela.org/internal/auth"
	"tutela.org/internal/jurisdiction"
)

type loginRequest struct {
	IdentityNumber string `json:"identity_number"`
	Password       string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	auth.TokenPair
	Role       auth.Role          `json:"role"`
	RoleLabel  string             `json:"role_label"`
	Level      jurisdiction.Level `json:"level"`
	LevelLabel string             `json:"level_label"`
}

func newSessionResponse(pair auth.TokenPair, officer *auth.Officer) sessionResponse {
	return sessionResponse{
		TokenPair:  pair,
		Role:       officer.Role,
		RoleLabel:  officer.Role.Label(),
		Level:      officer.Level,
		LevelLabel: officer.Level.Label(),
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.IdentityNumber) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "identity_number and password are required")
		return
	}

	pair, officer, err := a.auth.Login(r.Context(), req.IdentityNumber, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"officer_id":      officer.ID,
		"identity_number": officer.IdentityNumber,
	})
	writeJSON(w, http.StatusOK, newSessionResponse(pair, officer))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, officer, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			writeError(w, r, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"officer_id": officer.ID,
	})
	writeJSON(w, http.StatusOK, newSessionResponse(pair, officer))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	// Expired tokens are accepted here; the service still checks the
	// signature before blacklisting.
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}

	if err := a.auth.Logout(r.Context(), token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "revoked"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing session")
		return
	}
	writeJSON(w, http.StatusOK, principal)
}
