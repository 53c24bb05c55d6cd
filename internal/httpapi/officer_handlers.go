package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tutela.org/internal/audit"
	"tutela.org/internal/auth"
	"tutela.org/internal/jurisdiction"
)

type createOfficerRequest struct {
	IdentityNumber string             `json:"identity_number"`
	FullName       string             `json:"full_name"`
	Password       string             `json:"password"`
	Role           auth.Role          `json:"role"`
	Level          jurisdiction.Level `json:"level"`
	Scope          jurisdiction.Scope `json:"scope"`
}

type updateOfficerRequest struct {
	FullName *string             `json:"full_name"`
	Role     *auth.Role          `json:"role"`
	Level    *jurisdiction.Level `json:"level"`
	Scope    *jurisdiction.Scope `json:"scope"`
	Status   *string             `json:"status"`
}

func (a *API) handleOfficersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createOfficer(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleOfficerResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/officers/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.Contains(path, "/assignments/") {
		parts := strings.SplitN(path, "/assignments/", 2)
		officerID, kind := parts[0], parts[1]
		if officerID == "" {
			writeError(w, r, http.StatusNotFound, "officer not found")
			return
		}
		a.handleOfficerAssignments(w, r, officerID, kind)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		a.updateOfficer(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodPatch)
	}
}

func (a *API) createOfficer(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing session")
		return
	}

	var req createOfficerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := auth.CheckScope(caller, req.Scope); err != nil {
		handleAuthError(w, r, err)
		return
	}

	officer := &auth.Officer{
		IdentityNumber: strings.TrimSpace(req.IdentityNumber),
		FullName:       strings.TrimSpace(req.FullName),
		Role:           req.Role,
		Level:          req.Level,
		Scope:          req.Scope,
	}
	if err := a.auth.RegisterOfficer(r.Context(), officer, req.Password); err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "officer.created", map[string]any{
		"officer_id":      officer.ID,
		"identity_number": officer.IdentityNumber,
	})
	writeJSON(w, http.StatusCreated, officer)
}

func (a *API) updateOfficer(w http.ResponseWriter, r *http.Request, id string) {
	caller, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing session")
		return
	}

	var req updateOfficerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.Scope != nil {
		if err := auth.CheckScope(caller, *req.Scope); err != nil {
			handleAuthError(w, r, err)
			return
		}
	}

	officer, err := a.auth.UpdateOfficer(r.Context(), id, auth.OfficerUpdate{
		FullName: req.FullName,
		Role:     req.Role,
		Level:    req.Level,
		Scope:    req.Scope,
		Status:   req.Status,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "officer.updated", map[string]any{
		"officer_id": officer.ID,
	})
	writeJSON(w, http.StatusOK, officer)
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
