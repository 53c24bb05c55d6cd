package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tutela.org/internal/assignment"
	"tutela.org/internal/audit"
	"tutela.org/internal/auth"
	"tutela.org/internal/jurisdiction"
	"tutela.org/internal/obs"
)

type assignIndividualRequest struct {
	OfficerID    string `json:"officer_id"`
	IndividualID string `json:"individual_id"`
}

type assignCadastralRequest struct {
	OfficerID string             `json:"officer_id"`
	Level     jurisdiction.Level `json:"level"`
	Scope     jurisdiction.Scope `json:"scope"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
}

func (a *API) handleAssignIndividual(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing session")
		return
	}

	var req assignIndividualRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	asg, err := a.assignments.AssignIndividual(r.Context(), caller, req.OfficerID, req.IndividualID)
	if err != nil {
		obs.ObserveAssignmentOp("assign_individual", "error")
		handleAssignmentError(w, r, err)
		return
	}
	obs.ObserveAssignmentOp("assign_individual", "ok")

	_ = audit.LogEvent(r.Context(), "assignment.individual.created", map[string]any{
		"assignment_id": asg.ID,
		"officer_id":    asg.OfficerID,
		"individual_id": req.IndividualID,
	})
	writeJSON(w, http.StatusCreated, asg)
}

func (a *API) handleAssignCadastral(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing session")
		return
	}

	var req assignCadastralRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	asg, err := a.assignments.AssignCadastral(r.Context(), caller, req.OfficerID, req.Level, req.Scope)
	if err != nil {
		obs.ObserveAssignmentOp("assign_cadastral", "error")
		handleAssignmentError(w, r, err)
		return
	}
	obs.ObserveAssignmentOp("assign_cadastral", "ok")

	_ = audit.LogEvent(r.Context(), "assignment.cadastral.created", map[string]any{
		"assignment_id": asg.ID,
		"officer_id":    asg.OfficerID,
		"level":         req.Level.Label(),
	})
	writeJSON(w, http.StatusCreated, asg)
}

func (a *API) handleAssignmentResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/assignments/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	caller, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing session")
		return
	}

	if err := a.assignments.Unassign(r.Context(), caller, id); err != nil {
		obs.ObserveAssignmentOp("unassign", "error")
		handleAssignmentError(w, r, err)
		return
	}
	obs.ObserveAssignmentOp("unassign", "ok")

	_ = audit.LogEvent(r.Context(), "assignment.removed", map[string]any{
		"assignment_id": id,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "removed"})
}

func (a *API) handleIndividualResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/individuals/")
	id, ok := strings.CutSuffix(path, "/owner")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	owner, err := a.assignments.IsAssigned(r.Context(), id)
	if err != nil {
		handleAssignmentError(w, r, err)
		return
	}
	if owner == nil {
		writeJSON(w, http.StatusOK, map[string]any{"assigned": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assigned": true, "owner": owner})
}

func (a *API) handleOfficerAssignments(w http.ResponseWriter, r *http.Request, officerID, kind string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	filter, page, err := parseListQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page = page.Normalize()

	switch kind {
	case "individuals":
		rows, err := a.assignments.ListIndividualAssignments(r.Context(), officerID, filter, page)
		if err != nil {
			handleAssignmentError(w, r, err)
			return
		}
		if rows == nil {
			rows = []assignment.IndividualRow{}
		}
		writeJSON(w, http.StatusOK, listResponse[assignment.IndividualRow]{
			Items: rows, Page: page.Number, Size: page.Size,
		})
	case "cadastral":
		rows, err := a.assignments.ListCadastralAssignments(r.Context(), officerID, filter, page)
		if err != nil {
			handleAssignmentError(w, r, err)
			return
		}
		if rows == nil {
			rows = []assignment.CadastralRow{}
		}
		writeJSON(w, http.StatusOK, listResponse[assignment.CadastralRow]{
			Items: rows, Page: page.Number, Size: page.Size,
		})
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func parseListQuery(r *http.Request) (assignment.ListFilter, assignment.Page, error) {
	q := r.URL.Query()
	var f assignment.ListFilter

	f.IdentityNumber = strings.TrimSpace(q.Get("identity_number"))
	f.FullName = strings.TrimSpace(q.Get("full_name"))

	for _, param := range []struct {
		key string
		dst **int64
	}{
		{"city_id", &f.CityID},
		{"district_id", &f.DistrictID},
		{"ward_id", &f.WardID},
	} {
		raw := strings.TrimSpace(q.Get(param.key))
		if raw == "" {
			continue
		}
		val, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, assignment.Page{}, errors.New(param.key + " must be an integer")
		}
		*param.dst = &val
	}

	for _, param := range []struct {
		key string
		dst **time.Time
	}{
		{"created_from", &f.CreatedFrom},
		{"created_to", &f.CreatedTo},
	} {
		raw := strings.TrimSpace(q.Get(param.key))
		if raw == "" {
			continue
		}
		val, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, assignment.Page{}, errors.New(param.key + " must be a date (YYYY-MM-DD)")
		}
		*param.dst = &val
	}

	pageNum, err := parsePositiveInt(q.Get("page"), 1, 1, 1_000_000)
	if err != nil {
		return f, assignment.Page{}, errors.New("page " + err.Error())
	}
	size, err := parsePositiveInt(q.Get("size"), 10, 1, 100)
	if err != nil {
		return f, assignment.Page{}, errors.New("size " + err.Error())
	}
	return f, assignment.Page{Number: pageNum, Size: size}, nil
}

func handleAssignmentError(w http.ResponseWriter, r *http.Request, err error) {
	var owned *assignment.OwnedError
	switch {
	case errors.Is(err, assignment.ErrInvalidInput), errors.Is(err, assignment.ErrInvalidLevel):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, assignment.ErrOfficerNotFound),
		errors.Is(err, assignment.ErrIndividualNotFound),
		errors.Is(err, assignment.ErrAssignmentNotFound),
		errors.Is(err, assignment.ErrCityNotFound),
		errors.Is(err, assignment.ErrDistrictNotFound),
		errors.Is(err, assignment.ErrWardNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.As(err, &owned):
		writeErrorExtra(w, r, http.StatusConflict, err.Error(),
			map[string]any{"owner": owned.Owner})
	case errors.Is(err, assignment.ErrAlreadyAssigned),
		errors.Is(err, assignment.ErrSelfAssignment):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
