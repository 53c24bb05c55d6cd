package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tutela.org/internal/assignment"
	"tutela.org/internal/auth"
	"tutela.org/internal/jurisdiction"
	"tutela.org/internal/obs"
)

// ReadyProbe reports readiness, typically a DB ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// AuthService is the session and officer surface the HTTP layer needs.
type AuthService interface {
	Login(ctx context.Context, identityNumber, password string) (auth.TokenPair, *auth.Officer, error)
	VerifySession(ctx context.Context, raw string) (auth.Principal, error)
	Refresh(ctx context.Context, encryptedRefreshToken string) (auth.TokenPair, *auth.Officer, error)
	Logout(ctx context.Context, rawAccessToken string) error
	RegisterOfficer(ctx context.Context, o *auth.Officer, password string) error
	UpdateOfficer(ctx context.Context, id string, upd auth.OfficerUpdate) (*auth.Officer, error)
}

// AssignmentService is the assignment engine surface the HTTP layer needs.
type AssignmentService interface {
	AssignIndividual(ctx context.Context, caller auth.Principal, officerID, individualID string) (*assignment.Assignment, error)
	AssignCadastral(ctx context.Context, caller auth.Principal, officerID string, level jurisdiction.Level, scope jurisdiction.Scope) (*assignment.Assignment, error)
	Unassign(ctx context.Context, caller auth.Principal, assignmentID string) error
	IsAssigned(ctx context.Context, individualID string) (*assignment.Owner, error)
	ListIndividualAssignments(ctx context.Context, officerID string, f assignment.ListFilter, p assignment.Page) ([]assignment.IndividualRow, error)
	ListCadastralAssignments(ctx context.Context, officerID string, f assignment.ListFilter, p assignment.Page) ([]assignment.CadastralRow, error)
}

// EventSource delivers assignment lifecycle events to SSE subscribers.
type EventSource interface {
	Subscribe(ctx context.Context) <-chan assignment.Event
}

// API is the HTTP layer.
type API struct {
	mux         *http.ServeMux
	readyProbe  ReadyProbe
	version     string
	auth        AuthService
	assignments AssignmentService
	stream      EventSource

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, authSvc AuthService, assignments AssignmentService, events EventSource) *API {
	a := &API{
		mux:         http.NewServeMux(),
		readyProbe:  rp,
		version:     version,
		auth:        authSvc,
		assignments: assignments,
		stream:      events,
		rateBurst:   20,
		ratePerSec:  10,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)

	a.mux.HandleFunc("/v1/officers", a.handleOfficersCollection)
	a.mux.HandleFunc("/v1/officers/", a.handleOfficerResource)

	a.mux.HandleFunc("/v1/assignments/individuals", a.handleAssignIndividual)
	a.mux.HandleFunc("/v1/assignments/cadastral", a.handleAssignCadastral)
	a.mux.HandleFunc("/v1/assignments/stream", a.Stream)
	a.mux.HandleFunc("/v1/assignments/", a.handleAssignmentResource)
	a.mux.HandleFunc("/v1/individuals/", a.handleIndividualResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := obs.Instrument(a.withAuth(a.mux))
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tutela-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "tutela-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeErrorExtra(w, r, code, msg, nil)
}

func writeErrorExtra(w http.ResponseWriter, r *http.Request, code int, msg string, extra map[string]any) {
	payload := map[string]any{
		"error": msg,
	}
	for k, v := range extra {
		payload[k] = v
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	// An explicit zero means "use the default", same as omitting the field.
	if val == 0 {
		return def, nil
	}
	if val < min || val > max {
		return 0, errors.New("out of range")
	}
	return val, nil
}
