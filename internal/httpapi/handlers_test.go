package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"tutela.org/internal/assignment"
	"tutela.org/internal/auth"
	"tutela.org/internal/jurisdiction"
)

// fakeAuth implements AuthService with canned behavior per test.
type fakeAuth struct {
	loginErr   error
	sessionErr error
	principal  auth.Principal
	pair       auth.TokenPair
	officer    *auth.Officer
	loggedOut  []string
}

func (f *fakeAuth) Login(_ context.Context, identityNumber, password string) (auth.TokenPair, *auth.Officer, error) {
	if f.loginErr != nil {
		return auth.TokenPair{}, nil, f.loginErr
	}
	return f.pair, f.officer, nil
}

func (f *fakeAuth) VerifySession(_ context.Context, raw string) (auth.Principal, error) {
	if f.sessionErr != nil {
		return auth.Principal{}, f.sessionErr
	}
	return f.principal, nil
}

func (f *fakeAuth) Refresh(_ context.Context, token string) (auth.TokenPair, *auth.Officer, error) {
	if f.loginErr != nil {
		return auth.TokenPair{}, nil, f.loginErr
	}
	return f.pair, f.officer, nil
}

func (f *fakeAuth) Logout(_ context.Context, raw string) error {
	f.loggedOut = append(f.loggedOut, raw)
	return nil
}

func (f *fakeAuth) RegisterOfficer(_ context.Context, o *auth.Officer, password string) error {
	o.ID = "off-new"
	return nil
}

func (f *fakeAuth) UpdateOfficer(_ context.Context, id string, upd auth.OfficerUpdate) (*auth.Officer, error) {
	if f.officer == nil || f.officer.ID != id {
		return nil, auth.ErrNotFound
	}
	return f.officer, nil
}

// fakeAssignments implements AssignmentService with canned behavior.
type fakeAssignments struct {
	assignErr  error
	owner      *assignment.Owner
	unassigned []string
	rows       []assignment.IndividualRow
	lastFilter assignment.ListFilter
	lastPage   assignment.Page
}

func (f *fakeAssignments) AssignIndividual(_ context.Context, caller auth.Principal, officerID, individualID string) (*assignment.Assignment, error) {
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	return &assignment.Assignment{ID: "asg-1", OfficerID: officerID, Kind: assignment.TargetIndividual, IndividualID: &individualID, Status: assignment.StatusActive}, nil
}

func (f *fakeAssignments) AssignCadastral(_ context.Context, caller auth.Principal, officerID string, level jurisdiction.Level, scope jurisdiction.Scope) (*assignment.Assignment, error) {
	if f.assignErr != nil {
		return nil, f.assignErr
	}
	return &assignment.Assignment{ID: "asg-2", OfficerID: officerID, Kind: assignment.TargetCadastral, Level: &level, Scope: scope, Status: assignment.StatusActive}, nil
}

func (f *fakeAssignments) Unassign(_ context.Context, caller auth.Principal, assignmentID string) error {
	if f.assignErr != nil {
		return f.assignErr
	}
	f.unassigned = append(f.unassigned, assignmentID)
	return nil
}

func (f *fakeAssignments) IsAssigned(_ context.Context, individualID string) (*assignment.Owner, error) {
	return f.owner, nil
}

func (f *fakeAssignments) ListIndividualAssignments(_ context.Context, officerID string, fl assignment.ListFilter, p assignment.Page) ([]assignment.IndividualRow, error) {
	f.lastFilter, f.lastPage = fl, p
	return f.rows, nil
}

func (f *fakeAssignments) ListCadastralAssignments(_ context.Context, officerID string, fl assignment.ListFilter, p assignment.Page) ([]assignment.CadastralRow, error) {
	f.lastFilter, f.lastPage = fl, p
	return nil, nil
}

type testEnv struct {
	api         *API
	auth        *fakeAuth
	assignments *fakeAssignments
}

func newTestEnv() *testEnv {
	fa := &fakeAuth{
		principal: auth.Principal{
			OfficerID:      "sup-1",
			IdentityNumber: "SUP-1",
			Role:           auth.RoleSupervisor,
			Level:          jurisdiction.Central,
		},
		pair: auth.TokenPair{
			AccessToken:      "access-token",
			AccessExpiresAt:  time.Now().Add(15 * time.Minute).UTC(),
			RefreshToken:     "refresh-token",
			RefreshExpiresAt: time.Now().Add(14 * 24 * time.Hour).UTC(),
		},
		officer: &auth.Officer{
			ID:             "sup-1",
			IdentityNumber: "SUP-1",
			FullName:       "Le Thi C",
			Role:           auth.RoleSupervisor,
			Level:          jurisdiction.Central,
			Status:         auth.StatusActive,
		},
	}
	fs := &fakeAssignments{}
	api := New(ReadyProbe{}, "test", fa, fs, nil)
	return &testEnv{api: api, auth: fa, assignments: fs}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer access-token")
	}
	rr := httptest.NewRecorder()
	e.api.withAuth(e.api.mux).ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rr.Body.String())
	}
	return body
}

func TestHealthz(t *testing.T) {
	env := newTestEnv()
	rr := env.do(t, http.MethodGet, "/healthz", nil, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["service"] != "tutela-api" {
		t.Fatalf("unexpected service: %v", body["service"])
	}
}

func TestLoginReturnsSessionResponse(t *testing.T) {
	env := newTestEnv()
	rr := env.do(t, http.MethodPost, "/v1/auth/login",
		map[string]string{"identity_number": "SUP-1", "password": "s3cret"}, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["access_token"] != "access-token" || body["refresh_token"] != "refresh-token" {
		t.Fatalf("unexpected tokens: %v", body)
	}
	if body["role"] != "supervisor" || body["level"] != float64(1) {
		t.Fatalf("unexpected role/level: %v", body)
	}
	if body["role_label"] == "" || body["level_label"] == "" {
		t.Fatalf("expected labels in response: %v", body)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv()
	env.auth.loginErr = auth.ErrUnauthorized
	rr := env.do(t, http.MethodPost, "/v1/auth/login",
		map[string]string{"identity_number": "SUP-1", "password": "wrong"}, false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "invalid credentials" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}

func TestExpiredTokenCarriesRefreshHint(t *testing.T) {
	env := newTestEnv()
	env.auth.sessionErr = auth.ErrExpiredToken
	rr := env.do(t, http.MethodGet, "/v1/auth/me", nil, true)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["code"] != float64(504) {
		t.Fatalf("expected code 504 in body, got %v", body)
	}
}

func TestRevokedTokenRejected(t *testing.T) {
	env := newTestEnv()
	env.auth.sessionErr = auth.ErrRevokedToken
	rr := env.do(t, http.MethodGet, "/v1/auth/me", nil, true)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "token revoked" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}

func TestMeReturnsPrincipal(t *testing.T) {
	env := newTestEnv()
	rr := env.do(t, http.MethodGet, "/v1/auth/me", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["officer_id"] != "sup-1" || body["identity_number"] != "SUP-1" {
		t.Fatalf("unexpected principal: %v", body)
	}
}

func TestLogoutAcceptsBearerWithoutSession(t *testing.T) {
	env := newTestEnv()
	rr := env.do(t, http.MethodPost, "/v1/auth/logout", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(env.auth.loggedOut) != 1 || env.auth.loggedOut[0] != "access-token" {
		t.Fatalf("logout not forwarded: %v", env.auth.loggedOut)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	env := newTestEnv()
	rr := env.do(t, http.MethodGet, "/v1/auth/me", nil, false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAssignIndividualCreated(t *testing.T) {
	env := newTestEnv()
	rr := env.do(t, http.MethodPost, "/v1/assignments/individuals",
		map[string]string{"officer_id": "off-1", "individual_id": "ind-1"}, true)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["id"] != "asg-1" || body["kind"] != "individual" {
		t.Fatalf("unexpected assignment: %v", body)
	}
}

func TestAssignIndividualOwnedConflictExposesOwner(t *testing.T) {
	env := newTestEnv()
	env.assignments.assignErr = &assignment.OwnedError{Owner: assignment.Owner{
		OfficerID:      "off-9",
		IdentityNumber: "ID-9",
		FullName:       "Pham Van D",
	}}
	rr := env.do(t, http.MethodPost, "/v1/assignments/individuals",
		map[string]string{"officer_id": "off-1", "individual_id": "ind-1"}, true)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	owner, ok := body["owner"].(map[string]any)
	if !ok || owner["officer_id"] != "off-9" {
		t.Fatalf("expected owner in conflict body: %v", body)
	}
}

func TestAssignCadastralErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{assignment.ErrInvalidLevel, http.StatusBadRequest},
		{assignment.ErrWardNotFound, http.StatusNotFound},
		{assignment.ErrSelfAssignment, http.StatusConflict},
		{assignment.ErrAlreadyAssigned, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		env := newTestEnv()
		env.assignments.assignErr = tc.err
		rr := env.do(t, http.MethodPost, "/v1/assignments/cadastral",
			map[string]any{"officer_id": "off-1", "level": 3, "scope": map[string]any{"city_id": 5, "district_id": 9}}, true)
		if rr.Code != tc.want {
			t.Fatalf("err %v: expected %d, got %d", tc.err, tc.want, rr.Code)
		}
	}
}

func TestUnassignRemoves(t *testing.T) {
	env := newTestEnv()
	rr := env.do(t, http.MethodDelete, "/v1/assignments/asg-1", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(env.assignments.unassigned) != 1 || env.assignments.unassigned[0] != "asg-1" {
		t.Fatalf("unassign not forwarded: %v", env.assignments.unassigned)
	}
}

func TestOwnerLookup(t *testing.T) {
	env := newTestEnv()
	rr := env.do(t, http.MethodGet, "/v1/individuals/ind-1/owner", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["assigned"] != false {
		t.Fatalf("expected assigned=false, got %v", body)
	}

	env.assignments.owner = &assignment.Owner{OfficerID: "off-1", IdentityNumber: "ID-1", FullName: "Tran Van A"}
	rr = env.do(t, http.MethodGet, "/v1/individuals/ind-1/owner", nil, true)
	body = decodeBody(t, rr)
	if body["assigned"] != true {
		t.Fatalf("expected assigned=true, got %v", body)
	}
	owner, ok := body["owner"].(map[string]any)
	if !ok || owner["officer_id"] != "off-1" {
		t.Fatalf("expected owner payload, got %v", body)
	}
}

func TestListAssignmentsQueryParsing(t *testing.T) {
	env := newTestEnv()
	env.assignments.rows = []assignment.IndividualRow{{AssignmentID: "asg-1", IndividualID: "ind-1"}}

	params := url.Values{}
	params.Set("identity_number", "0790")
	params.Set("city_id", "5")
	params.Set("created_from", "2025-06-01")
	params.Set("page", "2")
	params.Set("size", "25")

	rr := env.do(t, http.MethodGet, "/v1/officers/off-1/assignments/individuals?"+params.Encode(), nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	f, p := env.assignments.lastFilter, env.assignments.lastPage
	if f.IdentityNumber != "0790" {
		t.Fatalf("identity filter not forwarded: %+v", f)
	}
	if f.CityID == nil || *f.CityID != 5 {
		t.Fatalf("city filter not forwarded: %+v", f)
	}
	if f.CreatedFrom == nil {
		t.Fatalf("date filter not forwarded: %+v", f)
	}
	if p.Number != 2 || p.Size != 25 {
		t.Fatalf("pagination not forwarded: %+v", p)
	}

	body := decodeBody(t, rr)
	if body["page"] != float64(2) || body["size"] != float64(25) {
		t.Fatalf("unexpected pagination echo: %v", body)
	}
}

func TestListAssignmentsZeroPageSizeUsesDefaults(t *testing.T) {
	env := newTestEnv()
	rr := env.do(t, http.MethodGet, "/v1/officers/off-1/assignments/individuals?page=0&size=0", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// Explicit zeros behave like omitted fields.
	p := env.assignments.lastPage
	if p.Number != 1 || p.Size != 10 {
		t.Fatalf("expected default pagination, got %+v", p)
	}
	body := decodeBody(t, rr)
	if body["page"] != float64(1) || body["size"] != float64(10) {
		t.Fatalf("unexpected pagination echo: %v", body)
	}
}

func TestListAssignmentsRejectsBadQuery(t *testing.T) {
	env := newTestEnv()
	rr := env.do(t, http.MethodGet, "/v1/officers/off-1/assignments/individuals?city_id=abc", nil, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/v1/officers/off-1/assignments/individuals?size=500", nil, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized page, got %d", rr.Code)
	}
}

func TestCreateOfficerRequiresScopeCoverage(t *testing.T) {
	env := newTestEnv()
	// Central supervisor passes the guard.
	rr := env.do(t, http.MethodPost, "/v1/officers", map[string]any{
		"identity_number": "ID-2002",
		"full_name":       "Nguyen Thi B",
		"password":        "s3cret-pass",
		"role":            "officer",
		"level":           4,
		"scope":           map[string]any{"city_id": 5, "district_id": 9, "ward_id": 3},
	}, true)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	// A plain officer principal is refused.
	env.auth.principal.Role = auth.RoleOfficer
	rr = env.do(t, http.MethodPost, "/v1/officers", map[string]any{
		"identity_number": "ID-2003",
		"full_name":       "Pham Van D",
		"password":        "s3cret-pass",
		"role":            "officer",
		"level":           4,
		"scope":           map[string]any{"city_id": 5, "district_id": 9, "ward_id": 3},
	}, true)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
