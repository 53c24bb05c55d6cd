package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// End-to-end smoke run against a live API: login as the seeded supervisor,
// bind an officer to an individual, verify the owner lookup, unbind, logout.
func main() {
	base := os.Getenv("TUTELA_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	identity := envOr("TUTELA_SMOKE_IDENTITY", "100000000001")
	password := envOr("TUTELA_SMOKE_PASSWORD", "password")
	officerID := envOr("TUTELA_SMOKE_OFFICER", "off-seed-0001")
	individualID := envOr("TUTELA_SMOKE_INDIVIDUAL", "ind-seed-0001")

	client := &http.Client{Timeout: 10 * time.Second}

	var session struct {
		AccessToken string `json:"access_token"`
	}
	call(client, http.MethodPost, base+"/v1/auth/login", "", map[string]string{
		"identity_number": identity,
		"password":        password,
	}, http.StatusOK, &session)
	if session.AccessToken == "" {
		log.Fatal("login returned no access token")
	}

	var created struct {
		ID string `json:"id"`
	}
	call(client, http.MethodPost, base+"/v1/assignments/individuals", session.AccessToken, map[string]string{
		"officer_id":    officerID,
		"individual_id": individualID,
	}, http.StatusCreated, &created)
	if created.ID == "" {
		log.Fatal("assignment response missing id")
	}

	var ownerResp struct {
		Assigned bool `json:"assigned"`
		Owner    struct {
			OfficerID string `json:"officer_id"`
		} `json:"owner"`
	}
	call(client, http.MethodGet, base+"/v1/individuals/"+individualID+"/owner", session.AccessToken, nil, http.StatusOK, &ownerResp)
	if !ownerResp.Assigned || ownerResp.Owner.OfficerID != officerID {
		log.Fatalf("owner lookup mismatch: %+v", ownerResp)
	}

	call(client, http.MethodDelete, base+"/v1/assignments/"+created.ID, session.AccessToken, nil, http.StatusOK, nil)

	call(client, http.MethodGet, base+"/v1/individuals/"+individualID+"/owner", session.AccessToken, nil, http.StatusOK, &ownerResp)
	if ownerResp.Assigned {
		log.Fatalf("individual still owned after unassign: %+v", ownerResp)
	}

	call(client, http.MethodPost, base+"/v1/auth/logout", session.AccessToken, nil, http.StatusOK, nil)

	fmt.Printf("✅ tutela-api smoke test passed: assignment=%s\n", created.ID)
}

func call(client *http.Client, method, url, token string, body any, wantStatus int, out any) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			log.Fatalf("marshal %s %s: %v", method, url, err)
		}
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("new request %s %s: %v", method, url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		var msg bytes.Buffer
		_, _ = msg.ReadFrom(resp.Body)
		log.Fatalf("%s %s: status %d, want %d: %s", method, url, resp.StatusCode, wantStatus, msg.String())
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
