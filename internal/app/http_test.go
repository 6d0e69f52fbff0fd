package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"missioncontrol/api/internal/auth"
	"missioncontrol/api/internal/config"
	"missioncontrol/api/internal/event"
)

const testTokenSecret = "test-secret"

func newTestHTTPServer(t *testing.T) (*httptest.Server, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	cfg := config.Config{
		TokenSecret:   testTokenSecret,
		WebhookSecret: "hook",
		CORSOrigin:    "*",
		DefaultTeamID: "team_a",
	}
	srv := httptest.NewServer(NewHTTPServer(env.service, cfg, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, env
}

func tokenFor(t *testing.T, sub, role string) string {
	t.Helper()
	return tokenForTeam(t, sub, role, "team_a")
}

func tokenForTeam(t *testing.T, sub, role, team string) string {
	t.Helper()
	token, _, err := auth.Issue([]byte(testTokenSecret), sub, sub, role, team, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doRequest(t *testing.T, method, url, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	payload := map[string]any{}
	_ = json.NewDecoder(res.Body).Decode(&payload)
	return res, payload
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	res, payload := doRequest(t, http.MethodGet, srv.URL+"/api/health", "", nil)
	if res.StatusCode != http.StatusOK || payload["ok"] != true {
		t.Fatalf("expected ok health, got %d %v", res.StatusCode, payload)
	}
	if res.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestReadyEndpointReportsChecks(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	res, payload := doRequest(t, http.MethodGet, srv.URL+"/api/ready", "", nil)
	if res.StatusCode != http.StatusOK || payload["status"] != "ready" {
		t.Fatalf("expected ready, got %d %v", res.StatusCode, payload)
	}
}

func TestWebhookEventLifecycle(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	hook := map[string]string{"X-Webhook-Secret": "hook"}

	res, payload := doRequest(t, http.MethodPost, srv.URL+"/api/events",
		`{"type":"create","externalId":"T1","name":"Fix bug","ownerHint":"alex"}`, hook)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", res.StatusCode, payload)
	}
	entity := payload["entity"].(map[string]any)
	entityID := entity["id"].(string)

	res, payload = doRequest(t, http.MethodPost, srv.URL+"/api/events",
		`{"type":"create","externalId":"T1","name":"Fix bug","ownerHint":"alex"}`, hook)
	if res.StatusCode != http.StatusOK || payload["alreadyProcessed"] != true {
		t.Fatalf("expected already processed, got %d %v", res.StatusCode, payload)
	}

	res, payload = doRequest(t, http.MethodPost, srv.URL+"/api/entities/"+entityID+"/complete", "", bearer(tokenFor(t, "alex", "agent")))
	if res.StatusCode != http.StatusOK || payload["outcome"] != "completed" {
		t.Fatalf("expected completion, got %d %v", res.StatusCode, payload)
	}

	res, payload = doRequest(t, http.MethodGet, srv.URL+"/api/teams/team_a/balance", "", bearer(tokenFor(t, "viewer", "viewer")))
	if res.StatusCode != http.StatusOK || payload["totalPoints"].(float64) != 30 {
		t.Fatalf("expected balance 30, got %d %v", res.StatusCode, payload)
	}

	res, payload = doRequest(t, http.MethodPost, srv.URL+"/api/entities/"+entityID+"/reassign", `{"newOwner":"milya"}`, bearer(tokenFor(t, "alex", "agent")))
	if res.StatusCode != http.StatusConflict || payload["code"] != "CONFLICT" {
		t.Fatalf("expected conflict, got %d %v", res.StatusCode, payload)
	}

	res, _ = doRequest(t, http.MethodDelete, srv.URL+"/api/entities/"+entityID+"?privileged=true", "", bearer(tokenFor(t, "alex", "agent")))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected agent destroy to be forbidden, got %d", res.StatusCode)
	}
	res, payload = doRequest(t, http.MethodDelete, srv.URL+"/api/entities/"+entityID+"?privileged=true", "", bearer(tokenFor(t, "root", "admin")))
	if res.StatusCode != http.StatusOK || payload["outcome"] != "deleted" {
		t.Fatalf("expected admin destroy, got %d %v", res.StatusCode, payload)
	}
}

func TestEventAuthentication(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	body := `{"type":"create","externalId":"T1","name":"Fix bug"}`

	res, _ := doRequest(t, http.MethodPost, srv.URL+"/api/events", body, map[string]string{"X-Webhook-Secret": "wrong"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad secret, got %d", res.StatusCode)
	}
	res, _ = doRequest(t, http.MethodPost, srv.URL+"/api/events", body, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}
	res, _ = doRequest(t, http.MethodPost, srv.URL+"/api/events", body, bearer(tokenFor(t, "v", "viewer")))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer, got %d", res.StatusCode)
	}
	res, _ = doRequest(t, http.MethodPost, srv.URL+"/api/events", body, bearer(tokenFor(t, "alex", "agent")))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected agent to create, got %d", res.StatusCode)
	}
}

func TestInvalidEventIsValidationError(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	res, payload := doRequest(t, http.MethodPost, srv.URL+"/api/events", `{"type":"create","name":"No id"}`,
		map[string]string{"X-Webhook-Secret": "hook"})
	if res.StatusCode != http.StatusUnprocessableEntity || payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected 422, got %d %v", res.StatusCode, payload)
	}
	if _, ok := payload["details"].([]any); !ok {
		t.Fatalf("expected problem list in details, got %v", payload["details"])
	}
}

func TestEditAndSearchRoutes(t *testing.T) {
	srv, env := newTestHTTPServer(t)
	created, err := env.service.Create(context.Background(), event.Create{ExternalID: "T1", Name: "Fix login bug", OwnerHint: "alex"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	agent := bearer(tokenFor(t, "alex", "agent"))

	res, payload := doRequest(t, http.MethodPatch, srv.URL+"/api/entities/"+created.Entity.ID, `{"description":"oauth redirect"}`, agent)
	if res.StatusCode != http.StatusOK || payload["entity"].(map[string]any)["description"] != "oauth redirect" {
		t.Fatalf("expected edit, got %d %v", res.StatusCode, payload)
	}

	res, payload = doRequest(t, http.MethodGet, srv.URL+"/api/search?q=login", "", agent)
	if res.StatusCode != http.StatusOK || payload["backend"] != "sql" || payload["total"].(float64) != 1 {
		t.Fatalf("expected one sql hit, got %d %v", res.StatusCode, payload)
	}

	res, payload = doRequest(t, http.MethodGet, srv.URL+"/api/entities", "", agent)
	if res.StatusCode != http.StatusOK || len(payload["entities"].([]any)) != 1 {
		t.Fatalf("expected snapshot of one entity, got %d %v", res.StatusCode, payload)
	}

	res, _ = doRequest(t, http.MethodGet, srv.URL+"/api/entities/missing", "", agent)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
}

func TestCreditRoutes(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	agent := bearer(tokenFor(t, "alex", "agent"))
	body := `{"payeeId":"alex","sourceId":"bonus-1","label":"Bonus","points":10}`

	res, payload := doRequest(t, http.MethodPost, srv.URL+"/api/credits", body, agent)
	if res.StatusCode != http.StatusCreated || payload["outcome"] != "applied" {
		t.Fatalf("expected applied credit, got %d %v", res.StatusCode, payload)
	}
	res, payload = doRequest(t, http.MethodPost, srv.URL+"/api/credits", body, agent)
	if res.StatusCode != http.StatusOK || payload["outcome"] != "already_credited" {
		t.Fatalf("expected replay to be already credited, got %d %v", res.StatusCode, payload)
	}

	res, _ = doRequest(t, http.MethodPost, srv.URL+"/api/corrections", `{"delta":-3}`, agent)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected agent correction to be forbidden, got %d", res.StatusCode)
	}
	res, _ = doRequest(t, http.MethodPost, srv.URL+"/api/corrections", `{"delta":-3,"label":"typo"}`, bearer(tokenFor(t, "root", "admin")))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected admin correction, got %d", res.StatusCode)
	}

	res, payload = doRequest(t, http.MethodGet, srv.URL+"/api/audit", "", agent)
	if res.StatusCode != http.StatusOK || payload["consistent"] != true {
		t.Fatalf("expected consistent audit, got %d %v", res.StatusCode, payload)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestHTTPServer(t)
	res, payload := doRequest(t, http.MethodGet, srv.URL+"/api/nope", "", nil)
	if res.StatusCode != http.StatusNotFound || payload["code"] != "NOT_FOUND" {
		t.Fatalf("expected 404, got %d %v", res.StatusCode, payload)
	}
}

func TestTeamClaimIsEnforced(t *testing.T) {
	srv, env := newTestHTTPServer(t)
	created, err := env.service.Create(context.Background(), event.Create{ExternalID: "T1", Name: "Fix bug", OwnerHint: "alex"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	entityURL := srv.URL + "/api/entities/" + created.Entity.ID
	outsider := bearer(tokenForTeam(t, "olga", "agent", "team_b"))

	forbidden := []struct {
		method, url, body string
	}{
		{http.MethodGet, srv.URL + "/api/teams/team_a/balance", ""},
		{http.MethodGet, srv.URL + "/api/teams/team_a/transactions", ""},
		{http.MethodGet, srv.URL + "/api/entities?team=team_a", ""},
		{http.MethodGet, srv.URL + "/api/search?q=bug&team=team_a", ""},
		{http.MethodGet, entityURL, ""},
		{http.MethodPatch, entityURL, `{"name":"mine now"}`},
		{http.MethodPost, entityURL + "/complete", ""},
		{http.MethodPost, srv.URL + "/api/credits", `{"teamId":"team_a","payeeId":"olga","sourceId":"s1","points":5}`},
		{http.MethodPost, srv.URL + "/api/events", `{"type":"complete","externalId":"T1"}`},
	}
	for _, tc := range forbidden {
		res, payload := doRequest(t, tc.method, tc.url, tc.body, outsider)
		if res.StatusCode != http.StatusForbidden || payload["code"] != "FORBIDDEN" {
			t.Fatalf("%s %s: expected 403, got %d %v", tc.method, tc.url, res.StatusCode, payload)
		}
	}

	got, err := env.service.Entity(context.Background(), created.Entity.ID)
	if err != nil || got.Completed || got.Name != "Fix bug" {
		t.Fatalf("expected entity untouched, got %+v %v", got, err)
	}

	res, payload := doRequest(t, http.MethodGet, srv.URL+"/api/entities", "", outsider)
	if res.StatusCode != http.StatusOK || len(payload["entities"].([]any)) != 0 {
		t.Fatalf("expected own empty team, got %d %v", res.StatusCode, payload)
	}

	admin := bearer(tokenForTeam(t, "root", "admin", "team_b"))
	res, _ = doRequest(t, http.MethodGet, srv.URL+"/api/teams/team_a/balance", "", admin)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected admin to read any team, got %d", res.StatusCode)
	}
}
