package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newTrackerServer(t *testing.T, accept func(attempt int) bool) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		requests = append(requests, recordedRequest{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body})
		attempt := len(requests)
		mu.Unlock()
		if accept(attempt) {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"validation_error"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestNotifyFallsBackToSecondShape(t *testing.T) {
	srv, requests := newTrackerServer(t, func(attempt int) bool { return attempt == 2 })
	n := NewHTTPNotifier(srv.URL, "secret", time.Second)

	if err := n.Notify(context.Background(), Update{ExternalID: "T1", Action: ActionCompleted}); err != nil {
		t.Fatalf("expected success on second shape, got %v", err)
	}
	if len(*requests) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(*requests))
	}
	first := (*requests)[0]
	if first.method != http.MethodPatch || first.path != "/pages/T1" || first.auth != "Bearer secret" {
		t.Fatalf("unexpected request %+v", first)
	}
	status := (*requests)[1].body["properties"].(map[string]any)["Status"].(map[string]any)
	if _, ok := status["status"]; !ok {
		t.Fatalf("expected status-typed shape second, got %+v", status)
	}
}

func TestNotifyTriesEachShapeOnce(t *testing.T) {
	srv, requests := newTrackerServer(t, func(int) bool { return false })
	n := NewHTTPNotifier(srv.URL, "", time.Second)

	err := n.Notify(context.Background(), Update{ExternalID: "T9", Action: ActionDestroyed})
	var nerr *NotifyError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NotifyError, got %v", err)
	}
	if len(nerr.Attempts) != 2 || len(*requests) != 2 {
		t.Fatalf("expected exactly one attempt per shape, got %d", len(*requests))
	}
	if archived, _ := (*requests)[1].body["archived"].(bool); !archived {
		t.Fatalf("expected archive fallback, got %+v", (*requests)[1].body)
	}
}

func TestReassignRequiresAssigneeRef(t *testing.T) {
	n := NewHTTPNotifier("http://127.0.0.1:0", "", time.Second)
	err := n.Notify(context.Background(), Update{ExternalID: "T1", Action: ActionReassigned})
	if !errors.Is(err, ErrNoAssigneeRef) {
		t.Fatalf("expected ErrNoAssigneeRef, got %v", err)
	}
	shapes, err := Shapes(Update{ExternalID: "T1", Action: ActionReassigned, AssigneeRef: "u-1"})
	if err != nil || len(shapes) != 2 {
		t.Fatalf("unexpected shapes %v %v", shapes, err)
	}
}

func TestNoopNotifier(t *testing.T) {
	if err := (Noop{}).Notify(context.Background(), Update{}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
