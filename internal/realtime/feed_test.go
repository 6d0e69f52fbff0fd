package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientResyncsAndAppliesDeltas(t *testing.T) {
	hub := NewHub(16, nil)
	snapshot := func(ctx context.Context, teamID string) ([]EntityState, error) {
		return []EntityState{{ID: "e1", TeamID: teamID, Name: "First", Revision: 1}}, nil
	}
	feed := NewFeedServer(hub, snapshot, "*", nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		feed.Serve(w, r, "team_a")
	}))
	defer srv.Close()

	rec := NewReconciler(nil)
	client := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), nil, rec, nil)
	updates := make(chan Message, 8)
	client.OnUpdate = func(_ *Reconciler, msg Message) { updates <- msg }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	waitFor := func(kind string) {
		t.Helper()
		for {
			select {
			case msg := <-updates:
				if msg.Type == kind {
					return
				}
			case <-time.After(3 * time.Second):
				t.Fatalf("timed out waiting for %s", kind)
			}
		}
	}
	waitFor(MessageSnapshot)

	state := EntityState{ID: "e1", TeamID: "team_a", Name: "Renamed", Revision: 2}
	_ = hub.Publish(ctx, Delta{EntityID: "e1", TeamID: "team_a", Revision: 2, Changed: []string{FieldName}, State: &state})
	waitFor(MessageDelta)

	var name string
	if err := client.Do(ctx, func(r *Reconciler) {
		e, _ := r.Entity("e1")
		name = e.Name
	}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if name != "Renamed" {
		t.Fatalf("expected renamed entity, got %q", name)
	}
}
