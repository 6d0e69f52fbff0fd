package realtime

import (
	"context"
	"testing"
	"time"
)

func TestHubRoutesByTeam(t *testing.T) {
	h := NewHub(4, nil)
	a := h.Subscribe("team_a")
	b := h.Subscribe("team_b")
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	_ = h.Publish(context.Background(), Delta{EntityID: "e1", TeamID: "team_a", Revision: 1})

	select {
	case d := <-a.Deltas():
		if d.EntityID != "e1" {
			t.Fatalf("unexpected delta %+v", d)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected delta for team_a")
	}
	select {
	case d := <-b.Deltas():
		t.Fatalf("team_b should not receive %+v", d)
	default:
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewHub(1, nil)
	sub := h.Subscribe("team_a")
	ctx := context.Background()
	_ = h.Publish(ctx, Delta{EntityID: "e1", TeamID: "team_a", Revision: 1})
	_ = h.Publish(ctx, Delta{EntityID: "e1", TeamID: "team_a", Revision: 2})

	if h.Count() != 0 {
		t.Fatalf("expected slow subscriber removed, got %d", h.Count())
	}
	<-sub.Deltas()
	if _, ok := <-sub.Deltas(); ok {
		t.Fatalf("expected channel closed after drop")
	}
	h.Unsubscribe(sub)
}
