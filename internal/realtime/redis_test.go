package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNewRedisBroker(t *testing.T) {
	s := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://"+s.Addr(), NewHub(4, nil), nil)
	if err != nil {
		t.Fatalf("NewRedisBroker failed: %v", err)
	}
	defer b.Close()
	if err := b.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestNewRedisBrokerBadURL(t *testing.T) {
	if _, err := NewRedisBroker("not-a-url", NewHub(4, nil), nil); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRedisBrokerForwardsToLocalHub(t *testing.T) {
	s := miniredis.RunT(t)
	hub := NewHub(4, nil)
	b, err := NewRedisBroker("redis://"+s.Addr(), hub, nil)
	if err != nil {
		t.Fatalf("NewRedisBroker failed: %v", err)
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	sub := hub.Subscribe("team_a")
	defer hub.Unsubscribe(sub)

	state := EntityState{ID: "e1", TeamID: "team_a", Name: "Fix bug", Revision: 3}
	if err := b.Publish(ctx, Delta{EntityID: "e1", TeamID: "team_a", Revision: 3, Changed: []string{FieldName}, State: &state}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case d := <-sub.Deltas():
		if d.Revision != 3 || d.State == nil || d.State.Name != "Fix bug" {
			t.Fatalf("unexpected delta %+v", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected delta via redis")
	}
}
