package event

import (
	"errors"
	"testing"
)

func TestParseCreate(t *testing.T) {
	p := MustParser()
	ev, err := p.Parse([]byte(`{"type":"create","externalId":" T1 ","name":"Fix bug","priority":"High","points":80,"ownerHint":"alex"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c, ok := ev.(Create)
	if !ok {
		t.Fatalf("expected Create, got %T", ev)
	}
	if c.ExternalID != "T1" || c.Name != "Fix bug" || c.Points != 80 || c.OwnerHint != "alex" {
		t.Fatalf("unexpected create %+v", c)
	}
}

func TestParseTargets(t *testing.T) {
	p := MustParser()
	ev, err := p.Parse([]byte(`{"type":"reassign","entityId":"ent_1","newOwner":"milya"}`))
	if err != nil {
		t.Fatalf("parse reassign: %v", err)
	}
	if r := ev.(Reassign); r.EntityID != "ent_1" || r.NewOwner != "milya" {
		t.Fatalf("unexpected reassign %+v", r)
	}

	ev, err = p.Parse([]byte(`{"type":"complete","externalId":"T1"}`))
	if err != nil {
		t.Fatalf("parse complete: %v", err)
	}
	if c := ev.(Complete); c.ExternalID != "T1" || c.EventKind() != KindComplete {
		t.Fatalf("unexpected complete %+v", c)
	}

	ev, err = p.Parse([]byte(`{"type":"delete","entityId":"ent_1","privileged":true}`))
	if err != nil {
		t.Fatalf("parse delete: %v", err)
	}
	if d := ev.(Delete); !d.Privileged {
		t.Fatalf("expected privileged delete")
	}
}

func TestParseRejectsUnknownShapes(t *testing.T) {
	p := MustParser()
	payloads := []string{
		`not json`,
		`{}`,
		`{"type":"explode","entityId":"x"}`,
		`{"type":"create","name":"missing external id"}`,
		`{"type":"create","externalId":"T1"}`,
		`{"type":"create","externalId":"T1","name":"x","surprise":true}`,
		`{"type":"create","externalId":"T1","name":"x","points":-5}`,
		`{"type":"create","externalId":"T1","name":"   "}`,
		`{"type":"reassign","entityId":"ent_1"}`,
		`{"type":"complete"}`,
		`{"type":"delete","privileged":"yes","entityId":"x"}`,
	}
	for _, raw := range payloads {
		_, err := p.Parse([]byte(raw))
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected validation error for %s, got %v", raw, err)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) || len(ve.Problems) == 0 {
			t.Fatalf("expected problems for %s", raw)
		}
	}
}
