package zone

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultDirectoryAnchors(t *testing.T) {
	d := Default()
	cases := map[Owner]Point{
		"quentin": {X: 8000, Y: 5000},
		"alex":    {X: 7100, Y: 2900},
		"armel":   {X: 5000, Y: 2000},
		"milya":   {X: 2900, Y: 2900},
		"hugues":  {X: 2000, Y: 5000},
	}
	for owner, want := range cases {
		got := d.ZoneOf(owner)
		if got.DistanceTo(want) > 1e-9 {
			t.Fatalf("%s: expected %+v, got %+v", owner, want, got)
		}
	}
}

func TestZoneOfUnknownOwnerUsesMissionControl(t *testing.T) {
	d := Default()
	got := d.ZoneOf("somebody-new")
	if got != MissionControl() {
		t.Fatalf("expected mission control anchor, got %+v", got)
	}
	if d.Known("somebody-new") {
		t.Fatalf("expected unknown owner")
	}
}

func TestZoneOfNormalizesOwner(t *testing.T) {
	d := Default()
	if d.ZoneOf("  Alex ") != d.ZoneOf("alex") {
		t.Fatalf("expected normalized lookup")
	}
	if d.ZoneOf(Unassigned) != (Point{X: Centre, Y: Centre}) {
		t.Fatalf("expected unassigned anchor at centre")
	}
}

func TestLoadZonesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	raw := []byte(`
fallback: {x: 10, y: 20}
owners:
  Alex: {x: 100, y: 200, tracker_user_id: "u-alex"}
  milya: {x: 300, y: 400}
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	d, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := d.ZoneOf("alex"); got != (Point{X: 100, Y: 200}) {
		t.Fatalf("unexpected alex zone %+v", got)
	}
	if got := d.ZoneOf("nobody"); got != (Point{X: 10, Y: 20}) {
		t.Fatalf("unexpected fallback %+v", got)
	}
	if id, ok := d.TrackerUserID("alex"); !ok || id != "u-alex" {
		t.Fatalf("expected tracker id u-alex, got %q %v", id, ok)
	}
	if _, ok := d.TrackerUserID("milya"); ok {
		t.Fatalf("expected no tracker id for milya")
	}
	if owners := d.Owners(); len(owners) != 2 || owners[0] != "alex" {
		t.Fatalf("unexpected owners %v", owners)
	}
}

func TestParseRejectsEmptyTable(t *testing.T) {
	if _, err := Parse([]byte("owners: {}\n")); err == nil {
		t.Fatalf("expected error for empty owners")
	}
}
