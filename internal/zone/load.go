package zone

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileZone struct {
	X             float64 `yaml:"x"`
	Y             float64 `yaml:"y"`
	TrackerUserID string  `yaml:"tracker_user_id"`
}

type file struct {
	Fallback   *Point              `yaml:"fallback"`
	Unassigned *Point              `yaml:"unassigned"`
	Owners     map[string]fileZone `yaml:"owners"`
}

// Load reads a YAML zone table. Missing anchors default to the built-in ones.
func Load(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zones file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Directory, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("zones.yaml: %w", err)
	}
	if len(f.Owners) == 0 {
		return nil, fmt.Errorf("zones.yaml: no owners defined")
	}
	fallback := MissionControl()
	if f.Fallback != nil {
		fallback = *f.Fallback
	}
	unassigned := Point{X: Centre, Y: Centre}
	if f.Unassigned != nil {
		unassigned = *f.Unassigned
	}
	zones := make([]Zone, 0, len(f.Owners))
	for name, z := range f.Owners {
		owner := Normalize(name)
		if owner == Unassigned {
			return nil, fmt.Errorf("zones.yaml: empty owner name")
		}
		zones = append(zones, Zone{Owner: owner, Base: Point{X: z.X, Y: z.Y}, TrackerUserID: z.TrackerUserID})
	}
	return NewDirectory(zones, fallback, unassigned), nil
}
