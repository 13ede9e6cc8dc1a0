package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SpawnTemplate describes a group of entities created at startup.
type SpawnTemplate struct {
	Name     string  `yaml:"name"`
	Count    int     `yaml:"count"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	RandomX  float64 `yaml:"randomx"`
	RandomY  float64 `yaml:"randomy"`
	Speed    float64 `yaml:"speed"`
	HP       int     `yaml:"hp"`
	MaxHP    int     `yaml:"max_hp"`
	Regen    int     `yaml:"regen"`    // hp per frame, 0 = none
	Burning  int     `yaml:"burning"`  // frames, 0 = not burning
	Lifetime int     `yaml:"lifetime"` // frames, 0 = immortal
}

type spawnListFile struct {
	Spawns []SpawnTemplate `yaml:"spawns"`
}

// LoadSpawnList loads spawn_list.yaml.
func LoadSpawnList(path string) ([]SpawnTemplate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn list: %w", err)
	}
	var f spawnListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spawn list: %w", err)
	}
	for i, s := range f.Spawns {
		if s.Count < 0 {
			return nil, fmt.Errorf("spawn list entry %d (%s): negative count", i, s.Name)
		}
		if s.MaxHP == 0 {
			f.Spawns[i].MaxHP = s.HP
		}
	}
	return f.Spawns, nil
}
