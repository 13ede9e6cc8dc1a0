package data

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/l1jgo/ecscore/internal/core/system"
)

// SystemEntry declares ordering for one already-registered system.
type SystemEntry struct {
	Name   string   `yaml:"name"`
	Phase  string   `yaml:"phase"` // first, pre_update, update, post_update, last
	Labels []string `yaml:"labels"`
	Before []string `yaml:"before"`
	After  []string `yaml:"after"`
	RunIf  string   `yaml:"run_if"` // Lua condition name
}

type manifestFile struct {
	Systems []SystemEntry `yaml:"systems"`
}

// Manifest is a schedule layout kept in data instead of code.
type Manifest struct {
	Systems []SystemEntry
}

// ConditionSource resolves run_if names to conditions.
type ConditionSource interface {
	Condition(name string) (system.Condition, error)
}

// LoadManifest loads schedule.yaml.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule manifest: %w", err)
	}
	m, err := ParseManifest(raw)
	if err != nil {
		return nil, fmt.Errorf("parse schedule manifest %s: %w", path, err)
	}
	return m, nil
}

func ParseManifest(raw []byte) (*Manifest, error) {
	var f manifestFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	var errs error
	seen := make(map[string]bool, len(f.Systems))
	for i, e := range f.Systems {
		switch {
		case e.Name == "":
			errs = multierr.Append(errs, fmt.Errorf("systems[%d]: missing name", i))
		case seen[e.Name]:
			errs = multierr.Append(errs, fmt.Errorf("systems[%d]: duplicate entry for %s", i, e.Name))
		}
		seen[e.Name] = true
		if e.Phase != "" {
			if _, err := system.ParsePhase(e.Phase); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("systems[%d]: %w", i, err))
			}
		}
	}
	if errs != nil {
		return nil, errs
	}
	return &Manifest{Systems: f.Systems}, nil
}

// Apply configures each listed system on s. Every failing entry is reported;
// entries that succeed are applied regardless.
func (m *Manifest) Apply(s *system.Schedule, conds ConditionSource) error {
	var errs error
	for _, e := range m.Systems {
		opts, err := e.options(conds)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", e.Name, err))
			continue
		}
		if err := s.Configure(e.Name, opts...); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (e SystemEntry) options(conds ConditionSource) ([]system.Option, error) {
	var opts []system.Option
	if e.Phase != "" {
		p, err := system.ParsePhase(e.Phase)
		if err != nil {
			return nil, err
		}
		opts = append(opts, system.InPhase(p))
	}
	if len(e.Labels) > 0 {
		opts = append(opts, system.Label(e.Labels...))
	}
	if len(e.Before) > 0 {
		opts = append(opts, system.Before(e.Before...))
	}
	if len(e.After) > 0 {
		opts = append(opts, system.After(e.After...))
	}
	if e.RunIf != "" {
		if conds == nil {
			return nil, fmt.Errorf("run_if %q: no condition source", e.RunIf)
		}
		c, err := conds.Condition(e.RunIf)
		if err != nil {
			return nil, err
		}
		opts = append(opts, system.RunIf(c))
	}
	return opts, nil
}
