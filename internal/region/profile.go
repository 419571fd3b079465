// Package region loads the canonical grade/subject profiles the curation
// core resolves against. Profiles come from the configuration collaborator
// as YAML files; the core never defines grades or subjects itself.
package region

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/eduseek/curator/internal/model"
	"github.com/eduseek/curator/internal/normalize"
)

// Entry is one canonical grade or subject with its local spellings.
type Entry struct {
	ID      string   `yaml:"id"`
	Display string   `yaml:"display"`
	Aliases []string `yaml:"aliases"`
}

// Profile describes one region's vocabulary and dominant language/script.
type Profile struct {
	Code     string  `yaml:"code"`
	Name     string  `yaml:"name"`
	Language string  `yaml:"language"`
	Script   string  `yaml:"script"`
	Grades   []Entry `yaml:"grades"`
	Subjects []Entry `yaml:"subjects"`
}

// Registry holds all loaded profiles keyed by region code. Owned by the
// process-level curator context, not ambient global state.
type Registry struct {
	profiles map[string]*Profile
}

// LoadDir reads every *.yaml profile in dir into a Registry.
func LoadDir(dir string) (*Registry, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, eris.Wrapf(err, "region: glob %s", dir)
	}

	reg := &Registry{profiles: make(map[string]*Profile)}
	for _, path := range matches {
		p, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		reg.profiles[p.Code] = p
	}
	return reg, nil
}

// LoadFile reads a single profile YAML file.
func LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "region: read profile %s", path)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "region: parse profile %s", path)
	}
	if p.Code == "" {
		return nil, eris.Errorf("region: profile %s has no code", path)
	}
	return &p, nil
}

// Add registers a profile directly. Used by tests and embedded defaults.
func (r *Registry) Add(p *Profile) {
	if r.profiles == nil {
		r.profiles = make(map[string]*Profile)
	}
	r.profiles[p.Code] = p
}

// Get returns the profile for a region code, or nil.
func (r *Registry) Get(code string) *Profile {
	if r == nil {
		return nil
	}
	return r.profiles[code]
}

// Codes lists loaded region codes.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.profiles))
	for c := range r.profiles {
		codes = append(codes, c)
	}
	return codes
}

// ResolveGrade maps free text (a canonical ID, display name, or alias) to a
// canonical grade ID. Returns ErrResolution when nothing matches.
func (p *Profile) ResolveGrade(text string) (string, error) {
	return resolve(p.Grades, text, "grade", p.Code)
}

// ResolveSubject maps free text to a canonical subject ID.
func (p *Profile) ResolveSubject(text string) (string, error) {
	return resolve(p.Subjects, text, "subject", p.Code)
}

func resolve(entries []Entry, text, kind, region string) (string, error) {
	needle := normalize.Normalize(text)
	if needle == "" {
		return "", eris.Wrapf(model.ErrResolution, "region %s: empty %s text", region, kind)
	}

	for _, e := range entries {
		if strings.EqualFold(e.ID, text) || normalize.Normalize(e.Display) == needle {
			return e.ID, nil
		}
		for _, a := range e.Aliases {
			if normalize.Normalize(a) == needle {
				return e.ID, nil
			}
		}
	}
	return "", eris.Wrapf(model.ErrResolution, "region %s: unresolved %s %q", region, kind, text)
}
