package admin

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"storegate/pkg/config"
)

// Registration binds one business entity type to the controller serving its
// CRUD screens and to its menu presentation. Registrations are declarative:
// the set is fixed at configuration time and never mutated afterwards.
type Registration struct {
	EntityType string
	Controller http.Handler
	MenuLabel  string
	Icon       string
}

// MenuEntry is one rendered console menu item.
type MenuEntry struct {
	Label      string `json:"label"`
	Icon       string `json:"icon"`
	EntityType string `json:"entity_type"`
}

// Registry is the closed set of entities manageable through the console.
// It carries routing and menu metadata only; it performs no authorization —
// the request pipeline has already done that for anything under the console
// root.
type Registry struct {
	order  []string
	byType map[string]Registration
}

func NewRegistry() *Registry {
	return &Registry{byType: map[string]Registration{}}
}

// Register adds an entity. Registering the same entity type twice is a
// configuration error and must abort startup, not surface at request time.
func (r *Registry) Register(entityType string, ctrl http.Handler, menuLabel, icon string) error {
	entityType = strings.TrimSpace(entityType)
	if entityType == "" {
		return fmt.Errorf("%w: resource registration with empty entity type", config.ErrConfiguration)
	}
	if _, dup := r.byType[entityType]; dup {
		return fmt.Errorf("%w: duplicate resource registration %q", config.ErrConfiguration, entityType)
	}
	if ctrl == nil {
		return fmt.Errorf("%w: resource %q registered without a controller", config.ErrConfiguration, entityType)
	}
	r.byType[entityType] = Registration{EntityType: entityType, Controller: ctrl, MenuLabel: menuLabel, Icon: icon}
	r.order = append(r.order, entityType)
	return nil
}

// Controller returns the handler bound to entityType.
func (r *Registry) Controller(entityType string) (http.Handler, bool) {
	reg, ok := r.byType[entityType]
	if !ok {
		return nil, false
	}
	return reg.Controller, true
}

// Menu yields entries lazily in registration order; yield returning false
// stops the walk.
func (r *Registry) Menu(yield func(MenuEntry) bool) {
	for _, t := range r.order {
		reg := r.byType[t]
		if !yield(MenuEntry{Label: reg.MenuLabel, Icon: reg.Icon, EntityType: reg.EntityType}) {
			return
		}
	}
}

// resourceSpec is the on-disk shape for declaratively registered resources.
type resourceSpec struct {
	Type  string `json:"type" yaml:"type"`
	Label string `json:"label" yaml:"label"`
	Icon  string `json:"icon" yaml:"icon"`
}

// ImportDir registers resources described by yaml/json files in dir, each
// bound to a controller produced by the factory. Duplicate rules apply the
// same as for code registrations.
func (r *Registry) ImportDir(dir string, controller func(entityType string) http.Handler) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			return nil
		}

		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var spec resourceSpec
		if ext == ".json" {
			if err := json.Unmarshal(b, &spec); err != nil {
				return fmt.Errorf("%w: resource spec %s: %v", config.ErrConfiguration, path, err)
			}
		} else {
			if err := yaml.Unmarshal(b, &spec); err != nil {
				return fmt.Errorf("%w: resource spec %s: %v", config.ErrConfiguration, path, err)
			}
		}
		if spec.Type == "" {
			return fmt.Errorf("%w: resource spec %s has no type", config.ErrConfiguration, path)
		}
		if spec.Label == "" {
			spec.Label = spec.Type
		}
		return r.Register(spec.Type, controller(spec.Type), spec.Label, spec.Icon)
	})
}
