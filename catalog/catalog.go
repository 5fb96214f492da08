// Package catalog holds the static per-application tables used by the
// pipeline: app name aliases, keyword actions for local action resolution,
// and per-action parameter tables (required, optional, synonyms, hints).
//
// A Catalog is immutable after Load and safe for concurrent use.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/itsneelabh/actionagent/core"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// KeywordAction is one candidate action for local resolution
type KeywordAction struct {
	Key      string   `yaml:"key"`
	ActionID string   `yaml:"action"`
	Keywords []string `yaml:"keywords"`
}

// App is a supported application
type App struct {
	Name          string          `yaml:"name"`
	ConnectorName string          `yaml:"connector_name"`
	Aliases       []string        `yaml:"aliases"`
	Actions       []KeywordAction `yaml:"actions"`
}

// Synonym maps an alternate field name onto the canonical one
type Synonym struct {
	Alias     string `json:"alias"`
	Canonical string `json:"canonical"`
}

// SynonymMap is an ordered alias table. Order matters when several aliases
// share a canonical field: the first one present wins.
type SynonymMap []Synonym

// UnmarshalYAML decodes a YAML mapping while keeping key order
func (s *SynonymMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: synonyms must be a mapping", value.Line)
	}
	out := make(SynonymMap, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		k, v := value.Content[i], value.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: synonym entries must be scalars", k.Line)
		}
		out = append(out, Synonym{Alias: k.Value, Canonical: v.Value})
	}
	*s = out
	return nil
}

// Map returns the synonyms as a plain alias -> canonical map
func (s SynonymMap) Map() map[string]string {
	m := make(map[string]string, len(s))
	for _, syn := range s {
		m[syn.Alias] = syn.Canonical
	}
	return m
}

// ActionParams is the local parameter table for one action
type ActionParams struct {
	Required []string   `yaml:"required"`
	Optional []string   `yaml:"optional"`
	Synonyms SynonymMap `yaml:"synonyms"`
	Hint     string     `yaml:"hint"`
}

type document struct {
	Apps    []App                   `yaml:"apps"`
	Actions map[string]ActionParams `yaml:"actions"`
}

// Catalog is the parsed, indexed form of the tables
type Catalog struct {
	apps    []App
	byName  map[string]int
	actions map[string]ActionParams
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog embedded in the binary
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(defaultCatalogYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load parses and validates catalog YAML
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}

	c := &Catalog{
		apps:    make([]App, 0, len(doc.Apps)),
		byName:  make(map[string]int),
		actions: make(map[string]ActionParams, len(doc.Actions)),
	}

	for _, app := range doc.Apps {
		if app.Name == "" {
			return nil, invalid("app entry without a name")
		}
		if app.ConnectorName == "" {
			app.ConnectorName = strings.ToUpper(app.Name)
		}
		for i := range app.Actions {
			a := &app.Actions[i]
			if a.ActionID == "" {
				return nil, invalid("app %s: action %q has no action id", app.Name, a.Key)
			}
			if len(a.Keywords) == 0 {
				return nil, invalid("app %s: action %s has no keywords", app.Name, a.ActionID)
			}
			for j, kw := range a.Keywords {
				a.Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
			}
		}

		idx := len(c.apps)
		c.apps = append(c.apps, app)
		for _, name := range append([]string{app.Name, app.ConnectorName}, app.Aliases...) {
			key := strings.ToLower(strings.TrimSpace(name))
			if prev, dup := c.byName[key]; dup && prev != idx {
				return nil, invalid("app name %q is used by more than one app", name)
			}
			c.byName[key] = idx
		}
	}

	for id, p := range doc.Actions {
		required := make(map[string]bool, len(p.Required))
		for _, f := range p.Required {
			required[f] = true
		}
		for _, f := range p.Optional {
			if required[f] {
				return nil, invalid("action %s: field %s is both required and optional", id, f)
			}
		}
		for _, syn := range p.Synonyms {
			if syn.Alias == syn.Canonical {
				return nil, invalid("action %s: synonym %s maps to itself", id, syn.Alias)
			}
		}
		p.Hint = strings.TrimSpace(p.Hint)
		c.actions[id] = p
	}

	return c, nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), core.ErrInvalidConfiguration)
}

// AppName returns the connector's name for app ("gmail" -> "GMAIL").
// Unknown apps are upper-cased.
func (c *Catalog) AppName(app string) string {
	key := strings.ToLower(strings.TrimSpace(app))
	if idx, ok := c.byName[key]; ok {
		return c.apps[idx].ConnectorName
	}
	return strings.ToUpper(strings.TrimSpace(app))
}

// SameApp reports whether a and b name the same application
func (c *Catalog) SameApp(a, b string) bool {
	return c.AppName(a) == c.AppName(b)
}

// Actions returns the keyword actions for app, in catalog order
func (c *Catalog) Actions(app string) []KeywordAction {
	idx, ok := c.byName[strings.ToLower(strings.TrimSpace(app))]
	if !ok {
		return nil
	}
	src := c.apps[idx].Actions
	out := make([]KeywordAction, len(src))
	for i, a := range src {
		out[i] = KeywordAction{
			Key:      a.Key,
			ActionID: a.ActionID,
			Keywords: append([]string(nil), a.Keywords...),
		}
	}
	return out
}

// Params returns the local parameter table for actionID
func (c *Catalog) Params(actionID string) (ActionParams, bool) {
	p, ok := c.actions[actionID]
	if !ok {
		return ActionParams{}, false
	}
	return ActionParams{
		Required: append([]string(nil), p.Required...),
		Optional: append([]string(nil), p.Optional...),
		Synonyms: append(SynonymMap(nil), p.Synonyms...),
		Hint:     p.Hint,
	}, true
}

// Hint returns the extraction hint for actionID, or ""
func (c *Catalog) Hint(actionID string) string {
	return c.actions[actionID].Hint
}

// Apps returns the supported application names
func (c *Catalog) Apps() []string {
	names := make([]string, len(c.apps))
	for i, a := range c.apps {
		names[i] = a.Name
	}
	return names
}
