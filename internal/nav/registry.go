package nav

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-bexpr"
	"github.com/imedia765/memberhub/internal/roles"
	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// DefaultDestination is where the controller lands after login and where it
// retreats when the current destination becomes disallowed.
const DefaultDestination = "dashboard"

//go:embed registry_schema.json
var registrySchemaJSON string

//go:embed destinations.json
var defaultRegistryJSON []byte

// Registry is the immutable set of configured destinations in declaration
// order. Required-role mappings are deployment configuration, not code:
// changing which roles may open "financials" is an edit to the registry
// file, not a release.
type Registry struct {
	destinations []Destination
	byID         map[string]*Destination
}

// rawDestination mirrors the registry file entries before conversion.
type rawDestination struct {
	ID     string   `mapstructure:"id"`
	Title  string   `mapstructure:"title"`
	Access string   `mapstructure:"access"`
	Roles  []string `mapstructure:"roles"`
	When   string   `mapstructure:"when"`
}

type rawRegistry struct {
	Destinations []rawDestination `mapstructure:"destinations"`
}

// LoadRegistry reads and validates the destination registry from path.
// An empty path loads the embedded default registry.
func LoadRegistry(path string) (*Registry, error) {
	data := defaultRegistryJSON
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read destination registry: %w", err)
		}
		data = fileData
	}
	return ParseRegistry(data)
}

// ParseRegistry validates registry bytes against the embedded JSON Schema
// and builds the immutable registry.
func ParseRegistry(data []byte) (*Registry, error) {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse destination registry: %w", err)
	}

	schema, err := compileRegistrySchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("destination registry invalid: %w", err)
	}

	var raw rawRegistry
	if err := mapstructure.Decode(instance, &raw); err != nil {
		return nil, fmt.Errorf("decode destination registry: %w", err)
	}

	reg := &Registry{byID: make(map[string]*Destination, len(raw.Destinations))}
	seen := make(map[string]struct{}, len(raw.Destinations))
	for _, rd := range raw.Destinations {
		if _, dup := seen[rd.ID]; dup {
			return nil, fmt.Errorf("destination registry invalid: duplicate id %q", rd.ID)
		}
		seen[rd.ID] = struct{}{}

		dest := Destination{
			ID:     rd.ID,
			Title:  rd.Title,
			Access: AccessKind(rd.Access),
			When:   rd.When,
		}

		if dest.Access == AccessRoles {
			if len(rd.Roles) == 0 {
				return nil, fmt.Errorf("destination %q: access %q requires roles", rd.ID, rd.Access)
			}
			required := roles.NewSet()
			for _, name := range rd.Roles {
				role, ok := roles.ParseRole(name)
				if !ok {
					return nil, fmt.Errorf("destination %q: unknown role %q", rd.ID, name)
				}
				required[role] = struct{}{}
			}
			dest.Roles = required
		} else if len(rd.Roles) > 0 {
			return nil, fmt.Errorf("destination %q: roles only valid with access %q", rd.ID, AccessRoles)
		}

		if dest.When != "" {
			eval, err := bexpr.CreateEvaluator(dest.When)
			if err != nil {
				return nil, fmt.Errorf("destination %q: invalid when expression: %w", rd.ID, err)
			}
			dest.whenEval = eval
		}

		reg.destinations = append(reg.destinations, dest)
	}

	// Index after the slice has stopped growing so pointers stay valid.
	for i := range reg.destinations {
		reg.byID[reg.destinations[i].ID] = &reg.destinations[i]
	}

	if _, ok := reg.byID[DefaultDestination]; !ok {
		return nil, fmt.Errorf("destination registry invalid: missing default destination %q", DefaultDestination)
	}

	return reg, nil
}

func compileRegistrySchema() (*jsonschema.Schema, error) {
	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(registrySchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse registry schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	if err := compiler.AddResource("registry_schema.json", parsed); err != nil {
		return nil, fmt.Errorf("add registry schema resource: %w", err)
	}
	schema, err := compiler.Compile("registry_schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile registry schema: %w", err)
	}
	return schema, nil
}

// Get returns a destination by id.
func (r *Registry) Get(id string) (*Destination, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// All returns the destinations in declaration order. The returned slice is
// shared; callers must not modify it.
func (r *Registry) All() []Destination {
	return r.destinations
}
