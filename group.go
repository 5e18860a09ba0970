package treaty

import (
	"sort"
	"strings"

	js "github.com/reoring/treaty/jsonschema"
)

// Group is an immutable view of one export group (or of several merged
// ones). The underlying maps are snapshot state and are never mutated.
type Group struct {
	name      string
	contracts map[string][]*Contract
}

// Name returns the group name. Merged views join their sources with "+".
func (g *Group) Name() string { return g.name }

// Get returns the latest version of a contract in this group.
func (g *Group) Get(name string) (*Contract, error) {
	chain := g.contracts[name]
	if len(chain) == 0 {
		return nil, &NotFoundError{Group: g.name, Name: name}
	}
	return chain[len(chain)-1], nil
}

// GetVersion returns an exact version of a contract in this group.
func (g *Group) GetVersion(name string, version int) (*Contract, error) {
	chain := g.contracts[name]
	if version < 1 || version > len(chain) {
		return nil, &NotFoundError{Group: g.name, Name: name, Version: version}
	}
	return chain[version-1], nil
}

// Names lists contract names in sorted order.
func (g *Group) Names() []string {
	out := make([]string, 0, len(g.contracts))
	for n := range g.contracts {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Contracts returns the latest version of every contract, sorted by name.
func (g *Group) Contracts() []*Contract {
	names := g.Names()
	out := make([]*Contract, 0, len(names))
	for _, n := range names {
		chain := g.contracts[n]
		out = append(out, chain[len(chain)-1])
	}
	return out
}

// Len reports the number of contract names in the group.
func (g *Group) Len() int { return len(g.contracts) }

// JSONSchemas exports the latest version of every contract as JSON Schema,
// keyed by contract name.
func (g *Group) JSONSchemas() (map[string]*js.Schema, error) {
	out := make(map[string]*js.Schema, len(g.contracts))
	for _, c := range g.Contracts() {
		s, err := c.JSONSchema()
		if err != nil {
			return nil, err
		}
		out[c.Name()] = s
	}
	return out, nil
}

// MergeGroups combines group views, possibly from different registries, into
// a single export. A name present in several inputs is deduplicated when the
// latest fingerprints agree (the first input's chain is kept); diverging
// fingerprints produce a *MergeConflictError.
func MergeGroups(groups ...*Group) (*Group, error) {
	names := make([]string, 0, len(groups))
	merged := make(map[string][]*Contract)
	owner := make(map[string]*Group)

	for _, g := range groups {
		if g == nil {
			continue
		}
		names = append(names, g.name)
		for name, chain := range g.contracts {
			if len(chain) == 0 {
				continue
			}
			prev, taken := merged[name]
			if !taken {
				merged[name] = chain
				owner[name] = g
				continue
			}
			prevFP := prev[len(prev)-1].fp
			curFP := chain[len(chain)-1].fp
			if prevFP != curFP {
				return nil, &MergeConflictError{
					Name:         name,
					Groups:       [2]string{owner[name].name, g.name},
					Fingerprints: [2]Fingerprint{prevFP, curFP},
				}
			}
		}
	}

	return &Group{name: strings.Join(names, "+"), contracts: merged}, nil
}
