package treaty

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/reoring/treaty/metrics"
)

// Registry holds versioned contracts organized into export groups. Reads are
// lock-free: every lookup walks an immutable snapshot obtained from an atomic
// pointer, and writers swap in a fresh snapshot under a mutex. A contract
// obtained from any snapshot stays valid forever.
type Registry struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
	log  zerolog.Logger
	met  *metrics.Collector
}

// snapshot is the immutable state readers traverse. groups maps group name
// to contract name to the version chain in ascending order.
type snapshot struct {
	groups map[string]map[string][]*Contract
	total  int
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger attaches a zerolog logger; registration and swap events are
// logged through it.
func WithLogger(log zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

// WithMetrics attaches a metrics collector. A nil collector is allowed.
func WithMetrics(met *metrics.Collector) RegistryOption {
	return func(r *Registry) { r.met = met }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	r.snap.Store(&snapshot{groups: map[string]map[string][]*Contract{}})
	return r
}

// Register adds a contract at version 1 under (group, name). Registering the
// same name with a schema whose fingerprint matches an existing version is
// idempotent and returns that version. A different fingerprint for an
// existing name is a *DuplicateContractError: changing behavior requires
// RegisterNewVersion.
func (r *Registry) Register(group, name string, s AnySchema) (*Contract, error) {
	if err := checkRegistration(group, name, s); err != nil {
		return nil, err
	}
	fp := s.Fingerprint()

	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.snap.Load()
	if chain := cur.chain(group, name); len(chain) > 0 {
		for _, c := range chain {
			if c.fp == fp {
				return c, nil
			}
		}
		latest := chain[len(chain)-1]
		return nil, &DuplicateContractError{
			Group: group, Name: name,
			Existing: latest.fp, Incoming: fp,
		}
	}

	c := &Contract{group: group, name: name, version: 1, schema: s, fp: fp}
	r.swap(cur.with(group, name, []*Contract{c}, 1))
	r.logRegistered(c, "contract registered")
	return c, nil
}

// MustRegister is Register that panics on error. Intended for module-level
// registration of statically declared schemas.
func (r *Registry) MustRegister(group, name string, s AnySchema) *Contract {
	c, err := r.Register(group, name, s)
	if err != nil {
		panic(err)
	}
	return c
}

// RegisterNewVersion appends a new version for an existing contract name.
// The version is assigned by the registry: always latest+1, never reused,
// never gapped. Re-registering the schema equal to the latest version is
// idempotent.
func (r *Registry) RegisterNewVersion(group, name string, s AnySchema) (*Contract, error) {
	if err := checkRegistration(group, name, s); err != nil {
		return nil, err
	}
	fp := s.Fingerprint()

	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.snap.Load()
	chain := cur.chain(group, name)
	if len(chain) == 0 {
		return nil, &NotFoundError{Group: group, Name: name}
	}
	latest := chain[len(chain)-1]
	if latest.fp == fp {
		return latest, nil
	}

	c := &Contract{group: group, name: name, version: latest.version + 1, schema: s, fp: fp}
	next := append(append([]*Contract{}, chain...), c)
	r.swap(cur.with(group, name, next, 1))
	r.logRegistered(c, "contract version registered")
	return c, nil
}

// Get returns the latest version of (group, name).
func (r *Registry) Get(group, name string) (*Contract, error) {
	chain := r.snap.Load().chain(group, name)
	if len(chain) == 0 {
		return nil, &NotFoundError{Group: group, Name: name}
	}
	return chain[len(chain)-1], nil
}

// GetVersion returns an exact version of (group, name).
func (r *Registry) GetVersion(group, name string, version int) (*Contract, error) {
	chain := r.snap.Load().chain(group, name)
	if version < 1 || version > len(chain) {
		return nil, &NotFoundError{Group: group, Name: name, Version: version}
	}
	return chain[version-1], nil
}

// Versions returns every version of (group, name) in ascending order.
func (r *Registry) Versions(group, name string) ([]*Contract, error) {
	chain := r.snap.Load().chain(group, name)
	if len(chain) == 0 {
		return nil, &NotFoundError{Group: group, Name: name}
	}
	return append([]*Contract(nil), chain...), nil
}

// Groups lists group names in sorted order.
func (r *Registry) Groups() []string {
	snap := r.snap.Load()
	out := make([]string, 0, len(snap.groups))
	for g := range snap.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Group returns an immutable view of one export group.
func (r *Registry) Group(name string) (*Group, error) {
	snap := r.snap.Load()
	names, ok := snap.groups[name]
	if !ok {
		return nil, &NotFoundError{Group: name}
	}
	return &Group{name: name, contracts: names}, nil
}

// List returns the latest version of every contract in a group, sorted by
// name.
func (r *Registry) List(group string) ([]*Contract, error) {
	g, err := r.Group(group)
	if err != nil {
		return nil, err
	}
	return g.Contracts(), nil
}

// Len reports the total number of registered contracts, versions included.
func (r *Registry) Len() int { return r.snap.Load().total }

// Merge combines the named groups into one view. The same contract name may
// appear in several groups only when the latest fingerprints agree; the
// first group's chain wins the dedupe. Disagreement is a
// *MergeConflictError.
func (r *Registry) Merge(groups ...string) (*Group, error) {
	views := make([]*Group, 0, len(groups))
	for _, name := range groups {
		g, err := r.Group(name)
		if err != nil {
			return nil, err
		}
		views = append(views, g)
	}
	return MergeGroups(views...)
}

// ---- write-path internals ----

func checkRegistration(group, name string, s AnySchema) error {
	if group == "" {
		return &DefinitionError{Detail: "empty group name"}
	}
	if name == "" {
		return &DefinitionError{Detail: "empty contract name"}
	}
	if s == nil {
		return &DefinitionError{Detail: fmt.Sprintf("nil schema for %s/%s", group, name)}
	}
	if d, ok := s.(interface{ DefError() *DefinitionError }); ok {
		if de := d.DefError(); de != nil {
			return de
		}
	}
	return nil
}

// chain returns the version chain or nil. Safe on any snapshot.
func (s *snapshot) chain(group, name string) []*Contract {
	names, ok := s.groups[group]
	if !ok {
		return nil
	}
	return names[name]
}

// with produces a new snapshot that has chain installed at (group, name).
// Untouched groups share their name maps with the old snapshot; the touched
// group's name map is copied.
func (s *snapshot) with(group, name string, chain []*Contract, added int) *snapshot {
	groups := make(map[string]map[string][]*Contract, len(s.groups)+1)
	for g, names := range s.groups {
		groups[g] = names
	}
	names := make(map[string][]*Contract, len(s.groups[group])+1)
	for n, c := range s.groups[group] {
		names[n] = c
	}
	names[name] = chain
	groups[group] = names
	return &snapshot{groups: groups, total: s.total + added}
}

// swap publishes the next snapshot. Callers hold r.mu.
func (r *Registry) swap(next *snapshot) {
	r.snap.Store(next)
	r.met.IncRegistrySwap()
	r.met.SetContractsRegistered(next.total)
}

func (r *Registry) logRegistered(c *Contract, msg string) {
	r.log.Info().
		Str("group", c.group).
		Str("contract", c.name).
		Int("version", c.version).
		Str("fingerprint", c.fp.String()).
		Msg(msg)
}
