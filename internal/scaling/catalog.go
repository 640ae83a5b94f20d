package scaling

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"seem/pkg/taper"
)

// LogLengthPolicy selects one of the catalog's table caches.
type LogLengthPolicy int

const (
	// ForwarderLogs buck short logs for cut-to-length harvest systems.
	ForwarderLogs LogLengthPolicy = iota
	// LongLogs buck long logs for yarded or skidded tree-length systems.
	LongLogs

	policyCount = 2
)

// Policies lists the log-length policies in cache order.
var Policies = [policyCount]LogLengthPolicy{ForwarderLogs, LongLogs}

func (p LogLengthPolicy) String() string {
	switch p {
	case ForwarderLogs:
		return "forwarder"
	case LongLogs:
		return "long"
	default:
		return fmt.Sprintf("LogLengthPolicy(%d)", int(p))
	}
}

// ParseLogLengthPolicy accepts "forwarder" (or "short") and "long".
func ParseLogLengthPolicy(raw string) (LogLengthPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "forwarder", "short":
		return ForwarderLogs, nil
	case "long":
		return LongLogs, nil
	}
	return 0, fmt.Errorf("scaling: unknown log length policy %q", raw)
}

// DefaultBuckingPolicy returns the bucking settings used for a log-length
// policy unless overridden with WithPolicy.
func DefaultBuckingPolicy(p LogLengthPolicy) BuckingPolicy {
	if p == LongLogs {
		return BuckingPolicy{Name: LongLogs.String(), PreferredLogLength: 12.0}
	}
	return BuckingPolicy{Name: ForwarderLogs.String(), PreferredLogLength: 4.0}
}

// Catalog lazily builds one volume table per species per log-length policy.
// It is safe for concurrent use; lookups of tables already built take no
// lock.
type Catalog struct {
	providers  map[taper.Species]taper.Provider
	parameters map[taper.Species]taper.ScalingParameters
	policies   [policyCount]BuckingPolicy
	caches     [policyCount]tableCache
	onCreated  func(*VolumeTable)
}

// tableCache maps taper.Species to *VolumeTable. A nil table marks a species
// without a taper provider.
type tableCache struct {
	mu     sync.Mutex
	tables sync.Map
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithProviders replaces the taper provider dispatch table.
func WithProviders(providers map[taper.Species]taper.Provider) CatalogOption {
	return func(c *Catalog) {
		c.providers = make(map[taper.Species]taper.Provider, len(providers))
		for s, p := range providers {
			c.providers[s] = p
		}
	}
}

// WithProvider registers or replaces a single species provider.
func WithProvider(species taper.Species, provider taper.Provider) CatalogOption {
	return func(c *Catalog) { c.providers[species] = provider }
}

// WithParameters overrides the scaling parameters for a species.
func WithParameters(species taper.Species, params taper.ScalingParameters) CatalogOption {
	return func(c *Catalog) { c.parameters[species] = params }
}

// WithPolicy overrides the bucking settings behind a log-length policy.
func WithPolicy(policy LogLengthPolicy, bucking BuckingPolicy) CatalogOption {
	return func(c *Catalog) {
		if policy >= 0 && int(policy) < policyCount {
			if bucking.Name == "" {
				bucking.Name = policy.String()
			}
			c.policies[policy] = bucking
		}
	}
}

// WithTableCreated registers a hook run once for every table the catalog
// constructs, before the table is visible to other callers.
func WithTableCreated(fn func(*VolumeTable)) CatalogOption {
	return func(c *Catalog) { c.onCreated = fn }
}

// NewCatalog builds a catalog using the default taper providers and scaling
// parameters unless options override them.
func NewCatalog(opts ...CatalogOption) (*Catalog, error) {
	c := &Catalog{
		providers:  taper.Providers(),
		parameters: make(map[taper.Species]taper.ScalingParameters),
	}
	for _, p := range Policies {
		c.policies[p] = DefaultBuckingPolicy(p)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	for species, params := range c.parameters {
		if err := params.Validate(); err != nil {
			return nil, fmt.Errorf("scaling: %s: %w", species, err)
		}
	}
	for _, p := range Policies {
		if !(c.policies[p].PreferredLogLength > 0) {
			return nil, fmt.Errorf("scaling: %s policy needs a positive preferred log length", p)
		}
	}
	return c, nil
}

// Parameters returns the scaling parameters used for a species.
func (c *Catalog) Parameters(species taper.Species) taper.ScalingParameters {
	if params, ok := c.parameters[species]; ok {
		return params
	}
	return taper.DefaultScalingParameters(species)
}

// Policy returns the bucking settings behind a log-length policy.
func (c *Catalog) Policy(policy LogLengthPolicy) BuckingPolicy {
	return c.policies[policy]
}

// Table returns the volume table for a species and policy, building it on
// first use. ok is false when the species has no taper provider; that
// answer is cached like a table.
func (c *Catalog) Table(species taper.Species, policy LogLengthPolicy) (table *VolumeTable, ok bool, err error) {
	if policy < 0 || int(policy) >= policyCount {
		return nil, false, fmt.Errorf("scaling: unknown log length policy %d", int(policy))
	}
	cache := &c.caches[policy]
	if v, found := cache.tables.Load(species); found {
		table = v.(*VolumeTable)
		return table, table != nil, nil
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	if v, found := cache.tables.Load(species); found {
		table = v.(*VolumeTable)
		return table, table != nil, nil
	}
	provider, supported := c.providers[species]
	if !supported || provider == nil {
		cache.tables.Store(species, (*VolumeTable)(nil))
		return nil, false, nil
	}
	table, err = NewVolumeTable(species, provider, c.Parameters(species), c.policies[policy])
	if err != nil {
		return nil, false, err
	}
	if c.onCreated != nil {
		c.onCreated(table)
	}
	cache.tables.Store(species, table)
	return table, true, nil
}

// Tables lists constructed tables ordered by policy, then species.
func (c *Catalog) Tables() []*VolumeTable {
	var out []*VolumeTable
	for _, p := range Policies {
		var tables []*VolumeTable
		c.caches[p].tables.Range(func(_, v any) bool {
			if t := v.(*VolumeTable); t != nil {
				tables = append(tables, t)
			}
			return true
		})
		sort.Slice(tables, func(i, j int) bool { return tables[i].species < tables[j].species })
		out = append(out, tables...)
	}
	return out
}
