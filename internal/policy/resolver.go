// Package policy resolves layered trading policy configuration into a single
// immutable snapshot per decision. Layers merge lowest to highest precedence:
// built-in defaults, mode config, strategy config, the scenario's mode-specific
// parameter block, then the scenario's regime-specific override block. A layer
// only overrides the keys it defines.
package policy

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// UnknownBucket is the fallback identifier used when a mode, strategy, or
// scenario has no config of its own. Keeping it a real, configurable bucket
// means unrecognized identifiers still resolve to a usable policy.
const UnknownBucket = "UNKNOWN"

// Policy is the resolved snapshot handed to decision code. Never mutated
// after Resolve returns; callers own it for the duration of one decision.
type Policy struct {
	Mode     string
	Strategy string
	Regime   string
	Scenario string

	AllocationPct   float64 // share of total equity this strategy may commit, in percent
	MinScore        float64 // minimum qualifying entry score before governor adjustment
	MaxHoldDays     int     // exit timing: hard time stop
	ProfitTargetPct float64 // exit timing: take-profit level
	StopLossPct     float64 // exit timing: protective stop level
}

// layer holds one config file's contribution. Pointer fields so that unset
// keys fall through to lower-precedence layers.
type layer struct {
	AllocationPct   *float64 `yaml:"allocation_pct"`
	MinScore        *float64 `yaml:"min_score"`
	MaxHoldDays     *int     `yaml:"max_hold_days"`
	ProfitTargetPct *float64 `yaml:"profit_target_pct"`
	StopLossPct     *float64 `yaml:"stop_loss_pct"`
}

type scenarioFile struct {
	Modes   map[string]layer `yaml:"modes"`
	Regimes map[string]layer `yaml:"regimes"`
}

// Resolver merges policy layers from a config directory tree:
//
//	<root>/modes/<mode>.yaml
//	<root>/strategies/<strategy>.yaml
//	<root>/scenarios/<scenario>.yaml
//
// Resolution is pure read-and-merge and safe to call at per-decision
// frequency: results are cached by the 4-tuple and invalidated when any
// contributing file's mtime changes. A missing or malformed file at any
// layer contributes nothing and never fails the resolution.
type Resolver struct {
	mu    sync.Mutex
	root  string
	cache map[cacheKey]cacheEntry
}

type cacheKey struct {
	mode, strategy, regime, scenario string
}

type cacheEntry struct {
	policy Policy
	mtimes map[string]time.Time
}

func NewResolver(root string) *Resolver {
	return &Resolver{
		root:  root,
		cache: make(map[cacheKey]cacheEntry),
	}
}

// Resolve returns the merged policy for the given identifiers. Identifiers
// are free-form; anything without a config file resolves through the
// UNKNOWN bucket. Never fails: the worst case is the built-in defaults.
func (r *Resolver) Resolve(mode, strategy, regime, scenario string) Policy {
	key := cacheKey{mode, strategy, regime, scenario}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.cache[key]; ok && r.mtimesCurrent(entry.mtimes) {
		return entry.policy
	}

	p := defaultPolicy()
	p.Mode, p.Strategy, p.Regime, p.Scenario = mode, strategy, regime, scenario
	mtimes := map[string]time.Time{}

	if l, ok := r.loadLayer("modes", mode, mtimes); ok {
		apply(&p, l)
	}
	if l, ok := r.loadLayer("strategies", strategy, mtimes); ok {
		apply(&p, l)
	}
	if sc, ok := r.loadScenario(scenario, mtimes); ok {
		if l, ok := bucketLookup(sc.Modes, mode); ok {
			apply(&p, l)
		}
		if l, ok := bucketLookup(sc.Regimes, regime); ok {
			apply(&p, l)
		}
	}

	r.cache[key] = cacheEntry{policy: p, mtimes: mtimes}
	return p
}

// AllocationPctFor is a convenience for callers that only need the capital
// share for a strategy under the current mode.
func (r *Resolver) AllocationPctFor(mode, strategy string) float64 {
	return r.Resolve(mode, strategy, "", "").AllocationPct
}

func (r *Resolver) mtimesCurrent(mtimes map[string]time.Time) bool {
	for path, seen := range mtimes {
		info, err := os.Stat(path)
		if err != nil {
			if seen.IsZero() && os.IsNotExist(err) {
				continue // was missing, still missing
			}
			return false
		}
		if !info.ModTime().Equal(seen) {
			return false
		}
	}
	return true
}

// loadLayer reads <root>/<kind>/<id>.yaml, falling back to the UNKNOWN
// bucket when the identifier has no file. Records observed mtimes (zero for
// missing files) so the cache can invalidate on change.
func (r *Resolver) loadLayer(kind, id string, mtimes map[string]time.Time) (layer, bool) {
	for _, candidate := range []string{id, UnknownBucket} {
		if candidate == "" {
			continue
		}
		path := filepath.Join(r.root, kind, candidate+".yaml")
		if l, found := readLayerFile(path, mtimes); found {
			return l, true
		}
	}
	return layer{}, false
}

func (r *Resolver) loadScenario(scenario string, mtimes map[string]time.Time) (scenarioFile, bool) {
	for _, candidate := range []string{scenario, UnknownBucket} {
		if candidate == "" {
			continue
		}
		path := filepath.Join(r.root, "scenarios", candidate+".yaml")
		data, err := readTracked(path, mtimes)
		if err != nil {
			continue
		}
		var sc scenarioFile
		if err := yaml.Unmarshal(data, &sc); err != nil {
			continue // malformed scenario contributes nothing
		}
		return sc, true
	}
	return scenarioFile{}, false
}

func readLayerFile(path string, mtimes map[string]time.Time) (layer, bool) {
	data, err := readTracked(path, mtimes)
	if err != nil {
		return layer{}, false
	}
	var l layer
	if err := yaml.Unmarshal(data, &l); err != nil {
		return layer{}, false
	}
	return l, true
}

// readTracked reads a file and records its mtime (zero when missing) for
// cache invalidation.
func readTracked(path string, mtimes map[string]time.Time) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		mtimes[path] = time.Time{}
		return nil, err
	}
	mtimes[path] = info.ModTime()
	return os.ReadFile(path)
}

func bucketLookup(m map[string]layer, id string) (layer, bool) {
	if id != "" {
		if l, ok := m[id]; ok {
			return l, true
		}
	}
	l, ok := m[UnknownBucket]
	return l, ok
}

func apply(p *Policy, l layer) {
	if l.AllocationPct != nil {
		p.AllocationPct = *l.AllocationPct
	}
	if l.MinScore != nil {
		p.MinScore = *l.MinScore
	}
	if l.MaxHoldDays != nil {
		p.MaxHoldDays = *l.MaxHoldDays
	}
	if l.ProfitTargetPct != nil {
		p.ProfitTargetPct = *l.ProfitTargetPct
	}
	if l.StopLossPct != nil {
		p.StopLossPct = *l.StopLossPct
	}
}

// defaultPolicy is the lowest layer: conservative enough to be safe when no
// config file contributes anything.
func defaultPolicy() Policy {
	return Policy{
		AllocationPct:   10.0,
		MinScore:        0.75,
		MaxHoldDays:     5,
		ProfitTargetPct: 10.0,
		StopLossPct:     5.0,
	}
}
