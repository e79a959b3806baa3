// SPDX-License-Identifier: MPL-2.0

package envreg

import (
	"fmt"
	"os"
	"strings"
)

// Strategy is the rule governing how multiple layers' contributions to one
// variable combine.
type Strategy int

const (
	// Override replaces any existing value.
	Override Strategy = iota
	// Default applies only when the user supplied no value of their own.
	Default
	// Prepend concatenates path lists, most recent contributor first.
	Prepend
)

func (s Strategy) String() string {
	switch s {
	case Override:
		return "override"
	case Default:
		return "default"
	case Prepend:
		return "prepend"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// FileSuffix returns the suffix appended to layered-interface env file names.
// Prepend is the filesystem convention's default behavior and takes none.
func (s Strategy) FileSuffix() string {
	switch s {
	case Override:
		return ".override"
	case Default:
		return ".default"
	default:
		return ""
	}
}

// ConflictError reports a contribution that contradicts an earlier
// registration or contribution. It indicates a bug in the buildpack itself
// and is fatal to the build.
type ConflictError struct {
	Key    string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("environment variable %s: %s", e.Key, e.Reason)
}

// Contribution is one layer's recorded share of one variable, the unit the
// export backends consume.
type Contribution struct {
	Layer    string
	Key      string
	Strategy Strategy
	// Values holds the single scalar for Override/Default, or the layer's
	// path entries (most recent call first) for Prepend.
	Values []string
}

// Registry is the process-wide set of tracked variables for one build.
type Registry struct {
	setenv    func(key, value string) error
	lookupEnv func(key string) (string, bool)

	order []string
	vars  map[string]*Var
}

// Option configures a Registry.
type Option func(*Registry)

// WithProcessEnv replaces the live-environment accessors, letting tests run
// against a fake environment.
func WithProcessEnv(setenv func(string, string) error, lookupEnv func(string) (string, bool)) Option {
	return func(r *Registry) {
		r.setenv = setenv
		r.lookupEnv = lookupEnv
	}
}

// New returns a Registry bound to the real process environment unless
// overridden by options.
func New(opts ...Option) *Registry {
	r := &Registry{
		setenv:    os.Setenv,
		lookupEnv: os.LookupEnv,
		vars:      make(map[string]*Var),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Var is the handle returned by Register through which layers contribute.
type Var struct {
	reg      *Registry
	key      string
	strategy Strategy

	// Override/Default state.
	value        string
	valueSet     bool
	userSupplied bool

	// Prepend state. entries is most recent contributor first; baseline is
	// the process value observed at registration time.
	entries     []prependEntry
	baseline    string
	hasBaseline bool

	// layers lists contributing layer names in contribution order.
	layers []string
}

type prependEntry struct {
	layer string
	paths []string
}

// Register declares a tracked variable. Registering the same key twice with
// the same strategy returns the existing handle; a differing strategy is a
// configuration error.
func (r *Registry) Register(key string, strategy Strategy) (*Var, error) {
	if existing, ok := r.vars[key]; ok {
		if existing.strategy != strategy {
			return nil, &ConflictError{
				Key:    key,
				Reason: fmt.Sprintf("registered as %s, re-registered as %s", existing.strategy, strategy),
			}
		}
		return existing, nil
	}

	v := &Var{reg: r, key: key, strategy: strategy}
	if current, ok := r.lookupEnv(key); ok {
		v.userSupplied = true
		v.baseline = current
		v.hasBaseline = true
	}
	r.vars[key] = v
	r.order = append(r.order, key)
	return v, nil
}

// Key returns the variable's name.
func (v *Var) Key() string { return v.key }

// Strategy returns the variable's merge strategy.
func (v *Var) Strategy() Strategy { return v.strategy }

// Set records a scalar contribution from the named layer. Valid only for
// Override and Default variables. A value that diverges from an earlier
// layer's contribution fails before the live environment is touched.
func (v *Var) Set(layer, value string) error {
	if v.strategy == Prepend {
		return &ConflictError{Key: v.key, Reason: "scalar contribution to a prepend variable"}
	}
	if v.valueSet && v.value != value {
		return &ConflictError{
			Key:    v.key,
			Reason: fmt.Sprintf("layer %q contributed %q but an earlier layer contributed %q", layer, value, v.value),
		}
	}

	v.value = value
	v.valueSet = true
	v.layers = append(v.layers, layer)

	// Defaults defer to a user-supplied process value; the contribution is
	// still recorded above so export includes it.
	if v.strategy == Default && v.userSupplied {
		return nil
	}
	if err := v.reg.setenv(v.key, value); err != nil {
		return fmt.Errorf("set %s: %w", v.key, err)
	}
	return nil
}

// PrependPaths records a path-list contribution from the named layer and
// applies the new effective value to the live environment immediately.
func (v *Var) PrependPaths(layer string, paths ...string) error {
	if v.strategy != Prepend {
		return &ConflictError{Key: v.key, Reason: "list contribution to a scalar variable"}
	}
	if len(paths) == 0 {
		return nil
	}

	v.entries = append([]prependEntry{{layer: layer, paths: paths}}, v.entries...)
	v.layers = append(v.layers, layer)

	if err := v.reg.setenv(v.key, v.EffectiveValue()); err != nil {
		return fmt.Errorf("set %s: %w", v.key, err)
	}
	return nil
}

// EffectiveValue returns the value the live process environment holds for
// this variable: the scalar for Override/Default, or the colon-joined entry
// list (most recent contributor first, chained onto the pre-build value) for
// Prepend.
func (v *Var) EffectiveValue() string {
	if v.strategy != Prepend {
		return v.value
	}
	var parts []string
	for _, e := range v.entries {
		parts = append(parts, e.paths...)
	}
	if v.hasBaseline && v.baseline != "" {
		parts = append(parts, v.baseline)
	}
	return strings.Join(parts, ":")
}

// Plan flattens the registry into the abstract export plan: variables in
// registration order, and within each variable one Contribution per
// contributing layer in chronological order. Writing chronological entries in
// sequence is what gives the legacy scripts their most-recent-first
// precedence when each line chains onto the previous value.
//
// Default variables record a contribution from every contributing layer even
// though only one value can win at the shell level; the export formats carry
// them all.
func (r *Registry) Plan() []Contribution {
	var plan []Contribution
	for _, key := range r.order {
		v := r.vars[key]
		switch v.strategy {
		case Prepend:
			// entries is most-recent-first; the plan wants chronological.
			for i := len(v.entries) - 1; i >= 0; i-- {
				e := v.entries[i]
				plan = append(plan, Contribution{
					Layer:    e.layer,
					Key:      v.key,
					Strategy: v.strategy,
					Values:   append([]string(nil), e.paths...),
				})
			}
		default:
			if !v.valueSet {
				continue
			}
			for _, layer := range dedupe(v.layers) {
				plan = append(plan, Contribution{
					Layer:    layer,
					Key:      v.key,
					Strategy: v.strategy,
					Values:   []string{v.value},
				})
			}
		}
	}
	return plan
}

func dedupe(layers []string) []string {
	seen := make(map[string]struct{}, len(layers))
	var out []string
	for _, l := range layers {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
