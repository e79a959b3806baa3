// SPDX-License-Identifier: MPL-2.0

package migrate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrUnrecognized reports that no schema version in the chain could decode
// the stored blob.
var ErrUnrecognized = errors.New("metadata matches no known schema version")

// EdgeError reports that a conversion function between two schema versions
// failed while migrating a decoded blob forward.
type EdgeError struct {
	// From is the name of the schema version whose conversion failed.
	From string
	// Err is the error returned by the conversion function.
	Err error
}

func (e *EdgeError) Error() string {
	return fmt.Sprintf("migrating metadata from schema %s: %v", e.From, e.Err)
}

func (e *EdgeError) Unwrap() error { return e.Err }

// Version is one entry in a migration chain: a historical schema that knows
// how to strictly decode a raw blob and how to carry a decoded value one step
// toward the current schema. Build values with Older and Current.
type Version struct {
	name    string
	decode  func([]byte) (any, error)
	forward func(any) (any, error)
}

// Name returns the version's label, used in error messages.
func (v Version) Name() string { return v.name }

// Older declares a historical schema S that migrates into its successor N.
// The conversion function may fail; failure invalidates the cache rather than
// aborting the build.
func Older[S, N any](name string, forward func(S) (N, error)) Version {
	return Version{
		name:   name,
		decode: func(raw []byte) (any, error) { return strictUnmarshal[S](raw) },
		forward: func(v any) (any, error) {
			next, err := forward(v.(S))
			if err != nil {
				return nil, err
			}
			return next, nil
		},
	}
}

// Current declares the terminal schema of a chain. It must be the last
// entry passed to NewChain and its type must match the chain's type
// parameter.
func Current[M any](name string) Version {
	return Version{
		name:   name,
		decode: func(raw []byte) (any, error) { return strictUnmarshal[M](raw) },
	}
}

// Chain is an ordered sequence of schema versions, oldest first, resolving
// to the current metadata type M.
type Chain[M any] struct {
	versions []Version
}

// NewChain assembles a chain from versions listed oldest to newest. It
// panics if the chain is empty or if the final version still carries a
// conversion function; both indicate a wiring bug, not a runtime condition.
func NewChain[M any](versions ...Version) *Chain[M] {
	if len(versions) == 0 {
		panic("migrate: chain must contain at least one version")
	}
	last := versions[len(versions)-1]
	if last.forward != nil {
		panic(fmt.Sprintf("migrate: terminal version %s must be declared with Current", last.name))
	}
	for _, v := range versions[:len(versions)-1] {
		if v.forward == nil {
			panic(fmt.Sprintf("migrate: intermediate version %s must be declared with Older", v.name))
		}
	}
	return &Chain[M]{versions: versions}
}

// Resolve decodes raw under the newest schema version that accepts it, then
// applies every intervening conversion function up to the current schema.
//
// The returned error is ErrUnrecognized when no version decodes the blob and
// an *EdgeError when a conversion fails; both mean "treat as no cache".
func (c *Chain[M]) Resolve(raw []byte) (M, error) {
	var zero M
	for i := len(c.versions) - 1; i >= 0; i-- {
		decoded, err := c.versions[i].decode(raw)
		if err != nil {
			continue
		}
		value := decoded
		for j := i; j < len(c.versions)-1; j++ {
			value, err = c.versions[j].forward(value)
			if err != nil {
				return zero, &EdgeError{From: c.versions[j].name, Err: err}
			}
		}
		current, ok := value.(M)
		if !ok {
			return zero, fmt.Errorf("chain for %T produced %T after migrating from schema %s", zero, value, c.versions[i].name)
		}
		return current, nil
	}
	return zero, ErrUnrecognized
}

// strictUnmarshal decodes raw into T, rejecting blobs with top-level keys the
// schema does not declare and blobs missing keys it does. go-toml leaves
// missing fields at their zero value, so the key-set comparison is what keeps
// an old blob from silently decoding under a newer schema.
func strictUnmarshal[T any](raw []byte) (T, error) {
	var zero T

	var probe map[string]any
	if err := toml.Unmarshal(raw, &probe); err != nil {
		return zero, fmt.Errorf("parse metadata: %w", err)
	}

	want := tomlKeys(reflect.TypeFor[T]())
	for key := range want {
		if _, ok := probe[key]; !ok {
			return zero, fmt.Errorf("metadata missing field %q", key)
		}
	}
	for key := range probe {
		if _, ok := want[key]; !ok {
			return zero, fmt.Errorf("metadata has unknown field %q", key)
		}
	}

	var value T
	if err := toml.Unmarshal(raw, &value); err != nil {
		return zero, fmt.Errorf("decode metadata: %w", err)
	}
	return value, nil
}

// tomlKeys returns the set of top-level TOML keys a struct type serializes.
func tomlKeys(t reflect.Type) map[string]struct{} {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("toml"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		keys[name] = struct{}{}
	}
	return keys
}
