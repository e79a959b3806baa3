// SPDX-License-Identifier: MPL-2.0

package cachediff

import (
	"fmt"
	"reflect"
	"strings"
)

// TagName is the struct tag that marks a metadata field as cache-relevant.
const TagName = "cache"

// Change records a single cache-relevant field whose stored value no longer
// matches the desired value.
type Change struct {
	// Field is the human-readable label from the field's `cache` tag.
	Field string
	// Old is the value recorded by the previous build.
	Old string
	// New is the value computed for this build.
	New string
}

// String renders the change as "field: old -> new".
func (c Change) String() string {
	return fmt.Sprintf("%s: %s -> %s", c.Field, c.Old, c.New)
}

// Changes compares desired against stored field by field and returns the
// cache-relevant fields that differ, in struct declaration order. Fields
// without a `cache` tag (or tagged `cache:"-"`) never invalidate.
//
// Both values must be structs or pointers to structs; the generic signature
// keeps the two sides the same type at compile time.
func Changes[M any](desired, stored M) []Change {
	dv := indirect(reflect.ValueOf(desired))
	sv := indirect(reflect.ValueOf(stored))
	if dv.Kind() != reflect.Struct {
		return nil
	}

	var changes []Change
	st := dv.Type()
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		if !field.IsExported() {
			continue
		}
		label, ok := field.Tag.Lookup(TagName)
		if !ok || label == "-" {
			continue
		}
		oldVal := sv.Field(i)
		newVal := dv.Field(i)
		if reflect.DeepEqual(oldVal.Interface(), newVal.Interface()) {
			continue
		}
		changes = append(changes, Change{
			Field: label,
			Old:   render(oldVal),
			New:   render(newVal),
		})
	}
	return changes
}

// Join renders a change list as a single comma-separated sentence fragment,
// suitable for a cache invalidation reason string.
func Join(changes []Change) string {
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ", ")
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

func render(v reflect.Value) string {
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v.Interface())
}
