package decode

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Struct fields tagged `schema:"required"` must be present and non-null in
// the response document. `schema:"required,nullable"` fields must be present
// but may be null.
const tagName = "schema"

var (
	unmarshalerType     = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	rawMessageType      = reflect.TypeOf(json.RawMessage(nil))
)

var null = []byte("null")

type fieldRule struct {
	name     string
	typ      reflect.Type
	required bool
	nullable bool
}

var rulesCache sync.Map // reflect.Type -> []fieldRule

// SchemaError names the first field that violates the schema.
type SchemaError struct {
	Field   string
	Message string
}

func (e *SchemaError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks raw against the schema described by t's struct tags.
func Validate(raw []byte, t reflect.Type) error {
	return validate(raw, t, "")
}

func validate(raw []byte, t reflect.Type, path string) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if opaque(t) {
		return nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, null) {
		return nil
	}

	switch t.Kind() {
	case reflect.Struct:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return &SchemaError{Field: display(path), Message: "expected an object"}
		}
		for _, r := range rules(t) {
			child := join(path, r.name)
			v, present := obj[r.name]
			if !present {
				if r.required {
					return &SchemaError{Field: child, Message: "required field is missing"}
				}
				continue
			}
			if bytes.Equal(bytes.TrimSpace(v), null) {
				if r.required && !r.nullable {
					return &SchemaError{Field: child, Message: "required field is null"}
				}
				continue
			}
			if err := validate(v, r.typ, child); err != nil {
				return err
			}
		}

	case reflect.Slice, reflect.Array:
		if !walkable(t.Elem()) {
			return nil
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return &SchemaError{Field: display(path), Message: "expected an array"}
		}
		for i, item := range items {
			if err := validate(item, t.Elem(), path+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}

	case reflect.Map:
		if !walkable(t.Elem()) {
			return nil
		}
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return &SchemaError{Field: display(path), Message: "expected an object"}
		}
		for _, k := range slices.Sorted(maps.Keys(entries)) {
			if err := validate(entries[k], t.Elem(), join(path, k)); err != nil {
				return err
			}
		}
	}
	return nil
}

// opaque types decode themselves and are not walked.
func opaque(t reflect.Type) bool {
	if t == rawMessageType {
		return true
	}
	pt := reflect.PointerTo(t)
	return t.Implements(unmarshalerType) || pt.Implements(unmarshalerType) ||
		t.Implements(textUnmarshalerType) || pt.Implements(textUnmarshalerType)
}

func walkable(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if opaque(t) {
		return false
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

func rules(t reflect.Type) []fieldRule {
	if cached, ok := rulesCache.Load(t); ok {
		return cached.([]fieldRule)
	}
	var out []fieldRule
	collect(t, &out)
	rulesCache.Store(t, out)
	return out
}

func collect(t reflect.Type, out *[]fieldRule) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)

		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")

		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collect(ft, out)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}

		r := fieldRule{name: name, typ: f.Type}
		for _, opt := range strings.Split(f.Tag.Get(tagName), ",") {
			switch strings.TrimSpace(opt) {
			case "required":
				r.required = true
			case "nullable":
				r.nullable = true
			}
		}
		*out = append(*out, r)
	}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func display(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}

// CheckTags reports the first schema tag that names an unknown option on
// t or any struct type reachable through its fields.
func CheckTags(t reflect.Type) error {
	return checkTags(t, map[reflect.Type]bool{})
}

func checkTags(t reflect.Type, seen map[reflect.Type]bool) error {
	for {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
			t = t.Elem()
			continue
		}
		break
	}
	if t.Kind() != reflect.Struct || seen[t] {
		return nil
	}
	seen[t] = true

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		for _, opt := range strings.Split(f.Tag.Get(tagName), ",") {
			switch strings.TrimSpace(opt) {
			case "", "required", "nullable":
			default:
				return fmt.Errorf("%s.%s: unknown schema option %q", t.Name(), f.Name, opt)
			}
		}
		if err := checkTags(f.Type, seen); err != nil {
			return err
		}
	}
	return nil
}
