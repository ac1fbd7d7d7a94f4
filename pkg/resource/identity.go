package resource

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// identity reads and writes item IDs.
type identity[T any, ID comparable] struct {
	get func(T) ID
	// set is nil when IDs cannot be assigned.
	set func(ID, *T)
}

// isZero reports whether id is the zero value, which counts as "no ID".
func isZero[ID comparable](id ID) bool {
	var zero ID
	return id == zero
}

// resolveIdentity builds the ID accessors once. An explicit selector or
// setter wins over the reflected id field.
func resolveIdentity[T any, ID comparable](selector func(T) ID, setter func(ID, *T)) (identity[T, ID], error) {
	reflected, err := reflectIdentity[T, ID]()
	if err != nil && selector == nil {
		return identity[T, ID]{}, err
	}

	id := reflected
	if selector != nil {
		id.get = selector
	}
	if setter != nil {
		id.set = setter
	}
	return id, nil
}

// reflectIdentity locates the id of T: a struct field tagged `json:"id"`
// or named ID/Id (through one pointer), or the "id" key of a string-keyed map.
func reflectIdentity[T any, ID comparable]() (identity[T, ID], error) {
	idType := reflect.TypeFor[ID]()
	t := reflect.TypeFor[T]()

	viaPointer := false
	if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct {
		viaPointer = true
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		return structIdentity[T, ID](t, idType, viaPointer)
	case reflect.Map:
		return mapIdentity[T, ID](t, idType)
	default:
		return identity[T, ID]{}, fmt.Errorf("%w: %s", ErrNoIdentity, t)
	}
}

func structIdentity[T any, ID comparable](t, idType reflect.Type, viaPointer bool) (identity[T, ID], error) {
	field, ok := idField(t)
	if !ok {
		return identity[T, ID]{}, fmt.Errorf("%w: %s", ErrNoIdentity, t)
	}
	if !field.Type.AssignableTo(idType) {
		return identity[T, ID]{}, fmt.Errorf(
			"%w: field %s.%s is %s, not %s", ErrNoIdentity, t, field.Name, field.Type, idType,
		)
	}

	target := func(item *T) (reflect.Value, bool) {
		v := reflect.ValueOf(item).Elem()
		if viaPointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		fv, err := v.FieldByIndexErr(field.Index)
		if err != nil {
			return reflect.Value{}, false
		}
		return fv, true
	}

	id := identity[T, ID]{
		get: func(item T) ID {
			var zero ID
			fv, ok := target(&item)
			if !ok {
				return zero
			}
			out, _ := fv.Interface().(ID)
			return out
		},
	}

	if idType.AssignableTo(field.Type) {
		id.set = func(value ID, item *T) {
			if fv, ok := target(item); ok && fv.CanSet() {
				fv.Set(reflect.ValueOf(&value).Elem())
			}
		}
	}

	return id, nil
}

func mapIdentity[T any, ID comparable](t, idType reflect.Type) (identity[T, ID], error) {
	if t.Key().Kind() != reflect.String {
		return identity[T, ID]{}, fmt.Errorf("%w: %s", ErrNoIdentity, t)
	}
	key := reflect.ValueOf("id").Convert(t.Key())

	id := identity[T, ID]{
		get: func(item T) ID {
			var zero ID
			v := reflect.ValueOf(&item).Elem()
			if v.IsNil() {
				return zero
			}
			e := v.MapIndex(key)
			if !e.IsValid() {
				return zero
			}
			out, _ := e.Interface().(ID)
			return out
		},
	}

	if idType.AssignableTo(t.Elem()) {
		id.set = func(value ID, item *T) {
			v := reflect.ValueOf(item).Elem()
			if v.IsNil() {
				v.Set(reflect.MakeMap(t))
			}
			v.SetMapIndex(key, reflect.ValueOf(&value).Elem())
		}
	}

	return id, nil
}

// idField prefers a field whose json name is "id" over one merely named ID.
func idField(t reflect.Type) (reflect.StructField, bool) {
	var byName *reflect.StructField
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "id" {
			return f, true
		}
		if byName == nil && (f.Name == "ID" || f.Name == "Id") {
			byName = &f
		}
	}
	if byName != nil {
		return *byName, true
	}
	return reflect.StructField{}, false
}

// mergeFields overlays the JSON fields of next onto prev. Fields omitted
// from next's encoding keep prev's value. Items that do not encode to JSON
// objects are replaced wholesale.
func mergeFields[T any](prev, next T) T {
	base, err := toFields(prev)
	if err != nil {
		return next
	}
	patch, err := toFields(next)
	if err != nil {
		return next
	}
	for k, v := range patch {
		base[k] = v
	}

	raw, err := json.Marshal(base)
	if err != nil {
		return next
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return next
	}
	return out
}

func toFields(v any) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("merge: %T is not an object", v)
	}
	return fields, nil
}
