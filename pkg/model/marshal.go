package model

import (
	"fmt"
	"reflect"
	"time"

	"github.com/th317erd/mythix-orm-solr/pkg/errors"
)

// DirtyTracker is implemented by models that track field-level modifications.
// Update consults it: only the named Go fields are written, and a record whose
// DirtyFields result is empty is skipped entirely. Models that do not
// implement the interface are treated as fully dirty.
type DirtyTracker interface {
	DirtyFields() []string
}

// ToDoc converts a model value into a Solr document. Only concrete fields are
// emitted; omitempty fields with zero values are dropped.
func (m *Metadata) ToDoc(model any) (map[string]any, error) {
	v, err := structValue(model)
	if err != nil {
		return nil, err
	}

	doc := make(map[string]any, len(m.ConcreteFields))
	for _, f := range m.ConcreteFields {
		fv := v.Field(f.Index)
		if f.OmitEmpty && fv.IsZero() {
			continue
		}
		doc[f.DBName] = toStoreValue(fv)
	}
	return doc, nil
}

// FromDoc populates dest (a struct pointer) from a Solr document. Unknown
// document fields are skipped; Solr multi-valued responses for single-valued
// model fields take the first element.
func (m *Metadata) FromDoc(doc map[string]any, dest any) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: destination must be a struct pointer", errors.ErrInvalidModel)
	}
	v = v.Elem()

	for name, raw := range doc {
		f, exists := m.FieldsByDBName[name]
		if !exists {
			continue
		}
		fv := v.Field(f.Index)
		if !fv.CanSet() {
			continue
		}
		if err := assignValue(fv, raw); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

// PrimaryKeyValue returns the model's primary key as its store representation.
// ok is false when the model has no pk field or the pk is zero.
func (m *Metadata) PrimaryKeyValue(model any) (any, bool) {
	if m.PrimaryKey == nil {
		return nil, false
	}
	v, err := structValue(model)
	if err != nil {
		return nil, false
	}
	fv := v.Field(m.PrimaryKey.Index)
	if fv.IsZero() {
		return nil, false
	}
	return toStoreValue(fv), true
}

// SetPrimaryKey writes a generated key back into the model. Only string pk
// fields accept generated keys.
func (m *Metadata) SetPrimaryKey(model any, key string) error {
	if m.PrimaryKey == nil {
		return errors.ErrMissingPrimaryKey
	}
	v, err := structValue(model)
	if err != nil {
		return err
	}
	fv := v.Field(m.PrimaryKey.Index)
	if fv.Kind() != reflect.String {
		return fmt.Errorf("%w: generated keys require a string pk, have %s", errors.ErrInvalidModel, fv.Kind())
	}
	fv.SetString(key)
	return nil
}

// ValidateRequired checks required concrete fields, returning the first
// missing field's name.
func (m *Metadata) ValidateRequired(model any) (string, error) {
	v, err := structValue(model)
	if err != nil {
		return "", err
	}
	for _, f := range m.ConcreteFields {
		if f.Required && v.Field(f.Index).IsZero() {
			return f.Name, fmt.Errorf("%w: %s", errors.ErrMissingRequiredField, f.Name)
		}
	}
	return "", nil
}

// FieldValue reads a single field from a model by metadata.
func (m *Metadata) FieldValue(model any, f *FieldMetadata) (any, error) {
	v, err := structValue(model)
	if err != nil {
		return nil, err
	}
	return v.Field(f.Index).Interface(), nil
}

// SetFieldValue writes a single field on a model by metadata.
func (m *Metadata) SetFieldValue(model any, f *FieldMetadata, value any) error {
	v, err := structValue(model)
	if err != nil {
		return err
	}
	fv := v.Field(f.Index)
	if !fv.CanSet() {
		return fmt.Errorf("%w: field %s is not settable", errors.ErrInvalidModel, f.Name)
	}
	return assignValue(fv, value)
}

func structValue(model any) (reflect.Value, error) {
	v := reflect.ValueOf(model)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil model", errors.ErrInvalidModel)
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: model must be a struct", errors.ErrInvalidModel)
	}
	return v, nil
}

// toStoreValue converts a Go field value into its JSON/Solr representation.
// time.Time becomes an ISO 8601 UTC string, the format Solr date fields use.
func toStoreValue(v reflect.Value) any {
	if t, ok := v.Interface().(time.Time); ok {
		return t.UTC().Format(time.RFC3339)
	}
	return v.Interface()
}

// assignValue coerces a decoded JSON value onto a struct field. JSON numbers
// arrive as float64 regardless of the target kind.
func assignValue(fv reflect.Value, raw any) error {
	if raw == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}

	// Solr may return single-valued fields as one-element arrays
	if list, ok := raw.([]any); ok && fv.Kind() != reflect.Slice {
		if len(list) == 0 {
			return nil
		}
		raw = list[0]
	}

	if fv.Type() == reflect.TypeOf(time.Time{}) {
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("cannot assign %T to time.Time", raw)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))
		return nil
	}

	rv := reflect.ValueOf(raw)
	switch fv.Kind() {
	case reflect.String:
		if rv.Kind() == reflect.String {
			fv.SetString(rv.String())
			return nil
		}
		fv.SetString(fmt.Sprintf("%v", raw))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			fv.SetInt(int64(rv.Float()))
			return nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			fv.SetInt(rv.Int())
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			fv.SetUint(uint64(rv.Float()))
			return nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			fv.SetUint(rv.Uint())
			return nil
		}
	case reflect.Float32, reflect.Float64:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			fv.SetFloat(rv.Float())
			return nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			fv.SetFloat(float64(rv.Int()))
			return nil
		}
	case reflect.Bool:
		if rv.Kind() == reflect.Bool {
			fv.SetBool(rv.Bool())
			return nil
		}
	case reflect.Slice:
		if rv.Kind() == reflect.Slice {
			out := reflect.MakeSlice(fv.Type(), rv.Len(), rv.Len())
			for i := 0; i < rv.Len(); i++ {
				if err := assignValue(out.Index(i), rv.Index(i).Interface()); err != nil {
					return err
				}
			}
			fv.Set(out)
			return nil
		}
	}

	if rv.Type().AssignableTo(fv.Type()) {
		fv.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(fv.Type()) {
		fv.Set(rv.Convert(fv.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", raw, fv.Type())
}
