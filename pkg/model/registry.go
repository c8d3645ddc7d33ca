// Package model provides model registration and metadata management for
// mythix-orm-solr. Metadata partitions each model's fields into concrete
// fields (stored in the Solr collection) and virtual/relational fields
// (never stored, resolved by the caller).
package model

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/th317erd/mythix-orm-solr/pkg/errors"
)

// CollectionNamer lets a model override its derived collection name.
type CollectionNamer interface {
	CollectionName() string
}

// Registry manages registered models and their metadata
type Registry struct {
	mu     sync.RWMutex
	models map[reflect.Type]*Metadata
	tables map[string]*Metadata
}

// NewRegistry creates a new model registry
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[reflect.Type]*Metadata),
		tables: make(map[string]*Metadata),
	}
}

// Register registers a model and parses its metadata
func (r *Registry) Register(model any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	modelType := indirectType(reflect.TypeOf(model))
	if modelType == nil || modelType.Kind() != reflect.Struct {
		return fmt.Errorf("%w: model must be a struct", errors.ErrInvalidModel)
	}

	if _, exists := r.models[modelType]; exists {
		return nil // Already registered
	}

	metadata, err := parseMetadata(modelType, model)
	if err != nil {
		return err
	}

	r.models[modelType] = metadata
	r.tables[metadata.TableName] = metadata

	return nil
}

// GetMetadata retrieves metadata for a model, registering it on first use.
func (r *Registry) GetMetadata(model any) (*Metadata, error) {
	modelType := indirectType(reflect.TypeOf(model))
	if modelType == nil {
		return nil, fmt.Errorf("%w: nil model", errors.ErrInvalidModel)
	}

	r.mu.RLock()
	metadata, exists := r.models[modelType]
	r.mu.RUnlock()
	if exists {
		return metadata, nil
	}

	if err := r.Register(model); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models[modelType], nil
}

// GetMetadataByTable retrieves metadata by collection name
func (r *Registry) GetMetadataByTable(tableName string) (*Metadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata, exists := r.tables[tableName]
	if !exists {
		return nil, fmt.Errorf("%w: collection not registered: %s", errors.ErrInvalidModel, tableName)
	}

	return metadata, nil
}

// Metadata holds all metadata for a model
type Metadata struct {
	Type            reflect.Type
	TableName       string
	PrimaryKey      *FieldMetadata
	Fields          map[string]*FieldMetadata
	FieldsByDBName  map[string]*FieldMetadata
	ConcreteFields  []*FieldMetadata // stored fields, in struct order
	RelationFields  []*FieldMetadata // single-valued relations, cascade-insert eligible
	MultiValueField []*FieldMetadata // multi-valued relations, never cascaded
}

// FieldMetadata holds metadata for a single field
type FieldMetadata struct {
	Name       string            // Go field name
	Type       reflect.Type      // Go type
	DBName     string            // Solr field name
	Index      int               // Field index in struct
	Tags       map[string]string // Parsed tags
	IsPK       bool              // Is the uniqueKey field
	Required   bool              // Must be present on insert
	OmitEmpty  bool              // Omit if empty
	IsVirtual  bool              // Computed field, never stored
	IsRelation bool              // Single-valued relation (struct pointer)
	IsMulti    bool              // Multi-valued relation (slice)
	RelTarget  string            // Go field name on this model that receives the related pk
}

// Concrete reports whether the field is physically stored in the collection.
func (f *FieldMetadata) Concrete() bool {
	return !f.IsVirtual && !f.IsRelation && !f.IsMulti
}

// QualifiedName returns the fully qualified field name (Entity:field) used to
// disambiguate projections across entity types.
func (m *Metadata) QualifiedName(f *FieldMetadata) string {
	return m.Type.Name() + ":" + f.Name
}

// ResolveField resolves a projection/condition field name. Both the Go field
// name and the fully qualified Entity:field form are accepted.
func (m *Metadata) ResolveField(name string) (*FieldMetadata, bool) {
	if idx := strings.Index(name, ":"); idx >= 0 {
		entity := name[:idx]
		if entity != m.Type.Name() && entity != m.TableName {
			return nil, false
		}
		name = name[idx+1:]
	}
	if f, ok := m.Fields[name]; ok {
		return f, true
	}
	f, ok := m.FieldsByDBName[name]
	return f, ok
}

// parseMetadata parses model metadata from struct tags
func parseMetadata(modelType reflect.Type, model any) (*Metadata, error) {
	metadata := &Metadata{
		Type:           modelType,
		TableName:      getTableName(modelType, model),
		Fields:         make(map[string]*FieldMetadata),
		FieldsByDBName: make(map[string]*FieldMetadata),
	}

	for i := 0; i < modelType.NumField(); i++ {
		field := modelType.Field(i)

		// Skip unexported fields
		if !field.IsExported() {
			continue
		}

		fieldMeta, err := parseFieldMetadata(field, i)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		if fieldMeta == nil {
			continue // Tagged "-"
		}

		metadata.Fields[field.Name] = fieldMeta
		if fieldMeta.Concrete() {
			metadata.FieldsByDBName[fieldMeta.DBName] = fieldMeta
			metadata.ConcreteFields = append(metadata.ConcreteFields, fieldMeta)
		}

		if fieldMeta.IsPK {
			if metadata.PrimaryKey != nil {
				return nil, fmt.Errorf("field %s: duplicate primary key definition", field.Name)
			}
			metadata.PrimaryKey = fieldMeta
		}
		if fieldMeta.IsRelation {
			metadata.RelationFields = append(metadata.RelationFields, fieldMeta)
		}
		if fieldMeta.IsMulti {
			metadata.MultiValueField = append(metadata.MultiValueField, fieldMeta)
		}
	}

	// Relation targets must name a concrete field on the same model
	for _, rel := range metadata.RelationFields {
		if rel.RelTarget == "" {
			return nil, fmt.Errorf("%w: relation field %s needs a rel:<field> target", errors.ErrInvalidTag, rel.Name)
		}
		target, exists := metadata.Fields[rel.RelTarget]
		if !exists || !target.Concrete() {
			return nil, fmt.Errorf("%w: relation field %s targets unknown concrete field %q", errors.ErrInvalidTag, rel.Name, rel.RelTarget)
		}
	}

	return metadata, nil
}

// parseFieldMetadata parses metadata for a single field
func parseFieldMetadata(field reflect.StructField, index int) (*FieldMetadata, error) {
	meta := &FieldMetadata{
		Name:   field.Name,
		Type:   field.Type,
		DBName: field.Name,
		Index:  index,
		Tags:   make(map[string]string),
	}

	tag := field.Tag.Get("solr")
	if tag == "-" {
		return nil, nil // Skip this field
	}

	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if colonIdx := strings.Index(part, ":"); colonIdx > 0 {
			key := part[:colonIdx]
			value := part[colonIdx+1:]

			switch key {
			case "attr":
				meta.DBName = value
			case "rel":
				meta.IsRelation = true
				meta.RelTarget = value
			default:
				meta.Tags[key] = value
			}
		} else {
			switch part {
			case "pk":
				meta.IsPK = true
			case "required":
				meta.Required = true
			case "omitempty":
				meta.OmitEmpty = true
			case "virtual":
				meta.IsVirtual = true
			case "relmany":
				meta.IsMulti = true
			default:
				return nil, fmt.Errorf("%w: unknown tag '%s'", errors.ErrInvalidTag, part)
			}
		}
	}

	if err := validateFieldType(meta); err != nil {
		return nil, err
	}

	return meta, nil
}

// validateFieldType validates field type against tag requirements
func validateFieldType(meta *FieldMetadata) error {
	if meta.IsRelation {
		if meta.Type.Kind() != reflect.Ptr || meta.Type.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("%w: rel fields must be struct pointers", errors.ErrInvalidTag)
		}
	}
	if meta.IsMulti && meta.Type.Kind() != reflect.Slice {
		return fmt.Errorf("%w: relmany fields must be slices", errors.ErrInvalidTag)
	}
	if meta.IsPK {
		switch meta.Type.Kind() {
		case reflect.String, reflect.Int, reflect.Int32, reflect.Int64:
		default:
			return fmt.Errorf("%w: pk field must be string or integer", errors.ErrInvalidTag)
		}
	}
	return nil
}

// getTableName derives the collection name from the model type
func getTableName(modelType reflect.Type, model any) string {
	if namer, ok := model.(CollectionNamer); ok {
		return namer.CollectionName()
	}

	name := modelType.Name()
	// Convert to plural form (simple version)
	if strings.HasSuffix(name, "s") {
		return name + "es"
	}
	if strings.HasSuffix(name, "y") {
		return name[:len(name)-1] + "ies"
	}
	return name + "s"
}

func indirectType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
