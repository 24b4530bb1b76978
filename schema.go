package querydex

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	domschema "github.com/kailas-cloud/querydex/internal/domain/schema"
)

const tagKey = "querydex"

// FieldDef is one declared template field.
type FieldDef struct {
	Name    string
	Type    string
	Aliases []string
}

// templateMeta holds parsed struct tag metadata, cached per Template.
type templateMeta struct {
	typ    reflect.Type
	fields []FieldDef
	// structIdx aligns with fields: the struct field index each definition
	// came from.
	structIdx []int
}

var validFieldTypes = map[string]struct{}{
	string(domschema.TypeText):    {},
	string(domschema.TypeKeyword): {},
	string(domschema.TypeNumber):  {},
	string(domschema.TypeDate):    {},
	string(domschema.TypeBool):    {},
}

// parseTemplateSchema reflects on T and extracts querydex struct tag
// metadata. Tag format: `querydex:"field_name,type"` with an optional
// third part listing aliases separated by "|".
func parseTemplateSchema[T any]() (*templateMeta, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("querydex: type %s is not a struct", t)
	}

	meta := &templateMeta{typ: t}
	seen := map[string]struct{}{}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" {
			continue
		}
		def, err := parseFieldTag(f.Name, f.Type, tag)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("querydex: duplicate field name %q in %s", def.Name, t)
		}
		seen[def.Name] = struct{}{}
		meta.fields = append(meta.fields, def)
		meta.structIdx = append(meta.structIdx, i)
	}

	if len(meta.fields) == 0 {
		return nil, fmt.Errorf("querydex: no querydex tags in %s", t)
	}
	return meta, nil
}

// parseFieldTag processes a single struct field's querydex tag.
func parseFieldTag(structField string, structType reflect.Type, tag string) (FieldDef, error) {
	parts := strings.SplitN(tag, ",", 3)
	def := FieldDef{Name: parts[0]}
	if def.Name == "" {
		return FieldDef{}, fmt.Errorf("querydex: empty field name on %s", structField)
	}

	if len(parts) >= 2 && parts[1] != "" {
		def.Type = parts[1]
	} else {
		def.Type = inferFieldType(structType)
	}
	if _, ok := validFieldTypes[def.Type]; !ok {
		return FieldDef{}, fmt.Errorf("querydex: unknown field type %q on %s", def.Type, structField)
	}

	if len(parts) == 3 && parts[2] != "" {
		for _, alias := range strings.Split(parts[2], "|") {
			if alias == "" {
				return FieldDef{}, fmt.Errorf("querydex: empty alias on %s", structField)
			}
			def.Aliases = append(def.Aliases, alias)
		}
	}
	return def, nil
}

// inferFieldType maps a Go type to a field type when the tag names none.
func inferFieldType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return string(domschema.TypeKeyword)
	case reflect.Bool:
		return string(domschema.TypeBool)
	case reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return string(domschema.TypeNumber)
	default:
		return string(domschema.TypeKeyword)
	}
}

// fromDocument converts a raw document source back to a typed struct
// using the tag metadata.
func (m *templateMeta) fromDocument(data map[string]any) any {
	v := reflect.New(m.typ).Elem()
	for i, def := range m.fields {
		raw, ok := data[def.Name]
		if !ok {
			continue
		}
		setFieldValue(v.Field(m.structIdx[i]), raw)
	}
	return v.Interface()
}

func setFieldValue(f reflect.Value, raw any) {
	switch f.Kind() {
	case reflect.String:
		if s, ok := raw.(string); ok {
			f.SetString(s)
		}
	case reflect.Bool:
		if b, ok := raw.(bool); ok {
			f.SetBool(b)
		}
	case reflect.Float32, reflect.Float64:
		if n, ok := toFloat64(raw); ok {
			f.SetFloat(n)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, ok := toFloat64(raw); ok {
			f.SetInt(int64(n))
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, ok := toFloat64(raw); ok {
			f.SetUint(uint64(n))
		}
	}
}

// toFloat64 accepts the numeric shapes a decoded JSON source can carry.
func toFloat64(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// toTemplateContext builds the internal template metadata for registration.
func (m *templateMeta) toTemplateContext(name string) *domschema.TemplateContext {
	fields := make(map[string]domschema.FieldInfo, len(m.fields))
	for _, def := range m.fields {
		fields[def.Name] = domschema.FieldInfo{
			Type:    domschema.FieldType(def.Type),
			Aliases: def.Aliases,
		}
	}
	tmpl := &domschema.TemplateContext{Name: name, Fields: fields}
	tmpl.AllFieldNames = tmpl.FieldNames()
	return tmpl
}
