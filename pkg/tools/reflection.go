package tools

import (
	"reflect"
	"strings"

	"github.com/barekit/rihlat/pkg/llm"
)

// definition builds the tool schema for an argument struct.
// Fields use `json` tags for names, `description` tags for descriptions and `enum` tags for
// comma-separated allowed values. Fields tagged omitempty are optional.
func definition(name, description string, args any) llm.ToolDefinition {
	argType := reflect.TypeOf(args)
	if argType.Kind() == reflect.Ptr {
		argType = argType.Elem()
	}

	properties := make(map[string]any)
	required := []string{}

	for i := 0; i < argType.NumField(); i++ {
		field := argType.Field(i)
		if !field.IsExported() {
			continue
		}
		fieldName, optional := jsonName(field)
		if fieldName == "-" {
			continue
		}

		prop := map[string]any{
			"type": goTypeToJSONType(field.Type),
		}
		if desc := field.Tag.Get("description"); desc != "" {
			prop["description"] = desc
		}
		if enum := field.Tag.Get("enum"); enum != "" {
			prop["enum"] = strings.Split(enum, ",")
		}

		properties[fieldName] = prop
		if !optional {
			required = append(required, fieldName)
		}
	}

	return llm.ToolDefinition{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        name,
			Description: description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// jsonName returns the JSON key of field and whether it is optional.
func jsonName(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name, false
	}
	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = field.Name
	}
	for _, p := range parts[1:] {
		if p == "omitempty" {
			return name, true
		}
	}
	return name, false
}

func goTypeToJSONType(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "string"
	}
}

// missingRequired returns the JSON names of required fields left at their zero value.
func missingRequired(v reflect.Value) []string {
	var missing []string
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, optional := jsonName(field)
		if optional || name == "-" {
			continue
		}
		if v.Field(i).IsZero() {
			missing = append(missing, name)
		}
	}
	return missing
}
