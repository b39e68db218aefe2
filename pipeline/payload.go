package pipeline

import (
	"fmt"
)

// ============================================================================
// PAYLOAD TEMPLATES
// ============================================================================

// FieldSource identifies where a payload field's value comes from
type FieldSource int

const (
	// SourceLiteral embeds a fixed value
	SourceLiteral FieldSource = iota
	// SourceInput copies a trigger input field
	SourceInput
	// SourceResult copies a field out of an earlier step's result slot
	SourceResult
	// SourceRunID embeds the run identifier
	SourceRunID
	// SourceTimestamp embeds the run start timestamp
	SourceTimestamp
	// SourceFormat renders a format string over resolved references
	SourceFormat
)

// Field describes one payload field and its source
type Field struct {
	Name   string
	Source FieldSource
	Value  interface{} // literal value (SourceLiteral)
	Key    string      // trigger input key (SourceInput)
	Slot   string      // result slot (SourceResult)
	Path   string      // dotted path within the slot (SourceResult)
	Format string      // format string (SourceFormat)
	Args   []Field     // format arguments (SourceFormat)
}

// Literal creates a field with a fixed value
func Literal(name string, value interface{}) Field {
	return Field{Name: name, Source: SourceLiteral, Value: value}
}

// FromInput creates a field copied from a trigger input field
func FromInput(name, key string) Field {
	return Field{Name: name, Source: SourceInput, Key: key}
}

// FromResult creates a field copied from an earlier step's result
func FromResult(name, slot, path string) Field {
	return Field{Name: name, Source: SourceResult, Slot: slot, Path: path}
}

// RunID creates a field carrying the run identifier
func RunID(name string) Field {
	return Field{Name: name, Source: SourceRunID}
}

// Timestamp creates a field carrying the run start timestamp
func Timestamp(name string) Field {
	return Field{Name: name, Source: SourceTimestamp}
}

// Formatted creates a field rendered from a format string and resolved
// references, e.g. Formatted("requirement",
// "Stack %s failed: %s", FromResult("", "parsed_event", "stack_name"), ...).
func Formatted(name, format string, args ...Field) Field {
	return Field{Name: name, Source: SourceFormat, Format: format, Args: args}
}

// Template is the declarative description of how a step's outbound payload
// is built from the execution context. Building is a pure projection: the
// same context and template always produce the same payload.
type Template struct {
	Fields []Field
}

// NewTemplate creates a payload template from fields
func NewTemplate(fields ...Field) *Template {
	return &Template{Fields: fields}
}

// Build constructs the payload object from the execution context. A reference
// to a missing input field or result path fails loudly with a PayloadError.
func (t *Template) Build(ec *ExecutionContext, step string) (map[string]interface{}, error) {
	payload := make(map[string]interface{}, len(t.Fields))
	for _, field := range t.Fields {
		value, err := resolveField(ec, step, field)
		if err != nil {
			return nil, err
		}
		payload[field.Name] = value
	}
	return payload, nil
}

// ResultPaths returns every result reference the template makes, including
// references nested inside format fields. The definition builder uses this
// to validate templates against earlier steps at construction time.
func (t *Template) ResultPaths() []Field {
	var refs []Field
	for _, field := range t.Fields {
		switch field.Source {
		case SourceResult:
			refs = append(refs, field)
		case SourceFormat:
			for _, arg := range field.Args {
				if arg.Source == SourceResult {
					refs = append(refs, arg)
				}
			}
		}
	}
	return refs
}

func resolveField(ec *ExecutionContext, step string, field Field) (interface{}, error) {
	switch field.Source {
	case SourceLiteral:
		return field.Value, nil

	case SourceInput:
		value, ok := ec.Input(field.Key)
		if !ok {
			return nil, &PayloadError{
				Step:    step,
				Field:   field.Name,
				Path:    field.Key,
				Message: "trigger input field not present",
			}
		}
		return value, nil

	case SourceResult:
		value, ok := ec.Lookup(field.Slot, field.Path)
		if !ok {
			return nil, &PayloadError{
				Step:    step,
				Field:   field.Name,
				Path:    field.Slot + "." + field.Path,
				Message: "result path does not resolve",
			}
		}
		return value, nil

	case SourceRunID:
		return ec.RunID(), nil

	case SourceTimestamp:
		return ec.Timestamp(), nil

	case SourceFormat:
		args := make([]interface{}, len(field.Args))
		for i, arg := range field.Args {
			value, err := resolveField(ec, step, arg)
			if err != nil {
				return nil, err
			}
			args[i] = value
		}
		return fmt.Sprintf(field.Format, args...), nil

	default:
		return nil, &PayloadError{
			Step:    step,
			Field:   field.Name,
			Message: fmt.Sprintf("unknown field source %d", field.Source),
		}
	}
}
