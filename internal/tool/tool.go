package tool

import (
	"context"
	"fmt"
	"sort"
)

// ArgType is the wire type of a tool argument.
type ArgType string

const (
	TypeString  ArgType = "string"
	TypeNumber  ArgType = "number"
	TypeBoolean ArgType = "boolean"
)

// Field describes one argument of a tool schema.
type Field struct {
	Type        ArgType
	Description string
	Required    bool
	Default     any
}

// Schema maps argument names to their field specs.
type Schema map[string]Field

// Args holds validated tool arguments, defaults applied.
type Args map[string]any

func (a Args) String(key string) string {
	v, _ := a[key].(string)
	return v
}

// Content is one part of a tool result. Only text parts exist in the
// current scope; the tag is kept so other media can be added.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the complete output of one tool invocation. A call produces
// exactly one Result or fails; there are no partial results.
type Result struct {
	Content []Content `json:"content"`
}

func TextResult(format string, args ...any) *Result {
	return &Result{
		Content: []Content{{Type: "text", Text: fmt.Sprintf(format, args...)}},
	}
}

// Handler executes a tool with validated arguments. All side effects live
// in handlers; the registry itself never touches the outside world.
type Handler func(ctx context.Context, args Args) (*Result, error)

// Descriptor declares one remotely invokable tool.
type Descriptor struct {
	Name        string
	Description string
	Schema      Schema
	Handler     Handler
}

// JSONSchema renders the schema as a JSON-Schema object for tools/list.
func (s Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s))
	var required []string
	for name, f := range s {
		prop := map[string]any{
			"type": string(f.Type),
		}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if f.Default != nil {
			prop["default"] = f.Default
		}
		properties[name] = prop
		if f.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
