package tool

import (
	"fmt"

	"github.com/sunthar/taskrelay/pkg/cerr"
)

// validateArgs checks rawArgs against the schema: required fields must be
// present, types must match, unknown fields are rejected, and declared
// defaults are applied for omitted optional fields. The returned Args map
// is a fresh copy; rawArgs is never mutated.
func validateArgs(schema Schema, rawArgs map[string]any) (Args, error) {
	args := make(Args, len(schema))

	for name := range rawArgs {
		if _, ok := schema[name]; !ok {
			return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown argument %q", name), nil)
		}
	}

	for name, field := range schema {
		raw, present := rawArgs[name]
		if !present {
			if field.Required {
				return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("missing required argument %q", name), nil)
			}
			if field.Default != nil {
				args[name] = field.Default
			}
			continue
		}
		value, err := checkType(name, field.Type, raw)
		if err != nil {
			return nil, err
		}
		args[name] = value
	}
	return args, nil
}

func checkType(name string, t ArgType, raw any) (any, error) {
	switch t {
	case TypeString:
		if v, ok := raw.(string); ok {
			return v, nil
		}
	case TypeNumber:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		}
	case TypeBoolean:
		if v, ok := raw.(bool); ok {
			return v, nil
		}
	default:
		return nil, cerr.NewError(cerr.Internal, fmt.Sprintf("argument %q has unsupported schema type %q", name, t), nil)
	}
	return nil, cerr.NewError(cerr.InvalidArgument,
		fmt.Sprintf("argument %q must be a %s, got %T", name, t, raw), nil)
}
