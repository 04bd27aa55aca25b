package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunthar/taskrelay/pkg/cerr"
)

func echoDescriptor(name string) *Descriptor {
	return &Descriptor{
		Name:        name,
		Description: "echoes its message argument",
		Schema: Schema{
			"message": {Type: TypeString, Required: true},
			"prefix":  {Type: TypeString, Default: "> "},
		},
		Handler: func(_ context.Context, args Args) (*Result, error) {
			return TextResult("%s%s", args.String("prefix"), args.String("message")), nil
		},
	}
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDescriptor("echo")))

	err := r.Register(echoDescriptor("echo"))
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.AlreadyExists))
}

func TestRegistryInvoke(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDescriptor("echo")))

	result, err := r.Invoke(context.Background(), "echo", map[string]any{"message": "hello"})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.Equal(t, "> hello", result.Content[0].Text, "default prefix should be applied")
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.Invoke(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestRegistryInvokeMissingRequired(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDescriptor("echo")))

	_, err := r.Invoke(context.Background(), "echo", map[string]any{})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.Contains(t, err.Error(), `"message"`, "error should name the offending field")
}

func TestRegistryInvokeTypeMismatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDescriptor("echo")))

	_, err := r.Invoke(context.Background(), "echo", map[string]any{"message": 42})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.Contains(t, err.Error(), `"message"`)
}

func TestRegistryInvokeUnknownArgument(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDescriptor("echo")))

	_, err := r.Invoke(context.Background(), "echo", map[string]any{"message": "hi", "bogus": "x"})
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.Contains(t, err.Error(), `"bogus"`)
}

func TestRegistryInvokeHandlerError(t *testing.T) {
	r := NewRegistry()
	handlerErr := errors.New("downstream unavailable")
	require.NoError(t, r.Register(&Descriptor{
		Name:   "failing",
		Schema: Schema{},
		Handler: func(_ context.Context, _ Args) (*Result, error) {
			return nil, handlerErr
		},
	}))

	_, err := r.Invoke(context.Background(), "failing", nil)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Internal))
	assert.ErrorIs(t, err, handlerErr)
}

func TestRegistryInvokeCodedHandlerErrorPassedThrough(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Descriptor{
		Name:   "upstream",
		Schema: Schema{},
		Handler: func(_ context.Context, _ Args) (*Result, error) {
			return nil, cerr.NewError(cerr.Unavailable, "notion is down", nil)
		},
	}))

	_, err := r.Invoke(context.Background(), "upstream", nil)
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.Unavailable))
}

func TestSchemaJSONSchema(t *testing.T) {
	s := Schema{
		"title":  {Type: TypeString, Required: true, Description: "task title"},
		"status": {Type: TypeString, Default: "To Review"},
	}

	js := s.JSONSchema()
	assert.Equal(t, "object", js["type"])
	assert.Equal(t, false, js["additionalProperties"])
	assert.Equal(t, []string{"title"}, js["required"])

	props := js["properties"].(map[string]any)
	status := props["status"].(map[string]any)
	assert.Equal(t, "To Review", status["default"])
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDescriptor("zeta")))
	require.NoError(t, r.Register(echoDescriptor("alpha")))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)
}
