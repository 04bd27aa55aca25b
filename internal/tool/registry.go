package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/sunthar/taskrelay/pkg/cerr"
)

// Registry holds the fixed set of tools exposed to agent runtimes. It is
// populated once at startup and never mutated afterwards, so Invoke and
// List read the descriptor table without locking.
type Registry struct {
	mu    sync.Mutex // guards Register during startup only
	tools map[string]*Descriptor
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Descriptor),
	}
}

// Register adds a tool descriptor. Duplicate names are rejected.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil || d.Name == "" {
		return cerr.NewError(cerr.InvalidArgument, "tool descriptor requires a name", nil)
	}
	if d.Handler == nil {
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("tool %q has no handler", d.Name), nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name]; exists {
		return cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("tool %q is already registered", d.Name), nil)
	}
	r.tools[d.Name] = d
	return nil
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []*Descriptor {
	descriptors := make([]*Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		descriptors = append(descriptors, d)
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors
}

// Invoke validates rawArgs against the named tool's schema and runs its
// handler. Validation failures are rejected before any side effect; handler
// failures are passed through when coded, wrapped otherwise.
func (r *Registry) Invoke(ctx context.Context, name string, rawArgs map[string]any) (*Result, error) {
	d, ok := r.tools[name]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, fmt.Sprintf("unknown tool %q", name), nil)
	}

	args, err := validateArgs(d.Schema, rawArgs)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "invoking tool", "tool", name)
	result, err := d.Handler(ctx, args)
	if err != nil {
		var coded *cerr.Error
		if errors.As(err, &coded) {
			return nil, err
		}
		return nil, cerr.NewError(cerr.Internal, fmt.Sprintf("tool %q failed", name), err)
	}
	return result, nil
}
