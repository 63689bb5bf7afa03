// Package tools is the registry of named operations the model may call,
// plus the portfolio data tools registered into it.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// SideEffect classifies what a tool does to shared state.
type SideEffect string

const (
	ReadOnly SideEffect = "read_only"
	// Ingest tools write before they read and are not idempotent.
	Ingest SideEffect = "ingest"
)

// ExecuteFunc runs a tool with validated arguments.
type ExecuteFunc func(ctx context.Context, args map[string]any) (any, error)

// ToolSpec defines a tool. It must not be modified after Register.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ParamSpec
	SideEffect  SideEffect
	Execute     ExecuteFunc
}

// Descriptor is the model-facing view of a tool.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	SideEffect  SideEffect     `json:"-"`
}

// Registry maps tool names to specs. Safe for concurrent Invoke.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]ToolSpec
	order []string
}

func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]ToolSpec)}
}

// Register adds a tool.
func (r *Registry) Register(spec ToolSpec) error {
	if spec.Name == "" {
		return errors.New("tool name is required")
	}
	if spec.Execute == nil {
		return fmt.Errorf("tool %s has no execute function", spec.Name)
	}
	if spec.SideEffect == "" {
		spec.SideEffect = ReadOnly
	}

	seen := make(map[string]bool, len(spec.Params))
	for _, p := range spec.Params {
		if p.Name == "" || seen[p.Name] {
			return fmt.Errorf("tool %s has an empty or duplicate parameter name %q", spec.Name, p.Name)
		}
		seen[p.Name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("tool %s already registered", spec.Name)
	}
	params := make([]ParamSpec, len(spec.Params))
	copy(params, spec.Params)
	spec.Params = params

	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)
	return nil
}

// MustRegister registers every spec and panics on the first error.
func (r *Registry) MustRegister(specs ...ToolSpec) {
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// DescribeAll returns descriptors in registration order.
func (r *Registry) DescribeAll() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		s := r.specs[name]
		out = append(out, Descriptor{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  parametersSchema(s.Params),
			SideEffect:  s.SideEffect,
		})
	}
	return out
}

// Names lists registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Lookup returns the spec for name.
func (r *Registry) Lookup(name string) (ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.specs[name]
	return s, ok
}

// Subset builds a registry holding only the named tools, in the given order.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	sub := NewRegistry()
	for _, name := range names {
		spec, ok := r.Lookup(name)
		if !ok {
			return nil, &UnknownToolError{Name: name}
		}
		if err := sub.Register(spec); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// Invoke validates args and calls the tool exactly once. Schema problems
// return *SchemaError or *UnknownToolError without calling execute; execute
// failures and panics return *ToolExecutionError.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	spec, ok := r.Lookup(name)
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}

	bound, err := bindArgs(name, spec.Params, args)
	if err != nil {
		return nil, err
	}

	return execute(ctx, spec, bound)
}

func execute(ctx context.Context, spec ToolSpec, args map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = &ToolExecutionError{ToolName: spec.Name, Message: fmt.Sprintf("panic: %v", rec)}
		}
	}()

	result, err = spec.Execute(ctx, args)
	if err != nil {
		return nil, &ToolExecutionError{ToolName: spec.Name, Message: err.Error(), Err: err}
	}
	return result, nil
}
