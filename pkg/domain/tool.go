package domain

import "context"

// FunctionSpec describes a callable function to the model.
// Parameters is a JSON-Schema-like object. Strict marks the schema as a hard
// contract: arguments must validate exactly against it before invocation.
type FunctionSpec struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Description string         `json:"description" yaml:"description" mapstructure:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
	Strict      bool           `json:"strict" yaml:"strict" mapstructure:"strict"`
}

// ToolDefinition is the wire-level tool schema presented to the model.
// Compatible with the OpenAI function-calling shape.
type ToolDefinition struct {
	Type     string       `json:"type" yaml:"type"`
	Function FunctionSpec `json:"function" yaml:"function"`
}

// NewToolDefinition builds a function-typed tool definition.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionSpec{
			Name:        name,
			Description: description,
			Parameters:  parameters,
			Strict:      true,
		},
	}
}

// Capability executes a tool with already-parsed arguments and returns a
// textual result. Concrete implementations are closures over a specific
// transport connection or a synthesized behavior such as peer delegation.
type Capability interface {
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// CapabilityFunc adapts a plain function to the Capability interface.
type CapabilityFunc func(ctx context.Context, args map[string]any) (string, error)

// Invoke implements Capability.
func (f CapabilityFunc) Invoke(ctx context.Context, args map[string]any) (string, error) {
	return f(ctx, args)
}

// Descriptor binds a tool name to its schema and its capability.
// Descriptors are immutable after creation and owned by exactly one provider
// (or by the federation itself, for synthesized tools).
type Descriptor struct {
	Name       string
	Definition ToolDefinition
	Capability Capability
}
