// Package schema validates tool arguments against the JSON-Schema-like
// parameter definitions providers publish. Tools advertised with strict
// schemas get their arguments checked exactly before invocation.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// Validate checks parsed arguments against a tool's parameters object.
// A nil or empty parameters object accepts anything.
func Validate(parameters map[string]any, args map[string]any) error {
	if len(parameters) == 0 {
		return nil
	}

	raw, err := json.Marshal(parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters schema: %w", err)
	}

	var sch openapi3.Schema
	if err := sch.UnmarshalJSON(raw); err != nil {
		return fmt.Errorf("parse parameters schema: %w", err)
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := sch.VisitJSON(args, openapi3.MultiErrors()); err != nil {
		return fmt.Errorf("arguments do not match schema: %w", err)
	}
	return nil
}
