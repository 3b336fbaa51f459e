package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/framegraph/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// CompileGraph parses a CUE value into a GraphSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the graph struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`graph: deferred: { ... }`)
//	spec, err := CompileGraph(v.LookupPath(cue.ParsePath("graph.deferred")))
//
// Queues, resources and passes are struct fields keyed by name and keep
// their declaration order. Resource labels are resource keys, so a history
// import is written as resource: "taa@-1": {...}.
func CompileGraph(v cue.Value) (*ir.GraphSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.GraphSpec{}

	// Graph name comes from the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].Unquoted()
	}

	schema := v.Context().CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("graph schema: %w", err)
	}
	v = schema.LookupPath(cue.ParsePath("#Graph")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var err error
	if spec.Queues, err = parseQueues(v); err != nil {
		return nil, err
	}
	if spec.Resources, err = parseResources(v); err != nil {
		return nil, err
	}
	if spec.Passes, err = parsePasses(v); err != nil {
		return nil, err
	}
	if len(spec.Passes) == 0 {
		return nil, &CompileError{
			Field:   "pass",
			Message: "at least one pass is required",
			Pos:     v.Pos(),
		}
	}

	depsVal := v.LookupPath(cue.ParsePath("dependencies"))
	if depsVal.Exists() {
		if err := depsVal.Decode(&spec.Dependencies); err != nil {
			return nil, formatCUEError(err)
		}
	}

	return spec, nil
}

// parseQueues extracts queue family declarations.
func parseQueues(v cue.Value) ([]ir.QueueSpec, error) {
	var queues []ir.QueueSpec
	err := eachField(v, "queue", func(label string, body cue.Value) error {
		q := ir.QueueSpec{Name: label}
		if err := body.Decode(&q); err != nil {
			return formatCUEError(err)
		}
		q.Name = label
		queues = append(queues, q)
		return nil
	})
	return queues, err
}

// parseResources extracts resources. The label carries the frame offset.
func parseResources(v cue.Value) ([]ir.ResourceSpec, error) {
	var resources []ir.ResourceSpec
	err := eachField(v, "resource", func(label string, body cue.Value) error {
		name, frame, err := ir.ParseResourceKey(label)
		if err != nil {
			return &CompileError{Field: "resource." + label, Message: err.Error(), Pos: body.Pos()}
		}
		var r ir.ResourceSpec
		if err := body.Decode(&r); err != nil {
			return formatCUEError(err)
		}
		r.Name, r.Frame = name, frame
		resources = append(resources, r)
		return nil
	})
	return resources, err
}

// parsePasses extracts passes in declaration order.
func parsePasses(v cue.Value) ([]ir.PassSpec, error) {
	var passes []ir.PassSpec
	err := eachField(v, "pass", func(label string, body cue.Value) error {
		var p ir.PassSpec
		if err := body.Decode(&p); err != nil {
			return formatCUEError(err)
		}
		p.Name = label
		passes = append(passes, p)
		return nil
	})
	return passes, err
}

func eachField(v cue.Value, path string, fn func(label string, body cue.Value) error) error {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return nil
	}
	iter, err := val.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if err := fn(iter.Selector().Unquoted(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
