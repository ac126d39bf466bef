// Package filter compiles and applies the user-supplied transformation
// program that converts a request body into a container manifest.
package filter

import (
	_ "embed"
	"fmt"

	"github.com/itchyny/gojq"
)

//go:embed default.jq
var defaultSource string

// DefaultText returns the bundled filter source used when no filter is
// supplied at startup. It is the identity filter: the request body is
// expected to already be a Docker-native container manifest.
func DefaultText() string {
	return defaultSource
}

// Runtime is a compiled transformation program, shared immutably across
// request handlers.
type Runtime struct {
	code *gojq.Code
}

// Compile parses and compiles source into a Runtime. source is applied,
// at request time, to the JSON request body together with the request
// path as an auxiliary `$path` variable.
func Compile(source string) (*Runtime, error) {
	query, err := gojq.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("filter: parse: %w", err)
	}
	code, err := gojq.Compile(query, gojq.WithVariables([]string{"$path"}))
	if err != nil {
		return nil, fmt.Errorf("filter: compile: %w", err)
	}
	return &Runtime{code: code}, nil
}

// Default compiles the bundled default filter text.
func Default() (*Runtime, error) {
	return Compile(defaultSource)
}

// FirstResult applies the filter to input (decoded JSON) and the request
// path, consuming only the first produced value. It returns (nil, nil,
// false) if the filter produces no values at all; (nil, err, true) if
// producing the first value raised an error; and (value, nil, true)
// otherwise.
func FirstResult(r *Runtime, input any, path string) (any, error, bool) {
	iter := r.code.Run(input, path)
	v, ok := iter.Next()
	if !ok {
		return nil, nil, false
	}
	if err, isErr := v.(error); isErr {
		return nil, fmt.Errorf("filter: evaluation failed: %w", err), true
	}
	return v, nil, true
}
