package tools

import (
	"errors"
	"fmt"
)

// Tool registry errors.
var (
	// ErrToolNotFound is returned when a tool is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolNameEmpty is returned when a tool has no name.
	ErrToolNameEmpty = errors.New("tool name cannot be empty")

	// ErrToolHandlerNil is returned when a tool has no handler.
	ErrToolHandlerNil = errors.New("tool handler cannot be nil")

	// ErrToolAlreadyRegistered is returned when registering a duplicate.
	ErrToolAlreadyRegistered = errors.New("tool already registered")

	// ErrMissingArg is returned when a required argument is missing.
	ErrMissingArg = errors.New("missing required argument")

	// ErrArgType is returned when an argument has the wrong type.
	ErrArgType = errors.New("invalid argument type")

	// ErrArgValue is returned when an argument falls outside its enum.
	ErrArgValue = errors.New("invalid argument value")

	// ErrArgParse is returned when the argument payload is not valid JSON.
	ErrArgParse = errors.New("malformed tool arguments")
)

// ArgError reports which argument of which tool failed validation.
type ArgError struct {
	Tool string
	Arg  string
	Err  error
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("tool %s: argument %q: %v", e.Tool, e.Arg, e.Err)
}

func (e *ArgError) Unwrap() error {
	return e.Err
}
