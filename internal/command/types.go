// Package command implements the in-band bracket command protocol parsed
// from streamed model output. Commands look like [NAME: data] and may wrap
// nested brackets; everything outside a command passes through untouched.
package command

import (
	"context"
	"fmt"
	"strings"
)

// Handler runs a dispatched command. data is the trimmed text after the
// first colon, empty when the command carried none. Handlers run serially
// on the interpreter's feeding goroutine.
type Handler func(ctx context.Context, data string) error

// Command describes one registered bracket command.
type Command struct {
	Name        string
	Field       string // placeholder shown in the syntax line, e.g. "message"
	Description string
	Handler     Handler
}

// Syntax renders the command's prompt line, e.g. "[SEND:<message>]: ...".
func (c Command) Syntax() string {
	desc := c.Description
	if desc == "" {
		desc = "no description"
	}
	return fmt.Sprintf("[%s:<%s>]: %s", c.Name, c.Field, desc)
}

// ProtocolError reports a dispatched command the set does not know. It is
// the signal that the model broke protocol and the attempt should be
// retried rather than surfaced to the channel.
type ProtocolError struct {
	Name string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("the command %q is not implemented", e.Name)
}

// Set is a case-insensitive command table. Lookup keys are lower-cased;
// prompt rendering preserves registration order and original casing.
type Set struct {
	order  []string
	byName map[string]Command
}

// NewSet returns an empty command set.
func NewSet() *Set {
	return &Set{byName: make(map[string]Command)}
}

// Register adds a command. Re-registering a name replaces the handler but
// keeps its position in the prompt.
func (s *Set) Register(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("command name required")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %q requires a handler", cmd.Name)
	}
	key := strings.ToLower(cmd.Name)
	if _, exists := s.byName[key]; !exists {
		s.order = append(s.order, key)
	}
	s.byName[key] = cmd
	return nil
}

// Get looks up a command by name, case-insensitively.
func (s *Set) Get(name string) (Command, bool) {
	cmd, ok := s.byName[strings.ToLower(name)]
	return cmd, ok
}

// Len returns the number of registered commands.
func (s *Set) Len() int {
	return len(s.byName)
}

// Names returns registered command names in registration order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.order))
	for _, key := range s.order {
		names = append(names, s.byName[key].Name)
	}
	return names
}

// PromptLines renders the syntax block injected into the system prompt,
// one "- [NAME:<field>]: description" line per command.
func (s *Set) PromptLines() string {
	lines := make([]string, 0, len(s.order))
	for _, key := range s.order {
		lines = append(lines, "- "+s.byName[key].Syntax())
	}
	return strings.Join(lines, "\n")
}
