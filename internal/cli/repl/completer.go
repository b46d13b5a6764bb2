package repl

import (
	"sort"
	"strings"
)

// Builtins are handled by the loop itself.
var Builtins = []string{"exit", "history", "quit"}

// Completer provides command name suggestions.
type Completer struct {
	commands []string
}

// NewCompleter creates a Completer over commands plus the builtins.
func NewCompleter(commands []string) *Completer {
	seen := make(map[string]bool)
	var all []string
	for _, name := range append(append([]string{}, commands...), Builtins...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		all = append(all, name)
	}
	sort.Strings(all)
	return &Completer{commands: all}
}

// Complete returns the commands starting with prefix, sorted.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// Known reports whether name is a command or builtin.
func (c *Completer) Known(name string) bool {
	i := sort.SearchStrings(c.commands, name)
	return i < len(c.commands) && c.commands[i] == name
}
