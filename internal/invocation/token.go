// Package invocation parses recorded tuxsuite/tuxrun command lines into
// tokens, rewrites them to run a custom command, and folds them into
// tuxsuite plan entries.
package invocation

import (
	"fmt"
	"strings"
)

// Mode identifies the interpreter directive an invocation starts with.
type Mode int

const (
	// Remote is a tuxsuite cloud submission.
	Remote Mode = iota + 1
	// Local is a tuxrun invocation on a local container runtime.
	Local
)

// Directive prefixes recognised at the start of an invocation line.
const (
	RemotePrefix = "tuxsuite test submit"
	LocalPrefix  = "tuxrun --runtime"
)

// Directive returns the text serialized before the first token.
func (m Mode) Directive() string {
	switch m {
	case Remote:
		return RemotePrefix
	case Local:
		return "tuxrun"
	}
	return ""
}

func (m Mode) String() string {
	switch m {
	case Remote:
		return "remote"
	case Local:
		return "local"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Kind is the shape of a token.
type Kind int

const (
	// FlagToken is a bare "--name".
	FlagToken Kind = iota
	// KeyValueToken is "--name value"; nested when Key is set
	// ("--parameters KEY=VALUE").
	KeyValueToken
	// CommandToken is the positional command after a bare "--".
	CommandToken
)

func (k Kind) String() string {
	switch k {
	case FlagToken:
		return "flag"
	case KeyValueToken:
		return "key-value"
	case CommandToken:
		return "command"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is one element of a parsed invocation.
type Token struct {
	Kind Kind
	// Name is the flag name without dashes; for nested tokens it names the
	// collection ("parameters", "timeouts").
	Name string
	// Key is the entry name inside a collection.
	Key string
	// Value is the value with shell quoting removed.
	Value string
	// Raw is the value text as written, used to re-serialize untouched tokens.
	Raw string
	// Number holds the integer value of a timeouts entry.
	Number int
}

// Nested reports whether t is an entry of a collection.
func (t Token) Nested() bool { return t.Kind == KeyValueToken && t.Key != "" }

// String renders the token the way it appears on a command line.
func (t Token) String() string {
	switch t.Kind {
	case FlagToken:
		return "--" + t.Name
	case CommandToken:
		if t.Raw != "" {
			return "-- " + t.Raw
		}
		return "-- " + singleQuote(t.Value)
	}
	raw := t.Raw
	if raw == "" {
		if t.Nested() {
			raw = t.Key + "=" + t.Value
		} else {
			raw = t.Value
		}
		if needsQuoting(raw) {
			raw = singleQuote(raw)
		}
	}
	return "--" + t.Name + " " + raw
}

// Invocation is a parsed command line.
type Invocation struct {
	Mode   Mode
	Tokens []Token
}

// Serialize renders inv as a single command line: directive first, then
// the tokens in order.
func Serialize(inv *Invocation) string {
	parts := make([]string, 0, len(inv.Tokens)+1)
	parts = append(parts, inv.Mode.Directive())
	for _, t := range inv.Tokens {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, " ")
}

// Find returns the first token with the given kind and name.
func (inv *Invocation) Find(kind Kind, name string) (Token, bool) {
	for _, t := range inv.Tokens {
		if t.Kind == kind && t.Name == name {
			return t, true
		}
	}
	return Token{}, false
}

func singleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func doubleQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return `"` + r.Replace(s) + `"`
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsAny(s, " \t'\"\\$`;&|<>()*?!#~")
}
