package invocation

import (
	"errors"
	"strconv"
	"strings"
)

// DefaultCommandsTimeout replaces the suite count when none is configured.
const DefaultCommandsTimeout = 5

// selectionParameters narrow a run to a subset of a suite and are dropped
// when the invocation is repointed at a custom command.
var selectionParameters = map[string]bool{
	"SHARD_INDEX":  true,
	"SHARD_NUMBER": true,
	"SKIPFILE":     true,
}

// RewriteOptions configure Rewrite.
type RewriteOptions struct {
	// Suite names the collection entry ("<suite>=<n>") replaced by the
	// commands timeout.
	Suite string
	// Command is the shell command to run instead of the suite.
	Command string
	// CommandSet feeds the command-name parameter; defaults to Command.
	CommandSet []string
	// CommandsTimeout defaults to DefaultCommandsTimeout.
	CommandsTimeout int
}

// Rewrite returns a copy of inv that runs opts.Command instead of the
// originally selected tests. inv is not modified.
func Rewrite(inv *Invocation, opts RewriteOptions) (*Invocation, error) {
	if strings.TrimSpace(opts.Command) == "" {
		return nil, errors.New("rewrite: empty command")
	}
	timeout := opts.CommandsTimeout
	if timeout <= 0 {
		timeout = DefaultCommandsTimeout
	}
	out := &Invocation{Mode: inv.Mode, Tokens: make([]Token, 0, len(inv.Tokens)+3)}
	for _, t := range inv.Tokens {
		switch {
		case t.Kind == CommandToken:
			continue
		case t.Name == "tests":
			continue
		case t.Nested() && t.Name == "parameters" && selectionParameters[t.Key]:
			continue
		case t.Nested() && opts.Suite != "" && t.Key == opts.Suite:
			n := strconv.Itoa(timeout)
			t = Token{Kind: KeyValueToken, Name: t.Name, Key: "commands", Value: n, Raw: "commands=" + n, Number: timeout}
		case inv.Mode == Local && (t.Name == "save-outputs" || t.Name == "log-file"):
			continue
		case inv.Mode == Remote && t.Name == "commands" && !t.Nested():
			continue
		case inv.Mode == Remote && t.Nested() && t.Name == "parameters" && t.Key == "command-name":
			continue
		}
		out.Tokens = append(out.Tokens, t)
	}

	switch inv.Mode {
	case Local:
		out.Tokens = append(out.Tokens,
			Token{Kind: FlagToken, Name: "save-outputs"},
			Token{Kind: KeyValueToken, Name: "log-file", Value: "-", Raw: "-"},
			Token{Kind: CommandToken, Value: opts.Command, Raw: singleQuote(opts.Command)},
		)
	case Remote:
		set := opts.CommandSet
		if len(set) == 0 {
			set = []string{opts.Command}
		}
		name := CommandName(set)
		out.Tokens = append(out.Tokens,
			Token{Kind: KeyValueToken, Name: "parameters", Key: "command-name", Value: name, Raw: "command-name=" + name},
			Token{Kind: KeyValueToken, Name: "commands", Value: "'" + opts.Command + "'", Raw: doubleQuote("'" + opts.Command + "'")},
		)
	default:
		return nil, errors.New("rewrite: unknown invocation mode")
	}
	return out, nil
}

// CustomReproducer rewrites every mode invocation found in a reproducer
// script and returns a new script running opts.Command. Lines continued
// with a trailing backslash are joined first.
func CustomReproducer(script string, opts RewriteOptions, mode Mode) (string, error) {
	var lines []string
	for _, line := range joinContinuations(script) {
		if !IsInvocation(line, mode) {
			continue
		}
		inv, err := Parse(line)
		if err != nil {
			return "", err
		}
		rw, err := Rewrite(inv, opts)
		if err != nil {
			return "", err
		}
		lines = append(lines, Serialize(rw))
	}
	if len(lines) == 0 {
		return "", &MalformedError{Reason: "no " + mode.Directive() + " invocation in reproducer"}
	}
	return "#!/bin/bash\n" + strings.Join(lines, "\n") + "\n", nil
}

func joinContinuations(script string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasSuffix(line, `\`) && !strings.HasSuffix(line, `\\`) {
			cur.WriteString(strings.TrimSuffix(line, `\`))
			cur.WriteByte(' ')
			continue
		}
		cur.WriteString(line)
		out = append(out, cur.String())
		cur.Reset()
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
