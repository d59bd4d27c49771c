package invocation

import (
	"regexp"
	"strconv"
	"strings"
)

var flagName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// collections hold KEY=VALUE entries that fold into nested mappings.
var collections = map[string]bool{
	"parameters": true,
	"timeouts":   true,
}

// IsInvocation reports whether line starts with the directive of mode.
func IsInvocation(line string, mode Mode) bool {
	m, _, ok := directive(strings.TrimSpace(line))
	return ok && m == mode
}

func directive(line string) (Mode, string, bool) {
	for _, d := range []struct {
		mode   Mode
		prefix string
		keep   string
	}{
		{Remote, RemotePrefix, ""},
		{Local, LocalPrefix, "--runtime"},
	} {
		if !strings.HasPrefix(line, d.prefix) {
			continue
		}
		rest := line[len(d.prefix):]
		if rest != "" && !isSpace(rest[0]) {
			continue
		}
		if d.keep != "" {
			rest = d.keep + rest
		}
		return d.mode, rest, true
	}
	return 0, "", false
}

// Parse tokenizes a single recorded invocation line.
func Parse(line string) (*Invocation, error) {
	trimmed := strings.TrimSpace(line)
	mode, rest, ok := directive(trimmed)
	if !ok {
		return nil, malformed(trimmed, "line does not start with %q or %q", RemotePrefix, LocalPrefix)
	}
	segs, err := segment(trimmed, rest)
	if err != nil {
		return nil, err
	}
	inv := &Invocation{Mode: mode, Tokens: make([]Token, 0, len(segs))}
	for _, s := range segs {
		t, err := parseSegment(trimmed, s)
		if err != nil {
			return nil, err
		}
		inv.Tokens = append(inv.Tokens, t)
	}
	return inv, nil
}

// segment splits s on every "--" that starts a word outside quotes. A bare
// "--" word swallows the rest of the line as the positional command.
func segment(line, s string) ([]string, error) {
	var segs []string
	start := -1
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case c == quote:
				quote = 0
			case c == '\\' && quote == '"':
				i++
			}
			continue
		}
		switch c {
		case '\\':
			i++
		case '\'', '"':
			quote = c
		case '-':
			if !strings.HasPrefix(s[i:], "--") || (i > 0 && !isSpace(s[i-1])) {
				continue
			}
			if start < 0 {
				if strings.TrimSpace(s[:i]) != "" {
					return nil, malformed(line, "unexpected text %q before first flag", strings.TrimSpace(s[:i]))
				}
			} else {
				segs = append(segs, strings.TrimSpace(s[start:i]))
			}
			start = i
			if i+2 == len(s) || isSpace(s[i+2]) {
				if err := checkQuotes(line, s[i+2:]); err != nil {
					return nil, err
				}
				return append(segs, strings.TrimSpace(s[i:])), nil
			}
			i++
		}
	}
	if quote != 0 {
		return nil, malformed(line, "unterminated %c quote", quote)
	}
	if start < 0 {
		if strings.TrimSpace(s) != "" {
			return nil, malformed(line, "unexpected text %q before first flag", strings.TrimSpace(s))
		}
		return nil, nil
	}
	return append(segs, strings.TrimSpace(s[start:])), nil
}

func checkQuotes(line, s string) error {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0 && c == quote:
			quote = 0
		case quote != '\'' && c == '\\':
			i++
		case quote == 0 && (c == '\'' || c == '"'):
			quote = c
		}
	}
	if quote != 0 {
		return malformed(line, "unterminated %c quote", quote)
	}
	return nil
}

func parseSegment(line, seg string) (Token, error) {
	body := seg[2:]
	if body == "" || isSpace(body[0]) {
		raw := strings.TrimSpace(body)
		if raw == "" {
			return Token{}, malformed(line, "empty command after --")
		}
		return Token{Kind: CommandToken, Value: unquote(raw), Raw: raw}, nil
	}
	name, raw := body, ""
	if i := strings.IndexAny(body, " \t"); i >= 0 {
		name, raw = body[:i], body[i+1:]
	}
	raw = strings.TrimSpace(raw)
	if !flagName.MatchString(name) {
		return Token{}, malformed(line, "invalid flag name %q", name)
	}
	if raw == "" {
		if name == "timeouts" {
			return Token{}, malformed(line, "--timeouts needs KEY=VALUE")
		}
		return Token{Kind: FlagToken, Name: name}, nil
	}
	t := Token{Kind: KeyValueToken, Name: name, Value: unquote(raw), Raw: raw}
	if !collections[name] {
		return t, nil
	}
	key, value, ok := strings.Cut(t.Value, "=")
	if !ok || key == "" {
		if name == "timeouts" {
			return Token{}, malformed(line, "--timeouts value %q is not KEY=VALUE", t.Value)
		}
		return t, nil
	}
	t.Key, t.Value = key, value
	if name == "timeouts" {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return Token{}, malformed(line, "timeout for %q is not an integer: %q", key, value)
		}
		t.Number = n
	}
	return t, nil
}

// unquote removes shell quoting from a single word. Text with unquoted
// whitespace is several words and is returned unchanged.
func unquote(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isSpace(c):
			return s
		case c == '\\' && i+1 < len(s):
			i++
			b.WriteByte(s[i])
		case c == '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return s
			}
			b.WriteString(s[i+1 : i+1+end])
			i += end + 1
		case c == '"':
			j := i + 1
			for ; j < len(s) && s[j] != '"'; j++ {
				if s[j] == '\\' && j+1 < len(s) && strings.IndexByte("\\\"$`", s[j+1]) >= 0 {
					j++
				}
				b.WriteByte(s[j])
			}
			if j == len(s) {
				return s
			}
			i = j
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' }
