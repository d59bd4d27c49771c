package invocation

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// DefaultPlanDescription is the description of generated plans.
const DefaultPlanDescription = "Run tests from customised reproducers."

// listKeys always fold into lists, even with a single value.
var listKeys = map[string]bool{
	"commands": true,
	"overlay":  true,
}

// Mapping is a string-keyed map that remembers insertion order.
type Mapping struct {
	keys   []string
	values map[string]any
}

// NewMapping returns an empty Mapping.
func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]any)}
}

// Keys returns the keys in insertion order.
func (m *Mapping) Keys() []string { return append([]string(nil), m.keys...) }

// Len returns the number of keys.
func (m *Mapping) Len() int { return len(m.keys) }

// Get returns the value stored under key.
func (m *Mapping) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set stores v under key, keeping the original position of existing keys.
func (m *Mapping) Set(key string, v any) {
	if m.values == nil {
		m.values = make(map[string]any)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// MarshalYAML emits the keys in insertion order.
func (m *Mapping) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.keys {
		var v yaml.Node
		if err := v.Encode(m.values[k]); err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, &v)
	}
	return node, nil
}

// UnmarshalYAML reads a mapping back, keeping key order. Nested mappings
// become *Mapping, sequences become []string.
func (m *Mapping) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]
		switch val.Kind {
		case yaml.MappingNode:
			sub := NewMapping()
			if err := sub.UnmarshalYAML(val); err != nil {
				return err
			}
			m.Set(key, sub)
		case yaml.SequenceNode:
			var list []string
			if err := val.Decode(&list); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			m.Set(key, list)
		default:
			var v any
			if err := val.Decode(&v); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			m.Set(key, v)
		}
	}
	return nil
}

// PlanEntry is one test in a tuxsuite plan, derived from an invocation.
type PlanEntry struct {
	Mapping
	// Conflicts lists repeated KEY=VALUE entries whose later value was
	// ignored. They are not part of the marshalled entry.
	Conflicts []string
}

// Fold converts an invocation into a plan entry. Repeated keys accumulate
// instead of overwriting; a repeated KEY=VALUE entry keeps its first value
// and is recorded in Conflicts.
func Fold(inv *Invocation) (*PlanEntry, error) {
	e := &PlanEntry{Mapping: *NewMapping()}
	line := Serialize(inv)
	for _, t := range inv.Tokens {
		key := strings.ReplaceAll(t.Name, "-", "_")
		var err error
		switch {
		case t.Kind == CommandToken:
			err = e.add(line, "commands", stripQuotes(t.Value))
		case t.Kind == FlagToken:
			err = e.flag(line, key)
		case t.Nested():
			err = e.nest(line, key, t)
		case key == "commands":
			err = e.add(line, key, stripQuotes(t.Value))
		default:
			err = e.add(line, key, t.Value)
		}
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *PlanEntry) flag(line, key string) error {
	existing, ok := e.Get(key)
	if !ok {
		e.Set(key, true)
		return nil
	}
	if _, isBool := existing.(bool); !isBool {
		return malformed(line, "--%s given both with and without a value", key)
	}
	return nil
}

func (e *PlanEntry) add(line, key, v string) error {
	existing, ok := e.Get(key)
	if !ok {
		if listKeys[key] {
			e.Set(key, []string{v})
		} else {
			e.Set(key, v)
		}
		return nil
	}
	switch ex := existing.(type) {
	case string:
		e.Set(key, []string{ex, v})
	case []string:
		e.Set(key, append(ex, v))
	case bool:
		return malformed(line, "--%s given both with and without a value", key)
	default:
		return malformed(line, "--%s mixes KEY=VALUE entries and plain values", key)
	}
	return nil
}

func (e *PlanEntry) nest(line, key string, t Token) error {
	var v any = t.Value
	if t.Name == "timeouts" {
		v = t.Number
	}
	existing, ok := e.Get(key)
	if !ok {
		m := NewMapping()
		m.Set(t.Key, v)
		e.Set(key, m)
		return nil
	}
	m, isMap := existing.(*Mapping)
	if !isMap {
		return malformed(line, "--%s mixes KEY=VALUE entries and plain values", key)
	}
	if prev, dup := m.Get(t.Key); dup {
		if prev != v {
			e.Conflicts = append(e.Conflicts, fmt.Sprintf("--%s %s: kept %v, ignored %v", key, t.Key, prev, v))
		}
		return nil
	}
	m.Set(t.Key, v)
	return nil
}

func stripQuotes(s string) string {
	return strings.NewReplacer(`'`, "", `"`, "").Replace(s)
}

// Job groups plan entries.
type Job struct {
	Name  string       `yaml:"name"`
	Tests []*PlanEntry `yaml:"tests"`
}

// Plan is a tuxsuite plan document.
type Plan struct {
	Version     int    `yaml:"version"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Jobs        []Job  `yaml:"jobs"`
}

// NewPlan wraps entries into a single-job plan.
func NewPlan(name string, entries []*PlanEntry) *Plan {
	return &Plan{
		Version:     1,
		Name:        name,
		Description: DefaultPlanDescription,
		Jobs:        []Job{{Name: "test-command", Tests: entries}},
	}
}

// Marshal renders the plan as YAML.
func (p *Plan) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	return buf.Bytes(), nil
}

// ParsePlan decodes a plan document.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return &p, nil
}

// LineError reports a line that could not be folded.
type LineError struct {
	// Line is 1-based.
	Line int
	Err  error
}

func (e LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e LineError) Unwrap() error { return e.Err }

// ConvertLines folds every remote invocation in lines into a plan entry,
// using up to workers goroutines. Entries keep input order. Lines that
// look like tuxsuite commands but fail to parse are returned as LineErrors;
// the error result is only set when ctx is done.
func ConvertLines(ctx context.Context, lines []string, workers int) ([]*PlanEntry, []LineError, error) {
	if workers <= 0 {
		workers = 1
	}
	entries := make([]*PlanEntry, len(lines))
	errs := make([]error, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "tuxsuite test") {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			inv, err := Parse(line)
			if err == nil && inv.Mode != Remote {
				err = malformed(line, "not a %s invocation", RemotePrefix)
			}
			if err != nil {
				errs[i] = err
				return nil
			}
			entries[i], errs[i] = Fold(inv)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var out []*PlanEntry
	var lineErrs []LineError
	for i := range lines {
		switch {
		case errs[i] != nil:
			lineErrs = append(lineErrs, LineError{Line: i + 1, Err: errs[i]})
		case entries[i] != nil:
			out = append(out, entries[i])
		}
	}
	return out, lineErrs, nil
}
