package search

import (
	"errors"
	"fmt"
	"regexp"

	"squadutils/internal/squad"
)

// Completion selects which tests count as evidence that a test run is
// usable. The two predicates are not equivalent: a completed run may hold
// only skipped tests, which have no recorded result.
type Completion int

const (
	// completionUnset is rejected by NewCriteria; callers must choose.
	completionUnset Completion = iota
	// CompletedTests accepts any test whose run is marked completed.
	// Tests carry no completion flag of their own.
	CompletedTests
	// ResultTests accepts tests with a recorded pass/fail result.
	ResultTests
)

func (c Completion) String() string {
	switch c {
	case CompletedTests:
		return "completed"
	case ResultTests:
		return "result"
	}
	return "unset"
}

// ParseCompletion maps "completed" or "result" to a Completion.
func ParseCompletion(s string) (Completion, error) {
	switch s {
	case "completed":
		return CompletedTests, nil
	case "result":
		return ResultTests, nil
	}
	return completionUnset, fmt.Errorf("unknown completion predicate %q (want completed or result)", s)
}

// Match reports whether test, found under run, satisfies the predicate.
func (c Completion) Match(run squad.TestRun, test squad.Test) bool {
	switch c {
	case CompletedTests:
		return run.Completed
	case ResultTests:
		return test.Result != nil
	}
	return false
}

// admits reports whether run can qualify before any of its tests are
// listed. SQUAD records completion on the test run, not on each test.
func (c Completion) admits(run squad.TestRun) bool {
	return c != CompletedTests || run.Completed
}

// filter narrows the remote listing as far as the predicate allows. One
// test in the requested suites is enough evidence.
func (c Completion) filter(suiteIDs []int) squad.TestFilter {
	return squad.TestFilter{SuiteIDs: suiteIDs, HasResult: c == ResultTests, Limit: 1}
}

// DefaultWindow is the number of most recent builds considered.
const DefaultWindow = 10

// Criteria is the immutable set of acceptance conditions for Find.
type Criteria struct {
	buildNames      []*regexp.Regexp
	suites          []squad.Suite
	environments    []squad.Environment
	allowUnfinished bool
	window          int
	completion      Completion
}

// CriteriaSpec is the caller-facing input to NewCriteria.
type CriteriaSpec struct {
	// BuildNames are matched in order against the whole build_name; earlier
	// patterns are preferred variants.
	BuildNames []string
	Suites     []squad.Suite
	// Environments in preference order; used as the tie-break within a build.
	Environments    []squad.Environment
	AllowUnfinished bool
	// Window caps the number of builds examined; 0 means DefaultWindow.
	Window     int
	Completion Completion
}

// NewCriteria validates spec and compiles the build-name patterns as
// full-string matches.
func NewCriteria(spec CriteriaSpec) (Criteria, error) {
	if len(spec.BuildNames) == 0 {
		return Criteria{}, errors.New("criteria: at least one build name pattern is required")
	}
	if len(spec.Environments) == 0 {
		return Criteria{}, errors.New("criteria: at least one environment is required")
	}
	if len(spec.Suites) == 0 {
		return Criteria{}, errors.New("criteria: at least one suite is required")
	}
	if spec.Completion != CompletedTests && spec.Completion != ResultTests {
		return Criteria{}, errors.New("criteria: a completion predicate must be chosen explicitly")
	}
	if spec.Window < 0 {
		return Criteria{}, fmt.Errorf("criteria: negative window %d", spec.Window)
	}

	c := Criteria{
		suites:          append([]squad.Suite(nil), spec.Suites...),
		environments:    append([]squad.Environment(nil), spec.Environments...),
		allowUnfinished: spec.AllowUnfinished,
		window:          spec.Window,
		completion:      spec.Completion,
	}
	if c.window == 0 {
		c.window = DefaultWindow
	}
	for _, p := range spec.BuildNames {
		re, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			return Criteria{}, fmt.Errorf("criteria: build name %q: %w", p, err)
		}
		c.buildNames = append(c.buildNames, re)
	}
	return c, nil
}

// Window returns the number of builds Find examines.
func (c Criteria) Window() int { return c.window }

// Completion returns the chosen test predicate.
func (c Criteria) Completion() Completion { return c.completion }

// patternIndex returns the index of the first pattern matching name, or -1.
func (c Criteria) patternIndex(name string) int {
	for i, re := range c.buildNames {
		if re.MatchString(name) {
			return i
		}
	}
	return -1
}

func (c Criteria) environmentIndex(id int) int {
	for i, env := range c.environments {
		if env.ID == id {
			return i
		}
	}
	return -1
}

func (c Criteria) environmentIDs() []int {
	ids := make([]int, len(c.environments))
	for i, env := range c.environments {
		ids[i] = env.ID
	}
	return ids
}

func (c Criteria) suiteIDs() []int {
	ids := make([]int, len(c.suites))
	for i, s := range c.suites {
		ids[i] = s.ID
	}
	return ids
}
