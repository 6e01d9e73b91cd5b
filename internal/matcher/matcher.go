// Package matcher implements a whole-rebuild, immutable route matcher
// that maps a concrete request path to the rule_id of the
// longest-matching configured route, binding any "{name}" parameter
// segments along the way.
package matcher

import (
	"fmt"
	"strings"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/AlfredDev/ratelimit-gateway/internal/rule"
)

// paramRoute is one parameterized pattern, pre-split into segments so
// a lookup only needs one pass over the request path.
type paramRoute struct {
	segments []segment
	ruleID   string
}

type segment struct {
	literal string // empty when isParam
	isParam bool
	name    string
}

// Matcher is wholly immutable once Build returns it: the literal fast
// path is a *iradix.Tree (never mutated in place — every Build starts
// from iradix.New()), and the parameterized routes are a fixed slice
// sorted by specificity. A Matcher is replaced, never edited.
type Matcher struct {
	literal     *iradix.Tree // full literal path -> rule_id string
	paramRoutes []paramRoute
}

// Build constructs a new Matcher from a RuleSnapshot. Insertion errors
// for one malformed or duplicate route are collected and the route is
// skipped — they never prevent the rest of the snapshot from loading.
func Build(snapshot rule.Snapshot) (*Matcher, []error) {
	tree := iradix.New()
	var params []paramRoute
	var errs []error
	seenRoute := map[string]bool{}

	for id, r := range snapshot {
		segs, isLiteral, err := parsePattern(r.Route)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", id, err))
			continue
		}

		if seenRoute[r.Route] {
			errs = append(errs, fmt.Errorf("rule %s: duplicate route %q", id, r.Route))
			continue
		}
		seenRoute[r.Route] = true

		if isLiteral {
			tree, _, _ = tree.Insert([]byte(r.Route), id.String())
			continue
		}

		params = append(params, paramRoute{segments: segs, ruleID: id.String()})
	}

	// Longest literal prefix wins: routes with a longer run of leading
	// literal (non-param) segments are tried first, then routes with more
	// literal segments overall.
	sortBySpecificity(params)

	return &Matcher{literal: tree, paramRoutes: params}, errs
}

// Match looks up path against the Matcher and returns the matched
// rule_id, or ok=false on a miss — a miss is a pass-through at the
// caller, not an error, since an unconfigured route has no policy to
// enforce.
func (m *Matcher) Match(path string) (ruleID string, ok bool) {
	if v, found := m.literal.Get([]byte(path)); found {
		return v.(string), true
	}

	reqSegs := splitSegments(path)
	for _, p := range m.paramRoutes {
		if len(p.segments) != len(reqSegs) {
			continue
		}
		matched := true
		for i, seg := range p.segments {
			if seg.isParam {
				continue
			}
			if seg.literal != reqSegs[i] {
				matched = false
				break
			}
		}
		if matched {
			return p.ruleID, true
		}
	}

	return "", false
}

func sortBySpecificity(params []paramRoute) {
	literalCounts := func(p paramRoute) (prefix, total int) {
		inPrefix := true
		for _, s := range p.segments {
			if s.isParam {
				inPrefix = false
				continue
			}
			total++
			if inPrefix {
				prefix++
			}
		}
		return prefix, total
	}
	moreSpecific := func(a, b paramRoute) bool {
		ap, at := literalCounts(a)
		bp, bt := literalCounts(b)
		if ap != bp {
			return ap > bp
		}
		return at > bt
	}
	for i := 1; i < len(params); i++ {
		j := i
		for j > 0 && moreSpecific(params[j], params[j-1]) {
			params[j], params[j-1] = params[j-1], params[j]
			j--
		}
	}
}

// parsePattern splits a route pattern into segments and reports
// whether it is entirely literal (no "{name}" captures), plus an error
// for malformed patterns: empty segments, unbalanced braces, or empty
// parameter names.
func parsePattern(route string) ([]segment, bool, error) {
	if route == "" || !strings.HasPrefix(route, "/") {
		return nil, false, fmt.Errorf("malformed route %q: must start with /", route)
	}

	parts := splitSegments(route)
	segs := make([]segment, 0, len(parts))
	literal := true

	for _, part := range parts {
		if part == "" {
			return nil, false, fmt.Errorf("malformed route %q: empty segment", route)
		}
		if strings.Contains(part, "{") || strings.Contains(part, "}") {
			if !strings.HasPrefix(part, "{") || !strings.HasSuffix(part, "}") {
				return nil, false, fmt.Errorf("malformed route %q: unbalanced braces in segment %q", route, part)
			}
			name := part[1 : len(part)-1]
			if name == "" {
				return nil, false, fmt.Errorf("malformed route %q: empty parameter name", route)
			}
			segs = append(segs, segment{isParam: true, name: name})
			literal = false
			continue
		}
		segs = append(segs, segment{literal: part})
	}

	return segs, literal, nil
}

func splitSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, "/")
}
