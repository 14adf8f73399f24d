package selection

import (
	"fmt"
	"strconv"
	"strings"
)

type policyKind int

const (
	excludeNone policyKind = iota
	excludeAll
	excludeRecent
)

// Policy decides which previously used items are off limits for a
// selection run.
type Policy struct {
	kind policyKind
	n    int
}

// ExcludeAll excludes every used item.
func ExcludeAll() Policy {
	return Policy{kind: excludeAll}
}

// ExcludeNone allows every used item to be selected again.
func ExcludeNone() Policy {
	return Policy{kind: excludeNone}
}

// ExcludeRecent excludes the n most recently used items. A negative n
// excludes the |n| oldest instead, and zero excludes nothing. When |n| is
// at least the number of used items every used item is excluded.
func ExcludeRecent(n int) Policy {
	if n == 0 {
		return ExcludeNone()
	}
	return Policy{kind: excludeRecent, n: n}
}

// ParsePolicy parses "all", "none" or "recent:N".
func ParsePolicy(s string) (Policy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "all":
		return ExcludeAll(), nil
	case "none", "":
		return ExcludeNone(), nil
	}

	if rest, ok := strings.CutPrefix(s, "recent:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return Policy{}, fmt.Errorf("invalid exclusion policy %q: %w", s, err)
		}
		return ExcludeRecent(n), nil
	}

	return Policy{}, fmt.Errorf("invalid exclusion policy %q (expected all, none or recent:N)", s)
}

// String returns the policy in the form accepted by ParsePolicy.
func (p Policy) String() string {
	switch p.kind {
	case excludeAll:
		return "all"
	case excludeRecent:
		return fmt.Sprintf("recent:%d", p.n)
	default:
		return "none"
	}
}

// Excluded returns the set of items the policy rules out, given the used
// items newest first.
func (p Policy) Excluded(used []string) map[string]struct{} {
	var picked []string
	switch p.kind {
	case excludeAll:
		picked = used
	case excludeRecent:
		k := min(abs(p.n), len(used))
		if p.n > 0 {
			picked = used[:k]
		} else {
			picked = used[len(used)-k:]
		}
	}

	excluded := make(map[string]struct{}, len(picked))
	for _, item := range picked {
		excluded[item] = struct{}{}
	}
	return excluded
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
