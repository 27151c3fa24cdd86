// Package locus implements the path algebra of the locus tree.
//
// Loci are addressed by dot-separated paths ("0.1.2"). The path string is the
// index key everywhere in the engine; this package only derives new paths from
// existing ones and never holds tree nodes.
package locus

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Root is the canonical root path. The empty path is accepted as an alias.
const Root = "0"

var atomRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Normalize maps the empty path to Root.
func Normalize(path string) string {
	if path == "" {
		return Root
	}
	return path
}

// ValidSegment reports whether s is a non-negative integer or an atom.
func ValidSegment(s string) bool {
	if s == "" {
		return false
	}
	if isNumeric(s) {
		return true
	}
	return atomRe.MatchString(s)
}

// Validate checks that path is well formed.
func Validate(path string) error {
	path = Normalize(path)
	for i, seg := range strings.Split(path, ".") {
		if !ValidSegment(seg) {
			return fmt.Errorf("invalid segment %d (%q) in path %q", i, seg, path)
		}
	}
	return nil
}

// Segments splits a path into its segments.
func Segments(path string) []string {
	return strings.Split(Normalize(path), ".")
}

// Depth is the number of segments below the root; the root has depth 0.
func Depth(path string) int {
	return len(Segments(path)) - 1
}

// Parent drops the last segment. The parent of a single-segment path is "".
func Parent(path string) string {
	path = Normalize(path)
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Last returns the last segment of path.
func Last(path string) string {
	path = Normalize(path)
	return path[strings.LastIndexByte(path, '.')+1:]
}

// Child appends one segment.
func Child(path, seg string) string {
	return Normalize(path) + "." + seg
}

// ChildPaths derives the child paths opened by a ramification, in ramification order.
func ChildPaths(path string, ramification []string) []string {
	out := make([]string, 0, len(ramification))
	for _, seg := range ramification {
		out = append(out, Child(path, seg))
	}
	return out
}

// Ancestors lists every proper ancestor of path, root first.
func Ancestors(path string) []string {
	segs := Segments(path)
	out := make([]string, 0, len(segs)-1)
	for i := 1; i < len(segs); i++ {
		out = append(out, strings.Join(segs[:i], "."))
	}
	return out
}

// IsPrefix reports whether anc is path or one of its ancestors.
func IsPrefix(anc, path string) bool {
	anc, path = Normalize(anc), Normalize(path)
	return path == anc || strings.HasPrefix(path, anc+".")
}

// Rebase moves path from the subtree rooted at from to the subtree rooted at to.
// It reports false when path is not inside from.
func Rebase(path, from, to string) (string, bool) {
	path, from, to = Normalize(path), Normalize(from), Normalize(to)
	if !IsPrefix(from, path) {
		return path, false
	}
	return to + path[len(from):], true
}

// Compare orders paths segment by segment: numeric segments numerically, numbers
// before atoms, atoms lexically, and a parent before its children.
func Compare(a, b string) int {
	as, bs := Segments(a), Segments(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func compareSegment(a, b string) int {
	an, bn := isNumeric(a), isNumeric(b)
	switch {
	case an && bn:
		x, _ := strconv.ParseUint(a, 10, 64)
		y, _ := strconv.ParseUint(b, 10, 64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return strings.Compare(a, b)
	case an:
		return -1
	case bn:
		return 1
	}
	return strings.Compare(a, b)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
