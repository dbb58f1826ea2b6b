package pages

import (
	"strconv"
	"strings"
)

// Range is a parsed page-range expression such as "1-3,5,7-8".
//
// Expansion is literal: order and duplicates are preserved, so "3,1,1"
// selects three pages.
type Range struct {
	expr  string
	pages []int
}

// ParseRange parses expr. Whitespace is ignored. ok is false for an empty or
// malformed expression (non-numeric parts, missing bounds, pages below 1, or
// a descending span); callers treat that as "no range".
func ParseRange(expr string) (Range, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, expr)
	if cleaned == "" {
		return Range{}, false
	}

	var out []int
	for _, token := range strings.Split(cleaned, ",") {
		bounds := strings.Split(token, "-")
		switch len(bounds) {
		case 1:
			n, ok := parsePage(bounds[0])
			if !ok {
				return Range{}, false
			}
			out = append(out, n)
		case 2:
			lo, ok := parsePage(bounds[0])
			if !ok {
				return Range{}, false
			}
			hi, ok := parsePage(bounds[1])
			if !ok || hi < lo {
				return Range{}, false
			}
			for p := lo; p <= hi; p++ {
				out = append(out, p)
			}
		default:
			return Range{}, false
		}
	}
	return Range{expr: cleaned, pages: out}, true
}

func parsePage(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Pages returns the expanded page list.
func (r Range) Pages() []int {
	out := make([]int, len(r.pages))
	copy(out, r.pages)
	return out
}

// Len is the number of selected pages, duplicates included.
func (r Range) Len() int {
	return len(r.pages)
}

// IsZero reports whether r holds no selection.
func (r Range) IsZero() bool {
	return len(r.pages) == 0
}

// String returns the whitespace-free expression handed to the spooler.
func (r Range) String() string {
	return r.expr
}
