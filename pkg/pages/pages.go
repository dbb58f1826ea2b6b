// Package pages implements the page arithmetic used to price and submit
// print jobs: duplex and number-up folding, copy multiplication, cost, and
// page-range expressions.
//
// All folds are ceiling divisions. A page count that could not be determined
// is carried as an unknown Count and propagates through every operation.
package pages

import (
	"fmt"
	"strings"
)

// Count is a page count that may be unknown.
type Count struct {
	N     int
	Known bool
}

// Unknown is the undefined page count.
var Unknown = Count{}

// Of returns a known count for n, or Unknown when n is not positive.
func Of(n int) Count {
	if n <= 0 {
		return Unknown
	}
	return Count{N: n, Known: true}
}

func (c Count) String() string {
	if !c.Known {
		return "unknown"
	}
	return fmt.Sprintf("%d", c.N)
}

// Duplex is the sides mode of a job.
type Duplex int

const (
	OneSided Duplex = iota
	TwoSidedShortEdge
	TwoSidedLongEdge
)

var duplexTokens = map[Duplex]string{
	OneSided:          "one-sided",
	TwoSidedShortEdge: "two-sided-short-edge",
	TwoSidedLongEdge:  "two-sided-long-edge",
}

// String returns the spooler token for d.
func (d Duplex) String() string {
	if s, ok := duplexTokens[d]; ok {
		return s
	}
	return fmt.Sprintf("duplex(%d)", int(d))
}

// IsTwoSided reports whether sheets are printed on both sides.
func (d Duplex) IsTwoSided() bool {
	return d == TwoSidedShortEdge || d == TwoSidedLongEdge
}

// ParseDuplex accepts the spooler tokens, case-insensitively.
func ParseDuplex(s string) (Duplex, error) {
	token := strings.ToLower(strings.TrimSpace(s))
	for d, name := range duplexTokens {
		if name == token {
			return d, nil
		}
	}
	return OneSided, fmt.Errorf("unknown duplex mode %q", s)
}

// Fold maps a page count to the number of sheet sides consumed.
func (d Duplex) Fold(n int) int {
	if d.IsTwoSided() {
		return ceilDiv(n, 2)
	}
	return n
}

// Layout is the number of logical pages per physical side.
type Layout int

const (
	Up1  Layout = 1
	Up2  Layout = 2
	Up4  Layout = 4
	Up8  Layout = 8
	Up16 Layout = 16
)

// ParseLayout rejects values outside {1,2,4,8,16}.
func ParseLayout(n int) (Layout, error) {
	switch Layout(n) {
	case Up1, Up2, Up4, Up8, Up16:
		return Layout(n), nil
	}
	return Up1, fmt.Errorf("unsupported number-up %d (want 1, 2, 4, 8 or 16)", n)
}

// Fold maps a page count to the number of physical sides.
func (l Layout) Fold(n int) int {
	if l <= 0 {
		return n
	}
	return ceilDiv(n, int(l))
}

// Orientation of the printed page.
type Orientation int

const (
	Portrait Orientation = iota
	Landscape
)

func (o Orientation) String() string {
	if o == Landscape {
		return "landscape"
	}
	return "portrait"
}

// ParseOrientation accepts "portrait" or "landscape"; empty means portrait.
func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "portrait":
		return Portrait, nil
	case "landscape":
		return Landscape, nil
	}
	return Portrait, fmt.Errorf("unknown orientation %q", s)
}

// Prices is the per-sheet-side price pair of a printer.
type Prices struct {
	OneSided float64
	TwoSided float64
}

// For returns the price applicable to duplex mode d.
func (p Prices) For(d Duplex) float64 {
	if d.IsTwoSided() {
		return p.TwoSided
	}
	return p.OneSided
}

// Printed computes layout(duplex(selected)) * copies.
func Printed(selected Count, d Duplex, l Layout, copies int) Count {
	if !selected.Known || copies <= 0 {
		return Unknown
	}
	return Of(l.Fold(d.Fold(selected.N)) * copies)
}

// Cost prices a printed page count. ok is false when printed is unknown.
func Cost(printed Count, d Duplex, p Prices) (float64, bool) {
	if !printed.Known {
		return 0, false
	}
	return float64(printed.N) * p.For(d), true
}

func ceilDiv(n, k int) int {
	if k <= 1 {
		return n
	}
	return (n + k - 1) / k
}
