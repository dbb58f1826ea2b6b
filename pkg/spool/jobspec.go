package spool

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/gospool/pkg/document"
	"github.com/3leaps/gospool/pkg/pages"
	"github.com/3leaps/gospool/pkg/printer"
)

// SpecDeps are the collaborators used while building a JobSpec.
type SpecDeps struct {
	Counter   document.PageCounter
	Converter document.Converter
	Printers  printer.Repository
	Logger    *zap.Logger
}

// JobSpec is one pending print job. The caller owns it until it is handed to
// Pool.Process; after that the spec is frozen and setters are ignored.
//
// Setters are chainable and recompute the derived page and cost figures.
type JobSpec struct {
	mu sync.Mutex

	id         string
	source     string
	file       string
	convertErr error

	name        string
	owner       string
	printer     printer.Printer
	hasPrinter  bool
	orientation pages.Orientation
	duplex      pages.Duplex
	layout      pages.Layout
	copies      int
	rng         pages.Range
	rangeExpr   string

	documentPages pages.Count
	selected      pages.Count
	printed       pages.Count
	cost          float64
	costKnown     bool

	frozen bool
	result *Result

	log *zap.Logger
}

// NewJobSpec prepares a job for source: it converts the source into a
// spoolable file, selects the default printer, and counts the document pages
// once. Failures are logged and recorded on the spec, never returned; they
// surface as FILE_CONVERT or PAGE_COUNT at submission.
func NewJobSpec(ctx context.Context, source string, deps SpecDeps) *JobSpec {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &JobSpec{
		id:          uuid.NewString(),
		source:      source,
		file:        source,
		name:        filepath.Base(source),
		orientation: pages.Portrait,
		duplex:      pages.OneSided,
		layout:      pages.Up1,
		copies:      1,
	}
	s.log = log.With(zap.String("job_id", s.id), zap.String("job", s.name))

	if deps.Converter != nil {
		out, err := deps.Converter.Convert(ctx, source)
		if err != nil {
			s.convertErr = err
			s.log.Error("Failed to convert source", zap.String("source", source), zap.Error(err))
		} else {
			s.file = out
		}
	}

	if deps.Printers != nil {
		p, ok, err := deps.Printers.FindDefault(ctx)
		switch {
		case err != nil:
			s.log.Warn("Failed to resolve default printer", zap.Error(err))
		case ok:
			s.printer = p
			s.hasPrinter = true
		default:
			s.log.Warn("No default printer configured")
		}
	}

	if s.convertErr == nil && deps.Counter != nil {
		n, err := deps.Counter.CountPages(ctx, s.file)
		if err != nil {
			s.log.Warn("Failed to count document pages", zap.String("file", filepath.Base(s.file)), zap.Error(err))
		} else {
			s.documentPages = pages.Of(n)
		}
	}

	s.recompute()
	return s
}

// WithName sets the display name.
func (s *JobSpec) WithName(name string) *JobSpec {
	return s.mutate("name", func() {
		if n := strings.TrimSpace(name); n != "" {
			s.name = n
		}
	})
}

// WithOwner sets the owning user.
func (s *JobSpec) WithOwner(owner string) *JobSpec {
	return s.mutate("owner", func() { s.owner = strings.TrimSpace(owner) })
}

func (s *JobSpec) WithPrinter(p printer.Printer) *JobSpec {
	return s.mutate("printer", func() {
		s.printer = p
		s.hasPrinter = true
	})
}

func (s *JobSpec) WithOrientation(o pages.Orientation) *JobSpec {
	return s.mutate("orientation", func() { s.orientation = o })
}

func (s *JobSpec) WithDuplex(d pages.Duplex) *JobSpec {
	return s.mutate("duplex", func() { s.duplex = d })
}

func (s *JobSpec) WithLayout(l pages.Layout) *JobSpec {
	return s.mutate("layout", func() { s.layout = l })
}

// WithCopies sets the copy count. Values below 1 are ignored.
func (s *JobSpec) WithCopies(n int) *JobSpec {
	return s.mutate("copies", func() {
		if n < 1 {
			s.log.Warn("Ignoring invalid copy count", zap.Int("copies", n))
			return
		}
		s.copies = n
	})
}

// WithRange sets the page-range expression. An empty or malformed
// expression clears the range, selecting the whole document.
func (s *JobSpec) WithRange(expr string) *JobSpec {
	return s.mutate("range", func() {
		s.rangeExpr = expr
		r, ok := pages.ParseRange(expr)
		if !ok {
			if strings.TrimSpace(expr) != "" {
				s.log.Warn("Ignoring malformed page range", zap.String("range", expr))
			}
			s.rng = pages.Range{}
			return
		}
		s.rng = r
	})
}

func (s *JobSpec) mutate(field string, fn func()) *JobSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		s.log.Warn("Ignoring change to submitted job", zap.String("field", field))
		return s
	}
	fn()
	s.recomputeLocked()
	return s
}

func (s *JobSpec) recompute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked()
}

func (s *JobSpec) recomputeLocked() {
	switch {
	case !s.rng.IsZero():
		s.selected = pages.Of(s.rng.Len())
	default:
		s.selected = s.documentPages
	}
	s.printed = pages.Printed(s.selected, s.duplex, s.layout, s.copies)
	s.cost, s.costKnown = pages.Cost(s.printed, s.duplex, s.printer.Prices())
}

// freeze transfers ownership to the pool.
func (s *JobSpec) freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

// claim attaches res as the spec's one submission. It fails if the spec
// was already submitted.
func (s *JobSpec) claim(res *Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != nil {
		return false
	}
	s.result = res
	s.frozen = true
	return true
}

// claimed returns the attached result, claiming a fresh one when none exists.
func (s *JobSpec) claimed() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		s.result = newResult(s)
		s.frozen = true
	}
	return s.result
}

func (s *JobSpec) ID() string { return s.id }

// Source is the reference the job was created from.
func (s *JobSpec) Source() string { return s.source }

// File is the spoolable file, which differs from Source after conversion.
func (s *JobSpec) File() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file
}

// ConvertErr is the conversion failure recorded at construction, if any.
func (s *JobSpec) ConvertErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convertErr
}

func (s *JobSpec) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *JobSpec) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Printer returns the target printer; ok is false when none is set.
func (s *JobSpec) Printer() (printer.Printer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.printer, s.hasPrinter
}

func (s *JobSpec) Orientation() pages.Orientation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orientation
}

func (s *JobSpec) Duplex() pages.Duplex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duplex
}

func (s *JobSpec) Layout() pages.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

func (s *JobSpec) Copies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copies
}

// Range returns the valid page range; ok is false when none applies.
func (s *JobSpec) Range() (pages.Range, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng, !s.rng.IsZero()
}

func (s *JobSpec) DocumentPages() pages.Count {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentPages
}

func (s *JobSpec) SelectedPages() pages.Count {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *JobSpec) PrintedPages() pages.Count {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.printed
}

// Cost is defined exactly when PrintedPages is known.
func (s *JobSpec) Cost() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cost, s.costKnown
}

// Status derives the job state from its submission, if any.
func (s *JobSpec) Status() State {
	s.mu.Lock()
	res, frozen := s.result, s.frozen
	s.mu.Unlock()
	switch {
	case res != nil:
		return res.State()
	case frozen:
		return StateQueued
	}
	return StateCreated
}

// Logger returns the spec-scoped logger.
func (s *JobSpec) Logger() *zap.Logger {
	return s.log
}

func (s *JobSpec) scopedLogger() *zap.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.With(zap.String("owner", s.owner))
}
