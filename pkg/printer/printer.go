// Package printer defines the printer entity and the read-mostly repository
// used to pick a target printer for a job.
package printer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/3leaps/gospool/pkg/pages"
)

// ErrNotFound indicates the requested printer does not exist.
var ErrNotFound = errors.New("printer not found")

// Printer is a configured print destination.
type Printer struct {
	ID            int64   `yaml:"id" json:"id"`
	Name          string  `yaml:"name" json:"name"`
	SpoolName     string  `yaml:"spool_name" json:"spool_name"`
	Priority      int     `yaml:"priority" json:"priority"`
	PriceOneSided float64 `yaml:"price_one_sided" json:"price_one_sided"`
	PriceTwoSided float64 `yaml:"price_two_sided" json:"price_two_sided"`
	Inactive      bool    `yaml:"inactive,omitempty" json:"inactive,omitempty"`
}

// Active reports whether the printer can be selected.
func (p Printer) Active() bool {
	return !p.Inactive
}

// Prices returns the printer's price pair.
func (p Printer) Prices() pages.Prices {
	return pages.Prices{OneSided: p.PriceOneSided, TwoSided: p.PriceTwoSided}
}

// Repository is the printer collaborator consumed by job construction.
type Repository interface {
	FindAll(ctx context.Context) ([]Printer, error)
	FindDefault(ctx context.Context) (Printer, bool, error)
}

// DefaultOf returns the active printer with the lowest priority number.
// ok is false when no active printer exists.
func DefaultOf(printers []Printer) (Printer, bool) {
	var best Printer
	found := false
	for _, p := range printers {
		if !p.Active() {
			continue
		}
		if !found || p.Priority < best.Priority {
			best = p
			found = true
		}
	}
	return best, found
}

// Validate checks that active priorities are unique and spool names are set.
func Validate(printers []Printer) error {
	seenPriority := make(map[int]string, len(printers))
	seenID := make(map[int64]struct{}, len(printers))
	for _, p := range printers {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("printer %d: name is required", p.ID)
		}
		if strings.TrimSpace(p.SpoolName) == "" {
			return fmt.Errorf("printer %q: spool_name is required", p.Name)
		}
		if p.PriceOneSided < 0 || p.PriceTwoSided < 0 {
			return fmt.Errorf("printer %q: prices must not be negative", p.Name)
		}
		if _, dup := seenID[p.ID]; dup {
			return fmt.Errorf("printer %q: duplicate id %d", p.Name, p.ID)
		}
		seenID[p.ID] = struct{}{}
		if !p.Active() {
			continue
		}
		if other, dup := seenPriority[p.Priority]; dup {
			return fmt.Errorf("printers %q and %q share priority %d", other, p.Name, p.Priority)
		}
		seenPriority[p.Priority] = p.Name
	}
	return nil
}

// MemoryRepository is a mutex-guarded in-process Repository.
type MemoryRepository struct {
	mu       sync.RWMutex
	printers map[int64]Printer
}

// NewMemoryRepository seeds a repository with printers.
func NewMemoryRepository(printers ...Printer) *MemoryRepository {
	r := &MemoryRepository{printers: make(map[int64]Printer, len(printers))}
	for _, p := range printers {
		r.printers[p.ID] = p
	}
	return r
}

func (r *MemoryRepository) FindAll(ctx context.Context) ([]Printer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Printer, 0, len(r.printers))
	for _, p := range r.printers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// FindDefault recomputes the default on every call.
func (r *MemoryRepository) FindDefault(ctx context.Context) (Printer, bool, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return Printer{}, false, err
	}
	p, ok := DefaultOf(all)
	return p, ok, nil
}

// Get returns the printer with id.
func (r *MemoryRepository) Get(ctx context.Context, id int64) (Printer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.printers[id]
	if !ok {
		return Printer{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return p, nil
}

// FindByName matches Name or SpoolName, case-insensitively.
func (r *MemoryRepository) FindByName(ctx context.Context, name string) (Printer, error) {
	name = strings.TrimSpace(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.printers {
		if strings.EqualFold(p.Name, name) || strings.EqualFold(p.SpoolName, name) {
			return p, nil
		}
	}
	return Printer{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Save inserts or replaces p.
func (r *MemoryRepository) Save(ctx context.Context, p Printer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printers[p.ID] = p
	return nil
}

// Delete removes the printer with id.
func (r *MemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.printers[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	delete(r.printers, id)
	return nil
}
