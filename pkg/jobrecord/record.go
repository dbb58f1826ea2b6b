// Package jobrecord persists completed print jobs.
package jobrecord

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrInvalidRecord is returned for records missing required fields.
var ErrInvalidRecord = errors.New("invalid job record")

// Record is the durable entry written once a job completes.
//
// Page counts are zero when they were not known at completion.
type Record struct {
	ID            int64     `json:"id"`
	SpoolID       string    `json:"spool_id"`
	FileName      string    `json:"file_name"`
	DocumentPages int       `json:"document_pages"`
	SelectedPages int       `json:"selected_pages"`
	PrintedPages  int       `json:"printed_pages"`
	Cost          float64   `json:"cost"`
	PrinterID     int64     `json:"printer_id"`
	PrinterName   string    `json:"printer_name,omitempty"`
	Owner         string    `json:"owner"`
	Timestamp     time.Time `json:"timestamp"`
}

// Page selects a window of results. Number is zero-based.
type Page struct {
	Number int
	Size   int
}

// DefaultPageSize is used when Page.Size is not positive.
const DefaultPageSize = 50

func (p Page) normalized() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	return p
}

// Offset is the number of rows skipped.
func (p Page) Offset() int {
	n := p.normalized()
	return n.Number * n.Size
}

// Repository is the persistence collaborator for completed jobs.
type Repository interface {
	Save(ctx context.Context, r *Record) (int64, error)
	FindByOwner(ctx context.Context, owner string) ([]Record, error)
	DeleteByOwner(ctx context.Context, owner string) (int64, error)
	FindByPrinter(ctx context.Context, printerID int64, page Page) ([]Record, error)
	FindAll(ctx context.Context) ([]Record, error)
}

func validate(r *Record) error {
	if r == nil {
		return ErrInvalidRecord
	}
	if strings.TrimSpace(r.SpoolID) == "" {
		return errors.Join(ErrInvalidRecord, errors.New("spool_id is required"))
	}
	return nil
}

// MemoryStore is an in-process Repository.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(ctx context.Context, r *Record) (int64, error) {
	if err := validate(r); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	m.records = append(m.records, *r)
	return r.ID, nil
}

func (m *MemoryStore) FindByOwner(ctx context.Context, owner string) ([]Record, error) {
	return m.filter(func(r Record) bool { return r.Owner == owner }), nil
}

func (m *MemoryStore) DeleteByOwner(ctx context.Context, owner string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	var n int64
	for _, r := range m.records {
		if r.Owner == owner {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return n, nil
}

func (m *MemoryStore) FindByPrinter(ctx context.Context, printerID int64, page Page) ([]Record, error) {
	all := m.filter(func(r Record) bool { return r.PrinterID == printerID })
	p := page.normalized()
	start := p.Offset()
	if start >= len(all) {
		return []Record{}, nil
	}
	end := start + p.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m *MemoryStore) FindAll(ctx context.Context) ([]Record, error) {
	return m.filter(func(Record) bool { return true }), nil
}

// filter returns matches newest first, ties broken by id descending.
func (m *MemoryStore) filter(keep func(Record) bool) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
