// Package manifest provides loading and validation of gospool batch manifests.
//
// A batch manifest is a YAML or JSON file listing the documents one owner
// wants printed together, with shared defaults and per-job overrides.
//
// Manifests are validated against a JSON Schema before use. The schema
// enforces strict typing and disallows unknown properties.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	owner: alice
//	defaults:
//	  duplex: two-sided-long-edge
//	  layout: 2
//	jobs:
//	  - source: reports/q1.pdf
//	    range: "1-4,9"
//	  - source: s3://scans/2024/**/*.png
//	    copies: 2
package manifest

import (
	"fmt"
	"path"
	"strings"

	"github.com/3leaps/gospool/pkg/pages"
)

// Defaults applied when neither the job nor the manifest defaults set a value.
const (
	DefaultDuplex      = "one-sided"
	DefaultLayout      = 1
	DefaultOrientation = "portrait"
	DefaultCopies      = 1
)

// Manifest represents a validated batch manifest.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Owner is the user the batch is printed for.
	Owner string `json:"owner,omitempty" yaml:"owner,omitempty"`

	// Defaults apply to every job that does not override them.
	Defaults Options `json:"defaults,omitempty" yaml:"defaults,omitempty"`

	// Jobs lists the documents to print, in submission order.
	Jobs []Job `json:"jobs" yaml:"jobs"`
}

// Options are the print settings shared between defaults and jobs.
type Options struct {
	// Printer is a printer name from the catalog. Empty selects the default
	// printer.
	Printer     string `json:"printer,omitempty" yaml:"printer,omitempty"`
	Duplex      string `json:"duplex,omitempty" yaml:"duplex,omitempty"`
	Layout      int    `json:"layout,omitempty" yaml:"layout,omitempty"`
	Orientation string `json:"orientation,omitempty" yaml:"orientation,omitempty"`
	Copies      int    `json:"copies,omitempty" yaml:"copies,omitempty"`
}

// Job is one source reference. A glob or s3 pattern expands to several
// documents that share the job's settings.
type Job struct {
	Source string `json:"source" yaml:"source"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`

	// Range is a page range expression such as "1-3,7".
	Range string `json:"range,omitempty" yaml:"range,omitempty"`

	Options `yaml:",inline"`
}

// ApplyDefaults fills unset options, first from the manifest defaults and
// then from the package defaults.
func (m *Manifest) ApplyDefaults() {
	m.Defaults = m.Defaults.merge(Options{
		Duplex:      DefaultDuplex,
		Layout:      DefaultLayout,
		Orientation: DefaultOrientation,
		Copies:      DefaultCopies,
	})
	for i := range m.Jobs {
		m.Jobs[i].Options = m.Jobs[i].Options.merge(m.Defaults)
	}
}

func (o Options) merge(fallback Options) Options {
	if o.Printer == "" {
		o.Printer = fallback.Printer
	}
	if o.Duplex == "" {
		o.Duplex = fallback.Duplex
	}
	if o.Layout == 0 {
		o.Layout = fallback.Layout
	}
	if o.Orientation == "" {
		o.Orientation = fallback.Orientation
	}
	if o.Copies == 0 {
		o.Copies = fallback.Copies
	}
	return o
}

// Settings are Options parsed into page arithmetic types.
type Settings struct {
	Printer     string
	Duplex      pages.Duplex
	Layout      pages.Layout
	Orientation pages.Orientation
	Copies      int
}

// Settings parses the job options. Call after ApplyDefaults.
func (j Job) Settings() (Settings, error) {
	var s Settings
	var err error
	s.Printer = j.Printer
	if s.Duplex, err = pages.ParseDuplex(orDefault(j.Duplex, DefaultDuplex)); err != nil {
		return s, fmt.Errorf("job %s: %w", j.Source, err)
	}
	layout := j.Layout
	if layout == 0 {
		layout = DefaultLayout
	}
	if s.Layout, err = pages.ParseLayout(layout); err != nil {
		return s, fmt.Errorf("job %s: %w", j.Source, err)
	}
	if s.Orientation, err = pages.ParseOrientation(j.Orientation); err != nil {
		return s, fmt.Errorf("job %s: %w", j.Source, err)
	}
	s.Copies = j.Copies
	if s.Copies < 1 {
		s.Copies = DefaultCopies
	}
	return s, nil
}

// DisplayName returns the job name, or the base name of its source.
func (j Job) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return path.Base(strings.TrimSuffix(j.Source, "/"))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
