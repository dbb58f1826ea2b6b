package output

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer outputs JSONL records for a print batch.
//
// Implementations must be safe for concurrent use; pool workers write job
// events from their own goroutines.
type Writer interface {
	WriteJob(ctx context.Context, job *JobRecord) error
	WriteError(ctx context.Context, err *ErrorRecord) error
	WriteSummary(ctx context.Context, sum *SummaryRecord) error
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
// Writes are serialized so lines never interleave.
type JSONLWriter struct {
	w       io.Writer
	batchID string
	now     func() time.Time

	mu     sync.Mutex
	closed bool
}

// NewJSONLWriter creates a writer tagging every record with batchID.
func NewJSONLWriter(w io.Writer, batchID string) *JSONLWriter {
	return &JSONLWriter{w: w, batchID: batchID, now: time.Now}
}

func (jw *JSONLWriter) WriteJob(ctx context.Context, job *JobRecord) error {
	return jw.writeRecord(ctx, TypeJob, job)
}

func (jw *JSONLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, err)
}

func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

// Close stops further writes. The underlying writer stays open.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	jw.closed = true
	jw.mu.Unlock()
	return nil
}

// writeRecord encodes one envelope line.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()
	if jw.closed {
		return ErrWriterClosed
	}

	var line bytes.Buffer
	rec := Record{Type: recordType, TS: jw.now().UTC(), BatchID: jw.batchID, Data: payload}
	if err := json.NewEncoder(&line).Encode(rec); err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}
	// Some writers accept partial lines; keep going until the line is out.
	for p := line.Bytes(); len(p) > 0; {
		n, err := jw.w.Write(p)
		if err == nil && n == 0 {
			err = io.ErrShortWrite
		}
		if err != nil {
			return &WriteError{Op: "write", Err: err}
		}
		p = p[n:]
	}
	return nil
}

var _ Writer = (*JSONLWriter)(nil)
