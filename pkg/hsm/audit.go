package hsm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// AUDIT LOG:
// Every transaction can be appended to an audit log as a CBOR data item. The file
// is a CBOR sequence (items written back to back) so it can be appended to without
// rewriting. Key material never reaches the log: only codes, sizes and timings.

// AuditRecord is the persisted summary of a Transaction.
type AuditRecord struct {
	Time          time.Time `cbor:"1,keyasint"`
	Command       string    `cbor:"2,keyasint"`
	ErrorCode     string    `cbor:"3,keyasint,omitempty"`
	RequestBytes  int       `cbor:"4,keyasint"`
	ResponseBytes int       `cbor:"5,keyasint"`
	Micros        int64     `cbor:"6,keyasint"`
	Error         string    `cbor:"7,keyasint,omitempty"`
}

// NewAuditRecord summarizes tx.
func NewAuditRecord(tx Transaction) AuditRecord {
	rec := AuditRecord{
		Time:         tx.Started.UTC(),
		Command:      string(tx.Command),
		RequestBytes: len(tx.Request),
		Micros:       tx.Duration.Microseconds(),
	}
	if tx.Response != nil {
		rec.ErrorCode = string(tx.Response.ErrorCode)
		rec.ResponseBytes = len(tx.Response.Raw)
	}
	if tx.Err != nil {
		rec.Error = tx.Err.Error()
	}
	return rec
}

// AuditLog appends AuditRecords to a writer.
type AuditLog struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	c   io.Closer
}

var auditEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// NewAuditLog writes records to w. If w is an io.Closer, Close closes it.
func NewAuditLog(w io.Writer) *AuditLog {
	a := &AuditLog{enc: auditEncMode.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		a.c = c
	}
	return a
}

// OpenAuditFile opens path for appending, creating it if needed.
func OpenAuditFile(path string) (*AuditLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("hsm: open audit file: %w", err)
	}
	return NewAuditLog(f), nil
}

// Write appends the record of tx.
func (a *AuditLog) Write(tx Transaction) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enc.Encode(NewAuditRecord(tx))
}

// Close closes the underlying writer when it can be closed.
func (a *AuditLog) Close() error {
	if a.c == nil {
		return nil
	}
	return a.c.Close()
}

// ReadAudit decodes every record of a CBOR sequence.
func ReadAudit(r io.Reader) ([]AuditRecord, error) {
	dm, err := cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		return nil, err
	}

	dec := dm.NewDecoder(r)
	var records []AuditRecord
	for {
		var rec AuditRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, fmt.Errorf("hsm: audit record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}
