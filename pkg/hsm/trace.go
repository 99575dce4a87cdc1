package hsm

import (
	"fmt"
	"strings"
	"time"
)

// TRANSACTION:
// A Transaction is one request frame written to the HSM followed by the response
// frame that resolved it (or the error that replaced it: timeout, closed session).
//
// TRACE:
// A Trace is the chronological list of Transactions of a Session. It is only
// recorded when the session is opened WithTrace, and can be written to an audit
// log (see AuditLog).

// Transaction represents a completed request-response pair.
type Transaction struct {
	Command  CommandCode
	Request  []byte // Message, without prefix and header.
	Response *Response
	Err      error
	Started  time.Time
	Duration time.Duration
}

// IsSuccess checks the exchange completed and the HSM returned "00".
func (t *Transaction) IsSuccess() bool {
	if t.Err != nil || t.Response == nil {
		return false
	}
	return t.Response.IsSuccess()
}

// Trace is a sequence of transactions.
type Trace []Transaction

// Last returns the final transaction of the trace, nil if the trace is empty.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess checks if the final transaction was successful.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}

// Describe renders the trace as a report, one block per transaction.
func (t Trace) Describe() string {
	var sb strings.Builder

	sb.WriteString("=== HSM TRACE ===\n")
	for i, tx := range t {
		sb.WriteString(fmt.Sprintf("[%d] Command: %s (%s)\n", i+1, tx.Command.Verbose(), tx.Duration))
		sb.WriteString(fmt.Sprintf("    >> %q\n", tx.Request))

		switch {
		case tx.Err != nil:
			sb.WriteString(fmt.Sprintf("    !! %v\n", tx.Err))
		case tx.Response != nil:
			sb.WriteString(fmt.Sprintf("    << %q\n", tx.Response.Raw))
			sb.WriteString(fmt.Sprintf("    Status: %s\n", tx.Response.ErrorCode.Verbose()))
		}
	}
	return sb.String()
}
