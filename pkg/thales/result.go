package thales

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gregLibert/hsm-gateway/pkg/hsm"
	"github.com/gregLibert/hsm-gateway/pkg/tlv"
)

// RESULT ANALYSIS:
// A Result keeps the response together with the layout that produced it so the
// fields can be listed in wire order. Text fields are shown as-is, binary ones
// (DER keys, MACs of RSA commands) as hex.

// Result is the decoded outcome of a catalog command.
type Result struct {
	*hsm.Response
	Layout hsm.Layout
}

// NewResult wraps a response with the layout of its command.
func NewResult(resp *hsm.Response, layout hsm.Layout) (*Result, error) {
	if resp == nil {
		return nil, fmt.Errorf("cannot create result from an empty response")
	}
	return &Result{Response: resp, Layout: layout}, nil
}

// Hex returns the named field as uppercase hex.
func (r *Result) Hex(name string) string {
	return strings.ToUpper(hex.EncodeToString([]byte(r.Get(name))))
}

// Values returns the layout fields present in the response, in wire order.
func (r *Result) Values() []string {
	out := make([]string, 0, len(r.Layout))
	for _, f := range r.Layout {
		if v, ok := r.Lookup(f.Name); ok {
			out = append(out, v)
		}
	}
	return out
}

// Describe returns a human-readable report of the response.
func (r *Result) Describe() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("=== %s REPORT ===\n", strings.ToUpper(r.Command.Verbose())))
	sb.WriteString(fmt.Sprintf("Header: %s\n", r.Header))
	sb.WriteString(fmt.Sprintf("Status: %s\n", r.ErrorCode.Verbose()))

	if !r.IsSuccess() || len(r.Layout) == 0 {
		return strings.TrimSuffix(sb.String(), "\n")
	}

	sb.WriteString("Fields:")
	for _, f := range r.Layout {
		v, ok := r.Lookup(f.Name)
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n    - %s: %s", f.Name, displayValue(v)))
	}
	return sb.String()
}

func displayValue(v string) string {
	if tlv.MakeSafeASCII([]byte(v)) == v {
		return v
	}
	return fmt.Sprintf("%X (%d bytes)", v, len(v))
}
