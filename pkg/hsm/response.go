package hsm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// RESPONSE PARSING:
// Every response opens with the same 10-octet prologue:
//   [0,2)  echo of the length prefix
//   [2,6)  header
//   [6,8)  response code
//   [8,10) error code
//
// When the error code is "00" the payload is cut into named fields following the
// command Layout. Any other code means the HSM refused the request: the payload is
// not interpreted and only the prologue fields are populated.

const prologueLength = 10

// Names of the prologue entries in Response.Fields.
const (
	FieldHeader       = "Header"
	FieldResponseCode = "ResponseCode"
	FieldErrorCode    = "ErrorCode"
)

// Rest is the Width of a field that consumes everything left in the response.
const Rest = -1

// Field is one entry of a Layout.
type Field struct {
	Name  string
	Width int // Number of bytes, or Rest.
	// Offset, when non zero, is the absolute position of the field in the response.
	// It lets a layout skip bytes the HSM inserts between two fields.
	Offset int
}

// Layout is the ordered list of fields following the prologue.
type Layout []Field

// ErrInvalidLayout is returned for layouts that cannot be applied.
var ErrInvalidLayout = errors.New("hsm: invalid layout")

// Validate checks names are unique and not reserved, widths are positive
// and Rest is only used by the last field.
func (l Layout) Validate() error {
	seen := make(map[string]bool, len(l))
	for i, f := range l {
		switch {
		case f.Name == "":
			return fmt.Errorf("%w: field %d has no name", ErrInvalidLayout, i)
		case f.Name == FieldHeader || f.Name == FieldResponseCode || f.Name == FieldErrorCode:
			return fmt.Errorf("%w: %q is reserved", ErrInvalidLayout, f.Name)
		case seen[f.Name]:
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidLayout, f.Name)
		case f.Width == Rest && i != len(l)-1:
			return fmt.Errorf("%w: %q consumes the rest but is not last", ErrInvalidLayout, f.Name)
		case f.Width != Rest && f.Width <= 0:
			return fmt.Errorf("%w: %q has width %d", ErrInvalidLayout, f.Name, f.Width)
		case f.Offset != 0 && f.Offset < prologueLength:
			return fmt.Errorf("%w: %q starts inside the prologue", ErrInvalidLayout, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// Response is a parsed HSM response.
type Response struct {
	Command      CommandCode // Set by Session.Do.
	Raw          []byte
	Echo         []byte
	Header       Header
	ResponseCode string
	ErrorCode    ErrorCode
	Fields       map[string]string
}

// ParseResponse decodes the prologue of raw and, on success, the fields of layout.
// A non "00" error code is not an error of ParseResponse: see Response.Err.
func ParseResponse(raw []byte, layout Layout) (*Response, error) {
	if len(raw) < prologueLength {
		return nil, &ResponseTooShortError{Length: len(raw)}
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	code := ErrorCode(raw[8:10])
	if !code.IsValid() {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("error code %q is not numeric", string(code))}
	}

	resp := &Response{
		Raw:          append([]byte(nil), raw...),
		Echo:         append([]byte(nil), raw[0:2]...),
		Header:       Header(raw[2:6]),
		ResponseCode: string(raw[6:8]),
		ErrorCode:    code,
		Fields: map[string]string{
			FieldHeader:       string(raw[2:6]),
			FieldResponseCode: string(raw[6:8]),
			FieldErrorCode:    string(code),
		},
	}

	if !code.IsSuccess() {
		return resp, nil
	}

	cursor := prologueLength
	for _, f := range layout {
		if f.Offset != 0 {
			cursor = f.Offset
		}
		if cursor > len(raw) {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("field %s starts at %d, response has %d bytes", f.Name, cursor, len(raw))}
		}

		end := len(raw)
		if f.Width != Rest {
			end = cursor + f.Width
		}
		if end > len(raw) {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("field %s needs bytes [%d,%d), response has %d", f.Name, cursor, end, len(raw))}
		}

		resp.Fields[f.Name] = string(raw[cursor:end])
		cursor = end
	}

	return resp, nil
}

// IsSuccess reports whether the HSM accepted the request.
func (r *Response) IsSuccess() bool {
	return r != nil && r.ErrorCode.IsSuccess()
}

// Err returns an *HsmError when the error code is not "00", nil otherwise.
func (r *Response) Err() error {
	if r.IsSuccess() {
		return nil
	}
	if r == nil {
		return &MalformedResponseError{Reason: "no response"}
	}
	return &HsmError{Command: r.Command, Code: r.ErrorCode}
}

// Get returns the named field, or "" when it is absent.
func (r *Response) Get(name string) string {
	return r.Fields[name]
}

// Lookup returns the named field and whether it is present.
func (r *Response) Lookup(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Payload returns the bytes following the prologue.
func (r *Response) Payload() []byte {
	if len(r.Raw) < prologueLength {
		return nil
	}
	return r.Raw[prologueLength:]
}

// String renders the fields sorted by name, prologue first.
func (r *Response) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s=%s %s=%s %s=%s", FieldHeader, r.Header, FieldResponseCode, r.ResponseCode, FieldErrorCode, r.ErrorCode))

	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		if name == FieldHeader || name == FieldResponseCode || name == FieldErrorCode {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString(fmt.Sprintf(" %s=%s", name, r.Fields[name]))
	}
	return sb.String()
}
