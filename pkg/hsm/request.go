package hsm

import "fmt"

// Command is a request the Session knows how to send and decode.
type Command interface {
	// Code is the 2-character command code.
	Code() CommandCode
	// Message returns the bytes following the header: the code and its parameters.
	Message() ([]byte, error)
	// Layout describes the fields of a successful response.
	Layout() Layout
}

// Request is a generic Command built from a code, raw parameters and a layout.
type Request struct {
	Command    CommandCode
	Parameters []byte
	Fields     Layout
}

// NewRequest creates a Request. Parameters are sent as-is after the code.
func NewRequest(code CommandCode, parameters []byte, layout Layout) *Request {
	return &Request{Command: code, Parameters: parameters, Fields: layout}
}

func (r *Request) Code() CommandCode { return r.Command }

func (r *Request) Layout() Layout { return r.Fields }

// Message validates the code and concatenates it with the parameters.
func (r *Request) Message() ([]byte, error) {
	if err := r.Command.Validate(); err != nil {
		return nil, err
	}
	if err := r.Fields.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", r.Command, err)
	}

	out := make([]byte, 0, 2+len(r.Parameters))
	out = append(out, r.Command...)
	return append(out, r.Parameters...), nil
}

// String renders the message, binary octets escaped.
func (r *Request) String() string {
	return fmt.Sprintf("%s%q", string(r.Command), r.Parameters)
}
