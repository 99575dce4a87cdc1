package hsm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SESSION & CORRELATION LOGIC:
// The HSM protocol carries no request identifier, so responses are matched to
// requests by position: a Session allows a single request in flight.
//
// 1. Send takes the send lock, arms a fresh completion token (a channel buffered
//    with one slot) and writes the frame.
// 2. The receive loop hands every incoming message to deliver, which takes the
//    armed token, if any, and resolves it. With no token armed the message is
//    dropped with a warning.
// 3. Send waits for its own token, the context or the timeout. On timeout or
//    cancellation the token is disarmed, so a late response cannot resolve a
//    later request.
//
// Timeouts are reported, never retried: most HSM commands are not idempotent.

// State is the lifecycle step of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSending
	StateAwaitingResponse
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateSending:
		return "Sending"
	case StateAwaitingResponse:
		return "AwaitingResponse"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown State (%d)", int(s))
	}
}

const (
	DefaultTimeout        = 5 * time.Second
	DefaultConnectTimeout = 3 * time.Second
	defaultReadBuffer     = 2 + MaxFrameLength
)

type options struct {
	header         Header
	timeout        time.Duration
	connectTimeout time.Duration
	log            logrus.FieldLogger
	strict         bool
	trace          bool
	audit          *AuditLog
}

// Option configures a Session.
type Option func(*options)

// WithHeader sets the 4-octet message header. Defaults to "HEAD".
func WithHeader(h Header) Option {
	return func(o *options) { o.header = h }
}

// WithTimeout sets how long Send waits for a response. Defaults to 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithConnectTimeout bounds the TCP dial. Defaults to 3 seconds.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithStrictFraming reads frames by their length prefix and rejects frames whose
// prefix or header disagree with the received bytes.
func WithStrictFraming() Option {
	return func(o *options) { o.strict = true }
}

// WithTrace records every transaction performed by Do.
func WithTrace() Option {
	return func(o *options) { o.trace = true }
}

// WithAudit writes a record for every transaction performed by Do.
func WithAudit(a *AuditLog) Option {
	return func(o *options) { o.audit = a }
}

func newOptions(opts []Option) (options, error) {
	o := options{
		header:         DefaultHeader,
		timeout:        DefaultTimeout,
		connectTimeout: DefaultConnectTimeout,
		log:            logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.header.Validate(); err != nil {
		return o, err
	}
	if o.timeout <= 0 {
		return o, fmt.Errorf("hsm: timeout must be positive, got %s", o.timeout)
	}
	return o, nil
}

type result struct {
	raw []byte
	err error
}

// Session is a connection to one HSM. It is safe for concurrent use, requests
// are serialized.
type Session struct {
	addr string
	opts options
	log  logrus.FieldLogger

	sendMu sync.Mutex

	mu     sync.Mutex
	conn   net.Conn
	state  State
	armed  chan result
	closed bool
	broken error
	done   chan struct{}
	trace  Trace
}

// New creates a disconnected session for addr. See Connect.
func New(addr string, opts ...Option) (*Session, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Session{
		addr:  addr,
		opts:  o,
		log:   o.log.WithField("hsm", addr),
		state: StateDisconnected,
	}, nil
}

// Dial creates a session and connects it.
func Dial(ctx context.Context, addr string, opts ...Option) (*Session, error) {
	s, err := New(addr, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSession wraps an established connection.
func NewSession(conn net.Conn, opts ...Option) (*Session, error) {
	if conn == nil {
		return nil, &ConnectionError{Err: errors.New("nil connection")}
	}
	s, err := New(conn.RemoteAddr().String(), opts...)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.start(conn)
	s.mu.Unlock()
	return s, nil
}

// Connect dials the HSM. It is a no-op on a connected session.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	s.log.Debug("hsm: connecting")

	d := net.Dialer{Timeout: s.opts.connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.addr)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateDisconnected
		s.log.WithError(err).Error("hsm: connection failed")
		return &ConnectionError{Addr: s.addr, Err: err}
	}
	if s.closed {
		conn.Close()
		return ErrSessionClosed
	}

	s.broken = nil
	s.start(conn)
	s.log.Info("hsm: connected")
	return nil
}

// start must be called with s.mu held.
func (s *Session) start(conn net.Conn) {
	s.conn = conn
	s.state = StateConnected
	s.done = make(chan struct{})
	go s.receive(conn, s.done)
}

// State returns the current lifecycle step.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the address of the HSM.
func (s *Session) Addr() string {
	return s.addr
}

// Trace returns a copy of the transactions recorded so far.
func (s *Session) Trace() Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(Trace(nil), s.trace...)
}

// Send frames message (command code and parameters), writes it and returns the raw
// response frame, prefix included.
func (s *Session) Send(ctx context.Context, message []byte) ([]byte, error) {
	var code CommandCode
	if len(message) >= 2 {
		code = CommandCode(message[:2])
	}
	return s.send(ctx, code, message)
}

func (s *Session) send(ctx context.Context, code CommandCode, message []byte) ([]byte, error) {
	frame, err := FrameWithHeader(s.opts.header, message)
	if err != nil {
		return nil, err
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	tok := make(chan result, 1)

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case s.broken != nil:
		err := s.broken
		s.mu.Unlock()
		return nil, err
	case s.conn == nil || s.state != StateConnected:
		s.mu.Unlock()
		return nil, &ConnectionError{Addr: s.addr, Err: errors.New("not connected")}
	}
	conn := s.conn
	s.armed = tok
	s.state = StateSending
	s.mu.Unlock()

	log := s.log.WithField("command", string(code))
	log.Debugf("hsm: >> %x", frame)

	started := time.Now()
	deadline := started.Add(s.opts.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		s.disarm(tok)
		log.WithError(err).Error("hsm: cannot set write deadline")
		return nil, &ConnectionError{Addr: s.addr, Err: err}
	}

	if _, err := conn.Write(frame); err != nil {
		s.disarm(tok)
		log.WithError(err).Error("hsm: write failed")
		return nil, &ConnectionError{Addr: s.addr, Err: err}
	}
	s.transition(StateSending, StateAwaitingResponse)

	timer := time.NewTimer(s.opts.timeout)
	defer timer.Stop()

	select {
	case res := <-tok:
		s.transition(StateAwaitingResponse, StateConnected)
		if res.err != nil {
			return nil, res.err
		}
		log.WithField("bytes", len(res.raw)).Debugf("hsm: << %x", res.raw)
		return res.raw, nil

	case <-timer.C:
		s.disarm(tok)
		err := &TimeoutError{Command: code, Timeout: s.opts.timeout}
		log.Error(err)
		return nil, err

	case <-ctx.Done():
		s.disarm(tok)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err := &TimeoutError{Command: code, Timeout: deadline.Sub(started), Err: ctx.Err()}
			log.Error(err)
			return nil, err
		}
		log.WithError(ctx.Err()).Warn("hsm: request abandoned")
		return nil, ctx.Err()
	}
}

// disarm clears tok if it is still the armed token and returns the session to Connected.
func (s *Session) disarm(tok chan result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.armed == tok {
		s.armed = nil
	}
	if s.state == StateSending || s.state == StateAwaitingResponse {
		s.state = StateConnected
	}
}

func (s *Session) transition(from, to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == from {
		s.state = to
	}
}

func (s *Session) receive(conn net.Conn, done chan struct{}) {
	defer close(done)

	buf := make([]byte, defaultReadBuffer)
	for {
		raw, err := s.read(conn, buf)
		if raw != nil {
			s.deliver(raw)
		}
		if err != nil {
			s.fail(conn, err)
			return
		}
	}
}

// read returns one message. In permissive mode one transport read is one message;
// in strict mode the length prefix is honored.
func (s *Session) read(conn net.Conn, buf []byte) ([]byte, error) {
	if !s.opts.strict {
		n, err := conn.Read(buf)
		if n > 0 {
			return append([]byte(nil), buf[:n]...), err
		}
		if err == nil {
			return []byte{}, nil
		}
		return nil, err
	}

	var prefix [2]byte
	if _, err := io.ReadFull(conn, prefix[:]); err != nil {
		return nil, err
	}
	n := int(binary.BigEndian.Uint16(prefix[:]))
	raw := make([]byte, 2+n)
	copy(raw, prefix[:])
	if _, err := io.ReadFull(conn, raw[2:]); err != nil {
		return nil, err
	}
	return raw, nil
}

// deliver resolves the armed token with msg, or drops msg when nothing is armed.
func (s *Session) deliver(msg []byte) {
	s.mu.Lock()
	tok := s.armed
	s.armed = nil
	s.mu.Unlock()

	if tok == nil {
		prologue := msg[:min(len(msg), prologueLength)]
		s.log.WithField("bytes", len(msg)).Warnf("hsm: dropping unsolicited response %q", prologue)
		return
	}
	tok <- s.validate(msg)
}

func (s *Session) validate(msg []byte) result {
	if len(msg) == 0 {
		return result{err: &ProtocolError{Reason: "empty message"}}
	}

	var err error
	if s.opts.strict {
		_, err = UnframeStrict(msg, s.opts.header)
	} else {
		_, err = Unframe(msg)
	}
	if err != nil {
		s.log.WithError(err).Error("hsm: rejected message")
		return result{err: err}
	}
	return result{raw: msg}
}

// fail is called once the receive loop on conn stops. Unless the session is
// closing, conn is closed and the session stays broken until Connect succeeds.
func (s *Session) fail(conn net.Conn, cause error) {
	s.mu.Lock()
	tok := s.armed
	s.armed = nil
	closing := s.closed

	var err error = ErrSessionClosed
	if !closing {
		err = &ConnectionError{Addr: s.addr, Err: cause}
		s.broken = err
		s.state = StateDisconnected
	}
	s.mu.Unlock()

	if !closing {
		conn.Close()
		s.log.WithError(cause).Error("hsm: connection lost")
	}
	if tok != nil {
		tok <- result{err: err}
	}
}

// Do sends cmd and parses the response with its layout. A response carrying a
// non "00" error code is returned without error: check Response.Err.
func (s *Session) Do(ctx context.Context, cmd Command) (*Response, error) {
	code := cmd.Code()
	msg, err := cmd.Message()
	if err != nil {
		return nil, err
	}

	log := s.log.WithField("command", string(code))
	tx := Transaction{Command: code, Request: msg, Started: time.Now()}

	raw, err := s.send(ctx, code, msg)
	tx.Duration = time.Since(tx.Started)
	if err != nil {
		tx.Err = err
		s.record(tx)
		return nil, err
	}

	resp, err := ParseResponse(raw, cmd.Layout())
	if err == nil && resp.ResponseCode != code.ResponseCode() {
		err = &MalformedResponseError{Reason: fmt.Sprintf("response code %s does not answer %s", resp.ResponseCode, code)}
	}
	if err != nil {
		tx.Err = err
		s.record(tx)
		log.WithError(err).Error("hsm: unreadable response")
		return nil, err
	}

	resp.Command = code
	tx.Response = resp
	s.record(tx)

	if !resp.IsSuccess() {
		log.WithField("error_code", string(resp.ErrorCode)).Errorf("hsm: %s", resp.ErrorCode.Verbose())
	}
	return resp, nil
}

func (s *Session) record(tx Transaction) {
	if s.opts.trace {
		s.mu.Lock()
		s.trace = append(s.trace, tx)
		s.mu.Unlock()
	}
	if s.opts.audit != nil {
		if err := s.opts.audit.Write(tx); err != nil {
			s.log.WithError(err).Warn("hsm: audit write failed")
		}
	}
}

// Close closes the connection, stops the receive loop and fails the request in
// flight with ErrSessionClosed. Calling Close more than once is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.state = StateDisconnecting
	tok := s.armed
	s.armed = nil
	conn, done := s.conn, s.done
	s.mu.Unlock()

	if tok != nil {
		tok <- result{err: ErrSessionClosed}
	}

	var err error
	if conn != nil {
		err = conn.Close()
		<-done
	}

	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()

	s.log.Debug("hsm: session closed")

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return &ConnectionError{Addr: s.addr, Err: err}
	}
	return nil
}
