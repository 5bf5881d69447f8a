package transport

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/amrhady2/go-logix-cip/logging"
)

// EnipTransport is the concrete EtherNet/IP adapter satisfying
// logix.Transport: it owns the TCP connection, the registered session
// handle, and the Forward Open connected-session state.
type EnipTransport struct {
	address string
	dialer  net.Dialer
	timeout time.Duration
	logger  logging.Logger

	conn          net.Conn
	sessionHandle uint32
	fo            ForwardOpenConfig
	cs            connectionState
	connected     bool
	seq           uint32
}

// TransportOption configures an EnipTransport at construction.
type TransportOption func(*EnipTransport)

// WithTimeout overrides the default 5-second dial/roundtrip timeout.
func WithTimeout(d time.Duration) TransportOption {
	return func(t *EnipTransport) { t.timeout = d }
}

// WithLogger injects a logging sink for the raw encapsulation traffic.
func WithLogger(l logging.Logger) TransportOption {
	return func(t *EnipTransport) { t.logger = l }
}

// WithForwardOpenConfig overrides the default Forward Open parameters
// (connection sizes, routing path, vendor/serial).
func WithForwardOpenConfig(cfg ForwardOpenConfig) TransportOption {
	return func(t *EnipTransport) { t.fo = cfg }
}

// New dials address (host:port, default port 44818 if none given) and
// registers an EtherNet/IP session. It does not Forward Open - that is
// lazy, invoked by the logix.Client's SessionGate on first use.
func New(address string, opts ...TransportOption) (*EnipTransport, error) {
	t := &EnipTransport{
		address: address,
		timeout: 5 * time.Second,
		logger:  logging.NopLogger{},
		fo:      DefaultForwardOpenConfig(0),
	}
	for _, opt := range opts {
		opt(t)
	}

	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, "44818")
		t.address = address
	}
	conn, err := net.DialTimeout("tcp", address, t.timeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", address, err)
	}
	t.conn = conn

	if err := t.registerSession(); err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

func (t *EnipTransport) registerSession() error {
	frame := encapsulate(cmdRegisterSession, 0, registerSessionPayload())
	raw, err := t.roundTrip(frame)
	if err != nil {
		return fmt.Errorf("transport: RegisterSession: %w", err)
	}
	hdr, payload, err := parseEncapHeader(raw)
	if err != nil {
		return err
	}
	if hdr.status != 0 {
		return fmt.Errorf("transport: RegisterSession status 0x%08X", hdr.status)
	}
	if err := parseRegisterSessionResponse(payload); err != nil {
		return err
	}
	t.sessionHandle = hdr.sessionHandle
	return nil
}

// roundTrip writes frame and reads back one encapsulation reply. EtherNet/IP
// over TCP is a simple request/response protocol - no pipelining.
func (t *EnipTransport) roundTrip(frame []byte) ([]byte, error) {
	t.conn.SetDeadline(time.Now().Add(t.timeout))
	if _, err := t.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("transport: write: %w", err)
	}

	header := make([]byte, 24)
	if _, err := readFull(t.conn, header); err != nil {
		return nil, fmt.Errorf("transport: read header: %w", err)
	}
	length := int(header[2]) | int(header[3])<<8
	payload := make([]byte, length)
	if length > 0 {
		if _, err := readFull(t.conn, payload); err != nil {
			return nil, fmt.Errorf("transport: read payload: %w", err)
		}
	}
	return append(header, payload...), nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ForwardOpen implements logix.Transport: it issues the Forward Open
// request over the registered (unconnected) session and records the
// returned O->T/T->O connection ids for subsequent SendUnitData calls.
func (t *EnipTransport) ForwardOpen() error {
	req, connSerial, toConnID := buildForwardOpenRequest(t.fo)
	cpf := unconnectedDataItem(req)
	frame := encapsulate(cmdSendRRData, t.sessionHandle, append(make([]byte, 6), cpf...))

	raw, err := t.roundTrip(frame)
	if err != nil {
		return fmt.Errorf("transport: ForwardOpen: %w", err)
	}
	hdr, payload, err := parseEncapHeader(raw)
	if err != nil {
		return err
	}
	if hdr.status != 0 {
		return fmt.Errorf("transport: ForwardOpen encapsulation status 0x%08X", hdr.status)
	}
	if len(payload) < 6 {
		return fmt.Errorf("transport: ForwardOpen reply too short")
	}
	items, err := parseCPF(payload[6:])
	if err != nil {
		return err
	}
	data, err := extractConnectedData(items)
	if err != nil {
		return err
	}
	if len(data) < 4 || data[2] != 0 {
		return fmt.Errorf("transport: ForwardOpen CIP status non-success")
	}

	otConnID, actualToConnID, err := parseForwardOpenReply(data[4:])
	if err != nil {
		return err
	}
	_ = toConnID // the controller's own T->O id, in actualToConnID, is authoritative

	t.cs = connectionState{
		otConnID:     otConnID,
		toConnID:     actualToConnID,
		serialNumber: connSerial,
		vendorID:     t.fo.VendorID,
		originSerial: t.fo.OriginatorSerial,
	}
	t.connected = true
	return nil
}

// SendUnitData implements logix.Transport: it wraps cipMessage in a
// Connected Data CPF item addressed by the O->T connection id and returns
// the raw encapsulation reply for cip.Classify.
func (t *EnipTransport) SendUnitData(cipMessage []byte) ([]byte, error) {
	if !t.connected {
		return nil, fmt.Errorf("transport: SendUnitData called before ForwardOpen")
	}
	cpf := connectedDataItem(t.cs.otConnID, cipMessage)
	frame := encapsulate(cmdSendUnitData, t.sessionHandle, append(make([]byte, 6), cpf...))
	return t.roundTrip(frame)
}

// NextSequence returns a monotonically increasing per-session counter used
// by request framing (distinct from the connection's own sequenced-address
// sequence number, which this adapter does not need to track explicitly).
func (t *EnipTransport) NextSequence() uint16 {
	return uint16(atomic.AddUint32(&t.seq, 1))
}

// IsConnected reports whether Forward Open has completed successfully.
func (t *EnipTransport) IsConnected() bool { return t.connected }

// Close issues Forward Close (if connected) and closes the TCP connection.
func (t *EnipTransport) Close() error {
	if t.connected {
		req := buildForwardCloseRequest(t.cs, t.fo.ConnectionPath)
		cpf := unconnectedDataItem(req)
		frame := encapsulate(cmdSendRRData, t.sessionHandle, append(make([]byte, 6), cpf...))
		_, _ = t.roundTrip(frame) // best effort; a dead controller shouldn't block Close
		t.connected = false
	}
	return t.conn.Close()
}
