package logix

import (
	"fmt"
	"sync"

	"github.com/amrhady2/go-logix-cip/cip"
	"github.com/amrhady2/go-logix-cip/logging"
)

// Transport is the external capability the core depends on to actually
// move bytes over an EtherNet/IP connected session. A concrete
// implementation lives in package transport; this interface is the
// capability contract the core never reaches past.
type Transport interface {
	// ForwardOpen establishes the connected session. Failure leaves
	// IsConnected false.
	ForwardOpen() error
	// SendUnitData ships a raw CIP message over the connected session and
	// returns the raw encapsulation reply bytes, or an error if the
	// transport itself failed (the "None" case of the original design).
	SendUnitData(cipMessage []byte) ([]byte, error)
	// NextSequence returns a monotonically increasing per-session 16-bit
	// counter, consumed by every framed request.
	NextSequence() uint16
	IsConnected() bool
}

// LastResult records the outcome of the most recent read or write, mirroring
// the original driver's get_last_tag_read/get_last_tag_write.
type LastResult struct {
	Tag   string
	Value interface{}
	Type  cip.CipType
	Err   error
}

// Client is the single-threaded CIP tag-protocol session: it owns the
// three lazily-populated caches, the set of discovered program scopes, and
// the last read/write outcome. None of this is global - every Client is
// independent, per §5's concurrency model.
type Client struct {
	transport Transport
	logger    logging.Logger

	structCache   map[uint32]*Template
	templateCache map[uint32][]byte
	udtCache      map[uint32]*UdtDescriptor
	building      map[uint32]bool // cache-on-enter sentinel, breaks recursive UDT cycles

	programNames map[string]bool

	lastRead  LastResult
	lastWrite LastResult

	mu sync.Mutex // guards the caches, programNames and lastRead/lastWrite
}

// Option configures a Client at construction.
type Option func(*Client)

// WithLogger injects a logging sink. The core carries no process-wide
// logging state; omitting this option yields logging.NopLogger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient wraps a Transport in a tag-protocol session. The Transport must
// already be dialed; NewClient does not open a connection by itself - that
// happens lazily via ensureSession (SessionGate, §4.9).
func NewClient(t Transport, opts ...Option) *Client {
	c := &Client{
		transport:     t,
		logger:        logging.NopLogger{},
		structCache:   make(map[uint32]*Template),
		templateCache: make(map[uint32][]byte),
		udtCache:      make(map[uint32]*UdtDescriptor),
		building:      make(map[uint32]bool),
		programNames:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ensureSession implements SessionGate (§4.9): before any public op, open
// the connected session if it is not already open. No reconnect logic -
// one attempt.
func (c *Client) ensureSession() error {
	if c.transport.IsConnected() {
		return nil
	}
	c.logger.Log("logix", "session not connected, invoking ForwardOpen")
	if err := c.transport.ForwardOpen(); err != nil {
		return fmt.Errorf("ensureSession: forward open failed: %w", err)
	}
	return nil
}

// send issues one framed CIP message and classifies the reply, logging the
// wire traffic through the injected sink.
func (c *Client) send(msg []byte) (*cip.Reply, error) {
	c.logger.LogTX("logix", msg)
	raw, err := c.transport.SendUnitData(msg)
	if err != nil {
		return nil, fmt.Errorf("send: transport failure: %w", err)
	}
	if raw == nil {
		return nil, &cip.DataError{Message: "transport returned no reply", Code: cip.ErrEncapOrCipStatus}
	}
	c.logger.LogRX("logix", raw)
	return cip.Classify(raw)
}

// ProgramNames returns the program scopes discovered so far by any
// SymbolCatalogue enumeration (controller-scope or program-scope), matching
// the original driver's running _program_names accumulation.
func (c *Client) ProgramNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.programNames))
	for n := range c.programNames {
		names = append(names, n)
	}
	return names
}

// LastTagRead returns the outcome of the most recent read_tag call.
func (c *Client) LastTagRead() LastResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRead
}

// LastTagWrite returns the outcome of the most recent write_tag call.
func (c *Client) LastTagWrite() LastResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastWrite
}

func (c *Client) setLastRead(tag string, value interface{}, typ cip.CipType, err error) {
	c.mu.Lock()
	c.lastRead = LastResult{Tag: tag, Value: value, Type: typ, Err: err}
	c.mu.Unlock()
}

func (c *Client) setLastWrite(tag string, value interface{}, typ cip.CipType, err error) {
	c.mu.Lock()
	c.lastWrite = LastResult{Tag: tag, Value: value, Type: typ, Err: err}
	c.mu.Unlock()
}
