package smartconnect

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardlink/internal/logging"
	"cardlink/internal/terminal/domain"
	"cardlink/internal/terminal/ports"
)

// Options describes where the SmartConnect service listens
type Options struct {
	Network     string
	Address     string
	DialTimeout time.Duration
}

// Client binds to a SmartConnect service over a stream socket. It implements
// ports.ServiceBinder; each successful bind hands out a ports.ServiceHandle
// backed by the same socket.
type Client struct {
	opts   Options
	logger *logging.Logger

	mu     sync.Mutex
	active *binding
}

// NewClient creates a client; nothing is dialled until Bind
func NewClient(opts Options, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewDefaultLogger("smartconnect")
	}
	if opts.Network == "" {
		opts.Network = "tcp"
	}
	return &Client{opts: opts, logger: logger}
}

// Bind dials the service and asks it to bind component. The outcome arrives
// asynchronously on conn.
func (c *Client) Bind(ctx context.Context, component domain.Component, conn ports.ServiceConnection) error {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return fmt.Errorf("a SmartConnect binding is already active")
	}
	c.mu.Unlock()

	dialer := net.Dialer{Timeout: c.opts.DialTimeout}
	netConn, err := dialer.DialContext(ctx, c.opts.Network, c.opts.Address)
	if err != nil {
		return fmt.Errorf("dial %s %s: %w", c.opts.Network, c.opts.Address, err)
	}

	b := &binding{
		client:    c,
		conn:      netConn,
		writer:    NewFrameWriter(netConn),
		reader:    NewFrameReader(netConn),
		svc:       conn,
		logger:    c.logger,
		listeners: make(map[string]ports.ResultListener),
		devices:   make(map[string]chan domain.DeviceInfo),
		closed:    make(chan struct{}),
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		_ = netConn.Close()
		return fmt.Errorf("a SmartConnect binding is already active")
	}
	c.active = b
	c.mu.Unlock()

	c.logger.Debug("Connected to %s %s, requesting bind of %s", c.opts.Network, c.opts.Address, component)
	go b.readLoop()

	if err := b.writer.Write(Frame{Type: FrameBind, Component: string(component)}); err != nil {
		b.shutdown()
		c.release(b)
		return err
	}
	return nil
}

// Unbind releases the binding held by conn. No disconnect callback follows.
func (c *Client) Unbind(conn ports.ServiceConnection) error {
	c.mu.Lock()
	b := c.active
	if b == nil || b.svc != conn {
		c.mu.Unlock()
		return fmt.Errorf("no SmartConnect binding for this connection")
	}
	c.active = nil
	c.mu.Unlock()

	b.mu.Lock()
	b.closing = true
	b.mu.Unlock()

	if err := b.writer.Write(Frame{Type: FrameUnbind}); err != nil {
		c.logger.Debug("Unbind frame not delivered: %v", err)
	}
	b.shutdown()
	return nil
}

func (c *Client) release(b *binding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == b {
		c.active = nil
	}
}

// binding is one bound socket; it is the ServiceHandle given to the manager
type binding struct {
	client *Client
	conn   net.Conn
	writer *FrameWriter
	reader *FrameReader
	svc    ports.ServiceConnection
	logger *logging.Logger

	mu        sync.Mutex
	closing   bool
	listeners map[string]ports.ResultListener
	devices   map[string]chan domain.DeviceInfo
	closeOnce sync.Once
	closed    chan struct{}
}

// TransactionRequest implements ports.ServiceHandle
func (b *binding) TransactionRequest(entity domain.TransactionRequestEntity, listener ports.ResultListener) error {
	id := uuid.NewString()

	b.mu.Lock()
	if b.closing {
		b.mu.Unlock()
		return fmt.Errorf("SmartConnect connection is closed")
	}
	b.listeners[id] = listener
	b.mu.Unlock()

	if err := b.writer.Write(Frame{Type: FrameTransaction, ID: id, Request: &entity}); err != nil {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
		return err
	}
	return nil
}

// DeviceInfo implements ports.ServiceHandle
func (b *binding) DeviceInfo(ctx context.Context) (domain.DeviceInfo, error) {
	id := uuid.NewString()
	reply := make(chan domain.DeviceInfo, 1)

	b.mu.Lock()
	if b.closing {
		b.mu.Unlock()
		return domain.DeviceInfo{}, fmt.Errorf("SmartConnect connection is closed")
	}
	b.devices[id] = reply
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.devices, id)
		b.mu.Unlock()
	}()

	if err := b.writer.Write(Frame{Type: FrameDeviceInfo, ID: id}); err != nil {
		return domain.DeviceInfo{}, err
	}

	select {
	case info := <-reply:
		return info, nil
	case <-b.closed:
		return domain.DeviceInfo{}, fmt.Errorf("SmartConnect connection closed before device info arrived")
	case <-ctx.Done():
		return domain.DeviceInfo{}, ctx.Err()
	}
}

func (b *binding) readLoop() {
	for {
		f, err := b.reader.Read()
		if err != nil {
			if stderrors.Is(err, ErrMalformedFrame) {
				b.logger.Warn("Skipping frame: %v", err)
				continue
			}
			b.finish(err)
			return
		}
		b.dispatch(f)
	}
}

func (b *binding) dispatch(f Frame) {
	switch f.Type {
	case FrameBound:
		b.svc.OnServiceConnected(b)

	case FrameBindFailed:
		b.mu.Lock()
		b.closing = true
		b.mu.Unlock()
		b.svc.OnServiceDisconnected(fmt.Errorf("bind failed: %s", f.Message))
		b.shutdown()

	case FrameTransactionResult:
		b.mu.Lock()
		listener, ok := b.listeners[f.ID]
		delete(b.listeners, f.ID)
		b.mu.Unlock()
		if !ok {
			b.logger.Warn("Result for unknown transaction frame %s dropped", f.ID)
			return
		}
		result, err := domain.DecodeTransactionResult(f.Result)
		listener(result, err)

	case FrameDeviceInfo:
		b.mu.Lock()
		reply, ok := b.devices[f.ID]
		b.mu.Unlock()
		if !ok {
			b.logger.Debug("Device info for unknown request %s dropped", f.ID)
			return
		}
		var info domain.DeviceInfo
		if f.Device != nil {
			info = *f.Device
		}
		select {
		case reply <- info:
		default:
		}

	case FrameStatus:
		b.svc.OnServiceEvent(domain.EventStatus, f.Message)

	case FrameError:
		b.svc.OnServiceEvent(domain.EventError, f.Message)

	default:
		b.logger.Warn("Ignoring unexpected %q frame", f.Type)
	}
}

// finish runs when the socket stops delivering frames
func (b *binding) finish(err error) {
	b.mu.Lock()
	expected := b.closing
	b.closing = true
	b.listeners = make(map[string]ports.ResultListener)
	b.mu.Unlock()

	b.shutdown()
	b.client.release(b)

	if expected {
		return
	}
	if stderrors.Is(err, io.EOF) {
		err = fmt.Errorf("service closed the connection")
	}
	b.logger.Warn("SmartConnect connection lost: %v", err)
	b.svc.OnServiceDisconnected(err)
}

func (b *binding) shutdown() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closing = true
		b.mu.Unlock()
		close(b.closed)
		_ = b.conn.Close()
	})
}
