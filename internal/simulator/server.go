package simulator

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"cardlink/internal/clients/smartconnect"
	"cardlink/internal/logging"
	"cardlink/internal/terminal/domain"
)

// Options configures a simulated SmartConnect service
type Options struct {
	// Component is the only component the service agrees to bind; empty accepts any.
	Component  domain.Component
	RefuseBind bool
	Mode       Mode
	// Delay is how long the terminal "processes" a transaction before replying.
	Delay  time.Duration
	Device domain.DeviceInfo
}

// Server speaks the SmartConnect socket protocol on behalf of a terminal
type Server struct {
	opts   Options
	logger *logging.Logger

	mu        sync.Mutex
	responder Responder
	listener  net.Listener
	peers     map[*peer]struct{}
	requests  []domain.TransactionRequestEntity
	closed    bool
	wg        sync.WaitGroup
}

type peer struct {
	conn   net.Conn
	writer *smartconnect.FrameWriter
	bound  bool
}

// NewServer creates a simulator; call Listen then Serve
func NewServer(opts Options, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewDefaultLogger("simulator")
	}
	if opts.Mode == "" {
		opts.Mode = ModeApprove
	}
	if opts.Device == (domain.DeviceInfo{}) {
		opts.Device = domain.DeviceInfo{Serial: "SIM-0001", Model: "N86", Firmware: "sim-1.0"}
	}
	return &Server{
		opts:      opts,
		logger:    logger,
		responder: Scripted(opts.Mode),
		peers:     make(map[*peer]struct{}),
	}
}

// Listen opens the listening socket
func (s *Server) Listen(network, address string) error {
	ln, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("listen on %s %s: %w", network, address, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the listening address
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is done or Close is called
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return fmt.Errorf("simulator is not listening")
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	s.logger.Info("SmartConnect simulator listening on %s (mode=%s)", ln.Addr(), s.opts.Mode)
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || stderrors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		p := &peer{conn: conn, writer: smartconnect.NewFrameWriter(conn)}
		s.mu.Lock()
		s.peers[p] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(p)
		}()
	}
}

// Close stops accepting and drops every connection
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.listener
	s.mu.Unlock()

	s.DropConnections()
	if ln != nil {
		return ln.Close()
	}
	return nil
}

// SetMode changes how subsequent transactions are answered
func (s *Server) SetMode(mode Mode) {
	s.SetResponder(Scripted(mode))
}

// SetResponder installs a custom responder
func (s *Server) SetResponder(r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = r
}

// Requests returns the transaction requests received so far
func (s *Server) Requests() []domain.TransactionRequestEntity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TransactionRequestEntity(nil), s.requests...)
}

// Push sends a status or error notification to every bound client
func (s *Server) Push(kind domain.EventKind, message string) {
	frameType := smartconnect.FrameStatus
	if kind == domain.EventError {
		frameType = smartconnect.FrameError
	}
	for _, p := range s.boundPeers() {
		s.send(p, smartconnect.Frame{Type: frameType, Message: message})
	}
}

// DropConnections closes every client socket, as if the service process died
func (s *Server) DropConnections() {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		_ = p.conn.Close()
	}
}

func (s *Server) boundPeers() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*peer
	for p := range s.peers {
		if p.bound {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) handle(p *peer) {
	defer func() {
		_ = p.conn.Close()
		s.mu.Lock()
		delete(s.peers, p)
		s.mu.Unlock()
	}()

	reader := smartconnect.NewFrameReader(p.conn)
	for {
		f, err := reader.Read()
		if err != nil {
			if stderrors.Is(err, smartconnect.ErrMalformedFrame) {
				s.send(p, smartconnect.Frame{Type: smartconnect.FrameError, Message: err.Error()})
				continue
			}
			if !stderrors.Is(err, io.EOF) && !stderrors.Is(err, net.ErrClosed) {
				s.logger.Debug("Client connection ended: %v", err)
			}
			return
		}

		switch f.Type {
		case smartconnect.FrameBind:
			s.bind(p, domain.Component(f.Component))
		case smartconnect.FrameUnbind:
			s.logger.Info("Client unbound")
			return
		case smartconnect.FrameTransaction:
			s.transaction(p, f)
		case smartconnect.FrameDeviceInfo:
			device := s.opts.Device
			s.send(p, smartconnect.Frame{Type: smartconnect.FrameDeviceInfo, ID: f.ID, Device: &device})
		default:
			s.send(p, smartconnect.Frame{Type: smartconnect.FrameError, Message: fmt.Sprintf("unsupported frame %q", f.Type)})
		}
	}
}

func (s *Server) bind(p *peer, component domain.Component) {
	if s.opts.RefuseBind {
		s.send(p, smartconnect.Frame{Type: smartconnect.FrameBindFailed, Message: "service refused the bind"})
		return
	}
	if s.opts.Component != "" && component != s.opts.Component {
		s.send(p, smartconnect.Frame{Type: smartconnect.FrameBindFailed, Message: fmt.Sprintf("component %s not found", component)})
		return
	}

	s.mu.Lock()
	p.bound = true
	s.mu.Unlock()

	s.logger.Info("Bound %s", component)
	s.send(p, smartconnect.Frame{Type: smartconnect.FrameBound})
}

func (s *Server) transaction(p *peer, f smartconnect.Frame) {
	s.mu.Lock()
	bound := p.bound
	responder := s.responder
	if bound && f.Request != nil {
		s.requests = append(s.requests, *f.Request)
	}
	s.mu.Unlock()

	if !bound {
		s.send(p, smartconnect.Frame{Type: smartconnect.FrameError, Message: "transaction before bind"})
		return
	}
	if f.Request == nil {
		s.send(p, smartconnect.Frame{Type: smartconnect.FrameError, Message: "transaction frame without request"})
		return
	}

	req := *f.Request
	s.logger.Info("Transaction %s: amount=%s type=%d", f.ID, req.Amount, req.TransactionType)
	s.send(p, smartconnect.Frame{Type: smartconnect.FrameStatus, Message: "transaction received"})

	reply, ok := responder(req)
	if !ok {
		s.logger.Info("Transaction %s left unanswered", f.ID)
		return
	}

	respond := func() {
		payload, err := json.Marshal(reply)
		if err != nil {
			s.logger.Error("Failed to encode reply: %v", err)
			return
		}
		s.send(p, smartconnect.Frame{Type: smartconnect.FrameTransactionResult, ID: f.ID, Result: payload})
	}

	if s.opts.Delay <= 0 {
		respond()
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		time.Sleep(s.opts.Delay)
		respond()
	}()
}

func (s *Server) send(p *peer, f smartconnect.Frame) {
	if err := p.writer.Write(f); err != nil {
		s.logger.Debug("Dropping %s frame: %v", f.Type, err)
	}
}
