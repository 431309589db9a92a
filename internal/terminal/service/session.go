package service

import (
	"context"
	"time"

	"cardlink/internal/errors"
	"cardlink/internal/logging"
	"cardlink/internal/terminal/domain"
	"cardlink/internal/terminal/events"
	"cardlink/internal/terminal/ports"
)

// Options configures a Session
type Options struct {
	Component          domain.Component
	BindTimeout        time.Duration
	TransactionTimeout time.Duration
}

// Session is the application's handle on one terminal service: the connection
// manager, the transaction bridge and the event fan-out. Construct it once and
// pass it to every caller.
type Session struct {
	events *events.FanOut
	conn   *ConnectionManager
	bridge *Bridge
	logger *logging.Logger
}

// NewSession wires a session around binder
func NewSession(binder ports.ServiceBinder, opts Options, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.Discard()
	}

	fanout := events.NewFanOut(logger.WithPrefix("events"))
	conn := NewConnectionManager(binder, opts.Component, fanout, opts.BindTimeout, logger.WithPrefix("connection"))
	bridge := NewBridge(conn, fanout, opts.TransactionTimeout, logger.WithPrefix("bridge"))
	conn.OnLost(bridge.Abandon)

	return &Session{
		events: fanout,
		conn:   conn,
		bridge: bridge,
		logger: logger,
	}
}

// Connect binds the terminal service
func (s *Session) Connect(ctx context.Context) error {
	return s.conn.Connect(ctx)
}

// IsConnected reports whether the terminal service is bound
func (s *Session) IsConnected() bool {
	return s.conn.IsConnected()
}

// State returns the connection state
func (s *Session) State() domain.ConnectionState {
	return s.conn.State()
}

// Busy reports whether a transaction is outstanding
func (s *Session) Busy() bool {
	return s.bridge.Busy()
}

// Submit sends a transaction and waits for its outcome
func (s *Session) Submit(ctx context.Context, req domain.TransactionRequest) (domain.Success, error) {
	return s.bridge.Submit(ctx, req)
}

// Disconnect unbinds the terminal service
func (s *Session) Disconnect() (string, error) {
	return s.conn.Disconnect()
}

// Subscribe registers a listener for status or error events
func (s *Session) Subscribe(kind domain.EventKind, callback events.Callback) (events.ListenerID, error) {
	return s.events.Subscribe(kind, callback)
}

// Unsubscribe removes a listener
func (s *Session) Unsubscribe(id events.ListenerID) {
	s.events.Unsubscribe(id)
}

// DeviceInfo asks the bound service for the terminal's identity
func (s *Session) DeviceInfo(ctx context.Context) (domain.DeviceInfo, error) {
	handle, ok := s.conn.Handle()
	if !ok {
		return domain.DeviceInfo{}, errors.ServiceNotBound(nil)
	}
	info, err := handle.DeviceInfo(ctx)
	if err != nil {
		return domain.DeviceInfo{}, errors.Internal("failed to read device info", err)
	}
	return info.WithDefaults(), nil
}

// Cleanup removes all listeners and disconnects if bound. It never fails.
func (s *Session) Cleanup() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Session cleanup panicked: %v", r)
		}
	}()

	s.events.Clear()
	if s.conn.IsConnected() {
		if _, err := s.conn.Disconnect(); err != nil {
			s.logger.Warn("Disconnect during cleanup failed: %v", err)
		}
	}
}
