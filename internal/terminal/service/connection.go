package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cardlink/internal/errors"
	"cardlink/internal/logging"
	"cardlink/internal/terminal/domain"
	"cardlink/internal/terminal/ports"
)

const (
	msgConnected         = "service connected"
	msgDisconnected      = "service disconnected"
	msgAlreadyDisconnect = "already disconnected"
	msgDisconnectedOK    = "service disconnected successfully"
)

type bindWaiter struct {
	done chan struct{}
	err  error
}

// ConnectionManager owns the bind lifecycle of the terminal service. It is the
// only writer of the connection state; every transition emits one event.
type ConnectionManager struct {
	binder      ports.ServiceBinder
	component   domain.Component
	sink        ports.EventSink
	logger      *logging.Logger
	bindTimeout time.Duration

	mu     sync.Mutex
	state  domain.ConnectionState
	handle ports.ServiceHandle
	waiter *bindWaiter
	onLost func(error)

	// queued events are delivered in transition order, outside mu
	queue    []domain.Event
	flushing bool
}

// NewConnectionManager creates a manager in the Unbound state
func NewConnectionManager(binder ports.ServiceBinder, component domain.Component, sink ports.EventSink, bindTimeout time.Duration, logger *logging.Logger) *ConnectionManager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ConnectionManager{
		binder:      binder,
		component:   component,
		sink:        sink,
		logger:      logger,
		bindTimeout: bindTimeout,
		state:       domain.StateUnbound,
	}
}

// OnLost registers a hook run when a bound service goes away
func (m *ConnectionManager) OnLost(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLost = fn
}

// Connect binds the terminal service and waits for the bind confirmation.
// It returns immediately when already bound; concurrent callers share one bind.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case domain.StateBound:
		m.mu.Unlock()
		return nil
	case domain.StateBinding:
		w := m.waiter
		m.mu.Unlock()
		return m.join(ctx, w)
	}

	w := &bindWaiter{done: make(chan struct{})}
	m.state = domain.StateBinding
	m.waiter = w
	m.mu.Unlock()

	m.logger.Info("Binding terminal service %s", m.component)
	if err := m.binder.Bind(ctx, m.component, m); err != nil {
		m.failBind(w, errors.Connection("failed to bind terminal service", err))
		<-w.done
		return w.err
	}

	var timeout <-chan time.Time
	if m.bindTimeout > 0 {
		t := time.NewTimer(m.bindTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-w.done:
	case <-timeout:
		if m.failBind(w, errors.Connection("terminal service bind timed out", errors.Timeout("bind"))) {
			m.unbindQuietly()
		}
	case <-ctx.Done():
		if m.failBind(w, errors.Connection("terminal service bind aborted", ctx.Err())) {
			m.unbindQuietly()
		}
	}

	<-w.done
	return w.err
}

// join waits on a bind started by another caller
func (m *ConnectionManager) join(ctx context.Context, w *bindWaiter) error {
	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return errors.Connection("gave up waiting for terminal service bind", ctx.Err())
	}
}

// failBind resolves the waiter w with err if it is still the current bind
func (m *ConnectionManager) failBind(w *bindWaiter, err error) bool {
	m.mu.Lock()
	if m.waiter != w {
		m.mu.Unlock()
		return false
	}
	m.state = domain.StateUnbound
	m.handle = nil
	m.waiter = nil
	w.err = err
	m.enqueueLocked(domain.EventError, err.Error())
	m.mu.Unlock()

	m.logger.Error("Terminal service bind failed: %v", err)
	m.flush()
	close(w.done)
	return true
}

// IsConnected reports whether the service is currently bound. It never panics.
func (m *ConnectionManager) IsConnected() (connected bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Connection state check failed: %v", r)
			connected = false
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == domain.StateBound && m.handle != nil
}

// State returns the current connection state
func (m *ConnectionManager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Handle returns the bound service handle
func (m *ConnectionManager) Handle() (ports.ServiceHandle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != domain.StateBound || m.handle == nil {
		return nil, false
	}
	return m.handle, true
}

// Disconnect unbinds the service if it is bound. The state is cleared before
// the unbind call, so a failing unbind still leaves the manager Unbound.
func (m *ConnectionManager) Disconnect() (string, error) {
	m.mu.Lock()
	if m.state != domain.StateBound {
		m.mu.Unlock()
		return msgAlreadyDisconnect, nil
	}
	m.state = domain.StateUnbound
	m.handle = nil
	lost := m.onLost
	m.mu.Unlock()

	// one event per transition: status on a clean unbind, error otherwise
	m.logger.Info("Unbinding terminal service %s", m.component)
	err := m.unbind()
	if err != nil {
		m.logger.Error("Failed to unbind terminal service: %v", err)
		m.emit(domain.EventError, fmt.Sprintf("failed to unbind service: %v", err))
	} else {
		m.emit(domain.EventStatus, msgDisconnected)
	}

	if lost != nil {
		lost(errors.Connection("terminal service disconnected by the application", nil))
	}

	if err != nil {
		return "", errors.Connection("failed to unbind terminal service", err)
	}
	return msgDisconnectedOK, nil
}

func (m *ConnectionManager) unbind() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unbind panicked: %v", r)
		}
	}()
	return m.binder.Unbind(m)
}

func (m *ConnectionManager) unbindQuietly() {
	if err := m.unbind(); err != nil {
		m.logger.Debug("Unbind after failed bind returned: %v", err)
	}
}

// OnServiceConnected implements ports.ServiceConnection
func (m *ConnectionManager) OnServiceConnected(handle ports.ServiceHandle) {
	m.mu.Lock()
	if m.state != domain.StateBinding || handle == nil {
		state := m.state
		m.mu.Unlock()
		m.logger.Warn("Ignoring service connection while %s", state)
		return
	}
	w := m.waiter
	m.state = domain.StateBound
	m.handle = handle
	m.waiter = nil
	m.enqueueLocked(domain.EventStatus, msgConnected)
	m.mu.Unlock()

	m.logger.Info("Terminal service %s connected", m.component)
	m.flush()
	close(w.done)
}

// OnServiceDisconnected implements ports.ServiceConnection
func (m *ConnectionManager) OnServiceDisconnected(reason error) {
	m.mu.Lock()
	switch m.state {
	case domain.StateBinding:
		w := m.waiter
		m.mu.Unlock()
		m.failBind(w, errors.Connection("terminal service refused the bind", reason))
	case domain.StateBound:
		m.state = domain.StateUnbound
		m.handle = nil
		lost := m.onLost
		m.enqueueLocked(domain.EventStatus, msgDisconnected)
		m.mu.Unlock()

		m.logger.Warn("Terminal service disconnected: %v", reason)
		m.flush()
		if lost != nil {
			lost(errors.Connection("terminal service lost while transaction outstanding", reason))
		}
	default:
		m.mu.Unlock()
	}
}

// OnServiceEvent implements ports.ServiceConnection
func (m *ConnectionManager) OnServiceEvent(kind domain.EventKind, message string) {
	if !kind.Valid() {
		m.logger.Warn("Dropping service event of unknown kind %q", kind)
		return
	}
	m.emit(kind, message)
}

func (m *ConnectionManager) enqueueLocked(kind domain.EventKind, message string) {
	m.queue = append(m.queue, domain.Event{Kind: kind, Message: message})
}

func (m *ConnectionManager) emit(kind domain.EventKind, message string) {
	m.mu.Lock()
	m.enqueueLocked(kind, message)
	m.mu.Unlock()
	m.flush()
}

// flush drains the event queue. Only one goroutine drains at a time, which keeps
// delivery in enqueue order even when listeners call back into the manager.
func (m *ConnectionManager) flush() {
	if m.sink == nil {
		m.mu.Lock()
		m.queue = nil
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if m.flushing {
		m.mu.Unlock()
		return
	}
	m.flushing = true
	for len(m.queue) > 0 {
		evt := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		m.sink.Dispatch(evt.Kind, evt.Message)
		m.mu.Lock()
	}
	m.flushing = false
	m.mu.Unlock()
}
