package service

import (
	"context"
	"fmt"
	"sync"

	"cardlink/internal/terminal/domain"
	"cardlink/internal/terminal/ports"
)

type bindMode int

const (
	bindAccept bindMode = iota
	bindRefuse
	bindError
	bindSilent
)

// fakeBinder stands in for the platform binder
type fakeBinder struct {
	mu        sync.Mutex
	mode      bindMode
	handle    *fakeHandle
	unbindErr error
	binds     int
	unbinds   int
	conn      ports.ServiceConnection
	gate      chan struct{}
}

func newFakeBinder(mode bindMode) *fakeBinder {
	return &fakeBinder{mode: mode, handle: newFakeHandle()}
}

func (b *fakeBinder) Bind(ctx context.Context, component domain.Component, conn ports.ServiceConnection) error {
	b.mu.Lock()
	b.binds++
	b.conn = conn
	mode := b.mode
	gate := b.gate
	handle := b.handle
	b.mu.Unlock()

	switch mode {
	case bindError:
		return fmt.Errorf("component %s not installed", component)
	case bindRefuse:
		conn.OnServiceDisconnected(fmt.Errorf("bind refused"))
	case bindAccept:
		if gate != nil {
			go func() {
				<-gate
				conn.OnServiceConnected(handle)
			}()
			return nil
		}
		conn.OnServiceConnected(handle)
	}
	return nil
}

func (b *fakeBinder) Unbind(conn ports.ServiceConnection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unbinds++
	return b.unbindErr
}

func (b *fakeBinder) counts() (binds, unbinds int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.binds, b.unbinds
}

// lose simulates the service process dying
func (b *fakeBinder) lose() {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	conn.OnServiceDisconnected(fmt.Errorf("service process died"))
}

// fakeHandle records requests; tests answer them through respond
type fakeHandle struct {
	mu        sync.Mutex
	requests  []domain.TransactionRequestEntity
	listeners []ports.ResultListener
	sendErr   error
	immediate *domain.TransactionResult
	// errAfter is returned after an immediate result has been delivered
	errAfter  error
	device    domain.DeviceInfo
	deviceErr error
	received  chan struct{}
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{received: make(chan struct{}, 16)}
}

func (h *fakeHandle) TransactionRequest(entity domain.TransactionRequestEntity, listener ports.ResultListener) error {
	h.mu.Lock()
	if h.sendErr != nil {
		err := h.sendErr
		h.mu.Unlock()
		return err
	}
	h.requests = append(h.requests, entity)
	h.listeners = append(h.listeners, listener)
	immediate := h.immediate
	errAfter := h.errAfter
	h.mu.Unlock()

	h.received <- struct{}{}
	if immediate != nil {
		listener(*immediate, nil)
	}
	return errAfter
}

func (h *fakeHandle) DeviceInfo(ctx context.Context) (domain.DeviceInfo, error) {
	return h.device, h.deviceErr
}

func (h *fakeHandle) respond(i int, result domain.TransactionResult, err error) {
	h.mu.Lock()
	listener := h.listeners[i]
	h.mu.Unlock()
	listener(result, err)
}

func (h *fakeHandle) sent() []domain.TransactionRequestEntity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.TransactionRequestEntity(nil), h.requests...)
}

// recordingSink collects dispatched events in order
type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *recordingSink) Dispatch(kind domain.EventKind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, domain.Event{Kind: kind, Message: message})
}

func (s *recordingSink) all() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Event(nil), s.events...)
}

func (s *recordingSink) count(kind domain.EventKind, message string) int {
	n := 0
	for _, e := range s.all() {
		if e.Kind == kind && e.Message == message {
			n++
		}
	}
	return n
}
