package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardlink/internal/errors"
	"cardlink/internal/logging"
	"cardlink/internal/terminal/domain"
	"cardlink/internal/terminal/ports"
)

// maxPending mirrors the terminal, which processes one transaction at a time.
const maxPending = 1

// Connector is the part of the connection manager the bridge depends on
type Connector interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Handle() (ports.ServiceHandle, bool)
}

type settlement struct {
	success domain.Success
	err     error
}

type pendingCall struct {
	id      string
	entity  domain.TransactionRequestEntity
	started time.Time
	sent    bool
	done    chan settlement
}

// Bridge submits transactions to the terminal service and turns the
// asynchronous result callback into a single return value for the caller.
type Bridge struct {
	conn    Connector
	sink    ports.EventSink
	logger  *logging.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingCall
}

// NewBridge creates a bridge. A zero timeout waits for the callback forever.
func NewBridge(conn Connector, sink ports.EventSink, timeout time.Duration, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Bridge{
		conn:    conn,
		sink:    sink,
		logger:  logger,
		timeout: timeout,
		pending: make(map[string]*pendingCall, maxPending),
	}
}

// Submit sends one transaction and waits for its outcome. It returns the
// Success on approval; cancelled and failed transactions come back as errors
// carrying the classified outcome (see domain.OutcomeFromError).
func (b *Bridge) Submit(ctx context.Context, req domain.TransactionRequest) (domain.Success, error) {
	call, err := b.reserve()
	if err != nil {
		return domain.Success{}, err
	}

	if !b.conn.IsConnected() {
		b.logger.Info("Terminal service not bound, connecting before transaction %s", call.id)
		if err := b.conn.Connect(ctx); err != nil || !b.conn.IsConnected() {
			b.release(call.id)
			return domain.Success{}, errors.ServiceNotBound(err)
		}
	}

	entity, err := req.Normalize()
	if err != nil {
		b.release(call.id)
		return domain.Success{}, err
	}

	handle, ok := b.conn.Handle()
	if !ok {
		b.release(call.id)
		return domain.Success{}, errors.ServiceNotBound(nil)
	}

	b.mu.Lock()
	call.entity = entity
	call.sent = true
	b.mu.Unlock()

	b.logger.Info("Submitting transaction %s: amount=%s type=%d ref=%q",
		call.id, entity.Amount, entity.TransactionType, entity.ReferenceNumber)

	if err := b.forward(handle, call); err != nil {
		if !b.release(call.id) {
			// the service answered before reporting the send error; its result stands
			b.logger.Warn("Transaction %s settled despite send error: %v", call.id, err)
			s := <-call.done
			return s.success, s.err
		}
		b.logger.Error("Failed to send transaction %s: %v", call.id, err)
		b.dispatch(domain.EventError, fmt.Sprintf("failed to send transaction: %v", err))
		return domain.Success{}, errors.Internal("failed to send transaction request", err).
			WithContext("transactionID", call.id)
	}

	return b.await(ctx, call)
}

// Busy reports whether a transaction is outstanding
func (b *Bridge) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending) > 0
}

// Abandon rejects every transaction already sent to the service with cause.
// It is called when the service goes away and no callback can arrive.
func (b *Bridge) Abandon(cause error) {
	b.mu.Lock()
	var abandoned []*pendingCall
	for id, call := range b.pending {
		if call.sent {
			abandoned = append(abandoned, call)
			delete(b.pending, id)
		}
	}
	b.mu.Unlock()

	for _, call := range abandoned {
		b.logger.Warn("Abandoning transaction %s: %v", call.id, cause)
		call.done <- settlement{err: cause}
	}
}

func (b *Bridge) reserve() (*pendingCall, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) >= maxPending {
		busy := errors.BridgeBusy()
		for id := range b.pending {
			busy.WithContext("pendingTransactionID", id)
		}
		return nil, busy
	}

	call := &pendingCall{
		id:      uuid.NewString(),
		started: time.Now(),
		done:    make(chan settlement, 1),
	}
	b.pending[call.id] = call
	return call, nil
}

// release frees the slot held by id; it reports false if the call was
// already settled by a callback.
func (b *Bridge) release(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[id]; !ok {
		return false
	}
	delete(b.pending, id)
	return true
}

func (b *Bridge) forward(handle ports.ServiceHandle, call *pendingCall) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while forwarding request: %v", r)
		}
	}()

	id := call.id
	return handle.TransactionRequest(call.entity, func(result domain.TransactionResult, cbErr error) {
		b.complete(id, result, cbErr)
	})
}

// complete is the result callback. It settles the call at most once.
func (b *Bridge) complete(id string, result domain.TransactionResult, cbErr error) {
	b.mu.Lock()
	call, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Warn("Dropping result for transaction %s that is no longer pending", id)
		return
	}

	if cbErr != nil {
		b.logger.Error("Transaction %s returned an unreadable result: %v", id, cbErr)
		call.done <- settlement{err: errors.Internal("invalid transaction result", cbErr).WithContext("transactionID", id)}
		return
	}

	outcome := domain.Classify(result)
	b.logger.Info("Transaction %s finished in %s: %s (result=%d errorCode=%d)",
		id, time.Since(call.started).Round(time.Millisecond), outcome.Kind(), result.Result, result.ErrorCode)

	if success, ok := outcome.(domain.Success); ok {
		call.done <- settlement{success: success}
		return
	}
	call.done <- settlement{err: domain.OutcomeError(outcome, result.Raw)}
}

func (b *Bridge) await(ctx context.Context, call *pendingCall) (domain.Success, error) {
	var timeout <-chan time.Time
	if b.timeout > 0 {
		t := time.NewTimer(b.timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case s := <-call.done:
		return s.success, s.err
	case <-timeout:
		if b.release(call.id) {
			b.logger.Error("Transaction %s timed out after %s", call.id, b.timeout)
			return domain.Success{}, errors.Timeout("transaction").
				WithContext("transactionID", call.id).
				WithContext("timeout", b.timeout.String())
		}
	case <-ctx.Done():
		if b.release(call.id) {
			b.logger.Warn("Transaction %s abandoned by caller: %v", call.id, ctx.Err())
			return domain.Success{}, errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "transaction abandoned by caller").
				WithContext("transactionID", call.id)
		}
	}

	// the callback won the race and is delivering its settlement
	s := <-call.done
	return s.success, s.err
}

func (b *Bridge) dispatch(kind domain.EventKind, message string) {
	if b.sink != nil {
		b.sink.Dispatch(kind, message)
	}
}
