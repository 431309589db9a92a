package events

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"cardlink/internal/errors"
	"cardlink/internal/logging"
	"cardlink/internal/terminal/domain"
)

// ListenerID identifies a subscription
type ListenerID string

// Callback receives a dispatched event
type Callback func(domain.Event)

type listener struct {
	id       ListenerID
	kind     domain.EventKind
	callback Callback
}

// FanOut delivers lifecycle events to subscribed listeners, synchronously and in
// subscription order. A panicking listener is logged and skipped.
type FanOut struct {
	mu        sync.RWMutex
	listeners []listener
	logger    *logging.Logger
}

// NewFanOut creates an empty fan-out
func NewFanOut(logger *logging.Logger) *FanOut {
	if logger == nil {
		logger = logging.Discard()
	}
	return &FanOut{logger: logger}
}

// Subscribe registers callback for events of the given kind
func (f *FanOut) Subscribe(kind domain.EventKind, callback Callback) (ListenerID, error) {
	if !kind.Valid() {
		return "", errors.Validation(fmt.Sprintf("unknown event kind %q", kind))
	}
	if callback == nil {
		return "", errors.Validation("listener callback is nil")
	}

	id := ListenerID(uuid.NewString())

	f.mu.Lock()
	defer f.mu.Unlock()

	f.listeners = append(f.listeners, listener{id: id, kind: kind, callback: callback})
	return id, nil
}

// Unsubscribe removes a listener. Unknown ids are ignored.
func (f *FanOut) Unsubscribe(id ListenerID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, l := range f.listeners {
		if l.id == id {
			f.listeners = append(f.listeners[:i:i], f.listeners[i+1:]...)
			return
		}
	}
}

// Dispatch invokes every listener subscribed to kind. Listeners run outside the
// lock, so they may subscribe or unsubscribe from inside the callback.
func (f *FanOut) Dispatch(kind domain.EventKind, message string) {
	f.mu.RLock()
	matched := make([]listener, 0, len(f.listeners))
	for _, l := range f.listeners {
		if l.kind == kind {
			matched = append(matched, l)
		}
	}
	f.mu.RUnlock()

	evt := domain.Event{Kind: kind, Message: message}
	for _, l := range matched {
		f.invoke(l, evt)
	}
}

func (f *FanOut) invoke(l listener, evt domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("listener %s panicked on %s event: %v", l.id, evt.Kind, r)
		}
	}()
	l.callback(evt)
}

// Clear removes all listeners
func (f *FanOut) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = nil
}

// Len returns the number of registered listeners
func (f *FanOut) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners)
}
