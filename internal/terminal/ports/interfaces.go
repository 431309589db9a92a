package ports

import (
	"context"

	"cardlink/internal/terminal/domain"
)

// Port interfaces for the out-of-process terminal service

// ServiceBinder issues bind and unbind requests to the platform. Bind only
// reports platform-level failures; the bind itself is confirmed asynchronously
// through ServiceConnection.
type ServiceBinder interface {
	Bind(ctx context.Context, component domain.Component, conn ServiceConnection) error
	Unbind(conn ServiceConnection) error
}

// ServiceConnection receives bind lifecycle callbacks from the platform
type ServiceConnection interface {
	OnServiceConnected(handle ServiceHandle)
	// OnServiceDisconnected reports loss of the service, or a failed bind if
	// it arrives before OnServiceConnected.
	OnServiceDisconnected(reason error)
	// OnServiceEvent forwards status and error notifications pushed by the service.
	OnServiceEvent(kind domain.EventKind, message string)
}

// ResultListener is invoked exactly once per submitted request, on an arbitrary
// goroutine. err is set when the callback payload could not be decoded.
type ResultListener func(result domain.TransactionResult, err error)

// ServiceHandle is a bound terminal service
type ServiceHandle interface {
	TransactionRequest(entity domain.TransactionRequestEntity, listener ResultListener) error
	DeviceInfo(ctx context.Context) (domain.DeviceInfo, error)
}

// EventSink receives lifecycle events for fan-out to listeners
type EventSink interface {
	Dispatch(kind domain.EventKind, message string)
}
