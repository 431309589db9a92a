package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardlink/internal/errors"
	"cardlink/internal/terminal/domain"
)

const testComponent = domain.Component("cn.nexgo.veslc/cn.nexgo.inbas.smartconnect.SmartConnectService")

func newTestManager(binder *fakeBinder, sink *recordingSink, bindTimeout time.Duration) *ConnectionManager {
	return NewConnectionManager(binder, testComponent, sink, bindTimeout, nil)
}

func TestConnectionManager_Connect(t *testing.T) {
	tests := []struct {
		name          string
		mode          bindMode
		bindTimeout   time.Duration
		wantErr       bool
		wantState     domain.ConnectionState
		wantEvent     domain.Event
		wantUnbinds   int
		errorContains string
	}{
		{
			name:      "bind accepted",
			mode:      bindAccept,
			wantState: domain.StateBound,
			wantEvent: domain.Event{Kind: domain.EventStatus, Message: "service connected"},
		},
		{
			name:          "platform rejects bind request",
			mode:          bindError,
			wantErr:       true,
			wantState:     domain.StateUnbound,
			wantEvent:     domain.Event{Kind: domain.EventError},
			errorContains: "not installed",
		},
		{
			name:          "service refuses bind",
			mode:          bindRefuse,
			wantErr:       true,
			wantState:     domain.StateUnbound,
			wantEvent:     domain.Event{Kind: domain.EventError},
			errorContains: "bind refused",
		},
		{
			name:          "bind never confirmed",
			mode:          bindSilent,
			bindTimeout:   20 * time.Millisecond,
			wantErr:       true,
			wantState:     domain.StateUnbound,
			wantEvent:     domain.Event{Kind: domain.EventError},
			wantUnbinds:   1,
			errorContains: "timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			binder := newFakeBinder(tt.mode)
			sink := &recordingSink{}
			m := newTestManager(binder, sink, tt.bindTimeout)

			err := m.Connect(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
				assert.Contains(t, err.Error(), tt.errorContains)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantState, m.State())
			assert.Equal(t, tt.wantState == domain.StateBound, m.IsConnected())

			events := sink.all()
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantEvent.Kind, events[0].Kind)
			if tt.wantEvent.Message != "" {
				assert.Equal(t, tt.wantEvent.Message, events[0].Message)
			}

			_, unbinds := binder.counts()
			assert.Equal(t, tt.wantUnbinds, unbinds)
		})
	}
}

func TestConnectionManager_ConnectWhenBoundIsNoop(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	sink := &recordingSink{}
	m := newTestManager(binder, sink, time.Second)

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Connect(context.Background()))

	binds, _ := binder.counts()
	assert.Equal(t, 1, binds)
	assert.Equal(t, 1, sink.count(domain.EventStatus, "service connected"))
}

func TestConnectionManager_ConcurrentConnectSharesOneBind(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	binder.gate = make(chan struct{})
	sink := &recordingSink{}
	m := newTestManager(binder, sink, time.Second)

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Connect(context.Background())
		}()
	}

	require.Eventually(t, func() bool {
		binds, _ := binder.counts()
		return binds == 1
	}, time.Second, time.Millisecond)
	close(binder.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	binds, _ := binder.counts()
	assert.Equal(t, 1, binds)
	assert.True(t, m.IsConnected())
	assert.Equal(t, 1, sink.count(domain.EventStatus, "service connected"))
}

func TestConnectionManager_ConnectHonoursContext(t *testing.T) {
	binder := newFakeBinder(bindSilent)
	m := newTestManager(binder, &recordingSink{}, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.Equal(t, domain.StateUnbound, m.State())

	_, unbinds := binder.counts()
	assert.Equal(t, 1, unbinds)
}

func TestConnectionManager_Disconnect(t *testing.T) {
	t.Run("not bound", func(t *testing.T) {
		binder := newFakeBinder(bindAccept)
		sink := &recordingSink{}
		m := newTestManager(binder, sink, time.Second)

		msg, err := m.Disconnect()
		require.NoError(t, err)
		assert.Equal(t, "already disconnected", msg)
		assert.Empty(t, sink.all())

		_, unbinds := binder.counts()
		assert.Zero(t, unbinds)
	})

	t.Run("bound", func(t *testing.T) {
		binder := newFakeBinder(bindAccept)
		sink := &recordingSink{}
		m := newTestManager(binder, sink, time.Second)
		require.NoError(t, m.Connect(context.Background()))

		msg, err := m.Disconnect()
		require.NoError(t, err)
		assert.Equal(t, "service disconnected successfully", msg)
		assert.False(t, m.IsConnected())
		assert.Equal(t, []domain.Event{
			{Kind: domain.EventStatus, Message: "service connected"},
			{Kind: domain.EventStatus, Message: "service disconnected"},
		}, sink.all())

		msg, err = m.Disconnect()
		require.NoError(t, err)
		assert.Equal(t, "already disconnected", msg)
	})

	t.Run("unbind fails", func(t *testing.T) {
		binder := newFakeBinder(bindAccept)
		binder.unbindErr = fmt.Errorf("service not registered")
		sink := &recordingSink{}
		m := newTestManager(binder, sink, time.Second)
		require.NoError(t, m.Connect(context.Background()))

		_, err := m.Disconnect()
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
		assert.Equal(t, domain.StateUnbound, m.State())

		events := sink.all()
		require.Len(t, events, 2)
		assert.Equal(t, domain.EventStatus, events[0].Kind)
		assert.Equal(t, domain.EventError, events[1].Kind)
		assert.Contains(t, events[1].Message, "service not registered")
		assert.Equal(t, 0, sink.count(domain.EventStatus, "service disconnected"))
	})
}

func TestConnectionManager_ServiceLost(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	sink := &recordingSink{}
	m := newTestManager(binder, sink, time.Second)

	var lostErr error
	m.OnLost(func(err error) { lostErr = err })

	require.NoError(t, m.Connect(context.Background()))
	binder.lose()

	assert.False(t, m.IsConnected())
	assert.Equal(t, 1, sink.count(domain.EventStatus, "service disconnected"))
	require.Error(t, lostErr)
	assert.True(t, errors.IsType(lostErr, errors.ErrorTypeConnection))

	// a fresh bind is allowed afterwards
	require.NoError(t, m.Connect(context.Background()))
	assert.True(t, m.IsConnected())
}

func TestConnectionManager_ServiceEvents(t *testing.T) {
	sink := &recordingSink{}
	m := newTestManager(newFakeBinder(bindAccept), sink, time.Second)

	m.OnServiceEvent(domain.EventStatus, "printing receipt")
	m.OnServiceEvent(domain.EventKind("progress"), "ignored")
	m.OnServiceEvent(domain.EventError, "paper out")

	assert.Equal(t, []domain.Event{
		{Kind: domain.EventStatus, Message: "printing receipt"},
		{Kind: domain.EventError, Message: "paper out"},
	}, sink.all())
}

func TestConnectionManager_LateConnectIgnored(t *testing.T) {
	sink := &recordingSink{}
	m := newTestManager(newFakeBinder(bindAccept), sink, time.Second)

	m.OnServiceConnected(newFakeHandle())

	assert.False(t, m.IsConnected())
	assert.Empty(t, sink.all())
}
