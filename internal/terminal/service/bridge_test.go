package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardlink/internal/errors"
	"cardlink/internal/terminal/domain"
)

type submitResult struct {
	success domain.Success
	err     error
}

func newTestBridge(binder *fakeBinder, sink *recordingSink, timeout time.Duration) (*Bridge, *ConnectionManager) {
	conn := NewConnectionManager(binder, testComponent, sink, time.Second, nil)
	bridge := NewBridge(conn, sink, timeout, nil)
	conn.OnLost(bridge.Abandon)
	return bridge, conn
}

func submitAsync(b *Bridge, ctx context.Context, req domain.TransactionRequest) <-chan submitResult {
	out := make(chan submitResult, 1)
	go func() {
		s, err := b.Submit(ctx, req)
		out <- submitResult{success: s, err: err}
	}()
	return out
}

func waitRequest(t *testing.T, h *fakeHandle) {
	t.Helper()
	select {
	case <-h.received:
	case <-time.After(time.Second):
		t.Fatal("transaction request never reached the service")
	}
}

func waitResult(t *testing.T, ch <-chan submitResult) submitResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not return")
		return submitResult{}
	}
}

func TestBridge_SubmitClassifiesResult(t *testing.T) {
	tests := []struct {
		name        string
		result      domain.TransactionResult
		wantType    errors.ErrorType
		wantOutcome domain.Outcome
		wantSuccess domain.Success
	}{
		{
			name:        "approved",
			result:      domain.TransactionResult{Result: 0, ResponseCode: "00", ResponseMessage: "APPROVED"},
			wantSuccess: domain.Success{ResponseCode: "00", ResponseMessage: "APPROVED"},
		},
		{
			name:        "cancelled by error code",
			result:      domain.TransactionResult{Result: 1, ErrorCode: -2},
			wantType:    errors.ErrorTypeCancelled,
			wantOutcome: domain.Cancelled{Reason: "transaction cancelled by the user"},
		},
		{
			name:        "cancelled by message",
			result:      domain.TransactionResult{Result: 5, ErrorCode: -9, ResponseMessage: "Cancelled"},
			wantType:    errors.ErrorTypeCancelled,
			wantOutcome: domain.Cancelled{Reason: "transaction cancelled by the user"},
		},
		{
			name:        "declined",
			result:      domain.TransactionResult{Result: 1, ErrorCode: -4, ResponseMessage: "HOST UNREACHABLE"},
			wantType:    errors.ErrorTypeFailed,
			wantOutcome: domain.Failed{ResultCode: 1, ErrorCode: -4, ResponseMessage: "HOST UNREACHABLE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			binder := newFakeBinder(bindAccept)
			result := tt.result
			binder.handle.immediate = &result
			bridge, _ := newTestBridge(binder, &recordingSink{}, time.Second)

			success, err := bridge.Submit(context.Background(), domain.TransactionRequest{Amount: "10.50"})

			if tt.wantType == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantSuccess, success)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantType, errors.TypeOf(err))
				outcome, ok := domain.OutcomeFromError(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantOutcome, outcome)
			}
			assert.False(t, bridge.Busy())
		})
	}
}

func TestBridge_SubmitMapsRequest(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	binder.handle.immediate = &domain.TransactionResult{}
	bridge, _ := newTestBridge(binder, &recordingSink{}, time.Second)

	_, err := bridge.Submit(context.Background(), domain.TransactionRequest{
		Amount:          "12.5",
		DocumentNumber:  "12345678",
		ReferenceNumber: "REF-1",
		WaiterNumber:    "7",
	})
	require.NoError(t, err)

	sent := binder.handle.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.TransactionRequestEntity{
		Amount:          "12.50",
		CardHolderID:    "12345678",
		WaiterNumber:    "7",
		ReferenceNumber: "REF-1",
		TransactionType: domain.TransactionTypeSale,
	}, sent[0])
}

func TestBridge_SubmitConnectsWhenUnbound(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	binder.handle.immediate = &domain.TransactionResult{}
	sink := &recordingSink{}
	bridge, conn := newTestBridge(binder, sink, time.Second)

	_, err := bridge.Submit(context.Background(), domain.TransactionRequest{})
	require.NoError(t, err)

	assert.True(t, conn.IsConnected())
	assert.Equal(t, 1, sink.count(domain.EventStatus, "service connected"))
	assert.Equal(t, "0.00", binder.handle.sent()[0].Amount)
}

func TestBridge_SubmitFailsWhenBindFails(t *testing.T) {
	binder := newFakeBinder(bindError)
	bridge, _ := newTestBridge(binder, &recordingSink{}, time.Second)

	_, err := bridge.Submit(context.Background(), domain.TransactionRequest{Amount: "1"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeServiceNotBound))
	assert.False(t, bridge.Busy())
	assert.Empty(t, binder.handle.sent())
}

func TestBridge_SubmitRejectsInvalidRequest(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	bridge, _ := newTestBridge(binder, &recordingSink{}, time.Second)

	_, err := bridge.Submit(context.Background(), domain.TransactionRequest{Amount: "ten"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.False(t, bridge.Busy())
	assert.Empty(t, binder.handle.sent())
}

func TestBridge_SubmitSendFailure(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	binder.handle.sendErr = fmt.Errorf("remote exception")
	sink := &recordingSink{}
	bridge, _ := newTestBridge(binder, sink, time.Second)

	_, err := bridge.Submit(context.Background(), domain.TransactionRequest{Amount: "1"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
	assert.False(t, bridge.Busy())

	events := sink.all()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventError, last.Kind)
	assert.Contains(t, last.Message, "remote exception")
}

func TestBridge_SendErrorAfterResultKeepsResult(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	binder.handle.immediate = &domain.TransactionResult{Result: 0, ResponseCode: "00", ResponseMessage: "APPROVED"}
	binder.handle.errAfter = fmt.Errorf("binder transaction failed")
	sink := &recordingSink{}
	bridge, _ := newTestBridge(binder, sink, time.Second)

	success, err := bridge.Submit(context.Background(), domain.TransactionRequest{Amount: "1"})
	require.NoError(t, err)
	assert.Equal(t, domain.Success{ResponseCode: "00", ResponseMessage: "APPROVED"}, success)
	assert.False(t, bridge.Busy())
	assert.Zero(t, sink.count(domain.EventError, "failed to send transaction: binder transaction failed"))
}

func TestBridge_SecondSubmitIsBusy(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	bridge, _ := newTestBridge(binder, &recordingSink{}, 0)

	first := submitAsync(bridge, context.Background(), domain.TransactionRequest{Amount: "5"})
	waitRequest(t, binder.handle)

	_, err := bridge.Submit(context.Background(), domain.TransactionRequest{Amount: "6"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeBridgeBusy))
	assert.Len(t, binder.handle.sent(), 1)

	binder.handle.respond(0, domain.TransactionResult{Result: 0, ResponseCode: "00"}, nil)
	r := waitResult(t, first)
	require.NoError(t, r.err)
	assert.Equal(t, "00", r.success.ResponseCode)

	// the slot is free again
	binder.handle.immediate = &domain.TransactionResult{}
	_, err = bridge.Submit(context.Background(), domain.TransactionRequest{Amount: "6"})
	require.NoError(t, err)
}

func TestBridge_SubmitBusyWhileConnecting(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	binder.gate = make(chan struct{})
	binder.handle.immediate = &domain.TransactionResult{}
	bridge, _ := newTestBridge(binder, &recordingSink{}, time.Second)

	first := submitAsync(bridge, context.Background(), domain.TransactionRequest{Amount: "5"})
	require.Eventually(t, func() bool {
		binds, _ := binder.counts()
		return binds == 1
	}, time.Second, time.Millisecond)

	_, err := bridge.Submit(context.Background(), domain.TransactionRequest{Amount: "6"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeBridgeBusy))

	close(binder.gate)
	require.NoError(t, waitResult(t, first).err)
}

func TestBridge_TimeoutFreesSlotAndDropsLateResult(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	bridge, _ := newTestBridge(binder, &recordingSink{}, 30*time.Millisecond)

	_, err := bridge.Submit(context.Background(), domain.TransactionRequest{Amount: "5"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	assert.False(t, bridge.Busy())

	// a result arriving after the timeout must not panic or settle anything
	assert.NotPanics(t, func() {
		binder.handle.respond(0, domain.TransactionResult{}, nil)
	})
	assert.False(t, bridge.Busy())
}

func TestBridge_CallerCancellation(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	bridge, _ := newTestBridge(binder, &recordingSink{}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	pending := submitAsync(bridge, ctx, domain.TransactionRequest{Amount: "5"})
	waitRequest(t, binder.handle)
	cancel()

	r := waitResult(t, pending)
	require.Error(t, r.err)
	assert.True(t, errors.IsType(r.err, errors.ErrorTypeTimeout))
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.False(t, bridge.Busy())
}

func TestBridge_ServiceLostRejectsPending(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	bridge, conn := newTestBridge(binder, &recordingSink{}, 0)

	pending := submitAsync(bridge, context.Background(), domain.TransactionRequest{Amount: "5"})
	waitRequest(t, binder.handle)
	binder.lose()

	r := waitResult(t, pending)
	require.Error(t, r.err)
	assert.True(t, errors.IsType(r.err, errors.ErrorTypeConnection))
	assert.False(t, bridge.Busy())
	assert.False(t, conn.IsConnected())
}

func TestBridge_UnreadableResult(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	bridge, _ := newTestBridge(binder, &recordingSink{}, 0)

	pending := submitAsync(bridge, context.Background(), domain.TransactionRequest{Amount: "5"})
	waitRequest(t, binder.handle)
	binder.handle.respond(0, domain.TransactionResult{}, fmt.Errorf("payload is not an object"))

	r := waitResult(t, pending)
	require.Error(t, r.err)
	assert.True(t, errors.IsType(r.err, errors.ErrorTypeInternal))
}

func TestBridge_ResultSettlesOnce(t *testing.T) {
	binder := newFakeBinder(bindAccept)
	bridge, _ := newTestBridge(binder, &recordingSink{}, 0)

	pending := submitAsync(bridge, context.Background(), domain.TransactionRequest{Amount: "5"})
	waitRequest(t, binder.handle)
	binder.handle.respond(0, domain.TransactionResult{Result: 0, ResponseCode: "00"}, nil)
	binder.handle.respond(0, domain.TransactionResult{Result: 1, ErrorCode: -2}, nil)

	r := waitResult(t, pending)
	require.NoError(t, r.err)
	assert.Equal(t, "00", r.success.ResponseCode)
}
