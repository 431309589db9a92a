package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *TerminalError
		want string
	}{
		{
			name: "without cause",
			err:  BridgeBusy(),
			want: "bridge_busy: another transaction is outstanding",
		},
		{
			name: "with cause",
			err:  Connection("failed to bind terminal service", fmt.Errorf("connection refused")),
			want: "connection: failed to bind terminal service (caused by: connection refused)",
		},
		{
			name: "timeout",
			err:  Timeout("transaction"),
			want: "timeout: operation transaction timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", Cancelled("transaction cancelled by the user"))

	assert.Equal(t, ErrorTypeCancelled, TypeOf(wrapped))
	assert.True(t, IsType(wrapped, ErrorTypeCancelled))
	assert.False(t, IsType(wrapped, ErrorTypeFailed))
	assert.Equal(t, ErrorType(""), TypeOf(fmt.Errorf("plain")))
	assert.False(t, IsType(nil, ErrorTypeInternal))
}

func TestWrap_Unwrap(t *testing.T) {
	err := Wrap(context.DeadlineExceeded, ErrorTypeTimeout, "transaction abandoned by caller")

	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, context.DeadlineExceeded, err.Unwrap())
}

func TestWithContextAndOutcome(t *testing.T) {
	err := Failed("declined").
		WithContext("resultCode", 1).
		WithContext("errorCode", -4).
		WithOutcome("marker")

	require.Len(t, err.Context, 2)
	assert.Equal(t, 1, err.Context["resultCode"])
	assert.Equal(t, "marker", err.Outcome)

	// a literal without a context map still accepts context
	bare := &TerminalError{Type: ErrorTypeInternal, Message: "x"}
	bare.WithContext("k", "v")
	assert.Equal(t, "v", bare.Context["k"])
}

func TestServiceNotBound(t *testing.T) {
	err := ServiceNotBound(nil)
	assert.Equal(t, ErrorTypeServiceNotBound, err.Type)
	assert.Nil(t, err.Unwrap())

	cause := fmt.Errorf("bind refused")
	err = ServiceNotBound(cause)
	assert.ErrorIs(t, err, cause)
}
