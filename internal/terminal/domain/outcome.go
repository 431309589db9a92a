package domain

import (
	stderrors "errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"cardlink/internal/errors"
)

// Cancellation markers reported by the SmartConnect service. They are platform
// conventions, not documented codes.
const (
	CancelledErrorCode = -2
	CancelledMessage   = "CANCELLED"
)

const (
	cancelledReason = "transaction cancelled by the user"
	failedReason    = "transaction failed"
)

// TransactionResult is the callback payload of the terminal service
type TransactionResult struct {
	Result          int    `json:"result"`
	ErrorCode       int    `json:"errorCode"`
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`

	// Raw keeps the full payload for diagnostics; it is never surfaced on success.
	Raw json.RawMessage `json:"-"`
}

// DecodeTransactionResult converts a raw callback payload into a TransactionResult.
// Payloads that are not JSON objects or lack a numeric "result" are rejected.
func DecodeTransactionResult(raw []byte) (TransactionResult, error) {
	var shape struct {
		Result          *int   `json:"result"`
		ErrorCode       int    `json:"errorCode"`
		ResponseCode    string `json:"responseCode"`
		ResponseMessage string `json:"responseMessage"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return TransactionResult{}, errors.Internal("malformed transaction result payload", err)
	}
	if shape.Result == nil {
		return TransactionResult{}, errors.Internal("transaction result payload has no result code", nil)
	}

	return TransactionResult{
		Result:          *shape.Result,
		ErrorCode:       shape.ErrorCode,
		ResponseCode:    shape.ResponseCode,
		ResponseMessage: shape.ResponseMessage,
		Raw:             append(json.RawMessage(nil), raw...),
	}, nil
}

// OutcomeKind tags the variants of Outcome
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeCancelled
	OutcomeFailed
)

// String returns the string representation of the outcome kind
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one transaction: Success, Cancelled or Failed
type Outcome interface {
	Kind() OutcomeKind
}

// Success is an approved transaction
type Success struct {
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
}

// Cancelled is a transaction the user aborted on the terminal
type Cancelled struct {
	Reason string `json:"reason"`
}

// Failed is a declined transaction or a terminal fault
type Failed struct {
	ResultCode      int    `json:"resultCode"`
	ErrorCode       int    `json:"errorCode"`
	ResponseMessage string `json:"responseMessage"`
}

func (Success) Kind() OutcomeKind   { return OutcomeSuccess }
func (Cancelled) Kind() OutcomeKind { return OutcomeCancelled }
func (Failed) Kind() OutcomeKind    { return OutcomeFailed }

// Classify maps a callback payload onto an Outcome
func Classify(r TransactionResult) Outcome {
	if r.Result == 0 {
		return Success{
			ResponseCode:    r.ResponseCode,
			ResponseMessage: r.ResponseMessage,
		}
	}

	if r.ErrorCode == CancelledErrorCode || strings.EqualFold(r.ResponseMessage, CancelledMessage) {
		return Cancelled{Reason: cancelledReason}
	}

	return Failed{
		ResultCode:      r.Result,
		ErrorCode:       r.ErrorCode,
		ResponseMessage: r.ResponseMessage,
	}
}

// OutcomeError converts a non-success outcome into the error the caller receives.
// raw is attached as diagnostic context when present.
func OutcomeError(o Outcome, raw []byte) error {
	var err *errors.TerminalError
	switch v := o.(type) {
	case Success:
		return nil
	case Cancelled:
		err = errors.Cancelled(v.Reason).WithOutcome(v)
	case Failed:
		err = errors.Failed(fmt.Sprintf("%s: result=%d errorCode=%d message=%q",
			failedReason, v.ResultCode, v.ErrorCode, v.ResponseMessage)).
			WithOutcome(v).
			WithContext("resultCode", v.ResultCode).
			WithContext("errorCode", v.ErrorCode)
	default:
		return errors.Internal(fmt.Sprintf("unknown outcome %T", o), nil)
	}

	if len(raw) > 0 {
		err.WithContext("payload", string(raw))
	}
	return err
}

// OutcomeFromError extracts the classified outcome carried by a cancelled or failed error
func OutcomeFromError(err error) (Outcome, bool) {
	var te *errors.TerminalError
	if !stderrors.As(err, &te) || te.Outcome == nil {
		return nil, false
	}
	o, ok := te.Outcome.(Outcome)
	return o, ok
}
