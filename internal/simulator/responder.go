package simulator

import (
	"fmt"
	"strings"

	"cardlink/internal/terminal/domain"
)

// Mode selects how the simulated terminal answers transactions
type Mode string

const (
	ModeApprove Mode = "approve"
	ModeDecline Mode = "decline"
	ModeCancel  Mode = "cancel"
	ModeSilent  Mode = "silent"
)

// Modes lists every supported mode
var Modes = []Mode{ModeApprove, ModeDecline, ModeCancel, ModeSilent}

// ParseMode validates a mode name
func ParseMode(value string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown simulator mode %q (want one of approve, decline, cancel, silent)", value)
}

// Reply is the transaction result the simulated terminal sends back
type Reply struct {
	Result          int    `json:"result"`
	ErrorCode       int    `json:"errorCode"`
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
	Amount          string `json:"amount"`
	ReferenceNumber string `json:"referenceNumber"`
	AuthCode        string `json:"authCode,omitempty"`
}

// Responder decides the reply to one request; ok=false means no reply is sent
type Responder func(req domain.TransactionRequestEntity) (reply Reply, ok bool)

// Scripted returns a responder that answers every request according to mode
func Scripted(mode Mode) Responder {
	return func(req domain.TransactionRequestEntity) (Reply, bool) {
		reply := Reply{Amount: req.Amount, ReferenceNumber: req.ReferenceNumber}
		switch mode {
		case ModeApprove:
			reply.ResponseCode = "00"
			reply.ResponseMessage = "APPROVED"
			reply.AuthCode = "A1B2C3"
		case ModeDecline:
			reply.Result = 1
			reply.ErrorCode = -4
			reply.ResponseCode = "05"
			reply.ResponseMessage = "DECLINED"
		case ModeCancel:
			reply.Result = 1
			reply.ErrorCode = domain.CancelledErrorCode
			reply.ResponseMessage = domain.CancelledMessage
		default:
			return Reply{}, false
		}
		return reply, true
	}
}
