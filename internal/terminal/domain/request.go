package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"cardlink/internal/errors"
)

// TransactionTypeSale is used when the caller does not choose a transaction type
const TransactionTypeSale = 1

// TransactionRequest is a payment request as issued by the hosting application.
// Zero values mean "not provided" and are replaced by Normalize.
type TransactionRequest struct {
	Amount          string `json:"amount"`
	DocumentNumber  string `json:"documentNumber"`
	ReferenceNumber string `json:"referenceNumber"`
	WaiterNumber    string `json:"waiterNumber"`
	TransactionType int    `json:"transactionType"`
}

// TransactionRequestEntity is the request shape the terminal service accepts
type TransactionRequestEntity struct {
	Amount          string `json:"amount"`
	CardHolderID    string `json:"cardHolderId"`
	WaiterNumber    string `json:"waiterNumber"`
	ReferenceNumber string `json:"referenceNumber"`
	TransactionType int    `json:"transactionType"`
}

// Normalize fills defaults and converts the request into the service shape.
// The amount must be a non-negative decimal with at most two fractional digits.
// It is forwarded in fixed two-decimal form rather than as the caller wrote it:
// "10" goes out as "10.00" and an empty amount as "0.00".
func (r TransactionRequest) Normalize() (TransactionRequestEntity, error) {
	amount := strings.TrimSpace(r.Amount)
	if amount == "" {
		amount = "0"
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return TransactionRequestEntity{}, errors.Validation(fmt.Sprintf("amount %q is not a decimal number", r.Amount))
	}
	if d.IsNegative() {
		return TransactionRequestEntity{}, errors.Validation(fmt.Sprintf("amount %q must not be negative", r.Amount))
	}
	if !d.Equal(d.Round(2)) {
		return TransactionRequestEntity{}, errors.Validation(fmt.Sprintf("amount %q has more than two decimal places", r.Amount))
	}

	txnType := r.TransactionType
	if txnType == 0 {
		txnType = TransactionTypeSale
	}
	if txnType < 0 {
		return TransactionRequestEntity{}, errors.Validation(fmt.Sprintf("transaction type %d is invalid", r.TransactionType))
	}

	return TransactionRequestEntity{
		Amount:          d.StringFixed(2),
		CardHolderID:    strings.TrimSpace(r.DocumentNumber),
		WaiterNumber:    strings.TrimSpace(r.WaiterNumber),
		ReferenceNumber: strings.TrimSpace(r.ReferenceNumber),
		TransactionType: txnType,
	}, nil
}

// requestKeys maps accepted payload keys, including the legacy aliases, onto fields
var requestKeys = map[string]string{
	"amount":          "amount",
	"documentNumber":  "documentNumber",
	"referenceNumber": "referenceNumber",
	"referenceNo":     "referenceNumber",
	"waiterNumber":    "waiterNumber",
	"waiterNum":       "waiterNumber",
	"transactionType": "transactionType",
	"transType":       "transactionType",
}

// ParseTransactionRequest converts a loosely typed payload (for example decoded
// JSON) into a TransactionRequest. Unknown keys and values of the wrong type are
// rejected here so they never reach the bridge.
func ParseTransactionRequest(payload map[string]any) (TransactionRequest, error) {
	var req TransactionRequest
	if payload == nil {
		return req, errors.Validation("transaction payload is empty")
	}

	var unknown []string
	for key, value := range payload {
		field, ok := requestKeys[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		if value == nil {
			continue
		}

		var err error
		switch field {
		case "amount":
			req.Amount, err = amountValue(key, value)
		case "documentNumber":
			req.DocumentNumber, err = stringValue(key, value)
		case "referenceNumber":
			req.ReferenceNumber, err = stringValue(key, value)
		case "waiterNumber":
			req.WaiterNumber, err = stringValue(key, value)
		case "transactionType":
			req.TransactionType, err = intValue(key, value)
		}
		if err != nil {
			return TransactionRequest{}, err
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return TransactionRequest{}, errors.Validation(fmt.Sprintf("unknown transaction fields: %s", strings.Join(unknown, ", ")))
	}

	return req, nil
}

func amountValue(key string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", errors.Validation(fmt.Sprintf("%s must be a finite number", key))
		}
		return decimal.NewFromFloat(v).String(), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", errors.Validation(fmt.Sprintf("%s must be a string or number, got %T", key, value))
	}
}

func stringValue(key string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10), nil
		}
		return "", errors.Validation(fmt.Sprintf("%s must be a string", key))
	default:
		return "", errors.Validation(fmt.Sprintf("%s must be a string, got %T", key, value))
	}
}

func intValue(key string, value any) (int, error) {
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
			return 0, errors.Validation(fmt.Sprintf("%s must be an integer", key))
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, errors.Validation(fmt.Sprintf("%s must be an integer", key))
		}
		return n, nil
	default:
		return 0, errors.Validation(fmt.Sprintf("%s must be an integer, got %T", key, value))
	}
}
