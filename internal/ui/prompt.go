package ui

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/shopspring/decimal"

	"cardlink/internal/config"
	"cardlink/internal/terminal/domain"
)

// ErrAborted is returned when the operator leaves a prompt with Ctrl-C or Ctrl-D
var ErrAborted = stderrors.New("prompt aborted")

// PromptTransaction asks the operator for the fields of a transaction, offering
// the values already in req as defaults
func PromptTransaction(req domain.TransactionRequest, catalog *config.TerminalCatalog) (domain.TransactionRequest, error) {
	amount, err := runPrompt(promptui.Prompt{
		Label:    "Amount",
		Default:  req.Amount,
		Validate: ValidateAmount,
	})
	if err != nil {
		return req, err
	}
	req.Amount = amount

	if catalog != nil {
		txnType, err := selectTransactionType(catalog, req.TransactionType)
		if err != nil {
			return req, err
		}
		req.TransactionType = txnType
	}

	if req.DocumentNumber, err = runPrompt(promptui.Prompt{Label: "Document number", Default: req.DocumentNumber}); err != nil {
		return req, err
	}
	if req.ReferenceNumber, err = runPrompt(promptui.Prompt{Label: "Reference number", Default: req.ReferenceNumber}); err != nil {
		return req, err
	}
	if req.WaiterNumber, err = runPrompt(promptui.Prompt{Label: "Waiter number", Default: req.WaiterNumber}); err != nil {
		return req, err
	}

	confirm := promptui.Prompt{
		Label:     fmt.Sprintf("Charge %s", req.Amount),
		IsConfirm: true,
	}
	if _, err := confirm.Run(); err != nil {
		return req, ErrAborted
	}

	return req, nil
}

// ValidateAmount accepts non-negative decimals with at most two fractional digits
func ValidateAmount(input string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	if !d.Equal(d.Round(2)) {
		return fmt.Errorf("at most two decimal places")
	}
	return nil
}

func selectTransactionType(catalog *config.TerminalCatalog, current int) (int, error) {
	codes := catalog.TransactionTypeCodes()
	items := make([]string, len(codes))
	cursor := 0
	for i, code := range codes {
		name, _ := catalog.TransactionTypeName(code)
		items[i] = fmt.Sprintf("%d %s", code, name)
		if code == current || (current == 0 && code == domain.TransactionTypeSale) {
			cursor = i
		}
	}

	prompt := promptui.Select{
		Label:     "Transaction type",
		Items:     items,
		Size:      min(10, len(items)),
		CursorPos: cursor,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}?",
			Active:   `{{ "✔" | cyan }} {{ . | cyan }}`,
			Inactive: `  {{ . }}`,
			Selected: `{{ "✔" | green }} {{ . | green }}`,
		},
	}

	index, _, err := prompt.Run()
	if err != nil {
		return 0, promptError(err)
	}
	return codes[index], nil
}

func runPrompt(p promptui.Prompt) (string, error) {
	value, err := p.Run()
	if err != nil {
		return "", promptError(err)
	}
	return strings.TrimSpace(value), nil
}

func promptError(err error) error {
	if err == promptui.ErrEOF || err == promptui.ErrInterrupt {
		return ErrAborted
	}
	return err
}
