package commands

import (
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cardlink/internal/apps/common"
	base "cardlink/internal/apps/common/commands"
	"cardlink/internal/config"
	"cardlink/internal/di"
	"cardlink/internal/errors"
	"cardlink/internal/terminal/domain"
	"cardlink/internal/ui"
)

func NewPayCmd(appCtx *common.Context, clients *di.ClientSet) *cobra.Command {
	bc := base.NewBaseCommand(appCtx, clients)

	var (
		amount      string
		document    string
		reference   string
		waiter      string
		txnType     string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Submit a payment transaction to the terminal",
		Long: `Submit one transaction and wait for the terminal to finish it.

The transaction type is a catalog code or name (sale, refund, ...). Only one
transaction can be outstanding; a second one is rejected as busy. Ctrl-C stops
waiting but does not cancel the transaction on the terminal.`,
		Example: `  cardlink pay --amount 25.50 --document V-12345678
  cardlink pay --amount 10 --type refund --reference REF-99
  cardlink pay --interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := parseTransactionType(txnType, clients.Catalog)
			if err != nil {
				return err
			}

			req := domain.TransactionRequest{
				Amount:          amount,
				DocumentNumber:  document,
				ReferenceNumber: reference,
				WaiterNumber:    waiter,
				TransactionType: code,
			}
			if req.ReferenceNumber == "" {
				req.ReferenceNumber = defaultReference(time.Now())
			}

			if interactive {
				if !ui.IsInteractive() {
					return errors.Validation("--interactive needs a terminal")
				}
				req, err = ui.PromptTransaction(req, clients.Catalog)
				if stderrors.Is(err, ui.ErrAborted) {
					bc.PrintInfo("Aborted, nothing was charged")
					return nil
				}
				if err != nil {
					return err
				}
			} else if strings.TrimSpace(req.Amount) == "" {
				return errors.Validation("--amount is required unless --interactive is set")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			terminal := bc.Terminal(cmd)
			if !terminal.IsConnected() {
				if err := terminal.Connect(ctx); err != nil {
					bc.LogError(err)
					fmt.Print(ui.RenderError(err, clients.Catalog))
					return err
				}
			}

			bc.Logger.Info("Submitting %s transaction for %s (ref %s)", typeLabel(req.TransactionType, clients.Catalog), req.Amount, req.ReferenceNumber)
			success, err := terminal.Submit(ctx, req)
			if err != nil {
				bc.LogError(err)
				fmt.Print(ui.RenderError(err, clients.Catalog))
				return err
			}

			fmt.Print(ui.RenderSuccess(success))
			return nil
		},
	}

	cmd.Flags().StringVarP(&amount, "amount", "a", "", "amount to charge, at most two decimal places")
	cmd.Flags().StringVarP(&document, "document", "d", "", "card holder document number")
	cmd.Flags().StringVarP(&reference, "reference", "r", "", "reference number (default REF-<unix millis>)")
	cmd.Flags().StringVarP(&waiter, "waiter", "w", "", "waiter number")
	cmd.Flags().StringVarP(&txnType, "type", "t", "", "transaction type code or name (default sale)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for the transaction fields")

	return cmd
}

// parseTransactionType accepts a numeric code or a catalog name such as
// "sale" or "pre-authorization". Empty selects the default type.
func parseTransactionType(value string, catalog *config.TerminalCatalog) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}

	if code, err := strconv.Atoi(value); err == nil {
		if code <= 0 {
			return 0, errors.Validation(fmt.Sprintf("transaction type %d is invalid", code))
		}
		if catalog != nil {
			if _, ok := catalog.TransactionTypeName(code); !ok {
				return 0, errors.Validation(fmt.Sprintf("transaction type %d is not supported by the terminal", code))
			}
		}
		return code, nil
	}

	if catalog == nil {
		return 0, errors.Validation(fmt.Sprintf("transaction type %q must be numeric", value))
	}

	want := strings.NewReplacer("-", "_", " ", "_").Replace(strings.ToLower(value))
	for _, code := range catalog.TransactionTypeCodes() {
		if name, _ := catalog.TransactionTypeName(code); name == want {
			return code, nil
		}
	}
	return 0, errors.Validation(fmt.Sprintf("unknown transaction type %q", value))
}

func defaultReference(now time.Time) string {
	return fmt.Sprintf("REF-%d", now.UnixMilli())
}

func typeLabel(code int, catalog *config.TerminalCatalog) string {
	if code == 0 {
		code = domain.TransactionTypeSale
	}
	if catalog != nil {
		if name, ok := catalog.TransactionTypeName(code); ok {
			return name
		}
	}
	return fmt.Sprintf("type %d", code)
}
