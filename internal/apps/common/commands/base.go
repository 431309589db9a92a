package commands

import (
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	"cardlink/internal/apps/common"
	cobraPkg "cardlink/internal/apps/common/cobra"
	"cardlink/internal/di"
	"cardlink/internal/errors"
	"cardlink/internal/httpapi"
	"cardlink/internal/logging"
)

// BaseCommand provides common functionality for all commands
type BaseCommand struct {
	AppCtx  *common.Context
	Clients *di.ClientSet
	Logger  *logging.Logger
}

// NewBaseCommand creates a new base command
func NewBaseCommand(appCtx *common.Context, clients *di.ClientSet) *BaseCommand {
	return &BaseCommand{
		AppCtx:  appCtx,
		Clients: clients,
		Logger:  appCtx.Logger.WithPrefix("cmd"),
	}
}

// Terminal resolves the terminal the command talks to from the --server flag
func (bc *BaseCommand) Terminal(cmd *cobra.Command) httpapi.TerminalService {
	serverURL, _ := cmd.Flags().GetString(cobraPkg.ServerFlag)
	return bc.Clients.Terminal(serverURL)
}

// Remote reports whether the command targets a cardlink server
func (bc *BaseCommand) Remote(cmd *cobra.Command) bool {
	serverURL, _ := cmd.Flags().GetString(cobraPkg.ServerFlag)
	return serverURL != ""
}

// LogError logs a typed error with its context at debug level
func (bc *BaseCommand) LogError(err error) {
	if err == nil {
		return
	}

	var te *errors.TerminalError
	if stderrors.As(err, &te) {
		bc.Logger.Debug("%s: %s", te.Type, te.Message)
		if len(te.Context) > 0 {
			bc.Logger.Debug("Error context: %+v", te.Context)
		}
		if te.Cause != nil {
			bc.Logger.Debug("Caused by: %v", te.Cause)
		}
		return
	}
	bc.Logger.Debug("Unexpected error: %v", err)
}

// PrintInfo prints an info message with consistent formatting
func (bc *BaseCommand) PrintInfo(message string, args ...any) {
	fmt.Printf("%s\n", fmt.Sprintf(message, args...))
}
