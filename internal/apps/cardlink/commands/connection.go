package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cardlink/internal/apps/common"
	base "cardlink/internal/apps/common/commands"
	"cardlink/internal/di"
	"cardlink/internal/ui"
)

func NewStatusCmd(appCtx *common.Context, clients *di.ClientSet) *cobra.Command {
	bc := base.NewBaseCommand(appCtx, clients)

	return &cobra.Command{
		Use:   "status",
		Short: "Show the terminal binding state",
		RunE: func(cmd *cobra.Command, args []string) error {
			terminal := bc.Terminal(cmd)
			bc.PrintInfo("state:     %s", terminal.State())
			bc.PrintInfo("connected: %t", terminal.IsConnected())
			bc.PrintInfo("busy:      %t", terminal.Busy())
			return nil
		},
	}
}

func NewConnectCmd(appCtx *common.Context, clients *di.ClientSet) *cobra.Command {
	bc := base.NewBaseCommand(appCtx, clients)

	return &cobra.Command{
		Use:   "connect",
		Short: "Bind to the terminal service",
		Long: `Bind to the SmartConnect service. Against a cardlink server the binding
outlives the command; in-process it only proves the service is reachable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			terminal := bc.Terminal(cmd)
			if err := terminal.Connect(cmd.Context()); err != nil {
				bc.LogError(err)
				fmt.Print(ui.RenderError(err, clients.Catalog))
				return err
			}
			bc.PrintInfo("Connected to %s (%s)", appCtx.Config.Terminal.Component, terminal.State())
			return nil
		},
	}
}

func NewDisconnectCmd(appCtx *common.Context, clients *di.ClientSet) *cobra.Command {
	bc := base.NewBaseCommand(appCtx, clients)

	return &cobra.Command{
		Use:   "disconnect",
		Short: "Release the terminal service binding",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := bc.Terminal(cmd).Disconnect()
			if err != nil {
				bc.LogError(err)
				return err
			}
			bc.PrintInfo("%s", msg)
			return nil
		},
	}
}
