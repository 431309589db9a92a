package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cardlink/internal/apps/common"
	base "cardlink/internal/apps/common/commands"
	"cardlink/internal/di"
	"cardlink/internal/ui"
)

func NewDeviceCmd(appCtx *common.Context, clients *di.ClientSet) *cobra.Command {
	bc := base.NewBaseCommand(appCtx, clients)

	return &cobra.Command{
		Use:   "device",
		Short: "Show terminal hardware details",
		RunE: func(cmd *cobra.Command, args []string) error {
			terminal := bc.Terminal(cmd)
			if !terminal.IsConnected() {
				if err := terminal.Connect(cmd.Context()); err != nil {
					bc.LogError(err)
					return err
				}
			}

			info, err := terminal.DeviceInfo(cmd.Context())
			if err != nil {
				bc.LogError(err)
				return err
			}
			fmt.Print(ui.RenderDevice(info))
			return nil
		},
	}
}
