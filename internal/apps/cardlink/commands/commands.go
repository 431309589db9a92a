package commands

import (
	"github.com/spf13/cobra"

	"cardlink/internal/apps/common"
	"cardlink/internal/di"
)

func GetCommands(appCtx *common.Context, clients *di.ClientSet) []*cobra.Command {
	return []*cobra.Command{
		NewStatusCmd(appCtx, clients),
		NewConnectCmd(appCtx, clients),
		NewDisconnectCmd(appCtx, clients),
		NewPayCmd(appCtx, clients),
		NewDeviceCmd(appCtx, clients),
		NewWatchCmd(appCtx, clients),
		NewServeCmd(appCtx, clients),
		NewSimulateCmd(appCtx, clients),
	}
}
