package cobra

import (
	"fmt"

	"github.com/spf13/cobra"

	"cardlink/internal/apps/common"
	"cardlink/internal/buildinfo"
)

// ServerFlag selects a running `cardlink serve` instead of an in-process session
const ServerFlag = "server"

func NewRootCommand(appCtx *common.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   appCtx.BinaryName,
		Short: "Bridge payment requests to a SmartConnect card terminal",
		Long: `cardlink binds to the terminal's SmartConnect service, submits payment
transactions one at a time and reports how each one ended.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Version:           buildinfo.Version,
	}

	serverURL := ""
	if appCtx.Config != nil {
		serverURL = appCtx.Config.Server.URL
	}
	rootCmd.PersistentFlags().String(ServerFlag, serverURL, "base URL of a running cardlink server (default: in-process session)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Display the version of " + appCtx.BinaryName,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (profile: %s)\n", appCtx.BinaryName, buildinfo.String(), appCtx.Profile())
		},
	})

	return rootCmd
}
