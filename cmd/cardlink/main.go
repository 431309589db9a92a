package main

import (
	"os"

	"cardlink/internal/apps/cardlink/commands"
	"cardlink/internal/apps/common"
	cobraPkg "cardlink/internal/apps/common/cobra"
	"cardlink/internal/di"
	"cardlink/internal/logging"
)

func main() {
	logger := logging.NewDefaultLogger("cardlink")

	appCtx, err := common.NewContext("cardlink")
	if err != nil {
		logger.Error("Failed to create app context: %v", err)
		os.Exit(1)
	}

	// Initialize dependency injection container
	container := di.NewContainer()
	if err := container.Initialize(appCtx.Config, appCtx.Logger); err != nil {
		logger.Error("Failed to initialize services: %v", err)
		os.Exit(1)
	}

	rootCmd := cobraPkg.NewRootCommand(appCtx)
	rootCmd.AddCommand(commands.GetCommands(appCtx, container.GetClientSet())...)

	err = rootCmd.Execute()
	container.Close()
	if err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}
