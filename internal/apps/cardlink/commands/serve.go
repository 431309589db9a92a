package commands

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"cardlink/internal/apps/common"
	base "cardlink/internal/apps/common/commands"
	"cardlink/internal/di"
	"cardlink/internal/httpapi"
	"cardlink/internal/ui"
)

func NewServeCmd(appCtx *common.Context, clients *di.ClientSet) *cobra.Command {
	bc := base.NewBaseCommand(appCtx, clients)

	var (
		addr    string
		bind    bool
		openURL bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the terminal session over HTTP",
		Long: `Run the HTTP ingress for a hosting application. The process owns the terminal
binding; other cardlink commands can reach it with --server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := clients.StartShipper(ctx); err != nil {
				bc.Logger.Warn("Datadog shipping disabled: %v", err)
			}

			if bind {
				if err := clients.Session.Connect(ctx); err != nil {
					bc.Logger.Warn("Initial bind failed, clients can retry with POST /connect: %v", err)
				}
			}

			server := httpapi.NewServer(clients.Session, clients.Catalog, appCtx.Logger.WithPrefix("http"))
			listenErr := make(chan error, 1)
			go func() { listenErr <- server.Listen(addr) }()

			url := statusURL(addr)
			bc.PrintInfo("Serving terminal %s at %s", appCtx.Config.Terminal.Component, ui.Hyperlink(url))
			if openURL {
				if err := browser.OpenURL(url); err != nil {
					bc.Logger.Warn("Error opening browser: %v", err)
				}
			}

			select {
			case err := <-listenErr:
				return err
			case <-ctx.Done():
			}

			bc.Logger.Info("Shutting down HTTP ingress")
			return server.Shutdown()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", appCtx.Config.Server.Addr, "address to listen on")
	cmd.Flags().BoolVar(&bind, "bind", true, "bind to the terminal service at startup")
	cmd.Flags().BoolVar(&openURL, "open", false, "open the status endpoint in a browser")
	return cmd
}

// statusURL turns a listen address into a browsable status URL
func statusURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + "/status"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/status"
}
