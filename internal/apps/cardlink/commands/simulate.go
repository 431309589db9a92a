package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cardlink/internal/apps/common"
	base "cardlink/internal/apps/common/commands"
	"cardlink/internal/di"
	"cardlink/internal/errors"
	"cardlink/internal/simulator"
	"cardlink/internal/terminal/domain"
)

func NewSimulateCmd(appCtx *common.Context, clients *di.ClientSet) *cobra.Command {
	bc := base.NewBaseCommand(appCtx, clients)

	var (
		network    string
		listen     string
		mode       string
		component  string
		delay      time.Duration
		refuseBind bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated SmartConnect terminal service",
		Long: `Listen where the terminal service would and answer binds and transactions
according to --mode, so cardlink can be exercised without hardware.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := simulator.ParseMode(mode)
			if err != nil {
				return errors.Validation(err.Error())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sim := simulator.NewServer(simulator.Options{
				Component:  domain.Component(component),
				RefuseBind: refuseBind,
				Mode:       m,
				Delay:      delay,
			}, appCtx.Logger.WithPrefix("simulator"))

			if network == "unix" {
				_ = os.Remove(listen)
			}
			if err := sim.Listen(network, listen); err != nil {
				return errors.Connection("failed to start simulator", err)
			}

			bc.PrintInfo("Simulating %s on %s %s; Ctrl-C to stop", m, network, sim.Addr())
			return sim.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&network, "network", appCtx.Config.Terminal.Network, "tcp, tcp4, tcp6 or unix")
	cmd.Flags().StringVar(&listen, "listen", appCtx.Config.Terminal.Address, "address to listen on")
	cmd.Flags().StringVar(&mode, "mode", string(simulator.ModeApprove), "approve, decline, cancel or silent")
	cmd.Flags().StringVar(&component, "component", appCtx.Config.Terminal.Component, "only accept binds for this component (empty accepts any)")
	cmd.Flags().DurationVar(&delay, "delay", 2*time.Second, "how long the terminal takes per transaction")
	cmd.Flags().BoolVar(&refuseBind, "refuse-bind", false, "reject every bind request")
	return cmd
}
