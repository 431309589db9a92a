package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cardlink/internal/apps/common"
	base "cardlink/internal/apps/common/commands"
	"cardlink/internal/di"
	"cardlink/internal/errors"
	"cardlink/internal/terminal/domain"
	"cardlink/internal/ui"
)

func NewWatchCmd(appCtx *common.Context, clients *di.ClientSet) *cobra.Command {
	bc := base.NewBaseCommand(appCtx, clients)
	var errorsOnly bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Bind to the terminal and print lifecycle events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if bc.Remote(cmd) {
				return errors.Validation("watch streams events from an in-process session and cannot use --server")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session := clients.Session
			kinds := []domain.EventKind{domain.EventError}
			if !errorsOnly {
				kinds = append(kinds, domain.EventStatus)
			}
			for _, kind := range kinds {
				id, err := session.Subscribe(kind, func(evt domain.Event) {
					fmt.Println(ui.RenderEvent(evt))
				})
				if err != nil {
					return err
				}
				defer session.Unsubscribe(id)
			}

			if err := session.Connect(ctx); err != nil {
				bc.LogError(err)
				return err
			}

			<-ctx.Done()
			_, err := session.Disconnect()
			return err
		},
	}

	cmd.Flags().BoolVar(&errorsOnly, "errors-only", false, "only print error events")
	return cmd
}
