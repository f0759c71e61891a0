package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yeisme/dropvault/pkg/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the http server, scheduler and event audit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := app.NewServer(ctx, appConfig)
		if err != nil {
			return err
		}

		return srv.Run(ctx)
	},
}

// registerServeCommands 注册 serve 命令.
func registerServeCommands() {
	rootCmd.AddCommand(serveCmd)
}
