package cli

import (
	"github.com/spf13/cobra"

	"wasender/internal/web"
	logx "wasender/pkg/logx"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Open the interactive terminal menu",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMenu(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web dashboard",
	Long: `serve exposes the JSON API and the browser dashboard on the configured
address, watches the config file for changes and notifies systemd when
ready. Campaigns are started and stopped from the dashboard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		go func() {
			if err := a.Watch(cmd.Context()); err != nil && cmd.Context().Err() == nil {
				a.Logger().Error("config watcher exited", logx.Err(err))
			}
		}()

		srv := web.NewServer(a, a.Logger().With(logx.String("component", "web")))
		return srv.Run(cmd.Context())
	},
}
