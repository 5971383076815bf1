// Package cli defines the Cobra command tree for the wasender binary.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wasender/internal/app"
	"wasender/internal/tui"
)

var (
	cfgPath string
	version = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "wasender",
	Short: "Automated bulk messaging over WhatsApp Web",
	Long: `wasender drives a real WhatsApp Web session in a browser to send a
templated message to every contact in a CSV or Excel file, with
per-contact auditing and randomized pacing.

Without a subcommand it opens the interactive terminal menu.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMenu(cmd.Context())
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() (*app.App, error) {
	return app.New(cfgPath)
}

func runMenu(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	go func() {
		<-ctx.Done()
		a.RequestStop()
	}()
	return tui.Run(a)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (JSON or YAML); empty uses built-in defaults")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(menuCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(exportCmd)
}
