package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wasender/internal/app"
	"wasender/internal/contacts"
	"wasender/internal/sender"
)

var (
	runFile     string
	runLimit    int
	runDelay    time.Duration
	runTemplate string
	runDryRun   bool
)

var errNoneSent = errors.New("no messages were sent")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send a campaign headlessly, without any UI",
	Long: `run loads the contact file, waits for the WhatsApp Web session to be
authenticated (scan the QR code when it appears) and works through the
list. Progress goes to the log; the process exits 0 only if at least
one message was sent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		req := app.RunRequest{
			File:     runFile,
			Limit:    runLimit,
			Delay:    runDelay,
			Template: runTemplate,
		}

		if runDryRun {
			list, err := a.Preview(req)
			if err != nil {
				return err
			}
			fmt.Printf("simulación: %d mensajes saldrían\n\n", len(list))
			for _, c := range list {
				fmt.Printf("  %s <%s>: %s\n", c.Name, c.Phone, contacts.FormatMessage(c.Message, c))
			}
			return nil
		}

		req.Progress = sender.ProgressFunc(func(current, total int) {
			fmt.Printf("[%d/%d]\n", current, total)
		})
		_, err = a.StartRun(req)
		if err != nil {
			return err
		}

		// SIGINT asks the run to wind down after the contact in flight; a
		// second one kills the process the usual way.
		go func() {
			<-cmd.Context().Done()
			a.RequestStop()
		}()

		stats, err := a.Wait(context.Background())
		if err != nil {
			return err
		}
		printSummary(stats)
		if stats.Sent == 0 {
			return errNoneSent
		}
		return nil
	},
}

func printSummary(st sender.Stats) {
	fmt.Println()
	fmt.Println("resumen de la campaña")
	fmt.Printf("  enviados:  %d\n", st.Sent)
	fmt.Printf("  errores:   %d\n", st.Failed)
	fmt.Printf("  saltados:  %d\n", st.Skipped)
	fmt.Printf("  duración:  %s\n", st.Duration().Round(time.Second))
	fmt.Printf("  efectividad: %.0f%%\n", st.SuccessRate())
	if st.Stopped {
		fmt.Println("  detenida por el usuario")
	}
	if st.Aborted {
		fmt.Println("  abortada: la sesión se perdió")
	}
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "contact file (CSV or Excel)")
	runCmd.Flags().IntVarP(&runLimit, "limit", "l", 0, "max messages to send (0 uses the configured default)")
	runCmd.Flags().DurationVarP(&runDelay, "delay", "d", 0, "base pause between messages (0 uses the configured default)")
	runCmd.Flags().StringVarP(&runTemplate, "template", "t", "", "message template for rows without a custom message")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print the messages that would be sent and exit")
	_ = runCmd.MarkFlagRequired("file")
}
