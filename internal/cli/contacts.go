package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"wasender/internal/contacts"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a contact file without sending anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.LoadContacts(args[0])
		if err != nil {
			return err
		}
		// Rows that fail validation are dropped (and logged) during load, so
		// whatever survives is what a campaign would target.
		fmt.Printf("contactos utilizables: %d\n", len(list))
		for i, c := range list {
			if i == 10 {
				fmt.Printf("  ... y %d más\n", len(list)-i)
				break
			}
			fmt.Printf("  %-20s %s\n", c.Name, c.Phone)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <in> <out.csv>",
	Short: "Normalize a contact file and write it back as UTF-8 CSV",
	Long: `export runs the same cleanup as a campaign (phone normalization, row
filtering, template fill-in) and writes the surviving contacts to a new
CSV, so the file can be inspected before sending.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.LoadContacts(args[0])
		if err != nil {
			return err
		}
		if err := contacts.Export(list, args[1]); err != nil {
			return err
		}
		fmt.Printf("%d contactos escritos en %s\n", len(list), args[1])
		return nil
	},
}
