package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sweeney/ac-controller/internal/store"
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "List the learned signal slots",
	Long:  `Open the configured store and print every slot in learning order.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		b, err := openBackend(cfg)
		if err != nil {
			return err
		}
		defer b.Close()
		return printSlots(cmd.OutOrStdout(), b.store.List())
	},
}

func init() {
	rootCmd.AddCommand(slotsCmd)
}

func printSlots(w io.Writer, entries []store.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tSTATE\tSIGNAL")
	for _, e := range entries {
		switch {
		case e.Err != nil:
			fmt.Fprintf(tw, "%s\tunreadable\t%v\n", e.Slot, e.Err)
		case e.Signal == nil:
			fmt.Fprintf(tw, "%s\tempty\t-\n", e.Slot)
		default:
			fmt.Fprintf(tw, "%s\tlearned\t%s\n", e.Slot, e.Signal)
		}
	}
	return tw.Flush()
}
