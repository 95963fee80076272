package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newProvidersCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured providers in failover order",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			status := a.gateway.Providers()
			if len(status) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No providers configured.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRIORITY\tPROVIDER\tHEALTH\tTIMEOUT\tDEFAULT MODEL")
			for _, s := range status {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					s.Priority, s.Name, s.Health, s.Timeout,
					a.gateway.Registry().Resolve(a.cfg.Defaults.Model, s.Name))
			}
			return w.Flush()
		},
	}
}
