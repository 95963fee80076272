package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCompleteCmd(opts *globalOptions) *cobra.Command {
	var (
		ro      requestOptions
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Send a chat completion through the gateway",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			req := ro.build(strings.Join(args, " "), cmd.Flags().Changed("temperature"))
			res, err := a.service.Complete(cmd.Context(), req)
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Content)
			return nil
		},
	}

	addRequestFlags(cmd, &ro)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the full result as JSON")
	return cmd
}

func addRequestFlags(cmd *cobra.Command, ro *requestOptions) {
	cmd.Flags().StringVarP(&ro.user, "user", "u", "cli", "principal the request is admitted for")
	cmd.Flags().StringVarP(&ro.model, "model", "m", "", "model name or provider-qualified model")
	cmd.Flags().StringVar(&ro.system, "system", "", "optional system prompt")
	cmd.Flags().IntVar(&ro.maxTokens, "max-tokens", 0, "maximum tokens to generate")
	cmd.Flags().Float64Var(&ro.temperature, "temperature", 0, "sampling temperature")
}
