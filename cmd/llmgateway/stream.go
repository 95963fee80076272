package main

import (
	"fmt"
	"strings"

	"github.com/ineyio/llmgateway"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newStreamCmd(opts *globalOptions) *cobra.Command {
	var ro requestOptions

	cmd := &cobra.Command{
		Use:   "stream [prompt]",
		Short: "Stream a chat completion from the first provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			req := ro.build(strings.Join(args, " "), cmd.Flags().Changed("temperature"))
			stream, err := a.service.Stream(ctx, req)
			if err != nil {
				return err
			}
			defer stream.Close()

			out := cmd.OutOrStdout()
			var total int
			for f := range stream.Fragments(ctx) {
				switch f.Kind {
				case llmgateway.FragmentText:
					total += len(f.Text)
					fmt.Fprint(out, f.Text)
				case llmgateway.FragmentEnd:
					fmt.Fprintln(out)
					a.logger.Info("stream completed",
						zap.String("request_id", stream.RequestID()),
						zap.Int("total_length", total),
					)
				case llmgateway.FragmentError:
					fmt.Fprintln(out)
					return f.Err
				}
			}
			return ctx.Err()
		},
	}

	addRequestFlags(cmd, &ro)
	return cmd
}
