package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newOperatorsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "List registered operator factories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, _, err := flags.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close(context.Background())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tKIND\tQUALIFIED")
			for _, info := range e.Operators() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.SimpleName, info.Kind, info.Name)
			}
			return w.Flush()
		},
	}
}

func newPipelinesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List pipelines found in the pipeline directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, _, err := flags.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close(context.Background())

			names, err := e.Pipelines()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
