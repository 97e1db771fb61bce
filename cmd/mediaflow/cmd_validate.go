package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <pipeline>...",
		Short: "Check pipeline definitions without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := flags.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close(context.Background())

			out := cmd.OutOrStdout()
			failed := 0
			for _, name := range args {
				if err := e.Validate(name); err != nil {
					failed++
					fmt.Fprintf(out, "%s: %v\n", name, err)
					continue
				}
				fmt.Fprintf(out, "%s: ok\n", name)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d pipelines invalid", failed, len(args))
			}
			return nil
		},
	}
}
