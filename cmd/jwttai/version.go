package main

import (
	"fmt"

	"github.com/spf13/cobra"

	jwttai "github.com/cicsdev/go-jwt-tai"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the interceptor version",
		Args:  cobra.NoArgs,
		// No config is needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			i, err := jwttai.New()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", i.Version(), i.Type())
			return nil
		},
	}
}
